package cache

// Record is the persisted shape of one cached payload.
type Record struct {
	ID          uint64 `json:"id"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Store is the persistent cache tier: one record per URI hash, surviving
// process restarts. Implementations need not be safe for concurrent use;
// Cache serializes access with its own reader/writer lock.
type Store interface {
	// Get returns the record for id, or ok=false when absent.
	Get(id uint64) (Record, bool, error)
	// Put writes or replaces the record for rec.ID.
	Put(rec Record) error
	// Wipe removes every record and leaves the store usable.
	Wipe() error
	Close() error
}
