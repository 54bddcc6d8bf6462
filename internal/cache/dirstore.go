package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// DirStore keeps one zstd-compressed JSON record per URI hash under a
// configurable directory. This is the native persistent tier.
type DirStore struct {
	dir string
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewDirStore(dir string) (*DirStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("empty cache directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &DirStore{dir: dir, enc: enc, dec: dec}, nil
}

func (s *DirStore) path(id uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%016x.json.zst", id))
}

func (s *DirStore) Get(id uint64) (Record, bool, error) {
	raw, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	plain, err := s.dec.DecodeAll(raw, nil)
	if err != nil {
		return Record{}, false, fmt.Errorf("decompress cache record %016x: %w", id, err)
	}
	var rec Record
	if err := json.Unmarshal(plain, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode cache record %016x: %w", id, err)
	}
	return rec, true, nil
}

func (s *DirStore) Put(rec Record) error {
	plain, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	raw := s.enc.EncodeAll(plain, nil)

	// Write to a temp file first so readers never see a partial record.
	path := s.path(rec.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *DirStore) Wipe() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return err
	}
	return os.MkdirAll(s.dir, 0o755)
}

func (s *DirStore) Close() error {
	s.dec.Close()
	return s.enc.Close()
}
