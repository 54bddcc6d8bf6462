package tiles

import (
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// TileKey identifies a tile by the 64-bit hash of its canonical URI.
// The same URI always yields the same key, across processes and restarts.
type TileKey uint64

// Generation stamps pipeline messages with the discovery pass that
// produced them. It increases monotonically per pass.
type Generation uint64

// CanonicalURI normalizes a tile URI before hashing: surrounding
// whitespace and the fragment are dropped, everything else (including
// the query) is kept, since access keys and session tokens distinguish
// otherwise identical paths.
func CanonicalURI(uri string) string {
	uri = strings.TrimSpace(uri)
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	u.Fragment = ""
	return u.String()
}

func KeyForURI(uri string) TileKey {
	return TileKey(xxhash.Sum64String(CanonicalURI(uri)))
}
