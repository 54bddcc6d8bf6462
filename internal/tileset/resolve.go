package tileset

import (
	"net/url"
	"strings"

	"worldpager.dev/internal/tiles"
)

// ContentClass is the closed classification of a content reference,
// resolved once from the URI suffix.
type ContentClass int

const (
	ClassUnsupported ContentClass = iota
	ClassTileset
	ClassVisual
)

func (c ContentClass) String() string {
	switch c {
	case ClassTileset:
		return "tileset"
	case ClassVisual:
		return "visual"
	}
	return "unsupported"
}

// Classify inspects the URI path suffix: ".json" is a nested tileset,
// ".glb" is leaf visual content, anything else is unsupported.
func Classify(uri string) ContentClass {
	path := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		path = u.Path
	} else if i := strings.IndexByte(uri, '?'); i >= 0 {
		path = uri[:i]
	}
	switch {
	case strings.HasSuffix(path, ".json"):
		return ClassTileset
	case strings.HasSuffix(path, ".glb"):
		return ClassVisual
	}
	return ClassUnsupported
}

// ResolveURI resolves a (possibly relative) content URI against the
// parent document's URI. The parent's query is dropped first; absolute
// URIs pass through untouched.
func ResolveURI(base, rel string) (string, error) {
	if strings.HasPrefix(rel, "http") {
		return rel, nil
	}
	bu, err := url.Parse(base)
	if err != nil {
		return "", tiles.WrapErr(tiles.KindTileLoading, err, "invalid base uri")
	}
	bu.RawQuery = ""
	ru, err := url.Parse(rel)
	if err != nil {
		return "", tiles.WrapErr(tiles.KindTileLoading, err, "invalid content uri")
	}
	return bu.ResolveReference(ru).String(), nil
}

// ExtractSession pulls a session token out of a URI's query, or "".
func ExtractSession(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Query().Get("session")
}

// WithKeyAndSession appends access-key and session query parameters.
func WithKeyAndSession(uri, key, session string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	q := u.Query()
	if key != "" {
		q.Set("key", key)
	}
	if session != "" {
		q.Set("session", session)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// InheritFrom fills a child content reference from its parent: the URI
// is resolved against the parent's, the access key is inherited, and the
// session token comes from the child URI itself when present, otherwise
// from the parent. Finally key and session are appended to the URI.
func (c *Content) InheritFrom(parent *Content) {
	if parent != nil {
		if resolved, err := ResolveURI(parent.URI, c.URI); err == nil {
			c.URI = resolved
		}
		if c.AccessKey == "" {
			c.AccessKey = parent.AccessKey
		}
		if s := ExtractSession(c.URI); s != "" {
			c.Session = s
		} else if c.Session == "" {
			c.Session = parent.Session
		}
	}
	c.URI = WithKeyAndSession(c.URI, c.AccessKey, c.Session)
	c.Key = tiles.KeyForURI(c.URI)
}
