// Package fetch is the thin HTTP GET abstraction used by the tile
// pipeline. It knows nothing about tiles beyond headers and bytes.
package fetch

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const userAgent = "worldpager"

type Client struct {
	http *http.Client
	log  *log.Logger
}

func NewClient(logger *log.Logger) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: logger,
	}
}

// Result is one fetched payload.
type Result struct {
	ContentType string
	Body        []byte
}

// Get issues a GET with the given extra query parameters and returns the
// declared content type and the body. A body shorter than the declared
// content-length is logged but still returned.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values) (Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, err
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Set(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "unknown"
	}

	// A body shorter than the declared content-length shows up as an
	// unexpected EOF; keep what arrived and warn instead of failing.
	body, err := io.ReadAll(resp.Body)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Result{}, err
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if expected, err := strconv.Atoi(cl); err == nil && len(body) < expected {
			c.log.Printf("truncated content from %s: expected %d bytes, got %d", rawURL, expected, len(body))
		}
	}

	return Result{ContentType: contentType, Body: body}, nil
}

// StatusError is a non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.Code) + " from " + e.URL
}
