package fetch

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestClient() (*Client, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewClient(log.New(&buf, "", 0)), &buf
}

func TestGet_HeadersAndQuery(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "model/gltf-binary")
		w.Write([]byte("payload"))
	}))
	t.Cleanup(srv.Close)

	c, _ := newTestClient()
	res, err := c.Get(context.Background(), srv.URL+"/tile.glb?key=k1",
		url.Values{"session": {"s1"}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if res.ContentType != "model/gltf-binary" || string(res.Body) != "payload" {
		t.Fatalf("result=%+v", res)
	}
	if gotQuery.Get("key") != "k1" || gotQuery.Get("session") != "s1" {
		t.Fatalf("query=%v", gotQuery)
	}
}

func TestGet_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	c, _ := newTestClient()
	_, err := c.Get(context.Background(), srv.URL+"/missing.glb", nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("err=%v", err)
	}
}

func TestGet_TruncatedBodyWarnsAndReturns(t *testing.T) {
	// Declare more bytes than the connection delivers. The handler
	// hijacks the connection so the short body actually hits the wire.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Errorf("response writer is not a hijacker")
			return
		}
		conn, buf, err := hj.Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		defer conn.Close()
		buf.WriteString("HTTP/1.1 200 OK\r\n" +
			"Content-Type: model/gltf-binary\r\n" +
			"Content-Length: 10\r\n" +
			"\r\n" +
			"abcd")
		buf.Flush()
	}))
	t.Cleanup(srv.Close)

	c, logBuf := newTestClient()
	res, err := c.Get(context.Background(), srv.URL+"/short.glb", nil)
	if err != nil {
		t.Fatalf("truncated body must not fail the fetch: %v", err)
	}
	if string(res.Body) != "abcd" {
		t.Fatalf("body=%q", res.Body)
	}
	if !strings.Contains(logBuf.String(), "truncated content") {
		t.Fatalf("no truncation warning logged: %q", logBuf.String())
	}
	if !strings.Contains(logBuf.String(), "expected 10 bytes, got 4") {
		t.Fatalf("warning lacks byte counts: %q", logBuf.String())
	}
}
