package idempotency

import (
	"bytes"
	"strings"
)

// Header is one response header. Value is kept as raw bytes so replay does
// not depend on the header being valid UTF-8.
type Header struct {
	Name  string `json:"name"`
	Value []byte `json:"value"`
}

// HeaderCollection keeps headers in order, duplicates included.
type HeaderCollection []Header

// Get returns the first value for name, compared case-insensitively.
func (h HeaderCollection) Get(name string) ([]byte, bool) {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value, true
		}
	}
	return nil, false
}

// Response is an HTTP response as cached for replay.
type Response struct {
	StatusCode int
	Headers    HeaderCollection
	Body       []byte
}

// Equal reports whether r and o are byte-identical.
func (r Response) Equal(o Response) bool {
	if r.StatusCode != o.StatusCode || !bytes.Equal(r.Body, o.Body) || len(r.Headers) != len(o.Headers) {
		return false
	}
	for i := range r.Headers {
		if r.Headers[i].Name != o.Headers[i].Name || !bytes.Equal(r.Headers[i].Value, o.Headers[i].Value) {
			return false
		}
	}
	return true
}
