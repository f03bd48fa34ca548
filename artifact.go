package scrape

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ContentType selects how response bodies are decoded and stored.
type ContentType string

const (
	ContentJSON ContentType = "json"
	ContentHTML ContentType = "html"
)

// Artifact is a decoded resource, either freshly fetched or read back from the store.
type Artifact struct {
	Ref         string      `json:"ref"`
	ContentType ContentType `json:"content_type"`
	// Data is the decoded value: json content decodes into any with numbers
	// kept as json.Number, html content is the body as a string.
	Data any    `json:"-"`
	Body []byte `json:"-"`
	// Path is empty when the artifact was not written to the store.
	Path       string    `json:"path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	FromCache  bool      `json:"from_cache"`
}

// Age returns the time since the artifact content was last written.
func (a *Artifact) Age() time.Duration {
	if a == nil || a.ModifiedAt.IsZero() {
		return 0
	}
	return time.Since(a.ModifiedAt)
}

// Text returns the encoded body as a string.
func (a *Artifact) Text() string {
	return string(a.Body)
}

// Decode unmarshals the artifact body into v. Html artifacts can only be
// decoded into *string or *[]byte.
func (a *Artifact) Decode(v any) error {
	if a.ContentType == ContentHTML {
		switch dst := v.(type) {
		case *string:
			*dst = string(a.Body)
			return nil
		case *[]byte:
			*dst = append((*dst)[:0], a.Body...)
			return nil
		default:
			return fmt.Errorf("html artifact cannot be decoded into %T", v)
		}
	}
	return json.Unmarshal(a.Body, v)
}

// DecodeArtifact decodes an artifact into a value of type T.
func DecodeArtifact[T any](a *Artifact) (T, error) {
	var out T
	if a == nil {
		return out, ErrNotFound
	}
	err := a.Decode(&out)
	return out, err
}

// RawResponse is a transport response whose body has been read exactly once.
type RawResponse struct {
	URL        string      `json:"url"`
	StatusCode int         `json:"status_code"`
	Status     string      `json:"status"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"-"`
}

// OK reports whether the status code is 2xx.
func (r *RawResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Text returns the body as a string.
func (r *RawResponse) Text() string {
	return string(r.Body)
}

// Result is the outcome of Fetch. Artifact is set unless the response was
// returned raw with SkipCache; Raw is set only for transport results on a
// client built WithReturnRaw.
type Result struct {
	Artifact *Artifact
	Raw      *RawResponse
}

// FromCache reports whether the result was served from the store.
func (r *Result) FromCache() bool {
	return r != nil && r.Artifact != nil && r.Artifact.FromCache
}

type codec struct {
	decode func([]byte) (any, error)
	encode func(any) ([]byte, error)
}

func codecFor(ct ContentType) (codec, error) {
	switch ct {
	case ContentJSON:
		return codec{
			decode: func(b []byte) (any, error) {
				dec := json.NewDecoder(bytes.NewReader(b))
				dec.UseNumber()
				var v any
				if err := dec.Decode(&v); err != nil {
					return nil, err
				}
				return v, nil
			},
			encode: json.Marshal,
		}, nil
	case ContentHTML:
		return codec{
			decode: func(b []byte) (any, error) {
				return string(b), nil
			},
			encode: func(v any) ([]byte, error) {
				switch s := v.(type) {
				case string:
					return []byte(s), nil
				case []byte:
					return s, nil
				default:
					return nil, fmt.Errorf("html content must be a string, got %T", v)
				}
			},
		}, nil
	default:
		return codec{}, fmt.Errorf("content type %q is unsupported", ct)
	}
}
