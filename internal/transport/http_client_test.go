package transport

import (
	"net/http"
	"testing"
	"time"
)

func TestNewClientUsesTimeout(t *testing.T) {
	client := NewClient(45 * time.Second)
	if client.Timeout != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", client.Timeout)
	}
	if NewClient(0).Timeout != DefaultTimeout {
		t.Fatalf("zero timeout should fall back to default")
	}
}

func TestNewClientClonesTransport(t *testing.T) {
	a := NewClient(time.Second)
	b := NewClient(time.Second)
	if a.Transport == b.Transport {
		t.Fatalf("clients should not share a transport instance")
	}
	if a.Transport == http.RoundTripper(defaultTransport) {
		t.Fatalf("client must not use the shared template transport")
	}
}

func TestSetDefaultHeadersKeepsExisting(t *testing.T) {
	h := http.Header{}
	h.Set("Accept", "text/plain")
	SetDefaultHeaders(h, "application/json")
	if h.Get("Accept") != "text/plain" {
		t.Fatalf("existing Accept should be kept, got %s", h.Get("Accept"))
	}
	if h.Get("User-Agent") != UserAgent {
		t.Fatalf("expected default user agent, got %s", h.Get("User-Agent"))
	}
}
