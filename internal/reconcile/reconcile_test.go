package reconcile

import (
	"errors"
	"testing"
)

const origin = "https://httpbin.org"

func TestReconcileRelativeRef(t *testing.T) {
	got, err := Reconcile(origin, "/path/to/page/")
	if err != nil {
		t.Fatalf("reconcile error: %v", err)
	}
	if got != "https://httpbin.org/path/to/page" {
		t.Fatalf("unexpected canonical ref: %s", got)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	refs := []string{"get", "path/to/page", "/anything?x=1", origin, origin + "/json"}
	for _, ref := range refs {
		first, err := Reconcile(origin, ref)
		if err != nil {
			t.Fatalf("reconcile %q: %v", ref, err)
		}
		second, err := Reconcile(origin, first)
		if err != nil {
			t.Fatalf("reconcile canonical %q: %v", first, err)
		}
		if first != second {
			t.Fatalf("reconcile not idempotent: %q -> %q", first, second)
		}
	}
}

func TestReconcileRejectsForeignOrigin(t *testing.T) {
	cases := []string{
		"https://example.com/path",
		"http://httpbin.org/get",
		"https://httpbin.org.evil.com/get",
		"ftp://httpbin.org/get",
	}
	for _, ref := range cases {
		if _, err := Reconcile(origin, ref); !errors.Is(err, ErrUnreconcilable) {
			t.Fatalf("expected ErrUnreconcilable for %q, got %v", ref, err)
		}
	}
}

func TestReconcileRejectsEmptyRef(t *testing.T) {
	for _, ref := range []string{"", "/", "///"} {
		if _, err := Reconcile(origin, ref); !errors.Is(err, ErrInvalidRef) {
			t.Fatalf("expected ErrInvalidRef for %q, got %v", ref, err)
		}
	}
}

func TestTrimSlashes(t *testing.T) {
	cases := map[string]string{
		"":           "",
		"/":          "",
		"//a/b//":    "a/b",
		"__cache/":   "__cache",
		"no-slashes": "no-slashes",
		"/lead":      "lead",
		"trail///":   "trail",
	}
	for in, want := range cases {
		if got := TrimSlashes(in); got != want {
			t.Fatalf("TrimSlashes(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRelative(t *testing.T) {
	rel, ok := Relative(origin, origin+"/path/to/page")
	if !ok || rel != "path/to/page" {
		t.Fatalf("unexpected relative path: %q ok=%v", rel, ok)
	}
	rel, ok = Relative(origin, origin)
	if !ok || rel != "" {
		t.Fatalf("origin should map to empty relative path, got %q ok=%v", rel, ok)
	}
	if _, ok := Relative(origin, "https://example.com/x"); ok {
		t.Fatalf("foreign ref should not be relative to origin")
	}
}

func TestIsAbsolute(t *testing.T) {
	if !IsAbsolute("https://a.b/c") || !IsAbsolute("git+ssh://host/repo") {
		t.Fatalf("scheme refs should be absolute")
	}
	if IsAbsolute("httpbin/get") || IsAbsolute("path/to://x") || IsAbsolute("://x") {
		t.Fatalf("relative refs misdetected as absolute")
	}
}
