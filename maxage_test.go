package scrape

import (
	"testing"
	"time"
)

func TestParseMaxAge(t *testing.T) {
	cases := map[string]time.Duration{
		"":          0,
		"3 days":    3 * Day,
		"3days":     3 * Day,
		"1 year":    Year,
		"2 Weeks":   2 * Week,
		"1 month":   Month,
		"90s":       90 * time.Second,
		"12h":       12 * time.Hour,
		"5 minutes": 5 * time.Minute,
	}
	for in, want := range cases {
		got, err := ParseMaxAge(in)
		if err != nil {
			t.Fatalf("ParseMaxAge(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseMaxAge(%q) = %s, want %s", in, got, want)
		}
	}

	for _, bad := range []string{"three days", "3 fortnights", "-1h", "1 2 3"} {
		if _, err := ParseMaxAge(bad); err == nil {
			t.Fatalf("ParseMaxAge(%q) should fail", bad)
		}
	}
}

func TestMaxAge(t *testing.T) {
	if d, err := MaxAge(2, "hours"); err != nil || d != 2*time.Hour {
		t.Fatalf("MaxAge(2, hours) = %s, %v", d, err)
	}
	if _, err := MaxAge(-1, "day"); err == nil {
		t.Fatalf("negative amount should fail")
	}
	if _, err := MaxAge(1, "eon"); err == nil {
		t.Fatalf("unknown unit should fail")
	}
	if d, err := MaxAge(290, "years"); err != nil || d != 290*Year {
		t.Fatalf("MaxAge(290, years) = %s, %v", d, err)
	}
	for _, n := range []int{300, 600} {
		if d, err := MaxAge(n, "years"); err == nil {
			t.Fatalf("MaxAge(%d, years) should overflow, got %s", n, d)
		}
	}
	if d, err := ParseMaxAge("600 years"); err == nil {
		t.Fatalf("ParseMaxAge(600 years) should overflow, got %s", d)
	}
}
