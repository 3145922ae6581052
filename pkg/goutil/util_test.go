package goutil_test

import (
	"phishsim/pkg/goutil"
	"testing"
	"unicode/utf8"
)

func TestBase64URLRoundTrip(t *testing.T) {
	urls := []string{
		"https://example.com/login?next=/home&x=1",
		"http://intranet.local/a b/ü?q=%20",
		"https://example.com/?>>>???",
	}

	for _, u := range urls {
		enc := goutil.Base64URLEncode(u)
		for _, c := range enc {
			if c == '=' || c == '+' || c == '/' {
				t.Fatalf("encoded %q contains %q", enc, c)
			}
		}

		dec, err := goutil.Base64URLDecode(enc)
		if err != nil {
			t.Fatalf("decode %q: %v", enc, err)
		}
		if dec != u {
			t.Errorf("round trip = %q, want %q", dec, u)
		}
	}
}

func TestBase64URLDecodeInvalid(t *testing.T) {
	for _, s := range []string{"***", "a", "ab$c"} {
		if _, err := goutil.Base64URLDecode(s); err == nil {
			t.Errorf("Base64URLDecode(%q) err = nil, want error", s)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"},
		{"héllo", 3, "hé"},
		{"日本語", 4, "日"},
		{"日本語", 2, ""},
	}

	for _, tt := range tests {
		got := goutil.Truncate(tt.s, tt.n)
		if got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("Truncate(%q, %d) = %q is not valid UTF-8", tt.s, tt.n, got)
		}
	}
}
