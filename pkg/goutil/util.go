package goutil

import (
	"encoding/base64"
	"strings"
	"time"
	"unicode/utf8"
)

func ContainsStr(arr []string, str string) bool {
	for _, v := range arr {
		if v == str {
			return true
		}
	}
	return false
}

// Base64URLEncode encodes with the URL safe alphabet and no padding.
func Base64URLEncode(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// Base64URLDecode accepts URL safe input with or without trailing padding.
func Base64URLDecode(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func Now() uint64 {
	return uint64(time.Now().Unix())
}

func UnixToTime(ts uint64) time.Time {
	return time.Unix(int64(ts), 0).UTC()
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
