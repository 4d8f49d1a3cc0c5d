package normalize

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	errRelativeWithoutBase = errors.New("relative url without an absolute base")
	errNotHTTP             = errors.New("url is not http(s)")
)

var postedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// now is replaced in tests.
var now = time.Now

// epoch values above this are milliseconds (year 2286 in seconds).
const epochMillisThreshold = 1e10

// ParsePostedAt reads an upstream publish time. It accepts RFC 3339 with or
// without zone, plain dates and Unix epochs in seconds or milliseconds. Times
// without a zone are taken as UTC. Unparseable or future values report false.
func ParsePostedAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			return time.Time{}, false
		}
		var t time.Time
		if n > epochMillisThreshold {
			t = time.UnixMilli(n).UTC()
		} else {
			t = time.Unix(n, 0).UTC()
		}
		return plausible(t)
	}

	for _, layout := range postedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return plausible(t.UTC())
		}
	}
	return time.Time{}, false
}

// plausible rejects publish times in the future beyond a day of clock skew.
func plausible(t time.Time) (time.Time, bool) {
	if t.After(now().Add(24 * time.Hour)) {
		return time.Time{}, false
	}
	return t, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
