package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var sizeRe = regexp.MustCompile(`^(\.\d+|\d+(?:\.\d*)?)([bkmgt])?$`)

// ParseSize converts a human size string to bytes. The suffix may be one of
// b, k, m, g, t (case insensitive); a bare number means megabytes.
func ParseSize(input string) (int64, error) {
	const msg = "size must be a number with an optional K, M, G or T suffix"
	m := sizeRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(input)))
	if m == nil {
		return 0, fmt.Errorf("%s: %q", msg, input)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q", msg, input)
	}
	suffix := m[2]
	if suffix == "" {
		suffix = "m"
	}
	var factor float64
	switch suffix {
	case "b":
		factor = 1
	case "k":
		factor = 1 << 10
	case "m":
		factor = 1 << 20
	case "g":
		factor = 1 << 30
	case "t":
		factor = 1 << 40
	}
	return int64(factor * n), nil
}

// FormatBytes renders a byte count in human-readable form.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGT"[exp])
}

// FormatDuration renders a duration as h/m/s without fractional noise.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	s := d - m*time.Minute
	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, int(s.Seconds()))
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, int(s.Seconds()))
	}
	return fmt.Sprintf("%ds", int(s.Seconds()))
}
