package util

import (
	"testing"
	"time"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"0", 0},
		{"1", 1 << 20},
		{"300b", 300},
		{"1b", 1},
		{"1k", 1 << 10},
		{"1K", 1 << 10},
		{"1m", 1 << 20},
		{"1g", 1 << 30},
		{"1t", 1 << 40},
		{"1.5k", 1536},
		{".5k", 512},
		{"2.g", 2 << 30},
		{" 10m ", 10 << 20},
		{"500", 500 << 20},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.input)
		if err != nil {
			t.Errorf("ParseSize(%q) returned error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestParseSizeRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "k", "1x", "1kb", "-1", "1 k", "one"} {
		if _, err := ParseSize(input); err == nil {
			t.Errorf("ParseSize(%q) succeeded, want error", input)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		b    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.b); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.b, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m30s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h2m3s"},
		{time.Hour, "1h0m0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
