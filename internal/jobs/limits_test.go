package jobs

import (
	"errors"
	"testing"

	"github.com/gwlsn/shrinkherd/internal/config"
)

func TestJobLimitExplicit(t *testing.T) {
	got, err := JobLimit(&config.Config{Jobs: 7})
	if err != nil || got != 7 {
		t.Errorf("JobLimit = %d, %v; want 7", got, err)
	}
}

func TestJobLimitNegative(t *testing.T) {
	if _, err := JobLimit(&config.Config{Jobs: -1}); !errors.Is(err, ErrZeroJobs) {
		t.Errorf("JobLimit(-1) error = %v, want ErrZeroJobs", err)
	}
}

func TestJobLimitDerived(t *testing.T) {
	// The derived value depends on the host; it must be at least one, and
	// x265 must never get more slots than the other codecs.
	av1, err := JobLimit(&config.Config{})
	if err != nil || av1 < 1 {
		t.Fatalf("JobLimit(av1) = %d, %v", av1, err)
	}
	h265, err := JobLimit(&config.Config{X265: true})
	if err != nil || h265 < 1 {
		t.Fatalf("JobLimit(h265) = %d, %v", h265, err)
	}
	if h265 > av1 {
		t.Errorf("x265 limit %d exceeds the default limit %d", h265, av1)
	}
}
