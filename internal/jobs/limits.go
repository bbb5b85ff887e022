package jobs

import (
	"math"

	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/gwlsn/shrinkherd/internal/config"
	"github.com/gwlsn/shrinkherd/internal/logger"
)

// JobLimit computes how many encodes run in parallel. An explicit
// configured value wins; otherwise the limit is derived from the
// physical core count, with x265 given more breathing room because it
// threads better per process.
func JobLimit(cfg *config.Config) (int, error) {
	if cfg.Jobs > 0 {
		return cfg.Jobs, nil
	}
	if cfg.Jobs < 0 {
		return 0, ErrZeroJobs
	}

	cores, err := cpu.Counts(false)
	if err != nil || cores < 1 {
		logger.Warn("Could not count physical cores, assuming 2", "error", err)
		cores = 2
	}

	var jobs int
	if cfg.VideoCodec() == config.CodecH265 {
		jobs = int(math.Round(float64(cores) / 3))
	} else {
		jobs = cores / 2
	}
	if jobs < 1 {
		jobs = 1
	}
	return jobs, nil
}
