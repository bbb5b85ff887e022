package jobs

import (
	"fmt"
	"os"

	"github.com/gwlsn/shrinkherd/internal/config"
	"github.com/gwlsn/shrinkherd/internal/util"
)

// MinOutputBytes is the absolute floor for a plausible output file.
// Anything smaller is an encoder stub and gets deleted.
const MinOutputBytes = 300

// commit atomically publishes a finished encode: the partial file is
// renamed to the final path, after a last check that no sibling
// invocation raced us to it. On any failure the partial is removed, so
// the final path either exists complete or not at all.
func commit(job *Descriptor, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(job.Output); err == nil {
			_ = os.Remove(job.Partial)
			return outputConflictError(job.Output)
		}
	}
	if err := os.Rename(job.Partial, job.Output); err != nil {
		_ = os.Remove(job.Partial)
		return fmt.Errorf("publish output: %w", err)
	}
	return nil
}

// validateSize applies the post-encode size policy to outPath, reporting
// warnings and deleting outputs that are clearly wrong. shown is the path
// named in warnings: when validating a doomed partial it is the final
// output path, the only one the user knows. origSize was captured before
// the encoder started; the input may be gone by now.
func validateSize(cfg *config.Config, agg *Aggregator, inputPath, outPath, shown string, origSize int64) {
	info, err := os.Stat(outPath)
	if err != nil {
		agg.Report(inputPath, fmt.Sprintf("Could not get file size after encoding: %v", err))
		return
	}
	size := info.Size()

	if size < MinOutputBytes {
		agg.Report(inputPath, fmt.Sprintf("Deleting %d byte output file: %s", size, shown))
		_ = os.Remove(outPath)
		return
	}

	if cfg.ExpectedSize == 0 || origSize <= 0 {
		return
	}

	percent := size * 100 / origSize
	expected := int64(cfg.ExpectedSize)
	switch {
	case percent > expected && cfg.DeleteTooLarge:
		agg.Report(inputPath, fmt.Sprintf("Deleting too large output file (%d%% of the original, %s): %s",
			percent, util.FormatBytes(size), shown))
		_ = os.Remove(outPath)
	case percent > expected:
		agg.Report(inputPath, fmt.Sprintf("Output file was larger than expected at %d%%: %s", percent, shown))
	case percent < expected/3:
		agg.Report(inputPath, fmt.Sprintf("Output file was much smaller than expected at %d%%: %s", percent, shown))
	case percent > 100 && cfg.DeleteTooLarge:
		agg.Report(inputPath, fmt.Sprintf("Deleting output file larger than the original (%d%%): %s", percent, shown))
		_ = os.Remove(outPath)
	}
}
