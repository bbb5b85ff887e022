package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gwlsn/shrinkherd/internal/logger"
)

// ErrEngineExit means the encoder ran but reported failure.
var ErrEngineExit = errors.New("encoder exited with an error")

// Runner executes the external encoder for one job, forwarding its output
// as it arrives.
type Runner struct {
	ffmpegPath string

	// Stdout receives the encoder's standard output, verbatim and in
	// order. Defaults to os.Stdout.
	Stdout io.Writer
}

// NewRunner creates a Runner for the given encoder binary.
func NewRunner(ffmpegPath string) *Runner {
	return &Runner{ffmpegPath: ffmpegPath, Stdout: os.Stdout}
}

// Run spawns the encoder with args and the trailing output path, drains
// its stdout until the process exits, and returns ErrEngineExit on a
// non-zero status. Stderr is inherited rather than piped: piping it makes
// the encoder buffer its progress output.
func (r *Runner) Run(ctx context.Context, args []string, outputPath, logPath string) error {
	full := make([]string, 0, len(args)+1)
	full = append(full, args...)
	full = append(full, outputPath)

	cmd := exec.CommandContext(ctx, r.ffmpegPath, full...)
	cmd.Stderr = os.Stderr
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		cmd.Env = append(os.Environ(), "FFREPORT="+ffreportValue(logPath))
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	logger.Info("Executing encoder", "bin", r.ffmpegPath, "args", strings.Join(full, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", r.ffmpegPath, err)
	}

	// Forward bytes as they become available; the read blocks while the
	// encoder is quiet, so nothing busy-polls. EOF doubles as the final
	// drain before the exit status is consumed.
	buf := make([]byte, 4096)
	for {
		n, rerr := stdout.Read(buf)
		if n > 0 {
			if _, werr := r.Stdout.Write(buf[:n]); werr != nil {
				logger.Warn("Could not forward encoder output", "error", werr)
			}
		}
		if rerr != nil {
			break
		}
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w (status %d)", ErrEngineExit, exitErr.ExitCode())
		}
		return fmt.Errorf("wait for %s: %w", r.ffmpegPath, err)
	}
	return nil
}

// ffreportValue builds the FFREPORT value for a log path. ':' and '\'
// must be escaped for the encoder to parse the path.
func ffreportValue(logPath string) string {
	if strings.ContainsAny(logPath, `:\`) {
		logPath = strings.ReplaceAll(logPath, `\`, `\\`)
		logPath = strings.ReplaceAll(logPath, ":", `\:`)
	}
	return "file=" + logPath
}
