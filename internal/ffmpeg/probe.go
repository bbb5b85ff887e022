package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/gwlsn/shrinkherd/internal/logger"
)

// Prober extracts stream metadata from input files. Probing is best
// effort: callers fall back to safe defaults when a probe fails.
type Prober struct {
	ffprobePath string
	ffmpegPath  string
}

// NewProber creates a new Prober with the given binary paths. The ffmpeg
// binary is only used for the slow duration fallback.
func NewProber(ffprobePath, ffmpegPath string) *Prober {
	return &Prober{ffprobePath: ffprobePath, ffmpegPath: ffmpegPath}
}

// Dimensions returns the width and height of the first video stream.
func (p *Prober) Dimensions(ctx context.Context, path string) (int, int, error) {
	out, err := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	).Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe dimensions: %w", err)
	}

	var w, h int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%dx%d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("parse dimensions %q: %w", strings.TrimSpace(string(out)), err)
	}
	return w, h, nil
}

// AudioBitrate returns the audio bitrate in kb/s, for example 128 or 256.
func (p *Prober) AudioBitrate(ctx context.Context, path string) (float64, error) {
	seconds, err := p.audioSeconds(ctx, path)
	if err != nil {
		return 0, err
	}
	if seconds == 0 {
		return 0, fmt.Errorf("zero duration for %s", path)
	}
	kb, err := p.audioSizeKB(ctx, path)
	if err != nil {
		return 0, err
	}
	return kb / seconds * 8, nil
}

// audioSeconds finds the duration of the file, trying the container, then
// the video stream, then a full decode as a last resort.
func (p *Prober) audioSeconds(ctx context.Context, path string) (float64, error) {
	probes := [][]string{
		{"-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1"},
		{"-v", "error", "-select_streams", "v:0", "-show_entries", "stream=duration", "-of", "default=noprint_wrappers=1:nokey=1"},
	}
	for _, args := range probes {
		out, err := exec.CommandContext(ctx, p.ffprobePath, append(args, path)...).Output()
		if err != nil {
			continue
		}
		// The duration is often not specified this way; not an error.
		if seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64); err == nil {
			return seconds, nil
		}
	}

	logger.Debug("Falling back to decoding the stream for its duration", "path", path)
	return p.decodedSeconds(ctx, path)
}

var timeRe = regexp.MustCompile(`(\d+):(\d{2}):(\d{2}\.\d+)`)

// decodedSeconds decodes the file with a null muxer and scrapes the last
// "time=HH:MM:SS.ss" from the report. Slow, but works when the container
// and streams carry no duration at all.
func (p *Prober) decodedSeconds(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, p.ffmpegPath, "-i", path, "-vn", "-f", "null", "-")
	var stderr strings.Builder
	cmd.Stderr = &stderr
	_ = cmd.Run()

	matches := timeRe.FindAllStringSubmatch(stderr.String(), -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("no time found while decoding %s", path)
	}
	last := matches[len(matches)-1]
	hours, _ := strconv.ParseFloat(last[1], 64)
	minutes, _ := strconv.ParseFloat(last[2], 64)
	seconds, _ := strconv.ParseFloat(last[3], 64)
	return hours*3600 + minutes*60 + seconds, nil
}

// audioSizeKB sums the audio packet sizes, in kilobytes.
func (p *Prober) audioSizeKB(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "packet=size",
		"-of", "default=nokey=1:noprint_wrappers=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe audio packets: %w", err)
	}

	var sum float64
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		bytes, err := strconv.ParseFloat(line, 64)
		if err != nil {
			logger.Warn("Ignoring non-numeric line when sizing audio", "line", line)
			continue
		}
		sum += bytes
	}
	return sum / 1024, nil
}
