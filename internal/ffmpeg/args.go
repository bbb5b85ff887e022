package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gwlsn/shrinkherd/internal/config"
	"github.com/gwlsn/shrinkherd/internal/logger"
)

// Resolver turns a discovered input file into concrete encoder
// parameters: a CRF and the full argument list for one invocation.
type Resolver struct {
	cfg    *config.Config
	prober *Prober
}

// NewResolver creates a Resolver over the given config.
func NewResolver(cfg *config.Config, prober *Prober) *Resolver {
	return &Resolver{cfg: cfg, prober: prober}
}

// CRF picks the quality level for one input. An explicit --crf wins;
// otherwise the per-codec base is adjusted for animation and for small
// inputs, which need a better CRF to avoid visible quality loss.
func (r *Resolver) CRF(ctx context.Context, path string) int {
	if r.cfg.CRF != 0 {
		return r.cfg.CRF
	}

	var crf int
	switch r.cfg.VideoCodec() {
	case config.CodecAV1:
		crf = 24
	case config.CodecH265:
		crf = 22
	case config.CodecH264:
		crf = 17
	default:
		return 0
	}
	if r.cfg.Anime {
		crf += 3
	}

	w, h, err := r.prober.Dimensions(ctx, path)
	if err != nil {
		logger.Warn("Could not get video dimensions, keeping base CRF", "path", path, "error", err)
		return crf
	}
	maxDim := w
	if h > maxDim {
		maxDim = h
	}
	if maxDim > 0 && maxDim < 1920 {
		// 1080p gets no delta; 720p and below get the full 4 points.
		delta := int(float64(4*(1920-maxDim))/float64(1920-1080) + 0.5)
		if delta > 4 {
			delta = 4
		}
		if delta > 0 {
			logger.Info("Lowering inferred CRF because input is small",
				"path", path, "from", crf, "to", crf-delta)
			crf -= delta
		}
	}
	return crf
}

// BuildArgs assembles the complete encoder argument list for one input,
// not including the trailing output path.
func (r *Resolver) BuildArgs(ctx context.Context, inputPath string, crf int) ([]string, error) {
	cfg := r.cfg
	args := []string{"-i", inputPath, "-hide_banner"}
	var vf []string

	switch n := cfg.Quiet - cfg.Verbose; {
	case n < 0:
	case n == 0:
		args = append(args, "-loglevel", "info")
	case n == 1:
		args = append(args, "-loglevel", "warning")
	case n == 2:
		args = append(args, "-loglevel", "error", "-x265-params", "loglevel=warning")
	default:
		args = append(args, "-loglevel", "error", "-x265-params", "loglevel=error")
	}

	args = append(args,
		"-nostdin",
		"-map_metadata", "0",
		"-movflags", "+faststart",
		"-movflags", "+use_metadata_tags",
		"-strict", "experimental",
	)

	codec := cfg.VideoCodec()
	if codec != config.CodecCopy {
		args = append(args, "-crf", strconv.Itoa(crf))
	}
	if !cfg.NoMap0 {
		args = append(args, "-map", "0")
	}
	// Copy subtitle and data streams unchanged.
	args = append(args, "-c", "copy")

	args = append(args, r.audioArgs(ctx, inputPath)...)

	if params := x265Params(cfg, crf); len(params) > 0 {
		args = append(args, "-x265-params", strings.Join(params, ", "))
	}

	if cfg.Overwrite {
		args = append(args, "-y")
	}

	switch codec {
	case config.CodecCopy:
		args = append(args, "-c:v", "copy")
	case config.CodecAV1:
		args = append(args, "-c:v", "libaom-av1", "-cpu-used", cfg.Preset)
	case config.CodecH265:
		args = append(args, "-c:v", "libx265", "-preset", cfg.Preset)
	case config.CodecH264:
		args = append(args, "-c:v", "libx264", "-profile:v", "high", "-level", "4.1", "-preset", cfg.Preset)
	default:
		return nil, fmt.Errorf("codec not handled: %s", codec)
	}

	if codec != config.CodecCopy {
		// Cap the shorter dimension at the target height without changing
		// aspect ratio or upscaling. -2 keeps dimensions divisible by 2.
		h := cfg.MaxHeight()
		vf = append(vf, fmt.Sprintf(
			`scale=if(gte(iw\,ih)\,-2\,min(%d\,iw)):if(gte(iw\,ih)\,min(%d\,ih)\,-2)`, h, h))
		if cfg.EightBit {
			vf = append(vf, "format=yuv420p")
		} else {
			vf = append(vf, "format=yuv420p10le")
		}
		vf = append(vf, extraVFFlags(cfg.ExtraFlags)...)
		if envVF := fileEnv("VF_", inputPath); envVF != "" {
			logger.Debug("Adding extra -vf arguments from the environment", "path", inputPath)
			vf = append(vf, envVF)
		}
		args = append(args, "-vf", strings.Join(vf, ", "))
	}

	if envArgs := fileEnv("FFMPEG_", inputPath); envArgs != "" {
		args = append(args, strings.Fields(envArgs)...)
	}
	args = append(args, extraNormalFlags(cfg.ExtraFlags)...)
	if envArgs := os.Getenv("FFMPEG_FLAGS"); envArgs != "" {
		args = append(args, strings.Fields(envArgs)...)
	}

	return args, nil
}

// audioArgs decides whether the audio stream is re-encoded. Streams
// already at or under 200 kb/s are copied unchanged.
func (r *Resolver) audioArgs(ctx context.Context, path string) []string {
	reencode := []string{"-c:a", "aac", "-b:a", "128k", "-ac", "2"}
	copyArgs := []string{"-c:a", "copy"}
	cfg := r.cfg
	switch {
	case cfg.NoAudio:
		logger.Debug("Removing audio entirely, due to argument", "path", path)
		return []string{"-an"}
	case cfg.CopyAudio:
		logger.Debug("Copying audio without a bitrate check, due to argument", "path", path)
		return copyArgs
	case cfg.SkipBitrateCheck:
		logger.Debug("Skipping audio bitrate check, due to argument", "path", path)
		return reencode
	}

	bitrate, err := r.prober.AudioBitrate(ctx, path)
	if err != nil {
		logger.Warn("Could not get audio bitrate", "path", path, "error", err)
		return reencode
	}
	if bitrate <= 200 {
		logger.Debug("Audio bitrate is low enough to copy", "path", path, "kbps", bitrate)
		return copyArgs
	}
	logger.Debug("Audio will be re-encoded", "path", path, "kbps", bitrate)
	return reencode
}

// x265Params returns animation tuning parameters, or nil when the batch
// does not use x265 animation settings.
func x265Params(cfg *config.Config, crf int) []string {
	if cfg.VideoCodec() != config.CodecH265 || !cfg.Anime {
		return nil
	}
	switch {
	case cfg.AnimeSlowWellLit:
		return []string{"bframes=8", "psy-rd=1", "aq-mode=3", "aq-strength=0.8", "deblock=1,1"}
	case cfg.AnimeMixedDarkBattle && crf >= 19:
		return []string{"bframes=8", "psy-rd=1", "psy-rdoq=1", "aq-mode=3", "qcomp=0.8"}
	case cfg.AnimeMixedDarkBattle:
		return []string{"limit-sao", "bframes=8", "psy-rd=1.5", "psy-rdoq=2", "aq-mode=3"}
	case crf > 19:
		return []string{"bframes=8", "psy-rd=1", "aq-mode=3"}
	default:
		return []string{"limit-sao", "bframes=8", "psy-rd=1", "aq-mode=3"}
	}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// splitExtraFlags splits each extra flag once on whitespace, so that
// "-ss 30" becomes two arguments.
func splitExtraFlags(extra []string) []string {
	var out []string
	for _, flag := range extra {
		out = append(out, whitespaceRe.Split(strings.TrimSpace(flag), 2)...)
	}
	return out
}

// extraNormalFlags returns the extra flags that are not -vf options.
func extraNormalFlags(extra []string) []string {
	raw := splitExtraFlags(extra)
	var out []string
	for i, arg := range raw {
		if arg == "-vf" || (i > 0 && raw[i-1] == "-vf") {
			continue
		}
		out = append(out, arg)
	}
	return out
}

// extraVFFlags returns the values of any -vf extra flags.
func extraVFFlags(extra []string) []string {
	raw := splitExtraFlags(extra)
	var out []string
	for i, arg := range raw {
		if i > 0 && raw[i-1] == "-vf" {
			out = append(out, arg)
		}
	}
	return out
}

var envNameRe = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// fileEnv looks up a per-file environment override. foo.mp4 can have
// arguments set as <prefix>foo_mp4 or <prefix>foo, with every special
// character replaced by '_'.
func fileEnv(prefix, inputPath string) string {
	base := filepath.Base(inputPath)
	core := strings.TrimSuffix(base, filepath.Ext(base))
	for _, name := range []string{base, core} {
		key := prefix + envNameRe.ReplaceAllString(name, "_")
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
