// Package cmd implements the CLI commands for shrinkherd.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gwlsn/shrinkherd"
	"github.com/gwlsn/shrinkherd/internal/config"
	"github.com/gwlsn/shrinkherd/internal/logger"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// flags mirrors the config surface; only flags the user actually set
// override the config file. This preserves the priority:
// CLI flag > env var > config file > default.
var flags = config.Default()

var rootCmd = &cobra.Command{
	Use:     "shrinkherd [video-root]",
	Short:   "Batch-encode a directory tree of videos",
	Version: shrinkherd.Version,
	Long: `shrinkherd walks a directory tree, decides per-file encoding
parameters, and drives a bounded pool of concurrent ffmpeg jobs over
every video it finds. Output files mirror the input tree under
<video-root>/encoded and become visible atomically, only once complete.

When other shrinkherd invocations are already encoding on this host,
--slow-start yields capacity to them instead of piling on.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args)
		if err != nil {
			return err
		}
		return runBatch(cmd.Context(), cfg)
	},
	SilenceUsage: true,
}

// Execute runs the root command. Interrupt and termination signals
// cancel the batch context; running encodes are killed and partials
// cleaned up by their owning tasks.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&cfgFile, "config", "", "config file (default $SHRINKHERD_CONFIG, else none)")

	f.IntVar(&flags.CRF, "crf", 0, "quality level; by default chosen per codec and input size")
	f.BoolVar(&flags.X265, "x265", false, "encode with libx265 instead of libaom-av1")
	f.BoolVar(&flags.AV1, "av1", false, "encode with libaom-av1 (the default, except for animation)")
	f.BoolVar(&flags.Reference, "reference", false, "high quality, fast x264 encode (large files)")
	f.BoolVar(&flags.CopyStreams, "copy-streams", false, "copy audio and video streams without encoding (testing)")
	f.BoolVar(&flags.Anime, "animation", false, "use settings that work well for animation")
	f.BoolVar(&flags.AnimeSlowWellLit, "anime-slow-well-lit", false, "tune for slow, well lit animation such as slice of life")
	f.BoolVar(&flags.AnimeMixedDarkBattle, "anime-mixed-dark-battle", false, "tune for animation with dark or battle scenes")
	f.IntVarP(&flags.Jobs, "jobs", "j", 0, "encode this many videos in parallel (default varies per encoder)")
	f.BoolVar(&flags.SlowStart, "slow-start", false, "begin with one job and add more as sibling invocations finish")
	f.BoolVar(&flags.Height720p, "720p", false, "encode as 720p instead of 1080p (never upscales)")
	f.BoolVar(&flags.EightBit, "8-bit", false, "encode as 8-bit instead of 10-bit")
	f.StringVar(&flags.Preset, "preset", "", "encoder preset (default \"5\" for libaom, \"slow\" for x265)")
	f.BoolVar(&flags.Overwrite, "overwrite", false, "overwrite existing output files")
	f.StringArrayVar(&flags.ExtraFlags, "extra-flag", nil, "extra encoder flag, e.g. '-to 5:00'; repeatable")
	f.BoolVarP(&flags.NoLog, "no-log", "n", false, "don't write an encoder report file per input")
	f.CountVarP(&flags.Quiet, "quiet", "q", "print less (repeatable)")
	f.CountVarP(&flags.Verbose, "verbose", "v", "print more (repeatable)")
	f.BoolVar(&flags.SkipBitrateCheck, "skip-bitrate-check", false, "re-encode audio without checking the source bitrate")
	f.BoolVar(&flags.CopyAudio, "copy-audio", false, "keep the audio stream unchanged")
	f.BoolVar(&flags.NoAudio, "no-audio", false, "drop audio entirely (testing and benchmarking)")
	f.StringArrayVar(&flags.Include, "include", nil, "only encode paths matching this glob; repeatable")
	f.StringArrayVar(&flags.Exclude, "exclude", nil, "skip paths matching this glob; repeatable")
	f.BoolVar(&flags.NoMap0, "no-map-0", false, "run the encoder without '-map 0'")
	f.IntVar(&flags.Limit, "limit", 0, "encode at most this many files")
	f.IntVar(&flags.ExpectedSize, "expected-size", 0, "warn when output misses this size target, in percent of the original")
	f.BoolVar(&flags.DeleteTooLarge, "delete-too-large", false, "delete outputs larger than expected (requires --expected-size)")
	f.StringVar(&flags.MinimumSize, "minimum-size", "", "skip inputs below this size; bare numbers mean megabytes")
	f.StringVar(&flags.OutputName, "output-name", "", "output filename template; fields: {basename}, {preset}, {crf}")
	f.StringVarP(&flags.OutputDir, "output-dir", "o", "", "write outputs here instead of <video-root>/encoded")
	f.StringVar(&flags.FFmpegPath, "ffmpeg", "", "encoder binary (default \"ffmpeg\", env FFMPEG)")
	f.StringVar(&flags.FFprobePath, "ffprobe", "", "prober binary (default \"ffprobe\", env FFPROBE)")
	f.BoolVar(&flags.NoHistory, "no-history", false, "don't record outcomes in the history database")
}

// loadConfig merges the config file, environment and flags, then
// validates the result. Errors here abort before any scheduling begins.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	path := cfgFile
	if path != "" {
		// An explicitly named config file must exist; only the env
		// default is allowed to be absent.
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	} else {
		path = os.Getenv("SHRINKHERD_CONFIG")
	}
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	mergeFlags(cmd, cfg)
	if len(args) == 1 {
		cfg.VideoRoot = args[0]
	}

	logger.Init(logger.LevelFromVerbosity(cfg.Quiet, cfg.Verbose))

	if cmd.Flags().Changed("jobs") && flags.Jobs == 0 {
		return nil, fmt.Errorf("cannot run with 0 jobs")
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFlags copies every flag the user set over the file-loaded config.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	set("crf", func() { cfg.CRF = flags.CRF })
	set("x265", func() { cfg.X265 = flags.X265 })
	set("av1", func() { cfg.AV1 = flags.AV1 })
	set("reference", func() { cfg.Reference = flags.Reference })
	set("copy-streams", func() { cfg.CopyStreams = flags.CopyStreams })
	set("animation", func() { cfg.Anime = flags.Anime })
	set("anime-slow-well-lit", func() { cfg.AnimeSlowWellLit = flags.AnimeSlowWellLit })
	set("anime-mixed-dark-battle", func() { cfg.AnimeMixedDarkBattle = flags.AnimeMixedDarkBattle })
	set("jobs", func() { cfg.Jobs = flags.Jobs })
	set("slow-start", func() { cfg.SlowStart = flags.SlowStart })
	set("720p", func() { cfg.Height720p = flags.Height720p })
	set("8-bit", func() { cfg.EightBit = flags.EightBit })
	set("preset", func() { cfg.Preset = flags.Preset })
	set("overwrite", func() { cfg.Overwrite = flags.Overwrite })
	set("extra-flag", func() { cfg.ExtraFlags = flags.ExtraFlags })
	set("no-log", func() { cfg.NoLog = flags.NoLog })
	set("quiet", func() { cfg.Quiet = flags.Quiet })
	set("verbose", func() { cfg.Verbose = flags.Verbose })
	set("skip-bitrate-check", func() { cfg.SkipBitrateCheck = flags.SkipBitrateCheck })
	set("copy-audio", func() { cfg.CopyAudio = flags.CopyAudio })
	set("no-audio", func() { cfg.NoAudio = flags.NoAudio })
	set("include", func() { cfg.Include = flags.Include })
	set("exclude", func() { cfg.Exclude = flags.Exclude })
	set("no-map-0", func() { cfg.NoMap0 = flags.NoMap0 })
	set("limit", func() { cfg.Limit = flags.Limit })
	set("expected-size", func() { cfg.ExpectedSize = flags.ExpectedSize })
	set("delete-too-large", func() { cfg.DeleteTooLarge = flags.DeleteTooLarge })
	set("minimum-size", func() { cfg.MinimumSize = flags.MinimumSize })
	set("output-name", func() { cfg.OutputName = flags.OutputName })
	set("output-dir", func() { cfg.OutputDir = flags.OutputDir })
	set("ffmpeg", func() { cfg.FFmpegPath = flags.FFmpegPath })
	set("ffprobe", func() { cfg.FFprobePath = flags.FFprobePath })
	set("no-history", func() { cfg.NoHistory = flags.NoHistory })
}
