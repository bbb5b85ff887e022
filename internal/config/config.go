package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultOutputDirName is where encoded files land when no output
// directory is configured, relative to the video root.
const DefaultOutputDirName = "encoded"

// Codec is the video codec a batch encodes to.
type Codec string

const (
	CodecAV1  Codec = "av1"
	CodecH265 Codec = "h265"
	CodecH264 Codec = "h264"
	CodecCopy Codec = "copy"
)

// ErrConflict is returned by Validate for mutually exclusive options.
var ErrConflict = errors.New("conflicting options")

// Config holds the full option surface for a batch run. Values come from
// an optional YAML file and are overridden by command-line flags.
type Config struct {
	// VideoRoot is the directory tree to encode. Output files mirror the
	// tree under the output directory.
	VideoRoot string `yaml:"video_root"`

	// OutputDir overrides the default <video_root>/encoded destination.
	OutputDir string `yaml:"output_dir"`

	// OutputName is a filename template. Fields: {basename}, {preset}, {crf}
	OutputName string `yaml:"output_name"`

	// CRF overrides the per-codec quality heuristic (0 = pick automatically)
	CRF int `yaml:"crf"`

	// Codec selection. At most one of X265, AV1, Reference may be set.
	X265        bool `yaml:"x265"`
	AV1         bool `yaml:"av1"`
	Reference   bool `yaml:"reference"`
	CopyStreams bool `yaml:"copy_streams"`

	// Animation tuning. The specific variants imply Anime.
	Anime                bool `yaml:"anime"`
	AnimeSlowWellLit     bool `yaml:"anime_slow_well_lit"`
	AnimeMixedDarkBattle bool `yaml:"anime_mixed_dark_battle"`

	// Jobs is the concurrent encode limit (0 = derive from core count)
	Jobs int `yaml:"jobs"`

	// SlowStart staggers job starts while other invocations of the encoder
	// are running on this host.
	SlowStart bool `yaml:"slow_start"`

	// Height720p caps output at 720p instead of 1080p. Never upscales.
	Height720p bool `yaml:"720p"`

	// EightBit encodes 8-bit output instead of 10-bit.
	EightBit bool `yaml:"8_bit"`

	// Preset is the encoder preset ("" = per-codec default)
	Preset string `yaml:"preset"`

	// Overwrite allows replacing existing output files.
	Overwrite bool `yaml:"overwrite"`

	// ExtraFlags are passed through to the encoder, one option per entry,
	// e.g. "-ss 30".
	ExtraFlags []string `yaml:"extra_flags"`

	// NoLog disables the per-input encoder report file.
	NoLog bool `yaml:"no_log"`

	// Quiet/Verbose are repeat counts from -q/-v.
	Quiet   int `yaml:"quiet"`
	Verbose int `yaml:"verbose"`

	// Audio handling.
	SkipBitrateCheck bool `yaml:"skip_bitrate_check"`
	CopyAudio        bool `yaml:"copy_audio"`
	NoAudio          bool `yaml:"no_audio"`

	// Include/Exclude are glob patterns (or exact paths) matched against
	// paths relative to the video root.
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`

	// NoMap0 drops the "-map 0" argument; occasionally fixes encode errors.
	NoMap0 bool `yaml:"no_map_0"`

	// Limit stops discovery after this many files (0 = unlimited)
	Limit int `yaml:"limit"`

	// ExpectedSize warns when the output misses this size-reduction target,
	// as a percentage of the original (0 = disabled, else 1-99).
	ExpectedSize int `yaml:"expected_size"`

	// DeleteTooLarge deletes outputs that exceed ExpectedSize (or the
	// original size). Requires ExpectedSize.
	DeleteTooLarge bool `yaml:"delete_too_large"`

	// MinimumSize skips inputs below this size ("300", "1.5g", ...).
	// A bare number means megabytes.
	MinimumSize string `yaml:"minimum_size"`

	// FFmpegPath is the encoder binary (default "ffmpeg", env FFMPEG overrides)
	FFmpegPath string `yaml:"ffmpeg_path"`

	// FFprobePath is the prober binary (default "ffprobe", env FFPROBE overrides)
	FFprobePath string `yaml:"ffprobe_path"`

	// NoHistory disables the sqlite encode-history journal.
	NoHistory bool `yaml:"no_history"`
}

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		VideoRoot:   ".",
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

// Load reads config from a YAML file, applying defaults for missing values.
// A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.VideoRoot == "" {
		cfg.VideoRoot = "."
	}

	return cfg, nil
}

// Normalize applies option implications and environment overrides. Call
// once, after flags are merged and before Validate.
func (c *Config) Normalize() {
	if c.AnimeSlowWellLit || c.AnimeMixedDarkBattle {
		c.Anime = true
	}
	if c.Reference {
		c.EightBit = true
	}
	if c.CopyStreams {
		c.CopyAudio = true
	}
	if c.CopyStreams || c.NoAudio {
		c.SkipBitrateCheck = true
	}
	if c.Preset == "" {
		switch {
		case c.Reference:
			c.Preset = "veryfast"
		case c.VideoCodec() == CodecH265:
			c.Preset = "slow"
		default:
			c.Preset = "5"
		}
	}
	if env := os.Getenv("FFMPEG"); env != "" {
		c.FFmpegPath = env
	}
	if env := os.Getenv("FFPROBE"); env != "" {
		c.FFprobePath = env
	}
	// Pointing the root at the output directory itself means its parent.
	if filepath.Base(filepath.Clean(c.VideoRoot)) == DefaultOutputDirName {
		c.VideoRoot = filepath.Dir(filepath.Clean(c.VideoRoot))
	}
}

// Validate rejects option combinations that cannot run.
func (c *Config) Validate() error {
	exclusive := 0
	for _, set := range []bool{c.X265, c.AV1, c.Reference} {
		if set {
			exclusive++
		}
	}
	if exclusive > 1 {
		return fmt.Errorf("%w: at most one of --x265, --av1, --reference", ErrConflict)
	}
	if c.AV1 && (c.AnimeSlowWellLit || c.AnimeMixedDarkBattle) {
		return fmt.Errorf("%w: animation tuning variants require x265", ErrConflict)
	}
	if c.Reference && (c.Anime || c.AnimeSlowWellLit || c.AnimeMixedDarkBattle) {
		return fmt.Errorf("%w: --reference cannot be combined with animation tuning", ErrConflict)
	}
	if c.CopyStreams && (c.X265 || c.AV1 || c.Reference || c.Anime || c.CRF != 0) {
		return fmt.Errorf("%w: --copy-streams replaces codec and quality options", ErrConflict)
	}
	if c.CopyStreams && c.NoAudio {
		return fmt.Errorf("%w: --copy-streams and --no-audio", ErrConflict)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative")
	}
	if c.ExpectedSize != 0 && (c.ExpectedSize < 1 || c.ExpectedSize > 99) {
		return fmt.Errorf("expected size must be between 1 and 99 percent")
	}
	if c.DeleteTooLarge && c.ExpectedSize == 0 {
		return fmt.Errorf("--delete-too-large requires --expected-size")
	}
	return nil
}

// VideoCodec reports the codec this configuration encodes to.
func (c *Config) VideoCodec() Codec {
	switch {
	case c.CopyStreams:
		return CodecCopy
	case c.Reference:
		return CodecH264
	case !c.X265 && (c.AV1 || !c.Anime):
		return CodecAV1
	default:
		return CodecH265
	}
}

// OutputRoot is the directory encoded files are written under.
func (c *Config) OutputRoot() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return filepath.Join(c.VideoRoot, DefaultOutputDirName)
}

// MaxHeight is the output height cap.
func (c *Config) MaxHeight() int {
	if c.Height720p {
		return 720
	}
	return 1080
}

// Save writes the config to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
