// Package jobs contains the scheduling and commit engine: the worker
// pool, the concurrency quota, the atomic output commit with size
// validation, and the batch-wide warning aggregator.
package jobs

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gwlsn/shrinkherd/internal/config"
)

// Descriptor is one unit of work: a source file and everything needed to
// encode it. Created once per discovered input and never mutated; the
// task processing it is the sole owner.
type Descriptor struct {
	// Source is the input file path.
	Source string

	// Output is the final output path. Never observably partial.
	Output string

	// Partial is where the encoder writes; renamed to Output on success.
	Partial string

	// LogPath receives the encoder's report ("" = disabled).
	LogPath string

	// CRF is the resolved quality level for this input.
	CRF int

	// Args is the full encoder argument list, without the output path.
	Args []string
}

// NewDescriptor derives the output, partial and log paths for a source
// file under the configured output directory.
func NewDescriptor(cfg *config.Config, source string, crf int, args []string) (*Descriptor, error) {
	rel, err := relativeToRoot(source, cfg.VideoRoot)
	if err != nil {
		return nil, err
	}

	outDir := filepath.Join(cfg.OutputRoot(), filepath.Dir(rel))
	base := filepath.Base(rel)
	ext := outputExtension(base)
	basename := strings.TrimSuffix(base, filepath.Ext(base))

	template := cfg.OutputName
	if template == "" {
		if cfg.VideoCodec() == config.CodecAV1 {
			template = "{basename}-{preset}-crf{crf}"
		} else {
			template = "{basename}-crf{crf}"
		}
	}
	output := FillOutputTemplate(template, outDir, basename, cfg.Preset, strconv.Itoa(crf), ext)

	logPath := ""
	if !cfg.NoLog {
		logPath = filepath.Join(cfg.OutputRoot(), rel) + ".log"
	}

	return &Descriptor{
		Source:  source,
		Output:  output,
		Partial: PartialPath(output),
		LogPath: logPath,
		CRF:     crf,
		Args:    args,
	}, nil
}

// FillOutputTemplate fills an output-name template. Fields: {basename},
// {preset}, {crf}.
func FillOutputTemplate(template, dir, basename, preset, crf, ext string) string {
	name := template
	name = strings.ReplaceAll(name, "{basename}", basename)
	name = strings.ReplaceAll(name, "{preset}", preset)
	name = strings.ReplaceAll(name, "{crf}", crf)
	return filepath.Join(dir, name+"."+ext)
}

// PartialPath returns the in-progress twin of an output path, in the same
// directory so the final rename stays on one filesystem.
func PartialPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + ".partial" + ext
}

// outputExtension keeps mp4 as mp4 and moves everything else to mkv.
func outputExtension(base string) string {
	if strings.EqualFold(filepath.Ext(base), ".mp4") {
		return "mp4"
	}
	return "mkv"
}

// relativeToRoot trims the video root off the front of an input path.
func relativeToRoot(source, root string) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(source))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("input %q is outside the video root %q", source, root)
	}
	return rel, nil
}
