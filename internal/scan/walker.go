// Package scan discovers candidate input files for a batch. Discovery is
// deterministic: directories are walked breadth-first with entries in
// natural sort order, so an unchanged tree always yields the same list.
package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"github.com/gwlsn/shrinkherd/internal/logger"
)

// videoExtensions are the container formats worth encoding.
var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".m4v": true, ".vob": true,
	".ogg": true, ".ogv": true, ".wmv": true, ".yuv": true,
	".y4v": true, ".mpg": true, ".mpeg": true, ".3gp": true,
	".3g2": true, ".f4v": true, ".f4p": true, ".avi": true,
	".webm": true, ".flv": true,
}

// IsVideoFile returns true if the file extension suggests a video file.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// Walker enumerates video files under a root in deterministic order.
type Walker struct {
	Root       string
	OutputRoot string // skipped during traversal
	Matcher    *Matcher
	Limit      int // stop after this many files (0 = unlimited)
}

// Discover returns the ordered candidate list.
func (w *Walker) Discover() ([]string, error) {
	outputRoot, err := filepath.Abs(w.OutputRoot)
	if err != nil {
		return nil, err
	}

	var videos []string
	dirs := []string{w.Root}
	for len(dirs) > 0 {
		dir := dirs[0]
		dirs = dirs[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(entries))
		byName := make(map[string]os.DirEntry, len(entries))
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			names = append(names, path)
			byName[path] = e
		}
		sort.Slice(names, func(i, j int) bool { return natural.Less(names[i], names[j]) })

		for _, path := range names {
			if w.Limit > 0 && len(videos) == w.Limit {
				logger.Debug("Reached file limit, stopping discovery", "limit", w.Limit)
				return videos, nil
			}

			abs, err := filepath.Abs(path)
			if err == nil && abs == outputRoot {
				continue
			}
			rel, err := filepath.Rel(w.Root, path)
			if err != nil {
				rel = path
			}
			if w.Matcher != nil && !w.Matcher.Admit(rel) {
				continue
			}

			if byName[path].IsDir() {
				dirs = append(dirs, path)
			} else if IsVideoFile(path) {
				videos = append(videos, path)
			}
		}
	}

	return videos, nil
}
