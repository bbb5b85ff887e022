package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gwlsn/shrinkherd/internal/logger"
)

// Matcher decides whether a root-relative path takes part in a batch,
// from include and exclude specs. A spec is normally a glob ("**/*E01*");
// a spec that names an existing file matches that file exactly even when
// it is not a usable glob.
type Matcher struct {
	root    string
	include []pattern
	exclude []pattern
}

type pattern struct {
	spec string
	glob bool // spec compiled as a glob
}

// NewMatcher validates the given specs. An invalid glob is a hard error
// unless the spec names an existing path.
func NewMatcher(root string, include, exclude []string) (*Matcher, error) {
	m := &Matcher{root: root}
	var err error
	if m.include, err = compile(root, include); err != nil {
		return nil, err
	}
	if m.exclude, err = compile(root, exclude); err != nil {
		return nil, err
	}
	return m, nil
}

func compile(root string, specs []string) ([]pattern, error) {
	var out []pattern
	for _, spec := range specs {
		if doublestar.ValidatePattern(filepath.ToSlash(spec)) {
			out = append(out, pattern{spec: spec, glob: true})
			continue
		}
		if _, err := os.Stat(spec); err == nil {
			out = append(out, pattern{spec: spec})
			continue
		}
		if _, err := os.Stat(filepath.Join(root, spec)); err == nil {
			out = append(out, pattern{spec: spec})
			continue
		}
		return nil, fmt.Errorf("could not build glob pattern %q", spec)
	}
	return out, nil
}

// Admit reports whether the root-relative path rel should be processed.
func (m *Matcher) Admit(rel string) bool {
	if len(m.include) > 0 && !matchAny(m.include, rel) {
		if m.sameFileAny(m.include, rel) {
			logger.Warn("Path did not match an include pattern, but did match exactly. Including", "path", rel)
		} else {
			logger.Debug("Skipping path because it is not included", "path", rel)
			return false
		}
	}
	if matchAny(m.exclude, rel) {
		logger.Debug("Skipping path because of exclude", "path", rel)
		return false
	}
	if m.sameFileAny(m.exclude, rel) {
		logger.Warn("Path did not match an exclude pattern, but did match exactly. Excluding", "path", rel)
		return false
	}
	return true
}

func matchAny(patterns []pattern, rel string) bool {
	for _, p := range patterns {
		if !p.glob {
			continue
		}
		if ok, _ := doublestar.Match(filepath.ToSlash(p.spec), filepath.ToSlash(rel)); ok {
			return true
		}
	}
	return false
}

func (m *Matcher) sameFileAny(patterns []pattern, rel string) bool {
	for _, p := range patterns {
		if sameFile(p.spec, rel, m.root) {
			return true
		}
	}
	return false
}

// sameFile reports whether spec and the root-relative path rel name the
// same file, by canonical path or by trailing path components.
func sameFile(spec, rel, root string) bool {
	if specAbs, err := filepath.Abs(spec); err == nil {
		if relAbs, err := filepath.Abs(filepath.Join(root, rel)); err == nil && specAbs == relAbs {
			return true
		}
	}

	specParts := strings.Split(filepath.ToSlash(filepath.Clean(spec)), "/")
	relParts := strings.Split(filepath.ToSlash(filepath.Clean(rel)), "/")
	if len(specParts) > len(relParts) {
		return false
	}
	for i := 1; i <= len(specParts); i++ {
		if specParts[len(specParts)-i] != relParts[len(relParts)-i] {
			return false
		}
	}
	return true
}
