package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMatcherNoPatternsAdmitsEverything(t *testing.T) {
	m, err := NewMatcher(".", nil, nil)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	for _, rel := range []string{"a.mkv", "deep/nested/b.mp4"} {
		if !m.Admit(rel) {
			t.Errorf("Admit(%q) = false with no patterns", rel)
		}
	}
}

func TestMatcherInclude(t *testing.T) {
	m, err := NewMatcher(".", []string{"**/*E01*"}, nil)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	if !m.Admit("show/Season 1/Show S01E01.mkv") {
		t.Error("matching path rejected")
	}
	if m.Admit("show/Season 1/Show S01E02.mkv") {
		t.Error("non-matching path admitted")
	}
}

func TestMatcherExclude(t *testing.T) {
	m, err := NewMatcher(".", nil, []string{"**/samples/**"})
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	if m.Admit("show/samples/clip.mkv") {
		t.Error("excluded path admitted")
	}
	if !m.Admit("show/episode.mkv") {
		t.Error("unexcluded path rejected")
	}
}

func TestMatcherExcludeWinsOverInclude(t *testing.T) {
	m, err := NewMatcher(".", []string{"**/*.mkv"}, []string{"**/skip/**"})
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	if m.Admit("skip/video.mkv") {
		t.Error("excluded path admitted despite include match")
	}
}

func TestMatcherExactPathFallback(t *testing.T) {
	root := t.TempDir()
	// A spec with an unbalanced bracket is not a usable glob, but naming
	// an existing file is still accepted as an exact match.
	name := "weird [file.mkv"
	path := filepath.Join(root, name)
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewMatcher(root, []string{path}, nil)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	if !m.Admit(name) {
		t.Error("exact-path include did not admit the named file")
	}
	if m.Admit("other.mkv") {
		t.Error("exact-path include admitted an unrelated file")
	}
}

func TestMatcherExactPathExclude(t *testing.T) {
	root := t.TempDir()
	name := "bad [file.mkv"
	if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewMatcher(root, nil, []string{filepath.Join(root, name)})
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	if m.Admit(name) {
		t.Error("exact-path exclude did not reject the named file")
	}
}

func TestMatcherInvalidGlobMissingPath(t *testing.T) {
	if _, err := NewMatcher(t.TempDir(), []string{"broken [glob"}, nil); err == nil {
		t.Error("invalid glob naming no existing path was accepted")
	}
}

func TestSameFileTrailingComponents(t *testing.T) {
	if !sameFile(filepath.Join("Season 1", "ep.mkv"), filepath.Join("show", "Season 1", "ep.mkv"), "/elsewhere") {
		t.Error("trailing component match failed")
	}
	if sameFile(filepath.Join("Season 2", "ep.mkv"), filepath.Join("show", "Season 1", "ep.mkv"), "/elsewhere") {
		t.Error("mismatched components reported as same file")
	}
	if sameFile(filepath.Join("a", "b", "c", "ep.mkv"), filepath.Join("c", "ep.mkv"), "/elsewhere") {
		t.Error("spec longer than path reported as same file")
	}
}
