package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func shellRunner(t *testing.T) *Runner {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test uses /bin/sh")
	}
	return NewRunner("/bin/sh")
}

func TestRunForwardsStdout(t *testing.T) {
	r := shellRunner(t)
	var out bytes.Buffer
	r.Stdout = &out

	// The output path lands in $0 and is ignored by the script.
	err := r.Run(context.Background(), []string{"-c", "echo encoding frame 1"}, "out.mkv", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "encoding frame 1") {
		t.Errorf("stdout not forwarded: %q", out.String())
	}
}

func TestRunNonZeroExitIsEngineError(t *testing.T) {
	r := shellRunner(t)
	r.Stdout = &bytes.Buffer{}

	err := r.Run(context.Background(), []string{"-c", "exit 3"}, "out.mkv", "")
	if !errors.Is(err, ErrEngineExit) {
		t.Fatalf("Run error = %v, want ErrEngineExit", err)
	}
	if !strings.Contains(err.Error(), "status 3") {
		t.Errorf("error does not carry exit status: %v", err)
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := NewRunner("/nonexistent/ffmpeg")
	r.Stdout = &bytes.Buffer{}
	err := r.Run(context.Background(), nil, "out.mkv", "")
	if err == nil {
		t.Fatal("Run with missing binary succeeded")
	}
	if errors.Is(err, ErrEngineExit) {
		t.Errorf("spawn failure misreported as engine exit: %v", err)
	}
}

func TestRunAppendsOutputPath(t *testing.T) {
	r := shellRunner(t)
	var out bytes.Buffer
	r.Stdout = &out

	// $0 is the appended trailing argument.
	err := r.Run(context.Background(), []string{"-c", `echo "$0"`}, "final.mkv", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "final.mkv") {
		t.Errorf("output path not appended as final argument: %q", out.String())
	}
}

func TestRunCreatesLogDirectory(t *testing.T) {
	r := shellRunner(t)
	r.Stdout = &bytes.Buffer{}

	logPath := filepath.Join(t.TempDir(), "nested", "dir", "in.mkv.log")
	if err := r.Run(context.Background(), []string{"-c", "true"}, "out.mkv", logPath); err != nil {
		t.Fatal(err)
	}
	// The directory must exist even though the shell never wrote the log.
	if _, err := os.Stat(filepath.Dir(logPath)); err != nil {
		t.Errorf("log directory missing: %v", err)
	}
}

func TestFFReportValue(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"plain.log", "file=plain.log"},
		{"/videos/encoded/show.mkv.log", "file=/videos/encoded/show.mkv.log"},
		{`C:\videos\out.log`, `file=C\:\\videos\\out.log`},
		{"time:stamped.log", `file=time\:stamped.log`},
	}
	for _, tt := range tests {
		if got := ffreportValue(tt.path); got != tt.want {
			t.Errorf("ffreportValue(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
