package jobs

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/gwlsn/shrinkherd/internal/logger"
)

// maxAncestryDepth bounds the parent-chain walk; real process trees are
// nowhere near this deep, broken ppid data could be.
const maxAncestryDepth = 64

// ExternalEncoders returns the PIDs of running encoder processes that are
// NOT descendants of this invocation. This is inherently racy — processes
// start and exit between snapshots — and is used only to converge the job
// quota across sibling invocations, never for correctness.
func ExternalEncoders(ctx context.Context, encoderPath string) []int32 {
	want := strings.ToLower(filepath.Base(encoderPath))
	self := int32(os.Getpid())

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		logger.Warn("Could not list processes for the external encoder snapshot", "error", err)
		return nil
	}

	var external []int32
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if !strings.EqualFold(strings.TrimSuffix(name, ".exe"), want) {
			continue
		}
		if isDescendantOf(ctx, p, self) {
			continue
		}
		external = append(external, p.Pid)
	}
	return external
}

// isDescendantOf walks the parent chain of p. Any process whose ancestry
// reaches self is internal, including helper subprocesses the encoder
// spawns itself.
func isDescendantOf(ctx context.Context, p *process.Process, self int32) bool {
	cur := p
	for depth := 0; depth < maxAncestryDepth; depth++ {
		if cur.Pid == self {
			return true
		}
		ppid, err := cur.PpidWithContext(ctx)
		if err != nil || ppid <= 1 || ppid == cur.Pid {
			return false
		}
		parent, err := process.NewProcessWithContext(ctx, ppid)
		if err != nil {
			return false
		}
		cur = parent
	}
	return false
}

// subsetOf reports whether every pid in a also appears in b.
func subsetOf(a, b []int32) bool {
	seen := make(map[int32]bool, len(b))
	for _, pid := range b {
		seen[pid] = true
	}
	for _, pid := range a {
		if !seen[pid] {
			return false
		}
	}
	return true
}
