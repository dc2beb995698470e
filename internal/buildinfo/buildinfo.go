// Package buildinfo reports the binary's version. Version, GitCommit
// and BuildTime are stamped with -ldflags; a plain go build falls back
// to the VCS settings the toolchain embeds.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var vcsOnce sync.Once

func fillFromVCS() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && GitCommit == "unknown":
			GitCommit = s.Value[:min(12, len(s.Value))]
		case s.Key == "vcs.time" && BuildTime == "unknown":
			BuildTime = s.Value
		}
	}
}

// Info returns build and runtime metadata keyed for display and JSON.
func Info() map[string]string {
	vcsOnce.Do(fillFromVCS)
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_time": BuildTime,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}

// UserAgent identifies savant to Semantic Scholar, GitHub and the rest.
func UserAgent() string {
	return "savant/" + Version + " (+https://github.com/nugget/savant)"
}

// String is the one-line version banner.
func String() string {
	vcsOnce.Do(fillFromVCS)
	return fmt.Sprintf("savant %s (%s, %s, %s/%s)", Version, GitCommit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
