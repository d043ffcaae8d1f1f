// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

import (
	"fmt"
	"runtime/debug"
)

// Set at link time with -X.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// BuildInfo describes the running insights binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Sha       string `json:"sha"`
	Buildtime string `json:"buildtime"`
	Modified  bool   `json:"modified,omitempty"`
}

// CurrentBuild reports the link-time build values. Values left at their
// defaults are filled from the VCS stamp the Go toolchain embeds, when there
// is one.
func CurrentBuild() BuildInfo {
	info := BuildInfo{Version: Version, Sha: Sha, Buildtime: Buildtime}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = info.withVCS(bi.Main.Version, bi.Settings)
	}
	return info
}

func (b BuildInfo) withVCS(moduleVersion string, settings []debug.BuildSetting) BuildInfo {
	if b.Version == "dev" && moduleVersion != "" && moduleVersion != "(devel)" {
		b.Version = moduleVersion
	}
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if b.Sha == "HEAD" && s.Value != "" {
				b.Sha = s.Value
			}
		case "vcs.time":
			if b.Buildtime == "dev" && s.Value != "" {
				b.Buildtime = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

// ShortSha is the first 12 characters of the commit.
func (b BuildInfo) ShortSha() string {
	if len(b.Sha) > 12 {
		return b.Sha[:12]
	}
	return b.Sha
}

func (b BuildInfo) String() string {
	sha := b.ShortSha()
	if b.Modified {
		sha += "-dirty"
	}
	return fmt.Sprintf("Version: %s\nSha: %s\nBuildtime: %s\n", b.Version, sha, b.Buildtime)
}
