package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

// Version information (set via -ldflags during build)
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the current version string
func GetVersion() string {
	return Version
}

// GetBuild returns the build timestamp
func GetBuild() string {
	return Build
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	return GitCommit
}

// GetFullVersion returns version with build info
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// LoadVersionInfo fills version fields not set by ldflags, first from a
// .version file next to the executable, then from the module build info.
//
// .version holds either a bare version or key: value lines
// (version, build, commit).
func LoadVersionInfo() string {
	if exePath, err := os.Executable(); err == nil {
		if data, err := os.ReadFile(filepath.Join(filepath.Dir(exePath), ".version")); err == nil {
			applyVersionFile(string(data))
		}
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		applyBuildInfo(info)
	}

	return Version
}

func applyVersionFile(content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	if !strings.Contains(content, ":") {
		Version = content
		return
	}

	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "version":
			Version = value
		case "build":
			Build = value
		case "commit", "git_commit":
			GitCommit = value
		}
	}
}

func applyBuildInfo(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if GitCommit == "unknown" && len(setting.Value) >= 7 {
				GitCommit = setting.Value[:7]
			}
		case "vcs.time":
			if Build == "unknown" {
				Build = setting.Value
			}
		}
	}
}
