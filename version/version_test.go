package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"
)

func TestGetUsesLinkerValues(t *testing.T) {
	defer restore(Version, GitCommit, BuildTime)
	Version, GitCommit, BuildTime = "1.4.0", "abc1234", "2026-01-15T10:30:00Z"

	info := Get()
	if info.Version != "1.4.0" || info.GitCommit != "abc1234" {
		t.Errorf("info = %+v", info)
	}
	if !info.BuildDate.Equal(time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("BuildDate = %v", info.BuildDate)
	}
}

func TestApplySettings(t *testing.T) {
	info := Info{Version: "dev"}
	applySettings(&info, []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.modified", Value: "true"},
		{Key: "vcs.time", Value: "2026-03-01T00:00:00Z"},
	})
	if info.GitCommit != "0123456" || !info.IsDirty || info.BuildTime != "2026-03-01T00:00:00Z" {
		t.Errorf("info = %+v", info)
	}

	pinned := Info{GitCommit: "fixed", BuildTime: "x"}
	applySettings(&pinned, []debug.BuildSetting{{Key: "vcs.revision", Value: "other"}, {Key: "vcs.time", Value: "y"}})
	if pinned.GitCommit != "fixed" || pinned.BuildTime != "x" {
		t.Errorf("linker values overwritten: %+v", pinned)
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		name  string
		info  Info
		short string
	}{
		{"no commit", Info{Version: "dev"}, "dev"},
		{"clean", Info{Version: "1.0.0", GitCommit: "abc1234"}, "1.0.0-abc1234"},
		{"dirty", Info{Version: "1.0.0", GitCommit: "abc1234", IsDirty: true}, "1.0.0-abc1234-dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.Short(); got != tt.short {
				t.Errorf("Short = %q, want %q", got, tt.short)
			}
		})
	}

	full := Info{Version: "1.0.0", BuildDate: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), GoVersion: "go1.26.0"}
	if got := full.String(); got != "1.0.0 (built 2026-01-02T03:04:05Z) go1.26.0" {
		t.Errorf("String = %q", got)
	}
	if !strings.HasPrefix(Get().String(), Version) {
		t.Error("String does not start with the version")
	}
}

// --- test helpers ---

func restore(v, c, b string) {
	Version, GitCommit, BuildTime = v, c, b
}
