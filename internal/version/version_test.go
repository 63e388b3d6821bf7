package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q", info.GoVersion)
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("Platform = %q, want os/arch", info.Platform)
	}
}

func TestUserAgent(t *testing.T) {
	old := Version
	defer func() { Version = old }()
	Version = "1.4.0"
	if got := UserAgent(); got != "camwall/1.4.0" {
		t.Errorf("UserAgent() = %q", got)
	}
}
