package version

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfo_String(t *testing.T) {
	tests := []struct {
		name     string
		info     Info
		expected string
	}{
		{
			name:     "clean state",
			info:     Info{GitVersion: "v1.0.0", GitTreeState: "clean"},
			expected: "v1.0.0",
		},
		{
			name:     "dirty state",
			info:     Info{GitVersion: "v1.0.0", GitTreeState: "dirty"},
			expected: "v1.0.0-dirty",
		},
		{
			name:     "empty state",
			info:     Info{GitVersion: "v1.0.0"},
			expected: "v1.0.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.info.String())
			assert.Equal(t, "v1.0.0", tt.info.ShortString())
		})
	}
}

func TestInfo_Render(t *testing.T) {
	info := Info{
		GitVersion:   "v0.3.0",
		GitCommit:    "abc123",
		GitTreeState: "clean",
		BuildDate:    "2024-01-01T00:00:00Z",
		GoVersion:    "go1.24.0",
		Compiler:     "gc",
		Platform:     "linux/amd64",
	}

	text, err := info.Render("text")
	require.NoError(t, err)
	for _, field := range []string{
		"gitVersion:", "v0.3.0",
		"gitCommit:", "abc123",
		"gitTreeState:", "clean",
		"buildDate:", "2024-01-01T00:00:00Z",
		"goVersion:", "go1.24.0",
		"platform:", "linux/amd64",
	} {
		assert.Contains(t, text, field)
	}

	js, err := info.Render("JSON")
	require.NoError(t, err)
	assert.Contains(t, js, "\n")
	var parsed Info
	require.NoError(t, json.Unmarshal([]byte(js), &parsed))
	assert.Equal(t, info, parsed)

	short, err := info.Render("short")
	require.NoError(t, err)
	assert.Equal(t, "v0.3.0", short)

	_, err = info.Render("xml")
	assert.Error(t, err)
}

func TestInfo_Text_OmitEmpty(t *testing.T) {
	text := Info{GitVersion: "v1.0.0", BuildDate: "2024-01-01T00:00:00Z"}.Text()
	assert.NotContains(t, text, "gitTreeState:")
	assert.NotContains(t, text, "gitCommit:")
}

func TestInfo_UserAgent(t *testing.T) {
	info := Info{GitVersion: "v0.3.0", Platform: "darwin/arm64", GoVersion: "go1.24.0"}
	assert.Equal(t, "mirascope-go/0.3.0 (darwin/arm64; go1.24.0)", info.UserAgent())
}

func TestFillFromBuildInfo(t *testing.T) {
	info := Info{GitVersion: "v0.0.0-dev"}
	fillFromBuildInfo(&info, &debug.BuildInfo{
		Main: debug.Module{Path: "example.com/app", Version: "(devel)"},
		Deps: []*debug.Module{{Path: modulePath, Version: "v0.4.1"}},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "deadbeef"},
			{Key: "vcs.modified", Value: "true"},
		},
	})
	assert.Equal(t, "v0.4.1", info.GitVersion)
	assert.Equal(t, "deadbeef", info.GitCommit)
	assert.Equal(t, "dirty", info.GitTreeState)

	injected := Info{GitVersion: "v1.2.3", GitCommit: "cafe"}
	fillFromBuildInfo(&injected, &debug.BuildInfo{
		Main:     debug.Module{Path: modulePath, Version: "v9.9.9"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "other"}},
	})
	assert.Equal(t, "v1.2.3", injected.GitVersion)
	assert.Equal(t, "cafe", injected.GitCommit)
}

func TestGet(t *testing.T) {
	info := Get()

	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.Compiler, info.Compiler)
	assert.True(t, strings.Contains(info.Platform, "/"), info.Platform)
	assert.NotEmpty(t, info.GitVersion)
}
