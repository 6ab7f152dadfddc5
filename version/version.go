// Package version 提供版本信息，构建时通过 -ldflags 注入：
//
//	go build -ldflags "-X github.com/skylarbpayne/mirascope/version.gitVersion=v0.3.0 \
//	  -X github.com/skylarbpayne/mirascope/version.gitCommit=$(git rev-parse HEAD)"
//
// 未注入时从模块的构建信息中取版本号。
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/gosuri/uitable"
)

const modulePath = "github.com/skylarbpayne/mirascope"

var (
	// gitVersion 是语义化的版本号，格式为 vMAJOR.MINOR.PATCH[-PRERELEASE][+BUILD]
	gitVersion = "v0.0.0-dev"
	// buildDate 是 ISO8601 格式的构建时间, $(date -u +'%Y-%m-%dT%H:%M:%SZ') 命令的输出
	buildDate = "1970-01-01T00:00:00Z"
	// gitCommit 是 Git 的 SHA1 值，$(git rev-parse HEAD) 命令的输出
	gitCommit = ""
	// gitTreeState 代表构建时 Git 仓库的状态，值为 clean 或 dirty
	gitTreeState = ""
)

// Info 包含了版本信息
type Info struct {
	GitVersion   string `json:"gitVersion"`
	GitCommit    string `json:"gitCommit,omitempty"`
	GitTreeState string `json:"gitTreeState,omitempty"`
	BuildDate    string `json:"buildDate"`
	GoVersion    string `json:"goVersion"`
	Compiler     string `json:"compiler"`
	Platform     string `json:"platform"`
}

// String 返回人性化的版本信息字符串
func (info Info) String() string {
	if info.GitTreeState == "dirty" {
		return info.GitVersion + "-dirty"
	}
	return info.GitVersion
}

// ShortString 返回简短的版本字符串，仅包含版本号
func (info Info) ShortString() string {
	return info.GitVersion
}

// ToJSONIndent 以格式化的 JSON 格式返回版本信息
func (info Info) ToJSONIndent() (string, error) {
	s, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal version info: %w", err)
	}
	return string(s), nil
}

// Text 以对齐的表格返回版本信息，空字段省略
func (info Info) Text() string {
	table := uitable.New()
	table.RightAlign(0)
	table.MaxColWidth = 80
	table.Separator = " "
	table.AddRow("gitVersion:", info.GitVersion)
	if info.GitCommit != "" {
		table.AddRow("gitCommit:", info.GitCommit)
	}
	if info.GitTreeState != "" {
		table.AddRow("gitTreeState:", info.GitTreeState)
	}
	table.AddRow("buildDate:", info.BuildDate)
	table.AddRow("goVersion:", info.GoVersion)
	table.AddRow("compiler:", info.Compiler)
	table.AddRow("platform:", info.Platform)

	return table.String()
}

// Render 按输出格式渲染：text、json 或 short
func (info Info) Render(format string) (string, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return info.Text(), nil
	case "json":
		return info.ToJSONIndent()
	case "short":
		return info.ShortString(), nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or short)", format)
	}
}

// UserAgent 返回发往 provider 的 User-Agent
func (info Info) UserAgent() string {
	return fmt.Sprintf("mirascope-go/%s (%s; %s)", strings.TrimPrefix(info.GitVersion, "v"), info.Platform, info.GoVersion)
}

// Get 返回详尽的代码库版本信息，用来标明二进制文件由哪个版本的代码构建
func Get() Info {
	info := Info{
		GitVersion:   gitVersion,
		GitCommit:    gitCommit,
		GitTreeState: gitTreeState,
		BuildDate:    buildDate,
		GoVersion:    runtime.Version(),
		Compiler:     runtime.Compiler,
		Platform:     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(&info, bi)
	}
	return info
}

// fillFromBuildInfo 在未通过 ldflags 注入时补充模块版本与 VCS 信息
func fillFromBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.GitVersion == "v0.0.0-dev" {
		v := bi.Main.Version
		if bi.Main.Path != modulePath {
			for _, dep := range bi.Deps {
				if dep.Path == modulePath {
					v = dep.Version
					break
				}
			}
		}
		if v != "" && v != "(devel)" {
			info.GitVersion = v
		}
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
			}
		case "vcs.modified":
			if info.GitTreeState == "" {
				if s.Value == "true" {
					info.GitTreeState = "dirty"
				} else {
					info.GitTreeState = "clean"
				}
			}
		}
	}
}
