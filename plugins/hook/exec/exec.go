package exec

import (
	"context"
	"fmt"
	"time"

	"svgcrush/internal/command"
	"svgcrush/pkg/contract"
)

// EnvFile: 传给钩子命令的当前文件路径。
const EnvFile = "SVGCRUSH_FILE"

// Options: 钩子命令配置。
type Options struct {
	// Command: 命令行（按 shell 规则切分，不经 shell 执行）。
	Command string `json:"command"`
	// TimeoutSeconds: 单次调用超时；0 表示不限。
	TimeoutSeconds int `json:"timeout_seconds"`
	// Env: 追加的环境变量。
	Env map[string]string `json:"env"`
}

// Hook 以外部命令过滤文本：stdin 输入，stdout 输出。
type Hook struct {
	cmd *command.Cmd
}

// New 创建命令钩子；Command 为空返回 nil（表示未配置）。
func New(opts *Options) (*Hook, error) {
	if opts == nil || opts.Command == "" {
		return nil, nil
	}
	c, err := command.Parse(opts.Command, time.Duration(opts.TimeoutSeconds)*time.Second, opts.Env)
	if err != nil {
		return nil, err
	}
	return &Hook{cmd: c}, nil
}

var _ contract.Hook = (*Hook)(nil)

// Apply 运行命令；path 通过 SVGCRUSH_FILE 传入。
func (h *Hook) Apply(ctx context.Context, path, in string) (string, error) {
	out, err := h.cmd.Run(ctx, in, EnvFile+"="+path)
	if err != nil {
		return "", fmt.Errorf("hook %s on %s: %w", h.cmd, path, err)
	}
	return out, nil
}
