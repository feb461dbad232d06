package exec

import (
	"context"
	"fmt"
	"time"

	"svgcrush/internal/command"
	"svgcrush/pkg/contract"
)

// Options: 外部编码器命令配置。
type Options struct {
	// Command: 命令行（按 shell 规则切分，不经 shell 执行）。
	Command string `json:"command"`
	// TimeoutSeconds: 超时；0 表示不限。
	TimeoutSeconds int `json:"timeout_seconds"`
	// Env: 追加的环境变量。
	Env map[string]string `json:"env"`
}

// 传给外部命令的环境变量名。
const (
	EnvConfig     = "SVGCRUSH_CONFIG"
	EnvItemSep    = "SVGCRUSH_ITEM_SEP"
	EnvSectionSep = "SVGCRUSH_SECTION_SEP"
)

type encoder struct {
	cmd *command.Cmd
}

// New 创建外部命令编码器：语料写入 stdin，stdout 即编码结果。
func New(opts *Options) (contract.Encoder, error) {
	if opts == nil || opts.Command == "" {
		return nil, fmt.Errorf("%w: exec encoder requires command", contract.ErrInvalidInput)
	}
	c, err := command.Parse(opts.Command, time.Duration(opts.TimeoutSeconds)*time.Second, opts.Env)
	if err != nil {
		return nil, err
	}
	return &encoder{cmd: c}, nil
}

// Encode 不解释输出形状；由装配器按帧协议校验。
func (e *encoder) Encode(ctx context.Context, corpus string, opts contract.EncodeOptions) (string, error) {
	if err := opts.Sentinels.Validate(); err != nil {
		return "", err
	}
	out, err := e.cmd.Run(ctx, corpus,
		EnvConfig+"="+string(opts.Config),
		EnvItemSep+"="+opts.Sentinels.Item,
		EnvSectionSep+"="+opts.Sentinels.Section,
	)
	if err != nil {
		return "", fmt.Errorf("encoder %s: %w", e.cmd, err)
	}
	return out, nil
}

var _ contract.Encoder = (*encoder)(nil)
