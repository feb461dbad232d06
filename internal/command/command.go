// Package command 执行外部过滤命令：stdin 输入，stdout 输出。
// 供 exec 编码器与处理钩子共用。
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"svgcrush/pkg/contract"
)

// stderr 摘要上限（字节），避免把大量诊断输出塞进错误消息。
const maxStderr = 512

// Cmd: 一条已解析的外部命令。
type Cmd struct {
	Argv    []string
	Env     []string
	Timeout time.Duration
}

// Parse 以 POSIX shell 规则切分命令行（支持引号与转义，不做变量展开）。
func Parse(line string, timeout time.Duration, env map[string]string) (*Cmd, error) {
	argv, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("%w: command %q: %v", contract.ErrInvalidInput, line, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: command empty", contract.ErrInvalidInput)
	}
	if timeout < 0 {
		return nil, fmt.Errorf("%w: timeout must be >= 0", contract.ErrInvalidInput)
	}
	c := &Cmd{Argv: argv, Timeout: timeout}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		c.Env = append(c.Env, k+"="+env[k])
	}
	return c, nil
}

// String 返回可复制粘贴的命令行。
func (c *Cmd) String() string { return shellquote.Join(c.Argv...) }

// Run 运行命令：in 写入 stdin，返回 stdout。
// extra 追加到继承的环境变量之后（后者覆盖前者）。
// 非零退出返回包装了 *exec.ExitError 的错误，附带 stderr 摘要。
func (c *Cmd) Run(ctx context.Context, in string, extra ...string) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Env = append(append(os.Environ(), c.Env...), extra...)
	cmd.Stdin = strings.NewReader(in)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s: %w", c.Argv[0], ctx.Err())
		}
		msg := strings.TrimSpace(errb.String())
		if len(msg) > maxStderr {
			msg = msg[:maxStderr] + "..."
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) && msg != "" {
			return "", fmt.Errorf("%s: %w: %s", c.Argv[0], err, msg)
		}
		return "", fmt.Errorf("%s: %w", c.Argv[0], err)
	}
	return out.String(), nil
}
