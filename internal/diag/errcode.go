package diag

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"svgcrush/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeContent   Code = "content"
	CodeCorpus    Code = "corpus"
	CodeProtocol  Code = "protocol"
	CodeInvariant Code = "invariant"
	CodeExternal  Code = "external"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	if errors.Is(err, contract.ErrNoContent) {
		return CodeContent
	}
	if errors.Is(err, contract.ErrEmptyCorpus) {
		return CodeCorpus
	}
	// 编码器输出形状 / 头部无法参数化
	if errors.Is(err, contract.ErrEncoderContract) || errors.Is(err, contract.ErrHeaderShape) {
		return CodeProtocol
	}
	// 不变量
	if errors.Is(err, contract.ErrSentinelCollision) ||
		errors.Is(err, contract.ErrDuplicateItem) ||
		errors.Is(err, contract.ErrInvalidInput) ||
		errors.Is(err, contract.ErrPathInvalid) {
		return CodeInvariant
	}
	// 外部命令（编码器/钩子）非零退出
	var xerr *exec.ExitError
	if errors.As(err, &xerr) || errors.Is(err, exec.ErrNotFound) {
		return CodeExternal
	}
	// I/O
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	var lerr *os.LinkError
	if errors.As(err, &lerr) {
		return CodeIO
	}
	return CodeUnknown
}

// NowUTC 返回 RFC3339 UTC 时间字符串（用于结构化日志字段 ts）。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
