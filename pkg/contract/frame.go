package contract

import (
	"fmt"
	"strings"
)

// Sentinels: 语料帧的两个保留分隔符。
// Item 分隔各条目；Section 分隔头部代码与编码后的语料主体。
type Sentinels struct {
	Item    string `json:"item"`
	Section string `json:"section"`
}

// DefaultSentinels 返回默认分隔符（与 jcrush 约定一致）。
func DefaultSentinels() Sentinels { return Sentinels{Item: "•", Section: "★"} }

// Validate 校验分隔符自身的可用性：非空、互异、互不包含。
func (s Sentinels) Validate() error {
	if s.Item == "" || s.Section == "" {
		return fmt.Errorf("%w: sentinel empty", ErrInvalidInput)
	}
	if strings.Contains(s.Item, s.Section) || strings.Contains(s.Section, s.Item) {
		return fmt.Errorf("%w: sentinels %q and %q overlap", ErrInvalidInput, s.Item, s.Section)
	}
	return nil
}

// CheckPart 检查单个片段不含任何分隔符。
func (s Sentinels) CheckPart(part string) error {
	if strings.Contains(part, s.Item) {
		return fmt.Errorf("%w: contains item separator %q", ErrSentinelCollision, s.Item)
	}
	if strings.Contains(part, s.Section) {
		return fmt.Errorf("%w: contains section separator %q", ErrSentinelCollision, s.Section)
	}
	return nil
}

// JoinFrame 以 Item 分隔符连接片段；任一片段含分隔符即失败（显式前置条件，避免静默错位）。
func JoinFrame(parts []string, s Sentinels) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	for i, p := range parts {
		if err := s.CheckPart(p); err != nil {
			return "", fmt.Errorf("part %d: %w", i, err)
		}
	}
	return strings.Join(parts, s.Item), nil
}

// ParseFrame 拆分编码器输出：恰一个 Section 分隔符，主体按 Item 分隔符拆成 want 段。
// 任何形状不符均返回 ErrEncoderContract。
func ParseFrame(encoded string, s Sentinels, want int) (string, []string, error) {
	if err := s.Validate(); err != nil {
		return "", nil, err
	}
	if n := strings.Count(encoded, s.Section); n != 1 {
		return "", nil, fmt.Errorf("%w: want 1 section separator, got %d", ErrEncoderContract, n)
	}
	header, body, _ := strings.Cut(encoded, s.Section)
	parts := strings.Split(body, s.Item)
	if len(parts) != want {
		return "", nil, fmt.Errorf("%w: want %d items, got %d", ErrEncoderContract, want, len(parts))
	}
	return header, parts, nil
}
