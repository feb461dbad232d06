package contract

import "context"

// Normalizer: 将原始标记规范化为最小、等价渲染的文本。
// 约束：
//  1. 纯计算，不做 I/O；
//  2. 幂等：Normalize(Normalize(x)) == Normalize(x)；
//  3. 找不到根元素时返回 ErrNoContent。
type Normalizer interface {
	Normalize(ctx context.Context, name, raw string) (string, error)
}
