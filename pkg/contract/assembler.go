package contract

import "context"

// Assembler: 语料装配（连接 → 编码 → 拆分 → 按序回填）。
// 约束：
//  1. 空集合返回 ErrEmptyCorpus；
//  2. 条目内容含任一分隔符时快速失败（ErrSentinelCollision）；
//  3. 编码结果无法拆成 1 个头部 + N 个条目时返回 ErrEncoderContract；
//  4. 输出顺序与基数与输入严格一致。
type Assembler interface {
	Assemble(ctx context.Context, items []Item, enc Encoder, opts EncodeOptions) (Assembly, error)
}
