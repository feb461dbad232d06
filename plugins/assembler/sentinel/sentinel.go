package sentinel

import (
	"context"
	"fmt"

	"svgcrush/pkg/contract"
)

// Options 当前无字段：分隔符由 EncodeOptions 传入。
// 注册表仍按严格模式解码，配置中出现任何键都会报错。
type Options struct{}

type assembler struct{}

// New 创建分隔符帧装配器。
func New(_ *Options) (contract.Assembler, error) {
	return &assembler{}, nil
}

// Assemble 连接规范化条目 → 调用编码器 → 按帧协议拆分 → 按位置回填 Encoded。
// 名称重复、条目含分隔符均在调用编码器之前失败。
func (a *assembler) Assemble(ctx context.Context, items []contract.Item, enc contract.Encoder, opts contract.EncodeOptions) (contract.Assembly, error) {
	select {
	case <-ctx.Done():
		return contract.Assembly{}, ctx.Err()
	default:
	}
	if len(items) == 0 {
		return contract.Assembly{}, contract.ErrEmptyCorpus
	}
	if err := opts.Sentinels.Validate(); err != nil {
		return contract.Assembly{}, err
	}

	seen := make(map[string]struct{}, len(items))
	parts := make([]string, len(items))
	for i, it := range items {
		if _, ok := seen[it.Name]; ok {
			return contract.Assembly{}, fmt.Errorf("%s: %w", it.Name, contract.ErrDuplicateItem)
		}
		seen[it.Name] = struct{}{}
		if err := opts.Sentinels.CheckPart(it.Normalized); err != nil {
			return contract.Assembly{}, fmt.Errorf("%s: %w", it.Name, err)
		}
		parts[i] = it.Normalized
	}
	corpus, err := contract.JoinFrame(parts, opts.Sentinels)
	if err != nil {
		return contract.Assembly{}, err
	}

	encoded, err := enc.Encode(ctx, corpus, opts)
	if err != nil {
		return contract.Assembly{}, err
	}
	header, out, err := contract.ParseFrame(encoded, opts.Sentinels, len(items))
	if err != nil {
		return contract.Assembly{}, err
	}

	// 回填到副本，不修改调用方切片
	res := make([]contract.Item, len(items))
	copy(res, items)
	for i := range res {
		res[i].Encoded = out[i]
	}
	return contract.Assembly{Header: header, Items: res}, nil
}

var _ contract.Assembler = (*assembler)(nil)
