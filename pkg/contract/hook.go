package contract

import "context"

// Hook: 可选的文本过滤器（处理单个 SVG 或生成后的模块）。
// path 为对应的源/目标路径，仅作提示；返回值整体替换输入。
type Hook interface {
	Apply(ctx context.Context, path, in string) (string, error)
}
