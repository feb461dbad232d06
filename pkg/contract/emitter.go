package contract

import "context"

// EmitMode: 输出形态（封闭集合）。
type EmitMode string

const (
	// EmitBundle: 所有条目内联在一个函数里。
	EmitBundle EmitMode = "bundle"
	// EmitLazy: 调用时按条目拉取旁路文件。
	EmitLazy EmitMode = "lazy"
)

// EmitOptions: 代码生成参数。
type EmitOptions struct {
	Mode EmitMode
	// Param: 头部绑定以显式（带默认值的）函数参数暴露，而非闭包内局部绑定。
	Param bool
	// FuncName: 生成模块中承接函数字面量的绑定名。
	FuncName string
	// SourceDir: 出现在来源横幅中的输入目录名。
	SourceDir string
	// FetchBase: 懒加载模式下旁路文件的 URL 前缀。
	FetchBase string
	// SidecarExt: 旁路文件扩展名（".js" 或 ".svg.js"）。
	SidecarExt string
}

// Emitter: 将装配结果渲染为生成源码（及可选旁路文件）。
// 仅做字符串模板化，不校验生成代码语法。
type Emitter interface {
	Emit(ctx context.Context, asm Assembly) (Module, error)
}
