package contract

import "errors"

// 最小错误分类（用于上层判定与日志分类）。
var (
	// ErrNoContent: 源文件中找不到图形根元素。
	ErrNoContent = errors.New("no svg content found")
	// ErrEmptyCorpus: 输入目录没有任何可处理条目。
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrEncoderContract: 编码器输出无法拆分为预期的段/条目结构。
	ErrEncoderContract = errors.New("encoder contract violation")
	// ErrSentinelCollision: 条目内容包含保留分隔符。
	ErrSentinelCollision = errors.New("sentinel collision")
	// ErrDuplicateItem: 条目名冲突（含大小写风格转换后的冲突）。
	ErrDuplicateItem = errors.New("duplicate item name")
	// ErrHeaderShape: 头部代码不是纯声明列表，无法参数化。
	ErrHeaderShape = errors.New("header shape unsupported")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvalidInput: 参数或输入不满足前置条件。
	ErrInvalidInput = errors.New("invalid input")
)
