package contract

import (
	"context"
	"encoding/json"
)

// EncodeOptions: 传给编码器的运行参数。
type EncodeOptions struct {
	Sentinels Sentinels
	// Reserved: 生成代码中已占用的标识符，编码器不得用作绑定名。
	Reserved []string
	// Config: 完整运行配置（原样 JSON），供外部编码器自行解释。
	Config json.RawMessage
}

// Encoder: 语料去重/压缩器（黑盒）。
// 输入：以条目分隔符连接的单一语料；
// 输出：恰含一个段分隔符的字符串，前段为共享头部代码，后段为仍以条目分隔符分隔的编码语料。
// 每个编码后的条目必须是求值结果为原 SVG 文本的 JS 表达式。
type Encoder interface {
	Encode(ctx context.Context, corpus string, opts EncodeOptions) (string, error)
}
