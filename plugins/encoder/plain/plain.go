package plain

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"svgcrush/pkg/contract"
)

// Options 当前无字段；注册表严格解码，任何键都会被拒绝。
type Options struct{}

type encoder struct{}

// New 创建无字典编码器：头部为空，条目原样输出为 JSON 字符串字面量。
func New(_ *Options) (contract.Encoder, error) {
	return &encoder{}, nil
}

func (e *encoder) Encode(ctx context.Context, corpus string, opts contract.EncodeOptions) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	if err := opts.Sentinels.Validate(); err != nil {
		return "", err
	}
	items := strings.Split(corpus, opts.Sentinels.Item)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	out := make([]string, len(items))
	for i, it := range items {
		buf.Reset()
		if err := enc.Encode(it); err != nil {
			return "", err
		}
		out[i] = strings.TrimSuffix(buf.String(), "\n")
	}
	return opts.Sentinels.Section + strings.Join(out, opts.Sentinels.Item), nil
}

var _ contract.Encoder = (*encoder)(nil)
