package registry

import (
	"bytes"
	"encoding/json"

	"svgcrush/pkg/contract"
	asent "svgcrush/plugins/assembler/sentinel"
	ededupe "svgcrush/plugins/encoder/dedupe"
	eexec "svgcrush/plugins/encoder/exec"
	eplain "svgcrush/plugins/encoder/plain"
	jsmod "svgcrush/plugins/emitter/jsmodule"
	hexec "svgcrush/plugins/hook/exec"
	nsvg "svgcrush/plugins/normalizer/svg"
	rfs "svgcrush/plugins/reader/filesystem"
	wfs "svgcrush/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewNormalizer 工厂签名：接收原样 JSON Options。
type NewNormalizer func(raw json.RawMessage) (contract.Normalizer, error)

// NewEncoder 工厂签名：接收原样 JSON Options。
type NewEncoder func(raw json.RawMessage) (contract.Encoder, error)

// NewAssembler 工厂签名：接收原样 JSON Options。
type NewAssembler func(raw json.RawMessage) (contract.Assembler, error)

// NewEmitter 工厂签名：输出形态由配置推导，不接收原样 JSON。
type NewEmitter func(opts contract.EmitOptions) (contract.Emitter, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// NewHook 工厂签名：接收原样 JSON Options；未配置命令时返回 (nil, nil)。
type NewHook func(raw json.RawMessage) (contract.Hook, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 目录扫描 Reader（按扩展名过滤，按声明编码转 UTF-8）
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Normalizer 工厂注册表。
var Normalizer = map[string]NewNormalizer{
	// svg: 文本启发式规范化
	"svg": func(raw json.RawMessage) (contract.Normalizer, error) {
		var opts nsvg.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return nsvg.New(&opts), nil
	},
}

// Encoder 工厂注册表。
var Encoder = map[string]NewEncoder{
	// dedupe: 重复子串字典编码（默认）
	"dedupe": func(raw json.RawMessage) (contract.Encoder, error) {
		var opts ededupe.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ededupe.New(&opts)
	},
	// plain: 无字典，条目输出为字符串字面量
	"plain": func(raw json.RawMessage) (contract.Encoder, error) {
		var opts eplain.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return eplain.New(&opts)
	},
	// exec: 外部命令编码器
	"exec": func(raw json.RawMessage) (contract.Encoder, error) {
		var opts eexec.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return eexec.New(&opts)
	},
}

// Assembler 工厂注册表。
var Assembler = map[string]NewAssembler{
	// sentinel: 分隔符帧（连接 → 编码 → 校验拆分）
	"sentinel": func(raw json.RawMessage) (contract.Assembler, error) {
		var opts asent.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return asent.New(&opts)
	},
}

// Emitter 工厂注册表（封闭集合：bundle / lazy）。
var Emitter = map[contract.EmitMode]NewEmitter{
	contract.EmitBundle: func(opts contract.EmitOptions) (contract.Emitter, error) {
		opts.Mode = contract.EmitBundle
		return jsmod.New(opts)
	},
	contract.EmitLazy: func(opts contract.EmitOptions) (contract.Emitter, error) {
		opts.Mode = contract.EmitLazy
		return jsmod.New(opts)
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// Hook 工厂注册表。
var Hook = map[string]NewHook{
	// exec: 外部命令过滤器
	"exec": func(raw json.RawMessage) (contract.Hook, error) {
		var opts hexec.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		h, err := hexec.New(&opts)
		if err != nil || h == nil {
			return nil, err
		}
		return h, nil
	},
}
