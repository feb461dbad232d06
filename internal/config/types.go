package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// InDir: SVG 输入目录（必需）。
	InDir string `json:"in_dir"`
	// OutDir: 懒加载旁路文件目录；空则同 InDir。
	OutDir string `json:"out_dir"`
	// OutFile: 生成模块路径。
	OutFile string `json:"out_file"`
	// Bundle: true 时所有条目内联；false 为懒加载（每条目一个旁路文件）。
	Bundle *bool `json:"bundle,omitempty"`
	// Param: 头部绑定改为带默认值的函数参数。
	Param *bool `json:"param,omitempty"`
	// FuncName: 生成模块中的函数绑定名。
	FuncName string `json:"func_name"`
	// CheckNew: 输出比全部输入新时跳过整次运行。
	CheckNew *bool `json:"check_new,omitempty"`
	// AppendExt: 旁路文件扩展名使用 .svg.js（仅懒加载模式有意义）。
	AppendExt *bool `json:"append_ext,omitempty"`
	// FetchBase: 懒加载 fetch 的 URL 前缀；空则由 OutDir 推导。
	FetchBase string `json:"fetch_base"`
	// KeyCase: 条目名风格（空/camel/lower_camel/snake/kebab）。
	KeyCase string `json:"key_case"`

	Sentinels Sentinels `json:"sentinels"`
	Hooks     Hooks     `json:"hooks"`
	Logging   Logging   `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`
	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Sentinels: 条目/段分隔符（空则使用内置默认）。
type Sentinels struct {
	Item    string `json:"item"`
	Section string `json:"section"`
}

// Hooks: 外部命令钩子（exec 钩子的原样 JSON Options；空表示未配置）。
type Hooks struct {
	ProcessSVG json.RawMessage `json:"process_svg"`
	ProcessJS  json.RawMessage `json:"process_js"`
}

// Logging: 日志等级与目录；目录为空时仅写 stderr。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader     string `json:"reader"`
	Normalizer string `json:"normalizer"`
	Encoder    string `json:"encoder"`
	Writer     string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader     json.RawMessage `json:"reader"`
	Normalizer json.RawMessage `json:"normalizer"`
	Encoder    json.RawMessage `json:"encoder"`
	Writer     json.RawMessage `json:"writer"`
}

// IsBundle / IsParam / IsCheckNew / IsAppendExt: 解引用布尔开关（nil 视为 false）。
func (c Config) IsBundle() bool    { return c.Bundle != nil && *c.Bundle }
func (c Config) IsParam() bool     { return c.Param != nil && *c.Param }
func (c Config) IsCheckNew() bool  { return c.CheckNew != nil && *c.CheckNew }
func (c Config) IsAppendExt() bool { return c.AppendExt != nil && *c.AppendExt }
