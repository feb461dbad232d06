package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"svgcrush/pkg/contract"
)

// EnvPrefix: 环境变量覆盖前缀。
const EnvPrefix = "SVGCRUSH_"

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：InDir 不设默认（必须由 JSON/ENV/CLI 提供）。
func Defaults() Config {
	s := contract.DefaultSentinels()
	return Config{
		OutFile:   "svg.js",
		FuncName:  "svg",
		Sentinels: Sentinels{Item: s.Item, Section: s.Section},
		Logging:   Logging{Level: "info"},
		Components: Components{
			Reader:     "fs",
			Normalizer: "svg",
			Encoder:    "dedupe",
			Writer:     "fs",
		},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。空字符串与 nil 开关视为未设置。
func Merge(base, over Config) Config {
	out := base
	setStr(&out.InDir, over.InDir)
	setStr(&out.OutDir, over.OutDir)
	setStr(&out.OutFile, over.OutFile)
	setStr(&out.FuncName, over.FuncName)
	setStr(&out.FetchBase, over.FetchBase)
	setStr(&out.KeyCase, over.KeyCase)
	setBool(&out.Bundle, over.Bundle)
	setBool(&out.Param, over.Param)
	setBool(&out.CheckNew, over.CheckNew)
	setBool(&out.AppendExt, over.AppendExt)

	// 分隔符不做 TrimSpace：空白本身可能就是分隔符。
	if over.Sentinels.Item != "" {
		out.Sentinels.Item = over.Sentinels.Item
	}
	if over.Sentinels.Section != "" {
		out.Sentinels.Section = over.Sentinels.Section
	}

	if len(over.Hooks.ProcessSVG) > 0 {
		out.Hooks.ProcessSVG = cloneRaw(over.Hooks.ProcessSVG)
	}
	if len(over.Hooks.ProcessJS) > 0 {
		out.Hooks.ProcessJS = cloneRaw(over.Hooks.ProcessJS)
	}

	setStr(&out.Logging.Level, over.Logging.Level)
	setStr(&out.Logging.Dir, over.Logging.Dir)

	// 组件名（空不覆盖）
	setStr(&out.Components.Reader, over.Components.Reader)
	setStr(&out.Components.Normalizer, over.Components.Normalizer)
	setStr(&out.Components.Encoder, over.Components.Encoder)
	setStr(&out.Components.Writer, over.Components.Writer)

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Normalizer) > 0 {
		out.Options.Normalizer = cloneRaw(over.Options.Normalizer)
	}
	if len(over.Options.Encoder) > 0 {
		out.Options.Encoder = cloneRaw(over.Options.Encoder)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 SVGCRUSH_；集合之外的键忽略（其中包括传给外部命令的 SVGCRUSH_CONFIG / SVGCRUSH_FILE 等）。
// 支持：IN_DIR, OUT_DIR, OUT_FILE, FUNC_NAME, FETCH_BASE, KEY_CASE,
// BUNDLE, PARAM, CHECK_NEW, APPEND_EXT（布尔：1/0/true/false），
// SENTINELS_ITEM, SENTINELS_SECTION, LOGGING_LEVEL, LOGGING_DIR,
// HOOKS_PROCESS_SVG / HOOKS_PROCESS_JS（命令行），COMPONENTS_*，OPTIONS_*_JSON（原样 JSON）。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[:eq]
		val := kv[eq+1:]
		nk := strings.TrimPrefix(key, EnvPrefix)
		var err error
		switch nk {
		case "IN_DIR":
			over.InDir = strings.TrimSpace(val)
		case "OUT_DIR":
			over.OutDir = strings.TrimSpace(val)
		case "OUT_FILE":
			over.OutFile = strings.TrimSpace(val)
		case "FUNC_NAME":
			over.FuncName = strings.TrimSpace(val)
		case "FETCH_BASE":
			over.FetchBase = strings.TrimSpace(val)
		case "KEY_CASE":
			over.KeyCase = strings.TrimSpace(val)
		case "BUNDLE":
			over.Bundle, err = parseBool(key, val)
		case "PARAM":
			over.Param, err = parseBool(key, val)
		case "CHECK_NEW":
			over.CheckNew, err = parseBool(key, val)
		case "APPEND_EXT":
			over.AppendExt, err = parseBool(key, val)
		case "SENTINELS_ITEM":
			over.Sentinels.Item = val
		case "SENTINELS_SECTION":
			over.Sentinels.Section = val
		case "LOGGING_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "LOGGING_DIR":
			over.Logging.Dir = strings.TrimSpace(val)
		case "HOOKS_PROCESS_SVG":
			over.Hooks.ProcessSVG, err = commandJSON(val)
		case "HOOKS_PROCESS_JS":
			over.Hooks.ProcessJS, err = commandJSON(val)
		case "COMPONENTS_READER":
			over.Components.Reader = strings.TrimSpace(val)
		case "COMPONENTS_NORMALIZER":
			over.Components.Normalizer = strings.TrimSpace(val)
		case "COMPONENTS_ENCODER":
			over.Components.Encoder = strings.TrimSpace(val)
		case "COMPONENTS_WRITER":
			over.Components.Writer = strings.TrimSpace(val)
		case "OPTIONS_READER_JSON":
			over.Options.Reader, err = rawJSON(key, val)
		case "OPTIONS_NORMALIZER_JSON":
			over.Options.Normalizer, err = rawJSON(key, val)
		case "OPTIONS_ENCODER_JSON":
			over.Options.Encoder, err = rawJSON(key, val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer, err = rawJSON(key, val)
		}
		if err != nil {
			return Config{}, err
		}
	}
	return over, nil
}

// parseBool: 空值视为未设置。
func parseBool(key, val string) (*bool, error) {
	v := strings.TrimSpace(val)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid bool %q", key, val)
	}
	return &b, nil
}

// rawJSON: 原样 JSON；空值视为未设置，避免清空 config.json 中的配置。
func rawJSON(key, val string) (json.RawMessage, error) {
	v := strings.TrimSpace(val)
	if v == "" {
		return nil, nil
	}
	if !json.Valid([]byte(v)) {
		return nil, fmt.Errorf("%s: invalid JSON", key)
	}
	return json.RawMessage(v), nil
}

// commandJSON 把命令行包装为 exec 钩子的 Options。
func commandJSON(val string) (json.RawMessage, error) {
	v := strings.TrimSpace(val)
	if v == "" {
		return nil, nil
	}
	return json.Marshal(map[string]string{"command": v})
}

func setStr(dst *string, v string) {
	if t := strings.TrimSpace(v); t != "" {
		*dst = t
	}
}

func setBool(dst **bool, v *bool) {
	if v != nil {
		b := *v
		*dst = &b
	}
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
