package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"svgcrush/internal/diag"
	"svgcrush/internal/pipeline"
	"svgcrush/pkg/contract"
	"svgcrush/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.InDir) == "" {
		return errors.New("config: in_dir empty")
	}
	out := strings.TrimSpace(cfg.OutFile)
	if out == "" {
		return errors.New("config: out_file empty")
	}
	if strings.HasSuffix(out, "/") || strings.HasSuffix(out, "\\") {
		return fmt.Errorf("config: out_file %q is a directory", out)
	}
	if !contract.IsJSIdentifier(cfg.FuncName) || contract.IsReservedWord(cfg.FuncName) {
		return fmt.Errorf("config: func_name %q is not a usable JS identifier", cfg.FuncName)
	}
	// 生成函数的参数名
	if cfg.FuncName == "k" || cfg.FuncName == "el" {
		return fmt.Errorf("config: func_name %q collides with a generated parameter", cfg.FuncName)
	}
	if !contract.KeyCase(cfg.KeyCase).Valid() {
		return fmt.Errorf("config: key_case %q unknown (camel|lower_camel|snake|kebab)", cfg.KeyCase)
	}
	if err := sentinels(cfg).Validate(); err != nil {
		return fmt.Errorf("config: sentinels: %w", err)
	}
	if !diag.ValidLevel(cfg.Logging.Level) {
		return fmt.Errorf("config: logging.level %q unknown", cfg.Logging.Level)
	}
	d := Defaults()
	if name := effName(cfg.Components.Reader, d.Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered", name)
	}
	if name := effName(cfg.Components.Normalizer, d.Components.Normalizer); registry.Normalizer[name] == nil {
		return fmt.Errorf("config: normalizer %q not registered", name)
	}
	if name := effName(cfg.Components.Encoder, d.Components.Encoder); registry.Encoder[name] == nil {
		return fmt.Errorf("config: encoder %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, d.Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	return nil
}

// Resolve 填充派生默认值：out_dir 缺省为 in_dir；fetch_base 缺省为 out_dir（统一为正斜杠）。
func Resolve(cfg Config) Config {
	if strings.TrimSpace(cfg.OutDir) == "" {
		cfg.OutDir = cfg.InDir
	}
	if strings.TrimSpace(cfg.FetchBase) == "" {
		cfg.FetchBase = filepath.ToSlash(cfg.OutDir)
	}
	return cfg
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON，并按工件类型注入 writer 的 output_dir。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	cfg = Resolve(cfg)

	d := Defaults()
	rn := effName(cfg.Components.Reader, d.Components.Reader)
	nn := effName(cfg.Components.Normalizer, d.Components.Normalizer)
	en := effName(cfg.Components.Encoder, d.Components.Encoder)
	wn := effName(cfg.Components.Writer, d.Components.Writer)

	var comp pipeline.Components
	var err error
	if comp.Reader, err = registry.Reader[rn](cfg.Options.Reader); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("reader %s: %w", rn, err)
	}
	if comp.Normalizer, err = registry.Normalizer[nn](cfg.Options.Normalizer); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("normalizer %s: %w", nn, err)
	}
	if comp.Encoder, err = registry.Encoder[en](cfg.Options.Encoder); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("encoder %s: %w", en, err)
	}
	if comp.Assembler, err = registry.Assembler["sentinel"](nil); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	mode := contract.EmitLazy
	if cfg.IsBundle() {
		mode = contract.EmitBundle
	}
	ext := ".js"
	if cfg.IsAppendExt() {
		ext = ".svg.js"
	}
	if comp.Emitter, err = registry.Emitter[mode](contract.EmitOptions{
		Mode:       mode,
		Param:      cfg.IsParam(),
		FuncName:   cfg.FuncName,
		SourceDir:  cfg.InDir,
		FetchBase:  cfg.FetchBase,
		SidecarExt: ext,
	}); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("emitter %s: %w", mode, err)
	}

	// 模块 Writer 以 out_file 所在目录为根；旁路 Writer 以 out_dir 为根（仅懒加载模式需要）。
	moduleDir := filepath.Dir(cfg.OutFile)
	raw, err := withOutputDir(cfg.Options.Writer, moduleDir)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	if comp.ModuleWriter, err = registry.Writer[wn](raw); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer %s: %w", wn, err)
	}
	if mode == contract.EmitLazy {
		raw, err := withOutputDir(cfg.Options.Writer, cfg.OutDir)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, err
		}
		if comp.SidecarWriter, err = registry.Writer[wn](raw); err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer %s: %w", wn, err)
		}
	}

	if comp.ProcessSVG, err = registry.Hook["exec"](cfg.Hooks.ProcessSVG); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("hooks.process_svg: %w", err)
	}
	if comp.ProcessJS, err = registry.Hook["exec"](cfg.Hooks.ProcessJS); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("hooks.process_js: %w", err)
	}

	full, err := json.Marshal(cfg)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	set := pipeline.Settings{
		InDir:    cfg.InDir,
		OutFile:  cfg.OutFile,
		ModuleID: contract.ArtifactID(filepath.Base(cfg.OutFile)),
		CheckNew: cfg.IsCheckNew(),
		KeyCase:  contract.KeyCase(cfg.KeyCase),
		Encode: contract.EncodeOptions{
			Sentinels: sentinels(cfg),
			Reserved:  []string{cfg.FuncName},
			Config:    full,
		},
	}
	return comp, set, nil
}

// withOutputDir 在 writer 的原样 Options 上覆盖 output_dir（其余键原样保留，仍由工厂严格校验）。
func withOutputDir(raw json.RawMessage, dir string) (json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("options.writer: %w", err)
		}
	}
	v, err := json.Marshal(dir)
	if err != nil {
		return nil, err
	}
	m["output_dir"] = v
	return json.Marshal(m)
}

func sentinels(cfg Config) contract.Sentinels {
	s := contract.DefaultSentinels()
	if cfg.Sentinels.Item != "" {
		s.Item = cfg.Sentinels.Item
	}
	if cfg.Sentinels.Section != "" {
		s.Section = cfg.Sentinels.Section
	}
	return s
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
