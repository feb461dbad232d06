package jsmodule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"svgcrush/pkg/contract"
)

// 来源横幅（每个生成文件的开头）。
const bannerFmt = `// This file is generated automatically. Do not modify.
// It contains SVG code for use in the application.
// Generated from SVG files in the %s folder.
`

// Emitter 按 Mode 选择输出形态；Param 决定头部绑定的位置。
type Emitter struct {
	opts contract.EmitOptions
}

// New 校验选项并创建 Emitter。
func New(opts contract.EmitOptions) (*Emitter, error) {
	switch opts.Mode {
	case contract.EmitBundle, contract.EmitLazy:
	default:
		return nil, fmt.Errorf("%w: emit mode %q", contract.ErrInvalidInput, opts.Mode)
	}
	if !contract.IsJSIdentifier(opts.FuncName) {
		return nil, fmt.Errorf("%w: func name %q is not a JS identifier", contract.ErrInvalidInput, opts.FuncName)
	}
	if opts.SidecarExt == "" {
		opts.SidecarExt = ".js"
	}
	return &Emitter{opts: opts}, nil
}

var _ contract.Emitter = (*Emitter)(nil)

// Emit 渲染模块源码；懒加载模式同时产出每个条目一个旁路文件。
func (e *Emitter) Emit(ctx context.Context, asm contract.Assembly) (contract.Module, error) {
	select {
	case <-ctx.Done():
		return contract.Module{}, ctx.Err()
	default:
	}
	params := []string{"k"}
	if e.opts.Mode == contract.EmitLazy {
		params = append(params, "el")
	}
	header := strings.TrimSpace(asm.Header)
	if e.opts.Param && header != "" {
		binds, err := parseBindings(header)
		if err != nil {
			return contract.Module{}, err
		}
		for _, b := range binds {
			if b.name == "k" || b.name == "el" {
				return contract.Module{}, fmt.Errorf("%w: binding %q shadows a parameter", contract.ErrHeaderShape, b.name)
			}
			params = append(params, b.param())
		}
		header = ""
	}

	var body strings.Builder
	if header != "" {
		body.WriteString("  " + header + "\n")
	}
	var mod contract.Module
	switch e.opts.Mode {
	case contract.EmitBundle:
		seen := make(map[string]struct{}, len(asm.Items))
		body.WriteString("  return {\n")
		for i, it := range asm.Items {
			if _, ok := seen[it.Name]; ok {
				return contract.Module{}, fmt.Errorf("%s: %w", it.Name, contract.ErrDuplicateItem)
			}
			seen[it.Name] = struct{}{}
			sep := ",\n"
			if i == len(asm.Items)-1 {
				sep = "\n"
			}
			body.WriteString("    " + objectKey(it.Name) + ": " + it.Encoded + sep)
		}
		body.WriteString("  }[k];\n")
	case contract.EmitLazy:
		url := "${k}" + templateEscape(e.opts.SidecarExt)
		if base := strings.TrimRight(strings.ReplaceAll(e.opts.FetchBase, "\\", "/"), "/"); base != "" {
			url = templateEscape(base) + "/" + url
		}
		body.WriteString("  return fetch(`" + url + "`).then(r => r.text()).then(c => el.innerHTML = eval(c));\n")
		seen := make(map[string]struct{}, len(asm.Items))
		for _, it := range asm.Items {
			name := it.Name + e.opts.SidecarExt
			if _, ok := seen[name]; ok {
				return contract.Module{}, fmt.Errorf("%s: %w", it.Name, contract.ErrDuplicateItem)
			}
			seen[name] = struct{}{}
			mod.Sidecars = append(mod.Sidecars, contract.Sidecar{Name: name, Content: it.Encoded})
		}
	}

	var src strings.Builder
	fmt.Fprintf(&src, bannerFmt, e.opts.SourceDir)
	src.WriteString("let " + e.opts.FuncName + " = ")
	if len(params) == 1 {
		src.WriteString(params[0])
	} else {
		src.WriteString("(" + strings.Join(params, ", ") + ")")
	}
	src.WriteString(" => {\n")
	src.WriteString(body.String())
	src.WriteString("};\n")
	mod.Source = src.String()
	return mod, nil
}

// objectKey: 合法标识符直接作键，否则输出 JSON 字符串。
func objectKey(name string) string {
	if contract.IsJSIdentifier(name) {
		return name
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(name)
	return strings.TrimSuffix(buf.String(), "\n")
}

// templateEscape 转义模板字面量中的特殊序列。
func templateEscape(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "`", "\\`", "${", "\\${")
	return r.Replace(s)
}
