package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"svgcrush/internal/diag"
	"svgcrush/pkg/contract"
)

// - 严格顺序：读入 → 钩子 → 规范化 → 装配(编码) → 生成 → 钩子 → 写旁路 → 写模块；组件均为同步实现。
// - 首错中止：任一阶段出错即返回，不重试。
// - 模块文件最后写出；(a) 无内容 (b) 空语料 (c) 编码器契约 三类错误下不会写出任何文件。
// - 旁路文件逐个原子写入，但作为整体不是原子的：写旁路途中失败时，已写出的旁路文件保留在磁盘上。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader     contract.Reader
	Normalizer contract.Normalizer
	Encoder    contract.Encoder
	Assembler  contract.Assembler
	Emitter    contract.Emitter
	// ModuleWriter 写生成模块（根为 out_file 所在目录）。
	ModuleWriter contract.Writer
	// SidecarWriter 写懒加载旁路文件（根为 out_dir）；bundle 模式可为空。
	SidecarWriter contract.Writer
	// ProcessSVG / ProcessJS 为可选钩子，nil 表示未配置。
	ProcessSVG contract.Hook
	ProcessJS  contract.Hook
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	InDir string
	// OutFile: 生成模块路径（用于新鲜度检查与钩子提示）。
	OutFile string
	// ModuleID: 生成模块相对 ModuleWriter 根的工件标识。
	ModuleID contract.ArtifactID
	// CheckNew: 输出已是最新时跳过整次运行。
	CheckNew bool
	KeyCase  contract.KeyCase
	Encode   contract.EncodeOptions
}

// Run 执行完整流水线。up-to-date 跳过时返回 nil。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) error {
	if err := sanity(comp, set); err != nil {
		return fmt.Errorf("sanity: %w", err)
	}

	if set.CheckNew {
		fresh, err := upToDate(ctx, comp.Reader, set.InDir, set.OutFile)
		if err != nil {
			fail(logger, "reader", "staleness check failed", "", err)
			return fmt.Errorf("staleness check: %w", err)
		}
		if fresh {
			logger.Info("pipeline", "up-to-date", map[string]string{"in_dir": set.InDir, "out_file": set.OutFile})
			if t := diag.GetTerminal(); t != nil {
				t.UpToDate(set.InDir, set.OutFile)
			}
			return nil
		}
	}

	items, err := load(ctx, comp, set, logger)
	if err != nil {
		return err
	}

	// 规范化
	ntimer := logger.Start("normalizer", "normalize")
	for i := range items {
		out, err := comp.Normalizer.Normalize(ctx, items[i].Name, items[i].Raw)
		if err != nil {
			fail(logger, "normalizer", "normalize failed", items[i].Name, err)
			return fmt.Errorf("normalizer normalize: %w", err)
		}
		items[i].Normalized = out
		logger.DebugKV("normalizer", "normalized", items[i].Name, map[string]string{
			"raw_bytes":  fmt.Sprint(len(items[i].Raw)),
			"norm_bytes": fmt.Sprint(len(out)),
		})
	}
	finish(ntimer, "normalizer", "normalize", len(items))

	// 装配（含编码）
	atimer := logger.Start("assembler", "assemble")
	asm, err := comp.Assembler.Assemble(ctx, items, comp.Encoder, set.Encode)
	if err != nil {
		fail(logger, "assembler", "assemble failed", "", err)
		return fmt.Errorf("assembler assemble: %w", err)
	}
	finish(atimer, "assembler", "assemble", len(asm.Items))

	// 生成
	etimer := logger.Start("emitter", "emit")
	mod, err := comp.Emitter.Emit(ctx, asm)
	if err != nil {
		fail(logger, "emitter", "emit failed", "", err)
		return fmt.Errorf("emitter emit: %w", err)
	}
	finish(etimer, "emitter", "emit", len(mod.Sidecars))

	if comp.ProcessJS != nil {
		htimer := logger.StartWith("hook", "process_js", set.OutFile)
		out, err := comp.ProcessJS.Apply(ctx, set.OutFile, mod.Source)
		if err != nil {
			fail(logger, "hook", "process_js failed", set.OutFile, err)
			return fmt.Errorf("hook process_js: %w", err)
		}
		mod.Source = out
		finish(htimer, "hook", "process_js", 1)
	}

	// 旁路先于模块写出；模块出现即代表本次输出完整。
	if len(mod.Sidecars) > 0 {
		if comp.SidecarWriter == nil {
			return errors.New("pipeline: sidecars emitted but no sidecar writer")
		}
		stimer := logger.Start("writer", "write_sidecars")
		for _, sc := range mod.Sidecars {
			if err := comp.SidecarWriter.Write(ctx, contract.ArtifactID(sc.Name), strings.NewReader(sc.Content)); err != nil {
				fail(logger, "writer", "write sidecar failed", sc.Name, err)
				return fmt.Errorf("writer write sidecar %s: %w", sc.Name, err)
			}
		}
		finish(stimer, "writer", "write_sidecars", len(mod.Sidecars))
	}

	wtimer := logger.StartWith("writer", "write_module", string(set.ModuleID))
	if err := comp.ModuleWriter.Write(ctx, set.ModuleID, strings.NewReader(mod.Source)); err != nil {
		fail(logger, "writer", "write module failed", string(set.ModuleID), err)
		return fmt.Errorf("writer write module: %w", err)
	}
	finish(wtimer, "writer", "write_module", 1)
	if t := diag.GetTerminal(); t != nil {
		t.ModuleWritten(set.OutFile, int64(len(mod.Source)), len(mod.Sidecars))
	}
	return nil
}

// load 按目录列举顺序读入全部条目；可选地对每个条目运行 process_svg 钩子。
func load(ctx context.Context, comp Components, set Settings, logger *diag.Logger) ([]contract.Item, error) {
	rtimer := logger.Start("reader", "iterate")
	var items []contract.Item
	seen := map[string]string{}
	err := comp.Reader.Iterate(ctx, set.InDir, func(src contract.Source, rc io.ReadCloser) error {
		b, rerr := io.ReadAll(rc)
		cerr := rc.Close()
		if rerr != nil {
			return fmt.Errorf("read %s: %w", src.Path, rerr)
		}
		if cerr != nil {
			return fmt.Errorf("close %s: %w", src.Path, cerr)
		}
		name, err := contract.ItemName(src.Path, set.KeyCase)
		if err != nil {
			return err
		}
		if prev, dup := seen[name]; dup {
			return fmt.Errorf("%w: %q from %s and %s", contract.ErrDuplicateItem, name, prev, src.Path)
		}
		seen[name] = src.Path
		raw := string(b)
		if t := diag.GetTerminal(); t != nil {
			t.ItemLoaded(src.Path, len(b))
		}
		if comp.ProcessSVG != nil {
			out, err := comp.ProcessSVG.Apply(ctx, src.Path, raw)
			if err != nil {
				return fmt.Errorf("hook process_svg: %w", err)
			}
			raw = out
		}
		items = append(items, contract.Item{Name: name, Source: src.Path, Raw: raw})
		return nil
	})
	if err != nil {
		fail(logger, "reader", "iterate failed", "", err)
		return nil, fmt.Errorf("reader iterate: %w", err)
	}
	finish(rtimer, "reader", "iterate", len(items))
	return items, nil
}

// fail 记录错误日志与指标。
func fail(logger *diag.Logger, comp, msg, item string, err error) {
	code := diag.Classify(err)
	logger.ErrorWithKV(comp, string(code), msg, nil, item, map[string]string{"err": err.Error()})
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
}

func finish(t *diag.Timer, comp, stage string, count int) {
	t.Finish(stage, int64(count))
	diag.IncOp(comp, "finish", "success")
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Normalizer == nil || c.Encoder == nil || c.Assembler == nil || c.Emitter == nil || c.ModuleWriter == nil {
		return errors.New("pipeline: missing components")
	}
	if strings.TrimSpace(s.InDir) == "" {
		return errors.New("pipeline: empty in_dir")
	}
	if s.ModuleID == "" {
		return errors.New("pipeline: empty module id")
	}
	return nil
}
