package testdata

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cfgpkg "svgcrush/internal/config"
	"svgcrush/internal/pipeline"
	"svgcrush/pkg/contract"
)

// svg/ 下三个图标的规范形式（README.txt 不是 SVG，被忽略）。
var canonical = map[string]string{
	"arrow-left":  `<svg viewBox="0 0 24 24"><path d="M .5 12 L 12 .5" stroke-width=".75"/></svg>`,
	"arrow-right": `<svg viewBox="0 0 24 24"><path d="M 23.5 12 L 12 .5" stroke-width=".75"/></svg>`,
	"dot":         `<svg width=8><title>café</title><circle r=".25"/></svg>`,
}

func boolp(b bool) *bool { return &b }

// baseConfig 构造可运行的最小配置：输入为 ./svg，输出到 outDir。
func baseConfig(outDir string) cfgpkg.Config {
	cfg := cfgpkg.Merge(cfgpkg.Defaults(), cfgpkg.DefaultTemplateConfig())
	cfg.InDir = "svg"
	cfg.OutDir = filepath.Join(outDir, "icons")
	cfg.OutFile = filepath.Join(outDir, "svg.js")
	cfg.Logging.Level = "error"
	cfg.Options.Writer = json.RawMessage(`{"atomic":false,"flat":true,"perm_file":0,"perm_dir":0,"buf_size":65536}`)
	return cfg
}

func runPipeline(t *testing.T, cfg cfgpkg.Config) error {
	t.Helper()
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return pipeline.Run(context.Background(), comp, set, nil)
}

func jsString(t *testing.T, s string) string {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	// json.Marshal 会转义 <>&，与 plain 编码器的输出保持一致需还原
	r := strings.NewReplacer(`\u003c`, "<", `\u003e`, ">", `\u0026`, "&")
	return r.Replace(string(b))
}

func TestE2EBundlePlain(t *testing.T) {
	out := t.TempDir()
	cfg := baseConfig(out)
	cfg.Bundle = boolp(true)
	cfg.KeyCase = "lower_camel"
	cfg.Components.Encoder = "plain"
	cfg.Options.Encoder = nil
	if err := runPipeline(t, cfg); err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	got, err := os.ReadFile(cfg.OutFile)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "// This file is generated automatically. Do not modify.\n" +
		"// It contains SVG code for use in the application.\n" +
		"// Generated from SVG files in the svg folder.\n" +
		"let svg = k => {\n" +
		"  return {\n" +
		"    arrowLeft: " + jsString(t, canonical["arrow-left"]) + ",\n" +
		"    arrowRight: " + jsString(t, canonical["arrow-right"]) + ",\n" +
		"    dot: " + jsString(t, canonical["dot"]) + "\n" +
		"  }[k];\n" +
		"};\n"
	if string(got) != want {
		t.Fatalf("output mismatch\nwant:\n%s\ngot:\n%s", want, got)
	}
	// bundle 模式不写旁路目录
	if _, err := os.Stat(cfg.OutDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("bundle 模式不应创建旁路目录: %v", err)
	}
}

func TestE2ELazyDedupe(t *testing.T) {
	out := t.TempDir()
	cfg := baseConfig(out)
	cfg.AppendExt = boolp(true)
	cfg.FetchBase = "/static/icons"
	if err := runPipeline(t, cfg); err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	src, err := os.ReadFile(cfg.OutFile)
	if err != nil {
		t.Fatalf("read module: %v", err)
	}
	mod := string(src)
	if !strings.Contains(mod, "let svg = (k, el") {
		t.Fatalf("懒加载函数签名错误:\n%s", mod)
	}
	if n := strings.Count(mod, "fetch(`/static/icons/${k}.svg.js`)"); n != 1 {
		t.Fatalf("期望恰好一个 fetch，得到 %d:\n%s", n, mod)
	}
	for name := range canonical {
		b, err := os.ReadFile(filepath.Join(cfg.OutDir, name+".svg.js"))
		if err != nil {
			t.Fatalf("旁路文件缺失 %s: %v", name, err)
		}
		if len(b) == 0 {
			t.Fatalf("旁路文件为空: %s", name)
		}
	}
	entries, _ := os.ReadDir(cfg.OutDir)
	if len(entries) != len(canonical) {
		t.Fatalf("旁路文件数 %d，期望 %d", len(entries), len(canonical))
	}
}

func TestE2ECheckNew(t *testing.T) {
	out := t.TempDir()
	cfg := baseConfig(out)
	cfg.Bundle = boolp(true)
	cfg.CheckNew = boolp(true)
	if err := runPipeline(t, cfg); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// 输出比全部输入新：跳过，内容保持不变
	if err := os.WriteFile(cfg.OutFile, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(cfg.OutFile, future, future); err != nil {
		t.Fatal(err)
	}
	if err := runPipeline(t, cfg); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if b, _ := os.ReadFile(cfg.OutFile); string(b) != "stale" {
		t.Fatalf("已是最新时不应重写输出")
	}

	// 输出比输入旧：重新生成
	past := time.Unix(0, 0)
	if err := os.Chtimes(cfg.OutFile, past, past); err != nil {
		t.Fatal(err)
	}
	if err := runPipeline(t, cfg); err != nil {
		t.Fatalf("third run: %v", err)
	}
	if b, _ := os.ReadFile(cfg.OutFile); !strings.HasPrefix(string(b), "// This file is generated") {
		t.Fatalf("过期输出未重新生成: %q", b)
	}
}

func TestE2EEmptyCorpus(t *testing.T) {
	out := t.TempDir()
	cfg := baseConfig(out)
	cfg.InDir = t.TempDir()
	err := runPipeline(t, cfg)
	if !errors.Is(err, contract.ErrEmptyCorpus) {
		t.Fatalf("expect ErrEmptyCorpus, got %v", err)
	}
	if _, err := os.Stat(cfg.OutFile); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("空语料不应写出模块")
	}
}

func TestE2ESentinelCollision(t *testing.T) {
	out := t.TempDir()
	cfg := baseConfig(out)
	cfg.Bundle = boolp(true)
	// "svg" 出现在每个条目中，作为分隔符必然冲突
	cfg.Sentinels = cfgpkg.Sentinels{Item: "svg", Section: "★"}
	err := runPipeline(t, cfg)
	if !errors.Is(err, contract.ErrSentinelCollision) {
		t.Fatalf("expect ErrSentinelCollision, got %v", err)
	}
	if _, err := os.Stat(cfg.OutFile); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("分隔符冲突不应写出模块")
	}
}
