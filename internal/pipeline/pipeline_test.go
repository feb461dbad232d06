package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"svgcrush/internal/diag"
	"svgcrush/pkg/contract"
	asent "svgcrush/plugins/assembler/sentinel"
	eplain "svgcrush/plugins/encoder/plain"
	jsmod "svgcrush/plugins/emitter/jsmodule"
	nsvg "svgcrush/plugins/normalizer/svg"
	rfs "svgcrush/plugins/reader/filesystem"
	wfs "svgcrush/plugins/writer/filesystem"
)

const banner = "// This file is generated automatically. Do not modify.\n" +
	"// It contains SVG code for use in the application.\n"

// 桩件 ----------------------------------------------------
type encFunc func(ctx context.Context, corpus string, opts contract.EncodeOptions) (string, error)

func (f encFunc) Encode(ctx context.Context, corpus string, opts contract.EncodeOptions) (string, error) {
	return f(ctx, corpus, opts)
}

type hookFunc func(path, in string) (string, error)

func (f hookFunc) Apply(ctx context.Context, path, in string) (string, error) { return f(path, in) }

// fixture 在临时目录下准备输入与输出目录并构造真实组件。
type fixture struct {
	in, out string
	comp    Components
	set     Settings
}

func newFixture(t *testing.T, mode contract.EmitMode, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{in: filepath.Join(root, "icons"), out: filepath.Join(root, "dist")}
	if err := os.MkdirAll(f.in, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(f.in, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	enc, _ := eplain.New(nil)
	asm, _ := asent.New(nil)
	em, err := jsmod.New(contract.EmitOptions{Mode: mode, FuncName: "svg", SourceDir: "icons", FetchBase: "dist", SidecarExt: ".js"})
	if err != nil {
		t.Fatalf("emitter: %v", err)
	}
	mw, err := wfs.New(&wfs.Options{OutputDir: f.out})
	if err != nil {
		t.Fatal(err)
	}
	sw, err := wfs.New(&wfs.Options{OutputDir: f.out})
	if err != nil {
		t.Fatal(err)
	}
	f.comp = Components{
		Reader:        rfs.New(nil),
		Normalizer:    nsvg.New(nil),
		Encoder:       enc,
		Assembler:     asm,
		Emitter:       em,
		ModuleWriter:  mw,
		SidecarWriter: sw,
	}
	f.set = Settings{
		InDir:    f.in,
		OutFile:  filepath.Join(f.out, "svg.js"),
		ModuleID: "svg.js",
		Encode:   contract.EncodeOptions{Sentinels: contract.DefaultSentinels(), Reserved: []string{"svg"}},
	}
	return f
}

func (f *fixture) run(t *testing.T) error {
	t.Helper()
	logger := diag.NewLogger("t", "debug", t.TempDir())
	t.Cleanup(func() { _ = logger.Close() })
	return Run(context.Background(), f.comp, f.set, logger)
}

var twoFiles = map[string]string{
	"a.svg": `<svg version="1.1"><rect x="0.5" y="0.5"/></svg>`,
	"b.svg": `<svg id="x"><circle r="0.25"/></svg>`,
}

// UT-PIP-01: 两个文件的 bundle 输出逐字断言
func TestRunTwoFilesBundle(t *testing.T) {
	f := newFixture(t, contract.EmitBundle, twoFiles)
	if err := f.run(t); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, err := os.ReadFile(f.set.OutFile)
	if err != nil {
		t.Fatalf("读取输出失败: %v", err)
	}
	want := banner +
		"// Generated from SVG files in the icons folder.\n" +
		"let svg = k => {\n" +
		"  return {\n" +
		"    a: \"<svg><rect x=.5 y=\\\".5\\\"/></svg>\",\n" +
		"    b: \"<svg><circle r=\\\".25\\\"/></svg>\"\n" +
		"  }[k];\n" +
		"};\n"
	if string(got) != want {
		t.Fatalf("输出不符\nwant:\n%s\ngot:\n%s", want, got)
	}
	ents, _ := os.ReadDir(f.out)
	if len(ents) != 1 {
		t.Fatalf("bundle 模式只应写出模块文件, got %d", len(ents))
	}
}

// UT-PIP-02: lazy 模式写出两个旁路文件，模块只有一处 fetch
func TestRunLazySidecars(t *testing.T) {
	f := newFixture(t, contract.EmitLazy, twoFiles)
	if err := f.run(t); err != nil {
		t.Fatalf("run: %v", err)
	}
	for name, want := range map[string]string{
		"a.js": `"<svg><rect x=.5 y=\".5\"/></svg>"`,
		"b.js": `"<svg><circle r=\".25\"/></svg>"`,
	} {
		b, err := os.ReadFile(filepath.Join(f.out, name))
		if err != nil {
			t.Fatalf("旁路 %s 缺失: %v", name, err)
		}
		if string(b) != want {
			t.Fatalf("旁路 %s = %s, expected %s", name, b, want)
		}
	}
	src, err := os.ReadFile(f.set.OutFile)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(src), "fetch("); n != 1 {
		t.Fatalf("fetch 次数 %d", n)
	}
	if !strings.Contains(string(src), "fetch(`dist/${k}.js`)") {
		t.Fatalf("fetch 路径错误:\n%s", src)
	}
}

// UT-PIP-03: 错误 (a)(b)(c) 均不写出任何文件
func TestRunFailuresWriteNothing(t *testing.T) {
	cases := []struct {
		name  string
		files map[string]string
		enc   contract.Encoder
		want  error
	}{
		{"空语料", map[string]string{"readme.txt": "x"}, nil, contract.ErrEmptyCorpus},
		{"无内容", map[string]string{"a.svg": "<svg><g/>", "b.svg": "<svg/>"}, nil, contract.ErrNoContent},
		{"编码器契约", twoFiles, encFunc(func(ctx context.Context, corpus string, opts contract.EncodeOptions) (string, error) {
			return "no section here", nil
		}), contract.ErrEncoderContract},
		{"分隔符冲突", map[string]string{"a.svg": "<svg><text>•</text></svg>"}, nil, contract.ErrSentinelCollision},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, contract.EmitLazy, tc.files)
			if tc.enc != nil {
				f.comp.Encoder = tc.enc
			}
			err := f.run(t)
			if !errors.Is(err, tc.want) {
				t.Fatalf("期望 %v, got %v", tc.want, err)
			}
			if _, err := os.Stat(f.out); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("失败时不应创建输出目录: %v", err)
			}
		})
	}
}

// UT-PIP-04: 新鲜度检查
func TestRunCheckNew(t *testing.T) {
	f := newFixture(t, contract.EmitBundle, twoFiles)
	f.set.CheckNew = true
	// 输出不存在：正常生成
	if err := f.run(t); err != nil {
		t.Fatalf("run: %v", err)
	}
	// 输出比全部输入新：跳过，内容保持
	if err := os.WriteFile(f.set.OutFile, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(f.set.OutFile, future, future); err != nil {
		t.Fatal(err)
	}
	if err := f.run(t); err != nil {
		t.Fatalf("run: %v", err)
	}
	if b, _ := os.ReadFile(f.set.OutFile); string(b) != "old" {
		t.Fatalf("up-to-date 时不应重写: %s", b)
	}
	// 某个输入更新：重新生成
	later := future.Add(time.Minute)
	if err := os.Chtimes(filepath.Join(f.in, "b.svg"), later, later); err != nil {
		t.Fatal(err)
	}
	if err := f.run(t); err != nil {
		t.Fatalf("run: %v", err)
	}
	if b, _ := os.ReadFile(f.set.OutFile); string(b) == "old" {
		t.Fatalf("输入更新后应重新生成")
	}
}

// UT-PIP-05: 钩子在规范化之前 / 写出之前生效
func TestRunHooks(t *testing.T) {
	f := newFixture(t, contract.EmitBundle, map[string]string{"a.svg": `<svg><rect/></svg>`})
	var svgPath, jsPath string
	f.comp.ProcessSVG = hookFunc(func(path, in string) (string, error) {
		svgPath = path
		return strings.ReplaceAll(in, "rect", "circle"), nil
	})
	f.comp.ProcessJS = hookFunc(func(path, in string) (string, error) {
		jsPath = path
		return in + "export default svg;\n", nil
	})
	if err := f.run(t); err != nil {
		t.Fatalf("run: %v", err)
	}
	if svgPath != filepath.Join(f.in, "a.svg") || jsPath != f.set.OutFile {
		t.Fatalf("钩子路径: %q %q", svgPath, jsPath)
	}
	b, _ := os.ReadFile(f.set.OutFile)
	if !strings.Contains(string(b), `a: "<svg><circle/></svg>"`) || !strings.HasSuffix(string(b), "export default svg;\n") {
		t.Fatalf("钩子未生效:\n%s", b)
	}

	f = newFixture(t, contract.EmitBundle, map[string]string{"a.svg": `<svg/>`})
	boom := errors.New("boom")
	f.comp.ProcessJS = hookFunc(func(path, in string) (string, error) { return "", boom })
	if err := f.run(t); !errors.Is(err, boom) {
		t.Fatalf("钩子错误应上抛: %v", err)
	}
	if _, err := os.Stat(f.set.OutFile); err == nil {
		t.Fatalf("钩子失败不应写出模块")
	}
}

// UT-PIP-06: 大小写风格转换后的重名
func TestRunDuplicateAfterRecase(t *testing.T) {
	f := newFixture(t, contract.EmitBundle, map[string]string{
		"arrow-left.svg": `<svg/>`,
		"arrow_left.svg": `<svg/>`,
	})
	f.set.KeyCase = contract.KeyLowerCamel
	if err := f.run(t); !errors.Is(err, contract.ErrDuplicateItem) {
		t.Fatalf("期望重名错误, got %v", err)
	}
}

// UT-PIP-07: 组件缺失与取消
func TestRunSanityAndCancel(t *testing.T) {
	if err := Run(context.Background(), Components{}, Settings{}, nil); err == nil {
		t.Fatalf("缺少组件应失败")
	}
	f := newFixture(t, contract.EmitBundle, twoFiles)
	f.set.ModuleID = ""
	if err := f.run(t); err == nil {
		t.Fatalf("空模块标识应失败")
	}
	f = newFixture(t, contract.EmitLazy, twoFiles)
	f.comp.SidecarWriter = nil
	if err := f.run(t); err == nil {
		t.Fatalf("lazy 模式缺少旁路 Writer 应失败")
	}
	f = newFixture(t, contract.EmitBundle, twoFiles)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Run(ctx, f.comp, f.set, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("期望取消, got %v", err)
	}
}
