package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	cfgpkg "svgcrush/internal/config"
	"svgcrush/internal/diag"
	"svgcrush/internal/pipeline"
)

var pipelineRun = pipeline.Run

// 默认配置文件名（工作目录下存在时自动读取）。
const defaultConfigFile = "svgcrush.json"

// 退出码：0 成功（含已是最新）；1 运行期错误；3 配置/装配错误。
const (
	exitOK     = 0
	exitRun    = 1
	exitConfig = 3
)

// 简化的 CLI：单一动作，把 in_dir 下的 SVG 生成为一个 JS 模块。
// 旗标覆盖 JSON/ENV；布尔旗标仅在显式出现时覆盖。
func main() {
	os.Exit(run())
}

func run() int {
	start := time.Now()
	corrID := uuid.NewString()
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")
	// 先用默认级别占位，解析/合并配置后按最终 level 与 dir 重建
	logger := diag.NewLogger(corrID, "info", "")
	defer func() { _ = logger.Close() }()

	var (
		flagConfig    string
		flagInDir     string
		flagOutDir    string
		flagOutFile   string
		flagFuncName  string
		flagKeyCase   string
		flagFetchBase string
		flagBundle    bool
		flagParam     bool
		flagCheckNew  bool
		flagAppendExt bool
		flagInitDir   string
		flagStatus    bool
	)
	flag.StringVar(&flagConfig, "config", "", "配置文件路径（JSON）；缺省读取 ./"+defaultConfigFile+"（若存在）")
	flag.StringVar(&flagInDir, "in-dir", "", "SVG 输入目录（覆盖配置）")
	flag.StringVar(&flagOutDir, "out-dir", "", "懒加载旁路文件目录；缺省同 in-dir")
	flag.StringVar(&flagOutFile, "out-file", "", "生成模块路径（覆盖配置）")
	flag.StringVar(&flagFuncName, "func-name", "", "生成模块中的函数名（覆盖配置）")
	flag.StringVar(&flagKeyCase, "key-case", "", "条目名风格：camel|lower_camel|snake|kebab（覆盖配置）")
	flag.StringVar(&flagFetchBase, "fetch-base", "", "懒加载 fetch 的 URL 前缀；缺省由 out-dir 推导")
	flag.BoolVar(&flagBundle, "bundle", false, "全部条目内联进模块（否则懒加载）")
	flag.BoolVar(&flagParam, "param", false, "头部绑定改为带默认值的函数参数")
	flag.BoolVar(&flagCheckNew, "check-new", false, "输出比全部输入新时跳过整次运行")
	flag.BoolVar(&flagAppendExt, "append-ext", false, "旁路文件使用 .svg.js 扩展名")
	flag.StringVar(&flagInitDir, "init-config", "", "在指定目录生成默认配置 "+defaultConfigFile+" 和 .env 模板（若已存在则跳过，不覆盖）；不带值时默认当前目录")
	flag.BoolVar(&flagStatus, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 逐行输出")
	normalizeInitArg()
	flag.Parse()

	// 位置参数：至多一个，等价于 --in-dir
	if args := flag.Args(); len(args) > 1 {
		fatalf("多余的位置参数: %v", args[1:])
		return exitConfig
	} else if len(args) == 1 && flagInDir == "" {
		flagInDir = args[0]
	}

	// --init-config: 生成模板并退出
	if initDir := strings.TrimSpace(flagInitDir); initDir != "" {
		if err := os.MkdirAll(initDir, 0o755); err != nil {
			fatalf("生成默认配置失败: %v", err)
			logger.Error("cli", string(diag.Classify(err)), "first error", &start)
			return exitConfig
		}
		if err := writeConfig(filepath.Join(initDir, defaultConfigFile), cfgpkg.DefaultTemplateConfig()); err != nil {
			fatalf("生成默认配置失败: %v", err)
			logger.Error("cli", string(diag.Classify(err)), "first error", &start)
			return exitConfig
		}
		if err := writeDotEnv(filepath.Join(initDir, ".env")); err != nil {
			fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
		}
		return exitOK
	}

	// JSON 配置（文件或 ENV: SVGCRUSH_CONFIG_JSON）
	var cfgJSON []byte
	if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); s != "" {
		cfgJSON = []byte(s)
	}
	if flagConfig == "" {
		flagConfig = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	if flagConfig == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			flagConfig = defaultConfigFile
		}
	}

	cfg := cfgpkg.Defaults()
	if flagConfig != "" || len(cfgJSON) > 0 {
		base, err := cfgpkg.LoadJSON(flagConfig, cfgJSON)
		if err != nil {
			fatalf("配置解析失败: %v", err)
			logger.Error("cli", string(diag.Classify(err)), "first error", &start)
			return exitConfig
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		fatalf("环境变量解析失败: %v", err)
		logger.Error("cli", string(diag.Classify(err)), "first error", &start)
		return exitConfig
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	// CLI 覆盖：字符串空值视为未设置；布尔仅在显式出现时覆盖
	overCLI := cfgpkg.Config{
		InDir:     flagInDir,
		OutDir:    flagOutDir,
		OutFile:   flagOutFile,
		FuncName:  flagFuncName,
		KeyCase:   flagKeyCase,
		FetchBase: flagFetchBase,
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bundle":
			overCLI.Bundle = boolPtr(flagBundle)
		case "param":
			overCLI.Param = boolPtr(flagParam)
		case "check-new":
			overCLI.CheckNew = boolPtr(flagCheckNew)
		case "append-ext":
			overCLI.AppendExt = boolPtr(flagAppendExt)
		}
	})
	cfg = cfgpkg.Merge(cfg, overCLI)

	if err := cfgpkg.Validate(cfg); err != nil {
		fatalf("配置校验失败: %v", err)
		_ = dumpConfig(cfg)
		logger.Error("cli", string(diag.Classify(err)), "first error", &start)
		return exitConfig
	}

	// 使用最终配置中的日志级别与目录重建 logger
	_ = logger.Close()
	logger = diag.NewLogger(corrID, strings.TrimSpace(cfg.Logging.Level), strings.TrimSpace(cfg.Logging.Dir))

	if err := preflightCheckOutputDir(cfg); err != nil {
		fatalf("输出目录不可写或无法创建: %v", err)
		logger.Error("cli", string(diag.Classify(err)), "first error", &start)
		return exitConfig
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fatalf("装配失败: %v", err)
		logger.Error("cli", string(diag.Classify(err)), "first error", &start)
		return exitConfig
	}

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	term := diag.NewTerminal(os.Stderr, flagStatus)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)
	mode := "lazy"
	if cfg.IsBundle() {
		mode = "bundle"
	}
	term.RunStart(cfg.InDir, mode)

	resolved := cfgpkg.Resolve(cfg)
	logger.DebugKV("config", "effective", "", map[string]string{
		"in_dir":     resolved.InDir,
		"out_dir":    resolved.OutDir,
		"out_file":   resolved.OutFile,
		"mode":       mode,
		"func_name":  resolved.FuncName,
		"fetch_base": resolved.FetchBase,
		"key_case":   resolved.KeyCase,
		"reader":     resolved.Components.Reader,
		"normalizer": resolved.Components.Normalizer,
		"encoder":    resolved.Components.Encoder,
		"writer":     resolved.Components.Writer,
	})

	// Ctrl-C 取消外部命令与后续阶段
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	t := logger.Start("pipeline", "run")
	if err := pipelineRun(ctx, comp, set, logger); err != nil {
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, "first error", &start)
		diag.IncOp("pipeline", "finish", "error")
		if code != string(diag.CodeUnknown) {
			diag.IncError("pipeline", code)
		}
		if !errors.Is(err, context.Canceled) {
			fatalf("运行失败: %v", err)
		}
		term.RunFinish(false, time.Since(start))
		dumpMetrics(logger)
		return exitRun
	}
	t.Finish("run", 0)
	diag.IncOp("pipeline", "finish", "success")
	diag.ObserveDuration("pipeline", "finish", time.Since(start).Milliseconds())
	term.RunFinish(true, time.Since(start))
	dumpMetrics(logger)
	return exitOK
}

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

// fatalf: 致命错误统一以 🛑 标记打印到 stderr。
func fatalf(format string, a ...any) { fprintf(os.Stderr, "🛑 "+format+"\n", a...) }

func boolPtr(b bool) *bool { return &b }

// dumpMetrics: debug 级别下输出进程内指标快照。
func dumpMetrics(logger *diag.Logger) {
	snap := diag.Snapshot()
	if len(snap) == 0 {
		return
	}
	kv := make(map[string]string, len(snap))
	for k, v := range snap {
		kv[k] = fmt.Sprintf("%d", v)
	}
	logger.DebugKV("metrics", "snapshot", "", kv)
}

func dumpConfig(c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, _ = os.Stderr.Write(append([]byte("有效配置:\n"), b...))
	_, _ = os.Stderr.Write([]byte("\n"))
	return nil
}

func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	// 不覆盖已存在文件
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return err
	}
	_, _ = f.Write([]byte("\n"))
	return nil
}

// loadDotEnv 读取简单的 .env 文件格式并注入进程环境。
// 规则：
// - 忽略不存在的文件；无法读取时返回错误（但调用处可忽略）。
// - 跳过空行与以 # 开头的行；支持可选的前缀 "export "。
// - 仅按首个 '=' 分割；key 与 value 去首尾空白。
// - 若 value 被成对的单/双引号包裹，则去除外层引号；双引号内常见转义 \n/\t/\\/\" 作最小处理。
// - 不覆盖已存在的环境变量（保持系统/调用者优先）。
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := unquoteEnv(strings.TrimSpace(line[eq+1:]))
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

func unquoteEnv(val string) string {
	if len(val) < 2 {
		return val
	}
	q := val[0]
	if (q != '\'' && q != '"') || val[len(val)-1] != q {
		return val
	}
	val = val[1 : len(val)-1]
	if q == '"' {
		val = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r", `\"`, `"`, `\\`, `\`).Replace(val)
	}
	return val
}

// normalizeInitArg: 允许 --init-config 在未提供路径值时采用默认值当前目录 "."。
// 兼容以下形式：
//
//	--init-config                => 等价于 --init-config .
//	--init-config=out
//	--init-config out
func normalizeInitArg() {
	args := os.Args
	if len(args) <= 1 {
		return
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0])
	for i := 1; i < len(args); i++ {
		a := args[i]
		out = append(out, a)
		if a == "--init-config" || a == "-init-config" {
			if i == len(args)-1 || strings.HasPrefix(args[i+1], "-") {
				out = append(out, ".")
			}
		}
	}
	os.Args = out
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
func writeDotEnv(path string) error {
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		return nil
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	p := cfgpkg.EnvPrefix
	var b strings.Builder
	b.WriteString("# svgcrush .env 模板（由 --init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > JSON\n")
	b.WriteString("# 空值表示未设置。\n\n")

	b.WriteString("# 配置来源（可二选一）\n")
	for _, k := range []string{"CONFIG_FILE", "CONFIG_JSON"} {
		b.WriteString(p + k + "=\n")
	}
	b.WriteString("\n# 运行参数覆盖\n")
	for _, k := range []string{"IN_DIR", "OUT_DIR", "OUT_FILE", "FUNC_NAME", "FETCH_BASE", "KEY_CASE",
		"BUNDLE", "PARAM", "CHECK_NEW", "APPEND_EXT", "SENTINELS_ITEM", "SENTINELS_SECTION",
		"LOGGING_LEVEL", "LOGGING_DIR"} {
		b.WriteString(p + k + "=\n")
	}
	b.WriteString("\n# 外部命令钩子（命令行）\n")
	for _, k := range []string{"HOOKS_PROCESS_SVG", "HOOKS_PROCESS_JS"} {
		b.WriteString(p + k + "=\n")
	}
	b.WriteString("\n# 组件选择与原样 JSON 选项\n")
	for _, k := range []string{"READER", "NORMALIZER", "ENCODER", "WRITER"} {
		b.WriteString(p + "COMPONENTS_" + k + "=\n")
	}
	for _, k := range []string{"READER", "NORMALIZER", "ENCODER", "WRITER"} {
		b.WriteString(p + "OPTIONS_" + k + "_JSON=\n")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}

// preflightCheckOutputDir: 当 Writer 使用文件系统实现(fs)时，启动前检查输出目录可写性。
// 规则：
// - 检查模块目录（out_file 所在目录）；懒加载模式另检查 out_dir。
// - 目录已存在：尝试创建并删除临时文件。
// - 目录不存在：向上找到最近的已存在祖先目录，尝试在其中创建并删除临时目录。
// 检查过程不在磁盘上留下任何文件。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	name := strings.TrimSpace(cfg.Components.Writer)
	if name == "" {
		name = cfgpkg.Defaults().Components.Writer
	}
	if name != "fs" {
		return nil
	}
	r := cfgpkg.Resolve(cfg)
	dirs := []string{filepath.Dir(r.OutFile)}
	if !r.IsBundle() {
		dirs = append(dirs, r.OutDir)
	}
	for _, d := range dirs {
		if err := checkWritable(d); err != nil {
			return err
		}
	}
	return nil
}

func checkWritable(dir string) error {
	st, err := os.Stat(dir)
	switch {
	case err == nil && st.IsDir():
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		n := f.Name()
		_ = f.Close()
		_ = os.Remove(n)
		return nil
	case err == nil:
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	case !os.IsNotExist(err):
		return err
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return fmt.Errorf("无法确定父目录: %s", dir)
	}
	pst, err := os.Stat(parent)
	if err != nil {
		if os.IsNotExist(err) {
			return checkWritable(parent)
		}
		return err
	}
	if !pst.IsDir() {
		return fmt.Errorf("父路径不是目录: %s", parent)
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	_ = os.RemoveAll(tmpd)
	return nil
}
