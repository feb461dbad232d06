package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"svgcrush/pkg/contract"
)

// UT-DIAG-01: 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	defer w.Close()
	if err := w.WriteLine([]byte("first line that is very long")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := w.WriteLine([]byte("second")); err != nil {
		t.Fatalf("第二次写入失败: %v", err)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("应存在轮转文件, got %d", len(files))
	}
}

// 当前文件名与时间戳文件同时存在
func TestRotatingFileRotateFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 10)
	defer w.Close()
	for i := 0; i < 5; i++ {
		if err := w.WriteLine([]byte("xxxxxxxxxxxxxxxxxx")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	hasCurrent, hasRotated := false, false
	for _, e := range ents {
		if e.Name() == CurrentLogName {
			hasCurrent = true
		} else if strings.HasPrefix(e.Name(), "svgcrush-") && strings.HasSuffix(e.Name(), ".txt") {
			hasRotated = true
		}
	}
	if !hasCurrent || !hasRotated {
		t.Fatalf("expect both current and rotated files, got current=%v rotated=%v", hasCurrent, hasRotated)
	}
}

// 默认 maxBytes 与 rotate 在 f==nil 分支
func TestRotatingFileDefaultsAndRotateNoOpen(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 0)
	if w.maxBytes != 10*1024*1024 {
		t.Fatalf("默认上限错误: %d", w.maxBytes)
	}
	if err := w.WriteLine([]byte("a")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.Close()
	if err := w.rotate(); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	_ = w.Close()
}

// 归档数量有上限，最旧的先被删除
func TestRotatingFilePrunesArchives(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 8)
	defer w.Close()
	for i := 0; i < keepArchives+6; i++ {
		if err := w.WriteLine([]byte(fmt.Sprintf("line-%02d", i))); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	var archives []string
	for _, e := range ents {
		if e.Name() != CurrentLogName {
			archives = append(archives, e.Name())
		}
	}
	if len(archives) != keepArchives {
		t.Fatalf("归档数 %d，期望 %d: %v", len(archives), keepArchives, archives)
	}
	// 留下的是最新的归档
	b, err := os.ReadFile(filepath.Join(dir, archives[len(archives)-1]))
	if err != nil {
		t.Fatal(err)
	}
	if want := fmt.Sprintf("line-%02d\n", keepArchives+4); string(b) != want {
		t.Fatalf("最新归档内容 %q，期望 %q", b, want)
	}
}

// 重新打开时已有内容计入大小
func TestRotatingFileReopenCountsExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, CurrentLogName), []byte("0123456789\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := NewRotatingFile(dir, 12)
	defer w.Close()
	if err := w.WriteLine([]byte("abc")); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, CurrentLogName))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "abc\n" {
		t.Fatalf("已有内容未计入大小，当前文件 %q", b)
	}
}

// UT-DIAG-02: 指标计数与快照
func TestMetricsSnapshot(t *testing.T) {
	ResetMetrics()
	IncOp("writer", "finish", "success")
	IncOp("writer", "finish", "success")
	IncError("encoder", "protocol")
	ObserveDuration("pipeline", "finish", 5)
	ObserveDuration("pipeline", "finish", 7)
	s := Snapshot()
	if s["op_total{comp=writer,stage=finish,result=success}"] != 2 {
		t.Fatalf("op_total 错误: %v", s)
	}
	if s["error_total{comp=encoder,code=protocol}"] != 1 {
		t.Fatalf("error_total 错误: %v", s)
	}
	if s["op_duration_ms{comp=pipeline,stage=finish}"] != 12 {
		t.Fatalf("op_duration_ms 错误: %v", s)
	}
	s["x"] = 1
	if _, ok := Snapshot()["x"]; ok {
		t.Fatalf("快照应为拷贝")
	}
	ResetMetrics()
	if len(Snapshot()) != 0 {
		t.Fatalf("Reset 后应为空")
	}
}

// UT-DIAG-03: 错误分类
func TestClassify(t *testing.T) {
	_, lookErr := exec.LookPath("svgcrush-definitely-missing-binary")
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{context.Canceled, CodeCancel},
		{fmt.Errorf("encode: %w", context.DeadlineExceeded), CodeCancel},
		{fmt.Errorf("a.svg: %w", contract.ErrNoContent), CodeContent},
		{contract.ErrEmptyCorpus, CodeCorpus},
		{contract.ErrEncoderContract, CodeProtocol},
		{contract.ErrHeaderShape, CodeProtocol},
		{contract.ErrSentinelCollision, CodeInvariant},
		{contract.ErrDuplicateItem, CodeInvariant},
		{contract.ErrPathInvalid, CodeInvariant},
		{contract.ErrInvalidInput, CodeInvariant},
		{&exec.ExitError{}, CodeExternal},
		{lookErr, CodeExternal},
		{&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, CodeIO},
		{&os.LinkError{Op: "rename", Old: "a", New: "b", Err: errors.New("x")}, CodeIO},
		{errors.New("other"), CodeUnknown},
	}
	for i, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("case %d (%v): got %s, expected %s", i, c.err, got, c.want)
		}
	}
}

// UT-DIAG-04: Logger 写入 JSON 行，按级别过滤
func TestLoggerEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("corr", "info", "")
	l.fallback = &buf
	l.DebugKV("config", "effective", "", map[string]string{"k": "v"}) // 被过滤
	tm := l.StartWith("normalizer", "normalize", "plus")
	tm.Finish("normalize", 1)
	l.Info("pipeline", "up-to-date", map[string]string{"out_file": "svg.js"})
	l.Warn("reader", "skip", "x")
	start := time.Now().Add(-5 * time.Millisecond)
	l.ErrorWith("assembler", "invariant", "assemble failed", &start, "plus")
	l.ErrorWithKV("encoder", "external", "encode failed", nil, "", map[string]string{"exit": "3"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 6 {
		t.Fatalf("期望 6 行, 实得 %d: %s", len(lines), buf.String())
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("非 JSON: %v", err)
	}
	if ev.Stage != "finish" || ev.Item != "plus" || ev.Count != 1 || ev.CorrID != "corr" || ev.Level != "info" {
		t.Fatalf("finish 事件字段错误: %+v", ev)
	}
	if err := json.Unmarshal([]byte(lines[4]), &ev); err != nil {
		t.Fatalf("非 JSON: %v", err)
	}
	if ev.Level != "error" || ev.Code != "invariant" || ev.DurMS < 5 {
		t.Fatalf("error 事件字段错误: %+v", ev)
	}
}

// 有日志目录时写入轮转文件
func TestLoggerWithSink(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger("corr", "debug", dir)
	l.Start("pipeline", "run").Finish("run", 0)
	l.Error("pipeline", "unknown", "first error", nil)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, CurrentLogName))
	if err != nil {
		t.Fatalf("log file not found: %v", err)
	}
	if n := strings.Count(string(b), "\n"); n != 3 {
		t.Fatalf("期望 3 行日志, 实得 %d", n)
	}
}

// Level.String / parseLevel / ValidLevel / nil 安全
func TestLoggerLevels(t *testing.T) {
	if Warn.String() != "warn" {
		t.Fatalf("warn string")
	}
	var unknown Level = 12345
	if unknown.String() != "info" {
		t.Fatalf("default string")
	}
	if parseLevel("ERROR") != Error || parseLevel("bogus") != Info {
		t.Fatalf("parseLevel")
	}
	for _, s := range []string{"", "debug", "Info", " warn "} {
		if !ValidLevel(s) {
			t.Fatalf("ValidLevel(%q) 应为 true", s)
		}
	}
	if ValidLevel("verbose") {
		t.Fatalf("verbose 不是合法级别")
	}
	var nl *Logger
	nl.Info("x", "y", nil)
	if err := nl.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
	var tnil *Timer
	tnil.Finish("x", 0)
	(&Timer{}).Finish("x", 0)
}

// NowUTC
func TestNowUTC(t *testing.T) {
	if _, err := time.Parse(time.RFC3339, NowUTC()); err != nil {
		t.Fatalf("应返回 RFC3339: %v", err)
	}
}

// UT-DIAG-05: 终端（非 TTY）关键节点输出
func TestTerminalNonTTYFlow(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	if term.isTTY {
		t.Fatalf("expect non-tty")
	}
	term.RunStart("icons", "bundle")
	term.ItemLoaded("icons/plus.svg", 1200)
	term.ItemLoaded("icons/minus.svg", 800)
	term.ModuleWritten("dist/svg.js", 1500, 0)
	term.RunFinish(true, 1300*time.Millisecond)

	out := sb.String()
	if strings.Contains(out, "\r") {
		t.Fatalf("non-tty should not contain carriage returns: %q", out)
	}
	for _, want := range []string{
		"[run] 输入=icons | 模式=bundle\n",
		"[load] plus.svg | 1.2 kB\n",
		"[load] minus.svg | 800 B\n",
		"[write] dist/svg.js | 1.5 kB\n",
		"[ok] 全部完成 | 条目 2 | 读入 2.0 kB | 总用时 1.3s\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

// 新鲜度提示与旁路计数
func TestTerminalUpToDateAndSidecars(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.UpToDate("icons", "svg.js")
	term.ModuleWritten("svg.js", 10, 3)
	out := sb.String()
	if !strings.Contains(out, "svgcrush checked icons and determined svg.js is already up-to-date.\n") {
		t.Fatalf("missing up-to-date line: %q", out)
	}
	if !strings.Contains(out, "[write] svg.js | 10 B | 旁路 3\n") {
		t.Fatalf("missing write line: %q", out)
	}
}

// UT-DIAG-06: 终端（TTY）进度节流与清尾
func TestTerminalTTYProgressThrottleAndClear(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.isTTY = true
	term.RunStart("icons", "lazy")

	term.ItemLoaded("a.svg", 10)
	first := sb.String()
	if !strings.Contains(first, "\r[load] 1 个") {
		t.Fatalf("first progress should be inline with CR: %q", first)
	}
	// 立即第二次：被节流（<100ms）
	term.ItemLoaded("b.svg", 10)
	if sb.String() != first {
		t.Fatalf("second progress should be throttled")
	}
	time.Sleep(120 * time.Millisecond)
	term.ItemLoaded("c.svg", 10)
	third := sb.String()
	if !strings.Contains(third, "\r[load] 3 个") {
		t.Fatalf("third progress missing: %q", third)
	}
	term.RunFinish(false, 2200*time.Millisecond)
	final := sb.String()
	idx := strings.LastIndex(final, "[fail]")
	if idx < 0 {
		t.Fatalf("finish should include fail line: %q", final)
	}
	seg := final[len(third):idx]
	if !strings.HasPrefix(seg, "\r ") {
		t.Fatalf("clear tail should write spaces after CR: %q", seg)
	}
}

type flakyWriter struct{ fail bool }

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail {
		w.fail = false
		return 0, fmt.Errorf("boom")
	}
	return len(p), nil
}

// UT-DIAG-07: 写失败降级为禁用态
func TestTerminalDisableOnWriteError(t *testing.T) {
	fw := &flakyWriter{fail: true}
	term := NewTerminal(fw, true)
	term.RunStart("x", "bundle")
	if term.enabled {
		t.Fatalf("terminal should be disabled after write error")
	}
	term.ItemLoaded("a", 0)
	term.UpToDate("a", "b")
	term.ModuleWritten("b", 0, 0)
	term.RunFinish(true, 0)

	fw = &flakyWriter{fail: true}
	term = NewTerminal(fw, true)
	term.isTTY = true
	term.ItemLoaded("a", 1)
	if term.enabled {
		t.Fatalf("terminal should be disabled after inline error")
	}
}

// nil 接收者、禁用态、CI 环境
func TestTerminalNoop(t *testing.T) {
	var tn *Terminal
	tn.RunStart("a", "b")
	tn.ItemLoaded("a", 1)
	tn.UpToDate("a", "b")
	tn.ModuleWritten("a", 1, 1)
	tn.RunFinish(true, 0)

	var sb strings.Builder
	off := NewTerminal(&sb, false)
	off.RunStart("a", "b")
	off.RunFinish(true, 0)
	if sb.Len() != 0 {
		t.Fatalf("disabled terminal wrote %q", sb.String())
	}

	t.Setenv("CI", "true")
	if NewTerminal(os.Stderr, true).isTTY {
		t.Fatalf("CI env should force non-tty")
	}
}

// 全局终端与工具函数
func TestHelpers(t *testing.T) {
	if got := shortenBase("/x/y/这是一个很长的文件名用于截断测试abcdefghijk.svg", 10); visLen(got) != 10 || !strings.HasSuffix(got, "…") {
		t.Fatalf("shortenBase: %q", got)
	}
	if shortenBase("x", 0) != "" {
		t.Fatalf("shortenBase max<=0 should be empty")
	}
	if safe("a\nb\rc") != "a b c" {
		t.Fatalf("safe replace failed")
	}
	if formatDur(0) != "0ms" || formatDur(1500*time.Millisecond) != "1.5s" {
		t.Fatalf("formatDur")
	}
	SetTerminal(nil)
	if GetTerminal() != nil {
		t.Fatalf("expected nil terminal")
	}
	SetTerminal(NewTerminal(os.Stderr, false))
	if GetTerminal() == nil {
		t.Fatalf("expected non-nil terminal")
	}
	SetTerminal(nil)
}
