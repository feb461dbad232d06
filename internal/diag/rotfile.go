package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// CurrentLogName 为当前日志文件名；归档文件为 svgcrush-<UTC 时间戳>.txt。
	CurrentLogName = "svgcrush-current.txt"
	// DefaultLogMaxBytes 为单个日志文件的默认上限。
	DefaultLogMaxBytes int64 = 10 << 20
	// keepArchives 为保留的归档文件个数，超出时删除最旧的。
	keepArchives = 5

	archivePrefix = "svgcrush-"
	archiveExt    = ".txt"
	archiveStamp  = "20060102-150405.000000000"
)

// RotatingFile 是日志目录下的按大小轮转的追加写入器。
// 写入一行会超过上限时，先把当前文件归档再写；空文件不轮转，超长单行照样写入。
type RotatingFile struct {
	dir      string
	maxBytes int64

	mu      sync.Mutex
	f       *os.File
	curSize int64
}

// NewRotatingFile 不触碰文件系统；目录与文件在首次写入时创建。
func NewRotatingFile(dir string, maxBytes int64) *RotatingFile {
	if maxBytes <= 0 {
		maxBytes = DefaultLogMaxBytes
	}
	return &RotatingFile{dir: dir, maxBytes: maxBytes}
}

// WriteLine 追加一行（自动补换行）。
func (w *RotatingFile) WriteLine(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureOpen(); err != nil {
		return err
	}
	need := int64(len(line)) + 1
	if w.curSize > 0 && w.curSize+need > w.maxBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	buf := make([]byte, 0, need)
	buf = append(append(buf, line...), '\n')
	n, err := w.f.Write(buf)
	w.curSize += int64(n)
	return err
}

// ensureOpen 以追加方式打开当前文件，已有内容计入大小。
func (w *RotatingFile) ensureOpen() error {
	if w.f != nil {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(w.dir, CurrentLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	w.f, w.curSize = f, 0
	if st, err := f.Stat(); err == nil {
		w.curSize = st.Size()
	}
	return nil
}

// rotate 归档当前文件并重新打开；未打开时等同 ensureOpen。
func (w *RotatingFile) rotate() error {
	if w.f == nil {
		return w.ensureOpen()
	}
	cur := w.f.Name()
	_ = w.f.Close()
	w.f = nil
	// 纳秒精度：同一秒内多次轮转不会互相覆盖
	archived := filepath.Join(w.dir, archivePrefix+time.Now().UTC().Format(archiveStamp)+archiveExt)
	if err := os.Rename(cur, archived); err != nil {
		return fmt.Errorf("archive log file: %w", err)
	}
	w.prune()
	return w.ensureOpen()
}

// prune 只保留最新的 keepArchives 个归档；删除失败不影响写日志。
func (w *RotatingFile) prune() {
	ents, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	var archives []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || name == CurrentLogName {
			continue
		}
		if strings.HasPrefix(name, archivePrefix) && strings.HasSuffix(name, archiveExt) {
			archives = append(archives, name)
		}
	}
	if len(archives) <= keepArchives {
		return
	}
	// 时间戳定长，字典序即时间序
	sort.Strings(archives)
	for _, name := range archives[:len(archives)-keepArchives] {
		_ = os.Remove(filepath.Join(w.dir, name))
	}
}

// Close 关闭当前文件；之后再写入会重新打开。
func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
