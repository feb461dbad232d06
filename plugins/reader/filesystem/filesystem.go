package filesystem

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html/charset"

	"svgcrush/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// Recursive: 递归扫描子目录（默认仅顶层）。
	Recursive bool `json:"recursive"`
	// ExcludeDirNames: 递归扫描时跳过这些目录名（基名完全匹配，大小写不敏感）。
	// 例如 [".git","node_modules"]。
	ExcludeDirNames []string `json:"exclude_dir_names"`
	// Extensions: 接受的扩展名（大小写不敏感）；默认 [".svg"]。
	Extensions []string `json:"extensions"`
}

// FileSystem 实现基于文件系统的 Reader。
type FileSystem struct {
	bufSize   int
	recursive bool
	// 以小写形式保存，比较时按小写基名匹配。
	excludeDir map[string]struct{}
	exts       map[string]struct{}
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	r := &FileSystem{bufSize: defaultBuf, excludeDir: map[string]struct{}{}, exts: map[string]struct{}{}}
	if opts != nil {
		if opts.BufSize > 0 {
			r.bufSize = opts.BufSize
		}
		r.recursive = opts.Recursive
		for _, name := range opts.ExcludeDirNames {
			if name == "" {
				continue
			}
			r.excludeDir[strings.ToLower(name)] = struct{}{}
		}
		for _, ext := range opts.Extensions {
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			r.exts[strings.ToLower(ext)] = struct{}{}
		}
	}
	if len(r.exts) == 0 {
		r.exts[".svg"] = struct{}{}
	}
	return r
}

var _ contract.Reader = (*FileSystem)(nil)

// List 返回 root 下所有候选文件（稳定顺序：每层目录先子目录、后文件，均按字典序）。
func (r *FileSystem) List(ctx context.Context, root string) ([]contract.Source, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", contract.ErrInvalidInput, root)
	}
	var out []contract.Source
	err = r.walkDir(ctx, root, func(src contract.Source) error {
		out = append(out, src)
		return nil
	})
	return out, err
}

// Iterate 按 List 的顺序打开每个文件并调用 yield；字节流已转码为 UTF-8。
// yield 负责关闭 ReadCloser；yield 出错时由本函数关闭。
func (r *FileSystem) Iterate(ctx context.Context, root string, yield func(src contract.Source, rc io.ReadCloser) error) error {
	srcs, err := r.List(ctx, root)
	if err != nil {
		return err
	}
	for _, src := range srcs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		f, err := os.Open(src.Path)
		if err != nil {
			return err
		}
		rc, err := r.decode(f)
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("%s: %w", src.Path, err)
		}
		if err := yield(src, rc); err != nil {
			_ = rc.Close()
			return err
		}
	}
	return nil
}

func (r *FileSystem) walkDir(ctx context.Context, dir string, visit func(contract.Source) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	// 稳定顺序：字典序
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	// 先目录（不跟随目录符号链接）
	if r.recursive {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if _, skip := r.excludeDir[strings.ToLower(e.Name())]; skip {
				continue
			}
			if err := r.walkDir(ctx, filepath.Join(dir, e.Name()), visit); err != nil {
				return err
			}
		}
	}
	// 再文件（允许指向常规文件的符号链接）
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := r.exts[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
			continue
		}
		p := filepath.Join(dir, e.Name())
		info, err := os.Stat(p)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			// 目标不是常规文件（目录、设备等）则忽略
			continue
		}
		if err := visit(contract.Source{Path: p, ModTime: info.ModTime()}); err != nil {
			return err
		}
	}
	return nil
}

// 只在文件开头的 XML 声明中查找 encoding。
var xmlDeclRe = regexp.MustCompile(`^\s*<\?xml[^>]*?\sencoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decode 依据 BOM 或 XML 声明把字节流转为 UTF-8；无声明时按 UTF-8 原样透传。
func (r *FileSystem) decode(f *os.File) (io.ReadCloser, error) {
	br := bufio.NewReaderSize(f, r.bufSize)
	head, _ := br.Peek(1024)
	label := ""
	switch {
	case bytes.HasPrefix(head, bomUTF8):
		_, _ = br.Discard(len(bomUTF8))
	case bytes.HasPrefix(head, bomUTF16LE):
		_, _ = br.Discard(len(bomUTF16LE))
		label = "utf-16le"
	case bytes.HasPrefix(head, bomUTF16BE):
		_, _ = br.Discard(len(bomUTF16BE))
		label = "utf-16be"
	default:
		if m := xmlDeclRe.FindSubmatch(head); m != nil {
			label = strings.ToLower(string(m[1]))
		}
	}
	if label == "" || label == "utf-8" || label == "utf8" {
		return &bufferedCloser{Reader: br, c: f}, nil
	}
	tr, err := charset.NewReaderLabel(label, br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(tr, r.bufSize), c: f}, nil
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
