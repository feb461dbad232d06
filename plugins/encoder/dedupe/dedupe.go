package dedupe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"svgcrush/pkg/contract"
)

// Options 为字典去重编码器的可选配置（零值即默认）。
type Options struct {
	// ResVars: 额外保留的变量名（k/el/c/r 与 JS 关键字始终保留）。
	ResVars []string `json:"res_vars"`
	// MaxLen: 头部单行最大长度；<=0 表示 120。
	MaxLen int `json:"max_len"`
	// Let: 使用 let 声明（false 则 var）；nil 表示 true。
	Let *bool `json:"let"`
	// Tpl: 条目渲染为模板字面量（false 则字符串 + 拼接）；nil 表示 true。
	Tpl *bool `json:"tpl"`
	// Break: 额外的断点串，重复子串不得跨越它们（条目分隔符始终是断点）。
	Break []string `json:"break"`
	// MinLen: 可提取的最短子串（字节）；<=0 表示 4。
	MinLen int `json:"min_len"`
	// MaxVars: 最多绑定的变量数；0 表示不限。
	MaxVars int `json:"max_vars"`
}

const (
	defaultMaxLen = 120
	defaultMinLen = 4
	// 占位符使用 BMP 私用区，一个变量一个码点。
	puaFirst = 0xE000
	puaLast  = 0xF8FF
	// 每轮为每个长度保留的候选数。
	perLenCandidates = 8
)

// 候选子串长度（字节）；按 MinLen 过滤。
var stepLens = []int{4, 5, 6, 8, 10, 12, 16, 20, 24, 32, 40, 48, 64, 80, 96}

// 生成代码中始终占用的名字：k（键）、el（目标元素）、c/r（懒加载回调参数，eval 作用域可见）。
var alwaysReserved = []string{"k", "el", "c", "r"}

// Encoder 实现 contract.Encoder。
type Encoder struct {
	opts Options
}

// New 创建编码器并校验选项。
func New(opts *Options) (*Encoder, error) {
	e := &Encoder{}
	if opts != nil {
		e.opts = *opts
	}
	if e.opts.MaxLen <= 0 {
		e.opts.MaxLen = defaultMaxLen
	}
	if e.opts.MinLen <= 0 {
		e.opts.MinLen = defaultMinLen
	}
	if e.opts.MaxVars < 0 {
		return nil, fmt.Errorf("%w: max_vars must be >= 0", contract.ErrInvalidInput)
	}
	for _, b := range e.opts.Break {
		if b == "" {
			return nil, fmt.Errorf("%w: empty break string", contract.ErrInvalidInput)
		}
	}
	return e, nil
}

var _ contract.Encoder = (*Encoder)(nil)

func (e *Encoder) useLet() bool { return e.opts.Let == nil || *e.opts.Let }
func (e *Encoder) useTpl() bool { return e.opts.Tpl == nil || *e.opts.Tpl }

// binding: 一个字典变量。
type binding struct {
	name  string
	value string
	ph    rune
}

// Encode 贪心地把重复子串绑定到短变量：
//  1. 语料按条目分隔符与断点串切段，候选不跨段；
//  2. 每轮对各长度统计出现次数，按节省量（次数×(长度−引用成本)−声明成本）排序；
//  3. 依次替换为私用区占位符并复核节省量，直到没有正收益或达到 MaxVars；
//  4. 头部输出为声明列表，条目渲染为引用变量的 JS 表达式。
func (e *Encoder) Encode(ctx context.Context, corpus string, opts contract.EncodeOptions) (string, error) {
	if err := opts.Sentinels.Validate(); err != nil {
		return "", err
	}
	if !utf8.ValidString(corpus) {
		return "", fmt.Errorf("%w: corpus is not valid UTF-8", contract.ErrInvalidInput)
	}
	if strings.IndexFunc(corpus, isPlaceholder) >= 0 {
		return "", fmt.Errorf("%w: corpus contains private-use code points", contract.ErrInvalidInput)
	}

	items := strings.Split(corpus, opts.Sentinels.Item)
	// 断点串先替换为私用区顶端的占位符，成为天然边界；渲染时还原为字面文本。
	lits := make(map[rune]string, len(e.opts.Break))
	for j, b := range e.opts.Break {
		ph := rune(puaLast - j)
		lits[ph] = b
		for i := range items {
			items[i] = strings.ReplaceAll(items[i], b, string(ph))
		}
	}
	limit := puaLast - puaFirst + 1 - len(e.opts.Break)
	names := newNamer(e.reserved(opts.Reserved))
	var binds []binding

	for e.opts.MaxVars == 0 || len(binds) < e.opts.MaxVars {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		cands := e.candidates(segments(items), names.peek())
		applied := 0
		for _, c := range cands {
			if (e.opts.MaxVars > 0 && len(binds) >= e.opts.MaxVars) || len(binds) >= limit {
				break
			}
			name := names.peek()
			n := 0
			for _, it := range items {
				n += strings.Count(it, c)
			}
			if e.savings(c, n, name) <= 0 {
				continue
			}
			ph := rune(puaFirst + len(binds))
			for i := range items {
				items[i] = strings.ReplaceAll(items[i], c, string(ph))
			}
			binds = append(binds, binding{name: names.next(), value: c, ph: ph})
			applied++
		}
		if applied == 0 || len(binds) >= limit {
			break
		}
	}

	refs := make(map[rune]string, len(binds))
	for _, b := range binds {
		refs[b.ph] = b.name
	}
	out := make([]string, len(items))
	for i, it := range items {
		if e.useTpl() {
			out[i] = renderTemplate(it, refs, lits)
		} else {
			out[i] = renderConcat(it, refs, lits)
		}
	}
	return e.header(binds) + opts.Sentinels.Section + strings.Join(out, opts.Sentinels.Item), nil
}

// reserved 合并保留名：固定集合、配置的 res_vars 与调用方传入的名字。
func (e *Encoder) reserved(extra []string) map[string]struct{} {
	m := make(map[string]struct{})
	for _, list := range [][]string{alwaysReserved, e.opts.ResVars, extra} {
		for _, n := range list {
			m[n] = struct{}{}
		}
	}
	return m
}

// refCost: 条目内一次引用的额外字节数。
func (e *Encoder) refCost(name string) int {
	if e.useTpl() {
		return len(name) + 3 // ${a}
	}
	return len(name) + 4 // "+a+"
}

// savings 估算绑定 value 到 name 后节省的字节数。
func (e *Encoder) savings(value string, count int, name string) int {
	if count < 2 {
		return 0
	}
	decl := len(name) + 1 + len(jsString(value)) + 1 // a="...",
	return count*(len(value)-e.refCost(name)) - decl
}

// segments 以占位符（已绑定变量与断点）为界切分条目，候选子串不跨越边界。
func segments(items []string) []string {
	var out []string
	for _, it := range items {
		out = append(out, strings.FieldsFunc(it, isPlaceholder)...)
	}
	return out
}

type cand struct {
	s   string
	est int
}

// candidates 统计各长度的重复子串，返回按估算节省量降序的候选。
// 统计允许重叠，替换前再以 strings.Count（不重叠）复核。
func (e *Encoder) candidates(segs []string, name string) []string {
	var all []cand
	for _, l := range e.lengths() {
		counts := make(map[string]int)
		for _, s := range segs {
			for i := 0; i+l <= len(s); i++ {
				if !utf8.RuneStart(s[i]) || (i+l < len(s) && !utf8.RuneStart(s[i+l])) {
					continue
				}
				counts[s[i:i+l]]++
			}
		}
		var top []cand
		for s, n := range counts {
			if est := e.savings(s, n, name); est > 0 {
				top = append(top, cand{s, est})
			}
		}
		sortCands(top)
		if len(top) > perLenCandidates {
			top = top[:perLenCandidates]
		}
		all = append(all, top...)
	}
	sortCands(all)
	out := make([]string, len(all))
	for i, c := range all {
		out[i] = c.s
	}
	return out
}

// sortCands: 节省量降序；并列时按字典序，保证输出确定。
func sortCands(cs []cand) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].est != cs[j].est {
			return cs[i].est > cs[j].est
		}
		return cs[i].s < cs[j].s
	})
}

func (e *Encoder) lengths() []int {
	var out []int
	for _, l := range stepLens {
		if l >= e.opts.MinLen {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		out = []int{e.opts.MinLen}
	}
	return out
}

// header 渲染声明列表 `let a="...",b="...";`，按 MaxLen 在逗号后换行。
func (e *Encoder) header(binds []binding) string {
	if len(binds) == 0 {
		return ""
	}
	kw := "var "
	if e.useLet() {
		kw = "let "
	}
	var b strings.Builder
	b.WriteString(kw)
	line := len(kw)
	for i, bd := range binds {
		decl := bd.name + "=" + jsString(bd.value)
		if i > 0 {
			b.WriteByte(',')
			line++
			if line+len(decl) > e.opts.MaxLen {
				b.WriteByte('\n')
				line = 0
			}
		}
		b.WriteString(decl)
		line += len(decl)
	}
	b.WriteByte(';')
	return b.String()
}

// jsString 以 JSON 字符串字面量形式输出（不转义 HTML 字符）。
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

// renderTemplate 渲染为模板字面量；变量占位符变为 ${name}，断点占位符还原为原文。
func renderTemplate(s string, refs, lits map[rune]string) string {
	var b, run strings.Builder
	b.WriteByte('`')
	flush := func() {
		t := run.String()
		for i, r := range t {
			switch {
			case r == '\\':
				b.WriteString(`\\`)
			case r == '`':
				b.WriteString("\\`")
			case r == '$' && strings.HasPrefix(t[i:], "${"):
				b.WriteString(`\$`)
			case r == '\r':
				b.WriteString(`\r`)
			default:
				b.WriteRune(r)
			}
		}
		run.Reset()
	}
	for _, r := range s {
		if name, ok := refs[r]; ok {
			flush()
			b.WriteString("${" + name + "}")
		} else if lit, ok := lits[r]; ok {
			run.WriteString(lit)
		} else {
			run.WriteRune(r)
		}
	}
	flush()
	b.WriteByte('`')
	return b.String()
}

// renderConcat 渲染为字符串字面量与变量的 + 拼接。
func renderConcat(s string, refs, lits map[rune]string) string {
	var parts []string
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, jsString(lit.String()))
			lit.Reset()
		}
	}
	for _, r := range s {
		if name, ok := refs[r]; ok {
			flush()
			parts = append(parts, name)
		} else if l, ok := lits[r]; ok {
			lit.WriteString(l)
		} else {
			lit.WriteRune(r)
		}
	}
	flush()
	if len(parts) == 0 {
		return `""`
	}
	return strings.Join(parts, "+")
}

func isPlaceholder(r rune) bool { return r >= puaFirst && r <= puaLast }

// namer 依次生成最短的合法变量名：a..z A..Z，然后两位起（首位字母，其余字母或数字）。
type namer struct {
	reserved map[string]struct{}
	i        int
}

func newNamer(reserved map[string]struct{}) *namer { return &namer{reserved: reserved} }

// peek 返回下一个可用名字但不消耗。
func (n *namer) peek() string {
	for {
		s := ident(n.i)
		if _, ok := n.reserved[s]; !ok && !contract.IsReservedWord(s) {
			return s
		}
		n.i++
	}
}

func (n *namer) next() string {
	s := n.peek()
	n.i++
	return s
}

const (
	identFirst = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	identRest  = identFirst + "0123456789"
)

// ident 双射编号：0→a, 51→Z, 52→aa ...
func ident(i int) string {
	l, cnt := 1, len(identFirst)
	for i >= cnt {
		i -= cnt
		l++
		cnt *= len(identRest)
	}
	b := make([]byte, l)
	for j := l - 1; j > 0; j-- {
		b[j] = identRest[i%len(identRest)]
		i /= len(identRest)
	}
	b[0] = identFirst[i]
	return string(b)
}
