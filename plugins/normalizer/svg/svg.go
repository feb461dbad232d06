package svg

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"svgcrush/pkg/contract"
)

// Options 为 SVG Normalizer 的可选配置（最小必要）。
type Options struct {
	// KeepXMLNS: 保留 xmlns / xmlns:* 命名空间声明（默认剥离；内联到 HTML 时无需）。
	KeepXMLNS bool `json:"keep_xmlns"`
	// KeepComments: 保留根元素内部的注释（默认剥离）。
	KeepComments bool `json:"keep_comments"`
}

// Normalizer 实现 SVG 规范化。
type Normalizer struct {
	opts Options
}

// New 创建 SVG Normalizer。
func New(opts *Options) *Normalizer {
	n := &Normalizer{}
	if opts != nil {
		n.opts = *opts
	}
	return n
}

var _ contract.Normalizer = (*Normalizer)(nil)

// Normalize 见 Canonical；错误附带条目名。
func (n *Normalizer) Normalize(ctx context.Context, name, raw string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	out, err := Canonical(raw, n.opts)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Canonical 依次执行改写（顺序敏感，后一步依赖前一步的结果）：
//  1. 提取 <svg> 根元素；
//  2. 剥离不影响渲染的元数据属性；
//  3. 属性值内小数去前导零；
//  4. 空白折叠；
//  5. 省略属性值引号；
//  6. 以规范形式输出自闭合标签。
//
// 整体幂等：Canonical(Canonical(x)) == Canonical(x)。
func Canonical(raw string, opts Options) (string, error) {
	root, err := extract(raw)
	if err != nil {
		return "", err
	}
	toks := scan(root)
	toks = stripMeta(toks, opts)
	compactNumbers(toks)
	toks = collapseSpace(toks)
	elideQuotes(toks)
	return render(toks), nil
}

var (
	openRe  = regexp.MustCompile(`(?i)<svg[\s/>]`)
	closeRe = regexp.MustCompile(`(?i)</svg\s*>`)
)

// extract 截取第一个 <svg 起始标签到最后一个 </svg> 之间（含）的内容。
// 根元素自闭合（<svg .../>）时仅返回该标签。
func extract(s string) (string, error) {
	loc := openRe.FindStringIndex(s)
	if loc == nil {
		return "", contract.ErrNoContent
	}
	body := s[loc[0]:]
	if t, n := scanStartTag(body); t.selfClose {
		return body[:n], nil
	}
	ends := closeRe.FindAllStringIndex(body, -1)
	if len(ends) == 0 {
		return "", contract.ErrNoContent
	}
	last := ends[len(ends)-1]
	return body[:last[1]], nil
}

// 任意元素上剥离的属性（小写比较）。
var stripAny = map[string]struct{}{
	"xml:space":         {},
	"enable-background": {},
	"class":             {},
}

// 仅在根元素上剥离的属性。
var stripRoot = map[string]struct{}{
	"version":     {},
	"baseprofile": {},
	"id":          {},
}

// stripMeta 剥离元数据属性与注释。
// 名称按小写完整匹配，避免误伤 data-id、viewBox、classname 等。
func stripMeta(toks []token, opts Options) []token {
	out := toks[:0]
	root := true
	for _, t := range toks {
		if t.kind == commentTok && !opts.KeepComments {
			continue
		}
		if t.kind == startTok {
			kept := t.attrs[:0]
			for _, a := range t.attrs {
				if !dropAttr(a, root, opts) {
					kept = append(kept, a)
				}
			}
			t.attrs = kept
			root = false
		}
		// 注释被剥离后，两侧文本需并为一个 token，后续空白折叠才能跨越原注释位置
		if t.kind == textTok {
			out = appendText(out, t.text)
			continue
		}
		out = append(out, t)
	}
	return out
}

func dropAttr(a attr, root bool, opts Options) bool {
	ln := strings.ToLower(a.name)
	if _, ok := stripAny[ln]; ok {
		return true
	}
	if !opts.KeepXMLNS && (ln == "xmlns" || strings.HasPrefix(ln, "xmlns:")) {
		return true
	}
	if !root {
		return false
	}
	if _, ok := stripRoot[ln]; ok {
		return true
	}
	// 根上的 x="0px"/y="0px" 等同默认值
	if (ln == "x" || ln == "y") && (a.val == "0px" || a.val == "0") {
		return true
	}
	return false
}

// leadZeroRe: 非单词字符（或开头）后的 "0.<digit>"。
var leadZeroRe = regexp.MustCompile(`(^|[^0-9A-Za-z_.])0\.([0-9])`)

// 值为 URL 的属性不做数值压缩。
var urlAttrs = map[string]struct{}{
	"href":       {},
	"xlink:href": {},
	"src":        {},
}

// compactNumbers 仅改写属性值；文本、CDATA、名称保持不变。
func compactNumbers(toks []token) {
	for i := range toks {
		if toks[i].kind != startTok {
			continue
		}
		for j := range toks[i].attrs {
			a := &toks[i].attrs[j]
			if _, ok := urlAttrs[strings.ToLower(a.name)]; ok || !a.hasVal {
				continue
			}
			a.val = leadZeroRe.ReplaceAllString(a.val, "${1}.${2}")
		}
	}
}

var spaceRe = regexp.MustCompile(`[ \t\n\r\f]+`)

// collapseSpace 折叠空白：
// - 属性值与文本中的空白串折叠为单个空格，属性值首尾去空白；
// - 标签之间的纯空白文本删除；
// - 起始标签之后、结束标签之前的空白删除。
func collapseSpace(toks []token) []token {
	for i := range toks {
		switch toks[i].kind {
		case startTok:
			for j := range toks[i].attrs {
				a := &toks[i].attrs[j]
				a.val = strings.TrimSpace(spaceRe.ReplaceAllString(a.val, " "))
			}
		case textTok, cdataTok, commentTok, otherTok:
			toks[i].text = spaceRe.ReplaceAllString(toks[i].text, " ")
		}
	}
	out := toks[:0]
	for i, t := range toks {
		if t.kind == textTok {
			if i > 0 && toks[i-1].kind == startTok && !toks[i-1].selfClose {
				t.text = strings.TrimLeft(t.text, " ")
			}
			if i+1 < len(toks) && toks[i+1].kind == endTok {
				t.text = strings.TrimRight(t.text, " ")
			}
			if strings.TrimSpace(t.text) == "" && i > 0 && i+1 < len(toks) {
				continue
			}
			if t.text == "" {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// elideQuotes 去掉可安全省略的引号。
// 自闭合标签的最后一个属性保留引号："k=v/>" 会让 '/' 并入属性值。
func elideQuotes(toks []token) {
	for i := range toks {
		if toks[i].kind != startTok {
			continue
		}
		n := len(toks[i].attrs)
		for j := range toks[i].attrs {
			a := &toks[i].attrs[j]
			if !a.hasVal {
				continue
			}
			lastBeforeClose := toks[i].selfClose && j == n-1
			switch {
			case canElide(a.val) && !lastBeforeClose:
				a.quote = 0
			case a.quote == 0:
				a.quote = '"'
				if strings.IndexByte(a.val, '"') >= 0 {
					a.quote = '\''
				}
			}
		}
	}
}

func canElide(v string) bool {
	if v == "" || strings.HasSuffix(v, "/") {
		return false
	}
	return !strings.ContainsAny(v, " \t\n\r\f\"'=<>`")
}
