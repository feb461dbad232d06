package svg

import "strings"

// 词法单元类型。
type kind int

const (
	textTok kind = iota
	startTok
	endTok
	commentTok
	cdataTok
	otherTok // <?...?> / <!DOCTYPE ...> 等，原样保留
)

// attr: 单个属性。quote 为 0 表示无引号；hasVal=false 表示布尔属性（无 '='）。
type attr struct {
	name   string
	val    string
	quote  byte
	hasVal bool
}

// token: 最小标记单元。text 承载文本/注释/CDATA/其他的原文；标签使用 name/attrs。
type token struct {
	kind      kind
	text      string
	name      string
	attrs     []attr
	selfClose bool
}

// scan 将标记切分为 token 序列。
// 尽力而为：不校验嵌套、不解码实体；未闭合结构吞掉剩余文本。
// 无引号属性值读到空白或 '>' 为止（与 HTML 分词一致，'/' 属于值）。
func scan(s string) []token {
	var toks []token
	i := 0
	for i < len(s) {
		if s[i] != '<' {
			j := strings.IndexByte(s[i:], '<')
			if j < 0 {
				j = len(s) - i
			}
			if j == 0 {
				j = 1
			}
			toks = appendText(toks, s[i:i+j])
			i += j
			continue
		}
		rest := s[i:]
		switch {
		case strings.HasPrefix(rest, "<!--"):
			n := closeAt(rest, 4, "-->")
			toks = append(toks, token{kind: commentTok, text: rest[:n]})
			i += n
		case strings.HasPrefix(rest, "<![CDATA["):
			n := closeAt(rest, 9, "]]>")
			toks = append(toks, token{kind: cdataTok, text: rest[:n]})
			i += n
		case len(rest) > 1 && (rest[1] == '?' || rest[1] == '!'):
			n := closeAt(rest, 2, ">")
			toks = append(toks, token{kind: otherTok, text: rest[:n]})
			i += n
		case len(rest) > 1 && rest[1] == '/':
			n := closeAt(rest, 2, ">")
			name := strings.TrimSpace(strings.TrimSuffix(rest[2:n], ">"))
			toks = append(toks, token{kind: endTok, name: name})
			i += n
		case len(rest) > 1 && isNameStart(rest[1]):
			tok, n := scanStartTag(rest)
			toks = append(toks, tok)
			i += n
		default:
			toks = appendText(toks, "<")
			i++
		}
	}
	return toks
}

// appendText 合并相邻文本片段。
func appendText(toks []token, s string) []token {
	if n := len(toks); n > 0 && toks[n-1].kind == textTok {
		toks[n-1].text += s
		return toks
	}
	return append(toks, token{kind: textTok, text: s})
}

// closeAt 返回从 from 起找到 end 之后的偏移；找不到时吞掉全部。
func closeAt(s string, from int, end string) int {
	if from > len(s) {
		return len(s)
	}
	j := strings.Index(s[from:], end)
	if j < 0 {
		return len(s)
	}
	return from + j + len(end)
}

// scanStartTag 解析以 '<' 开头的起始标签，返回 token 与消耗长度。
func scanStartTag(s string) (token, int) {
	j := 1
	for j < len(s) && isNameChar(s[j]) {
		j++
	}
	tok := token{kind: startTok, name: s[1:j]}
	for j < len(s) {
		j = skipSpace(s, j)
		if j >= len(s) {
			break
		}
		switch {
		case s[j] == '>':
			return tok, j + 1
		case s[j] == '/' && j+1 < len(s) && s[j+1] == '>':
			tok.selfClose = true
			return tok, j + 2
		case s[j] == '/':
			j++
			continue
		}
		k := j
		for k < len(s) && !isSpace(s[k]) && s[k] != '=' && s[k] != '>' && s[k] != '/' {
			k++
		}
		if k == j {
			// 游离字符（如孤立引号）：跳过，避免死循环
			j++
			continue
		}
		a := attr{name: s[j:k]}
		j = skipSpace(s, k)
		if j < len(s) && s[j] == '=' {
			a.hasVal = true
			j = skipSpace(s, j+1)
			if j < len(s) && (s[j] == '"' || s[j] == '\'') {
				q := s[j]
				e := strings.IndexByte(s[j+1:], q)
				if e < 0 {
					a.val, a.quote = s[j+1:], q
					j = len(s)
				} else {
					a.val, a.quote = s[j+1:j+1+e], q
					j = j + 1 + e + 1
				}
			} else {
				v := j
				for j < len(s) && !isSpace(s[j]) && s[j] != '>' {
					j++
				}
				a.val = s[v:j]
			}
		}
		tok.attrs = append(tok.attrs, a)
	}
	return tok, len(s)
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

// isSpace: 仅 ASCII 空白；U+00A0 等会影响渲染，不视为空白。
func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isNameStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == ':'
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c >= '0' && c <= '9' || c == '-' || c == '.'
}

// render 将 token 序列还原为文本；起始标签一律使用规范写法（属性间单空格、"/>" 前无空白）。
func render(toks []token) string {
	var b strings.Builder
	for _, t := range toks {
		switch t.kind {
		case startTok:
			b.WriteByte('<')
			b.WriteString(t.name)
			for _, a := range t.attrs {
				b.WriteByte(' ')
				b.WriteString(a.name)
				if !a.hasVal {
					continue
				}
				b.WriteByte('=')
				if a.quote != 0 {
					b.WriteByte(a.quote)
					b.WriteString(a.val)
					b.WriteByte(a.quote)
				} else {
					b.WriteString(a.val)
				}
			}
			if t.selfClose {
				b.WriteString("/>")
			} else {
				b.WriteByte('>')
			}
		case endTok:
			b.WriteString("</")
			b.WriteString(t.name)
			b.WriteByte('>')
		default:
			b.WriteString(t.text)
		}
	}
	return b.String()
}
