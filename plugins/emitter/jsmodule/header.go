package jsmodule

import (
	"fmt"
	"strings"

	"svgcrush/pkg/contract"
)

// binding: 头部声明中的一个绑定；init 为空表示无初始化。
type binding struct {
	name string
	init string
}

func (b binding) param() string {
	if b.init == "" {
		return b.name
	}
	return b.name + " = " + b.init
}

// parseBindings 解析由 let/var/const 语句组成的纯声明列表。
// 初始化表达式按字面量感知扫描（字符串、模板字面量与括号嵌套内的逗号不切分）。
// 出现任何非声明语句即返回 ErrHeaderShape。
func parseBindings(h string) ([]binding, error) {
	var out []binding
	seen := map[string]struct{}{}
	i := 0
	for {
		i = skipWS(h, i)
		if i >= len(h) {
			return out, nil
		}
		kw := ""
		for _, k := range []string{"let", "var", "const"} {
			if strings.HasPrefix(h[i:], k) && i+len(k) < len(h) && isWS(h[i+len(k)]) {
				kw = k
				break
			}
		}
		if kw == "" {
			return nil, shapeErr(h, i)
		}
		i += len(kw)
		for {
			i = skipWS(h, i)
			j := i
			for j < len(h) && isIdentChar(h[j]) {
				j++
			}
			name := h[i:j]
			if !contract.IsJSIdentifier(name) {
				return nil, shapeErr(h, i)
			}
			if _, dup := seen[name]; dup {
				return nil, fmt.Errorf("%w: duplicate binding %q", contract.ErrHeaderShape, name)
			}
			seen[name] = struct{}{}
			b := binding{name: name}
			i = skipWS(h, j)
			if i < len(h) && h[i] == '=' {
				end, err := scanExpr(h, i+1, ",;")
				if err != nil {
					return nil, err
				}
				b.init = strings.TrimSpace(h[i+1 : end])
				if b.init == "" {
					return nil, shapeErr(h, i)
				}
				i = end
			}
			out = append(out, b)
			i = skipWS(h, i)
			if i >= len(h) {
				return out, nil
			}
			if h[i] == ',' {
				i++
				continue
			}
			if h[i] == ';' {
				i++
				break
			}
			return nil, shapeErr(h, i)
		}
	}
}

// scanExpr 扫描表达式直到深度为 0 的任一 stop 字符或末尾，返回停止位置。
func scanExpr(s string, i int, stops string) (int, error) {
	depth := 0
	for i < len(s) {
		c := s[i]
		if depth == 0 && strings.IndexByte(stops, c) >= 0 {
			return i, nil
		}
		switch c {
		case '"', '\'':
			j := i + 1
			for j < len(s) && s[j] != c {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(s) {
				return 0, fmt.Errorf("%w: unterminated string", contract.ErrHeaderShape)
			}
			i = j + 1
			continue
		case '`':
			j, err := scanTemplate(s, i+1)
			if err != nil {
				return 0, err
			}
			i = j
			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return 0, shapeErr(s, i)
			}
		}
		i++
	}
	if depth != 0 {
		return 0, fmt.Errorf("%w: unbalanced brackets", contract.ErrHeaderShape)
	}
	return i, nil
}

// scanTemplate 从反引号之后扫描到闭合反引号之后。
func scanTemplate(s string, i int) (int, error) {
	for i < len(s) {
		switch {
		case s[i] == '\\':
			i += 2
		case s[i] == '`':
			return i + 1, nil
		case s[i] == '$' && i+1 < len(s) && s[i+1] == '{':
			j, err := scanExpr(s, i+2, "}")
			if err != nil {
				return 0, err
			}
			if j >= len(s) {
				return 0, fmt.Errorf("%w: unterminated substitution", contract.ErrHeaderShape)
			}
			i = j + 1
		default:
			i++
		}
	}
	return 0, fmt.Errorf("%w: unterminated template literal", contract.ErrHeaderShape)
}

func shapeErr(s string, i int) error {
	end := i + 20
	if end > len(s) {
		end = len(s)
	}
	return fmt.Errorf("%w: unexpected %q at offset %d", contract.ErrHeaderShape, s[i:end], i)
}

func skipWS(s string, i int) int {
	for i < len(s) && isWS(s[i]) {
		i++
	}
	return i
}

func isWS(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
