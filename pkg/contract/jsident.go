package contract

// jsReserved: ECMAScript 保留字与严格模式下不可作绑定名的标识符。
var jsReserved = map[string]struct{}{
	"await": {}, "break": {}, "case": {}, "catch": {}, "class": {}, "const": {}, "continue": {},
	"debugger": {}, "default": {}, "delete": {}, "do": {}, "else": {}, "enum": {}, "export": {},
	"extends": {}, "false": {}, "finally": {}, "for": {}, "function": {}, "if": {}, "implements": {},
	"import": {}, "in": {}, "instanceof": {}, "interface": {}, "let": {}, "new": {}, "null": {},
	"package": {}, "private": {}, "protected": {}, "public": {}, "return": {}, "static": {},
	"super": {}, "switch": {}, "this": {}, "throw": {}, "true": {}, "try": {}, "typeof": {},
	"var": {}, "void": {}, "while": {}, "with": {}, "yield": {}, "arguments": {}, "eval": {},
	"undefined": {}, "NaN": {}, "Infinity": {},
}

// IsReservedWord 报告 s 是否为 JS 保留字。
func IsReservedWord(s string) bool {
	_, ok := jsReserved[s]
	return ok
}

// IsJSIdentifier 报告 s 是否可直接用作 JS 标识符（仅 ASCII 子集）。
func IsJSIdentifier(s string) bool {
	if s == "" || IsReservedWord(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || c == '$':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
