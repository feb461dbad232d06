package contract

import (
	"fmt"
	"path"
	"strings"

	"github.com/iancoleman/strcase"
)

// KeyCase: 条目名的大小写风格（空表示保持文件名原样）。
type KeyCase string

const (
	KeyRaw        KeyCase = ""
	KeyCamel      KeyCase = "camel"
	KeyLowerCamel KeyCase = "lower_camel"
	KeySnake      KeyCase = "snake"
	KeyKebab      KeyCase = "kebab"
)

// Valid 报告是否为已知风格。
func (k KeyCase) Valid() bool {
	switch k {
	case KeyRaw, KeyCamel, KeyLowerCamel, KeySnake, KeyKebab:
		return true
	}
	return false
}

// ItemName 由源文件路径派生条目名。
// 规则：
// - 反斜杠统一为正斜杠后取基名（跨平台稳定）；
// - 去掉最后一个扩展名；
// - 按 KeyCase 转换风格；结果为空视为无效。
func ItemName(p string, kc KeyCase) (string, error) {
	s := strings.ReplaceAll(p, "\\", "/")
	base := path.Base(path.Clean(s))
	name := strings.TrimSuffix(base, path.Ext(base))
	switch kc {
	case KeyRaw:
	case KeyCamel:
		name = strcase.ToCamel(name)
	case KeyLowerCamel:
		name = strcase.ToLowerCamel(name)
	case KeySnake:
		name = strcase.ToSnake(name)
	case KeyKebab:
		name = strcase.ToKebab(name)
	default:
		return "", fmt.Errorf("%w: key case %q", ErrInvalidInput, kc)
	}
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("%w: cannot derive item name from %q", ErrInvalidInput, p)
	}
	return name, nil
}
