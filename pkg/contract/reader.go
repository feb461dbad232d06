package contract

import (
	"context"
	"io"
)

// Reader: 输入目录抽象。
// 约束：
// 1) List 返回稳定顺序（按文件名字典序），仅包含可识别扩展名的常规文件；
// 2) Iterate 按 List 的顺序逐个回调，yield 负责关闭 ReadCloser；
// 3) 产出的字节流统一为 UTF-8（按 XML 声明/BOM 转码），不做业务解析；
// 4) 不在内部起并发。
type Reader interface {
	List(ctx context.Context, root string) ([]Source, error)
	Iterate(ctx context.Context, root string, yield func(src Source, r io.ReadCloser) error) error
}
