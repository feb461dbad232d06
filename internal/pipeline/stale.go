package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"svgcrush/pkg/contract"
)

// upToDate 报告输出是否已是最新：outFile 存在，且 Reader 列出的输入没有一个比它新。
// 输出不存在时返回 false。
func upToDate(ctx context.Context, r contract.Reader, inDir, outFile string) (bool, error) {
	st, err := os.Stat(outFile)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	srcs, err := r.List(ctx, inDir)
	if err != nil {
		return false, err
	}
	out := st.ModTime()
	for _, s := range srcs {
		if s.ModTime.After(out) {
			return false, nil
		}
	}
	return true, nil
}
