package contract

import "time"

// Source: 输入目录中的一个候选文件（仅元信息）。
type Source struct {
	// Path: 文件路径（原样，平台分隔符）。
	Path string
	// ModTime: 修改时间；用于新鲜度检查。
	ModTime time.Time
}

// Item: 单个图形条目，贯穿 raw → normalized → encoded 三种表示。
// 约束：
// - Name 在一次运行内唯一（由文件名去扩展名派生）；
// - Raw 读入后不可变；
// - 有序集合的插入顺序即目录列举顺序，后续阶段不得重排。
type Item struct {
	Name       string
	Source     string
	Raw        string
	Normalized string
	Encoded    string
}

// Assembly: 语料装配结果（编码器输出按条目重新对齐后）。
type Assembly struct {
	// Header: 编码器产出的共享头部代码（还原任意条目所需的绑定/辅助语句）。
	Header string
	// Items: 与输入同序、同基数；Encoded 已回填。
	Items []Item
}

// Sidecar: 懒加载模式下每个条目的旁路文件。
type Sidecar struct {
	Name    string
	Content string
}

// Module: 最终生成物（一次运行生成一次，整体替换旧输出）。
type Module struct {
	Source   string
	Sidecars []Sidecar
}

// Names 返回条目名（保持顺序）。
func Names(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}
