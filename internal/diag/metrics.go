package diag

import (
	"maps"
	"sync"
)

// 进程内最小指标（无外部导出；按需通过 Snapshot 读取）。
// 名称：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}

var (
	metricsMu sync.Mutex
	opTotal   = map[string]int64{}
	errTotal  = map[string]int64{}
	durTotal  = map[string]int64{}
)

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) {
	metricsMu.Lock()
	opTotal["op_total{comp="+comp+",stage="+stage+",result="+result+"}"]++
	metricsMu.Unlock()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	metricsMu.Lock()
	errTotal["error_total{comp="+comp+",code="+code+"}"]++
	metricsMu.Unlock()
}

// ObserveDuration 累加阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	metricsMu.Lock()
	durTotal["op_duration_ms{comp="+comp+",stage="+stage+"}"] += durMS
	metricsMu.Unlock()
}

// Snapshot 返回当前全部计数的拷贝（键为带标签的指标名）。
func Snapshot() map[string]int64 {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	out := make(map[string]int64, len(opTotal)+len(errTotal)+len(durTotal))
	maps.Copy(out, opTotal)
	maps.Copy(out, errTotal)
	maps.Copy(out, durTotal)
	return out
}

// ResetMetrics 清空计数（测试与重复运行使用）。
func ResetMetrics() {
	metricsMu.Lock()
	clear(opTotal)
	clear(errTotal)
	clear(durTotal)
	metricsMu.Unlock()
}
