package runner

// ProgressEvent 运行进度事件
type ProgressEvent struct {
	RunID   string `json:"runId"`
	Percent int    `json:"percent"`
	Stage   string `json:"stage"`
}

// 运行阶段
const (
	StageStart      = "start"
	StageDiscovered = "sources_resolved"
	StageAggregate  = "aggregating"
	StageExport     = "exporting"
	StageDone       = "done"
)

func reportProgress(progress func(ProgressEvent), runID string, percent int, stage string) {
	if progress == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	progress(ProgressEvent{
		RunID:   runID,
		Percent: percent,
		Stage:   stage,
	})
}
