package domain

import "time"

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskStopped    TaskStatus = "stopped"
)

// Terminal reports whether the status is final. A task reaches a terminal
// status exactly once and is immutable afterwards.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskStopped:
		return true
	}
	return false
}

// Task tracks one asynchronous PDF-to-Markdown conversion.
// Progress is 0-100 and reaches 100 only on completion.
type Task struct {
	ID        string            `json:"task_id"`
	FileID    string            `json:"file_id"`
	Status    TaskStatus        `json:"status"`
	Progress  int               `json:"progress"`
	Result    *ConversionResult `json:"result"`
	Error     string            `json:"error,omitempty"`
	StartTime *time.Time        `json:"start_time"`
	EndTime   *time.Time        `json:"end_time"`
}

// ConversionResult is the immutable output of a completed conversion.
type ConversionResult struct {
	FileID          string  `json:"file_id"`
	MarkdownContent string  `json:"markdown_content"`
	OutputPath      string  `json:"output_path"`
	ProcessingTime  float64 `json:"processing_time"`
	PagesProcessed  int     `json:"pages_processed"`
	TablesFound     int     `json:"tables_found"`
}

// ConversionEvent announces a task's terminal transition to downstream
// consumers such as the review worker.
type ConversionEvent struct {
	TaskID     string     `json:"task_id"`
	FileID     string     `json:"file_id"`
	Status     TaskStatus `json:"status"`
	OutputPath string     `json:"output_path,omitempty"`
}
