package logcollection

import (
	"io"
	"time"
)

// StreamType identifies the source stream
type StreamType string

const (
	StdoutStream StreamType = "stdout"
	StderrStream StreamType = "stderr"
)

// Stream is one readable output of a process. The collector owns Reader
// once started and closes it at end-of-stream.
type Stream struct {
	Type   StreamType
	Reader io.ReadCloser
}

// LogEntry is one decoded line on its way from a stream reader to the log.
type LogEntry struct {
	Timestamp time.Time  `json:"timestamp"`
	Process   string     `json:"process"`
	Stream    StreamType `json:"stream"`
	Line      string     `json:"line"`
}

// OutputWriter mirrors collected lines somewhere besides the OutputLog.
// It is called from the single consumer goroutine, never concurrently by
// one collector.
type OutputWriter interface {
	Write(entry LogEntry) error
}

// CollectorStatus provides status information for one collector
type CollectorStatus struct {
	Process        string    `json:"process"`
	Active         bool      `json:"active"`
	LinesProcessed int64     `json:"lines_processed"`
	BytesProcessed int64     `json:"bytes_processed"`
	LastActivity   time.Time `json:"last_activity"`
	Errors         []string  `json:"errors,omitempty"`
}
