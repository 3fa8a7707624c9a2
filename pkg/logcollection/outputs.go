package logcollection

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// writerOutput prints lines prefixed with the process and stream name.
// Several collectors may share one writerOutput, hence the mutex.
type writerOutput struct {
	mu         sync.Mutex
	w          io.Writer
	timestamps bool
}

// NewWriterOutput mirrors collected lines to w, one per line, as
// "[process][stream] line". Used by headless mode to print to stdout.
func NewWriterOutput(w io.Writer, timestamps bool) OutputWriter {
	return &writerOutput{w: w, timestamps: timestamps}
}

func (o *writerOutput) Write(entry LogEntry) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var err error
	if o.timestamps {
		_, err = fmt.Fprintf(o.w, "%s [%s][%s] %s\n",
			entry.Timestamp.Format(time.RFC3339), entry.Process, entry.Stream, entry.Line)
	} else {
		_, err = fmt.Fprintf(o.w, "[%s][%s] %s\n", entry.Process, entry.Stream, entry.Line)
	}
	return err
}
