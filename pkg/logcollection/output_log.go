package logcollection

import "sync"

// OutputLog is the ordered line log of one managed process. Writers go
// through a LogWriter; readers take snapshots. The mutex is held only for a
// single append or a single copy.
//
// Every Reset starts a new generation. A LogWriter from an older generation
// can still be called by a collector that has not drained yet, but its
// appends are discarded, so a cleared log never receives lines from a
// previous run.
type OutputLog struct {
	mu         sync.Mutex
	lines      []string
	generation uint64
}

func NewOutputLog() *OutputLog {
	return &OutputLog{}
}

// Reset clears the log and returns the only writer that may append to the
// new generation.
func (l *OutputLog) Reset() *LogWriter {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.generation++
	l.lines = nil
	return &LogWriter{log: l, generation: l.generation}
}

// Snapshot returns a copy of the current lines.
func (l *OutputLog) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines := make([]string, len(l.lines))
	copy(lines, l.lines)
	return lines
}

func (l *OutputLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

func (l *OutputLog) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

// LogWriter appends to one generation of an OutputLog.
type LogWriter struct {
	log        *OutputLog
	generation uint64
}

// Append adds line to the log. It reports false, and drops the line, when
// the log has been reset since this writer was issued.
func (w *LogWriter) Append(line string) bool {
	w.log.mu.Lock()
	defer w.log.mu.Unlock()

	if w.generation != w.log.generation {
		return false
	}
	w.log.lines = append(w.log.lines, line)
	return true
}
