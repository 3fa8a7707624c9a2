package logcollection

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/core-tools/hsu-micromanage/pkg/logging"
)

const (
	DefaultQueueCapacity = 100
	MaxLineLength        = 1024 * 1024

	initialScanBuffer = 64 * 1024
	maxRecordedErrors = 10
)

// CollectorConfig tunes one collector.
type CollectorConfig struct {
	// QueueCapacity bounds the lines in flight between readers and the
	// consumer. A full queue blocks readers; nothing is dropped.
	QueueCapacity int

	Outputs []OutputWriter

	// OnLine is called by the consumer for every line, after it was
	// appended. Used for metrics.
	OnLine func(stream StreamType, line string)
}

// Collector merges the output streams of one process run into its
// OutputLog: one reader goroutine per stream, one bounded queue, one
// consumer goroutine that is the only writer of the log.
type Collector struct {
	process string
	writer  *LogWriter
	config  CollectorConfig
	logger  logging.Logger

	queue     chan LogEntry
	done      chan struct{}
	readers   sync.WaitGroup
	startOnce sync.Once

	active         atomic.Bool
	linesProcessed atomic.Int64
	bytesProcessed atomic.Int64
	lastActivity   atomic.Int64

	errMu  sync.Mutex
	errors []string
}

func NewCollector(process string, writer *LogWriter, config CollectorConfig, logger logging.Logger) *Collector {
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = DefaultQueueCapacity
	}
	return &Collector{
		process: process,
		writer:  writer,
		config:  config,
		logger:  logger,
		queue:   make(chan LogEntry, config.QueueCapacity),
		done:    make(chan struct{}),
	}
}

// Start launches a reader per stream and the consumer. It returns
// immediately. Calling it again has no effect.
func (c *Collector) Start(streams ...Stream) {
	c.startOnce.Do(func() {
		c.active.Store(true)

		for _, stream := range streams {
			c.readers.Add(1)
			go c.readStream(stream)
		}

		// The queue closes only after every reader returned, so no send can
		// hit a closed channel.
		go func() {
			c.readers.Wait()
			close(c.queue)
		}()

		go c.consume()
	})
}

// Done is closed once every stream reached end-of-stream and every queued
// line has been consumed.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

func (c *Collector) Status() CollectorStatus {
	c.errMu.Lock()
	errorsCopy := make([]string, len(c.errors))
	copy(errorsCopy, c.errors)
	c.errMu.Unlock()

	var lastActivity time.Time
	if nanos := c.lastActivity.Load(); nanos != 0 {
		lastActivity = time.Unix(0, nanos)
	}

	return CollectorStatus{
		Process:        c.process,
		Active:         c.active.Load(),
		LinesProcessed: c.linesProcessed.Load(),
		BytesProcessed: c.bytesProcessed.Load(),
		LastActivity:   lastActivity,
		Errors:         errorsCopy,
	}
}

func (c *Collector) readStream(stream Stream) {
	defer c.readers.Done()
	defer stream.Reader.Close()

	scanner := bufio.NewScanner(stream.Reader)
	scanner.Buffer(make([]byte, 0, initialScanBuffer), MaxLineLength)
	scanner.Split(splitLines(MaxLineLength))

	for scanner.Scan() {
		line := scanner.Text()
		if !utf8.ValidString(line) {
			line = strings.ToValidUTF8(line, "\uFFFD")
		}

		// Blocks while the queue is full.
		c.queue <- LogEntry{
			Timestamp: time.Now(),
			Process:   c.process,
			Stream:    stream.Type,
			Line:      line,
		}
	}

	if err := scanner.Err(); err != nil && !isClosedStream(err) {
		c.logger.Warnf("Error reading from stream, stream: %s, error: %v", stream.Type, err)
		c.recordError(fmt.Sprintf("%s read error: %v", stream.Type, err))
	}
	c.logger.Debugf("Stream reached end, stream: %s", stream.Type)
}

func (c *Collector) consume() {
	defer close(c.done)
	defer c.active.Store(false)

	for entry := range c.queue {
		if !c.writer.Append(entry.Line) {
			// The log was reset for a newer run; keep draining so readers
			// never block on a queue nobody reads.
			continue
		}

		c.linesProcessed.Add(1)
		c.bytesProcessed.Add(int64(len(entry.Line)))
		c.lastActivity.Store(entry.Timestamp.UnixNano())

		for _, output := range c.config.Outputs {
			if err := output.Write(entry); err != nil {
				c.logger.Warnf("Failed to write to output, error: %v", err)
				c.recordError(fmt.Sprintf("output write error: %v", err))
			}
		}

		if c.config.OnLine != nil {
			c.config.OnLine(entry.Stream, entry.Line)
		}
	}
}

func (c *Collector) recordError(errMsg string) {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	c.errors = append(c.errors, fmt.Sprintf("%s: %s", time.Now().Format(time.RFC3339), errMsg))
	if len(c.errors) > maxRecordedErrors {
		c.errors = c.errors[len(c.errors)-maxRecordedErrors:]
	}
}

// splitLines is bufio.ScanLines that emits an over-long line in chunks of
// max bytes instead of failing the scan.
func splitLines(max int) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		advance, token, err := bufio.ScanLines(data, atEOF)
		if advance == 0 && token == nil && err == nil && len(data) >= max {
			return max, data[:max], nil
		}
		return advance, token, err
	}
}

func isClosedStream(err error) bool {
	return stderrors.Is(err, os.ErrClosed) || stderrors.Is(err, io.ErrClosedPipe)
}
