// Package storage persists the bridge event stream as date-organized JSONL.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/trading-point/chartiq-agent/internal/bridge"
)

// EventLog writes chart events asynchronously to <baseDir>/<date>/events/<tab>.jsonl.
// Writes never block the event path: a full buffer drops the record with a
// warning.
type EventLog struct {
	baseDir   string
	tabID     string
	maxSizeMB int

	writeCh chan bridge.Event
	done    chan struct{}
	wg      sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
}

// NewEventLog starts the write loop. tabID names the output file; pass the
// short form of the CDP target ID.
func NewEventLog(baseDir, tabID string, bufferSize, maxSizeMB int) *EventLog {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	l := &EventLog{
		baseDir:   baseDir,
		tabID:     tabID,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan bridge.Event, bufferSize),
		done:      make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writeLoop()
	return l
}

// ShortTabID returns the first 8 chars of a CDP target ID.
func ShortTabID(targetID string) string {
	if len(targetID) >= 8 {
		return targetID[:8]
	}
	return targetID
}

// Record queues an event for async writing.
func (l *EventLog) Record(evt bridge.Event) error {
	// Checked first on its own: a combined select would race the buffered
	// send against the closed channel and sometimes accept the record.
	select {
	case <-l.done:
		return fmt.Errorf("event log is closed")
	default:
	}

	select {
	case l.writeCh <- evt:
		return nil
	default:
		slog.Warn("event log buffer full, dropping record", "kind", evt.Kind)
		return fmt.Errorf("buffer full")
	}
}

// Consume subscribes to the broker and records everything published until
// the log is closed. Call it as a goroutine.
func (l *EventLog) Consume(broker *bridge.Broker) {
	id, ch := broker.Subscribe()
	defer broker.Unsubscribe(id)
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			_ = l.Record(evt)
		case <-l.done:
			return
		}
	}
}

// Close stops the writer and flushes what it can.
func (l *EventLog) Close() error {
	close(l.done)

	timeout := time.After(5 * time.Second)
	for {
		select {
		case evt := <-l.writeCh:
			l.writeRecord(evt)
		case <-timeout:
			slog.Warn("event log close timeout, some records may be lost")
			goto done
		default:
			goto done
		}
	}

done:
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logger != nil {
		return l.logger.Close()
	}
	return nil
}

func (l *EventLog) writeLoop() {
	defer l.wg.Done()
	for {
		select {
		case evt := <-l.writeCh:
			l.writeRecord(evt)
		case <-l.done:
			return
		}
	}
}

func (l *EventLog) writeRecord(evt bridge.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("failed to marshal event", "error", err, "kind", evt.Kind)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	currentDate := time.Now().UTC().Format("2006-01-02")
	if currentDate != l.currentDate || l.logger == nil {
		l.rotateForDate(currentDate)
	}
	if l.logger == nil {
		return
	}

	if _, err := l.logger.Write(append(data, '\n')); err != nil {
		slog.Error("failed to write event", "error", err, "kind", evt.Kind)
	}
}

func (l *EventLog) rotateForDate(date string) {
	if l.logger != nil {
		l.logger.Close()
	}

	dir := filepath.Join(l.baseDir, date, "events")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("failed to create event log directory", "error", err, "dir", dir)
		l.logger = nil
		return
	}

	name := l.tabID
	if name == "" {
		name = fmt.Sprintf("%d", time.Now().Unix())
	}

	l.logger = &lumberjack.Logger{
		Filename:   filepath.Join(dir, name+".jsonl"),
		MaxSize:    l.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
		Compress:   false,
		LocalTime:  false,
	}

	l.currentDate = date
	slog.Info("opened new event log file", "file", l.logger.Filename)
}
