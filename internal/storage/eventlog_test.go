package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/trading-point/chartiq-agent/internal/bridge"
)

func TestShortTabID(t *testing.T) {
	if got := ShortTabID("B0D5A8E8F00D1234"); got != "B0D5A8E8" {
		t.Fatalf("ShortTabID = %q; want B0D5A8E8", got)
	}
	if got := ShortTabID("abc"); got != "abc" {
		t.Fatalf("ShortTabID = %q; want abc", got)
	}
}

func TestEventLogWritesDatedJSONL(t *testing.T) {
	base := t.TempDir()
	log := NewEventLog(base, "TAB1", 8, 10)

	evt := bridge.Event{
		Kind:     bridge.EventChartReady,
		TargetID: "TAB1",
		Time:     time.Now().UTC(),
	}
	if err := log.Record(evt); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	date := time.Now().UTC().Format("2006-01-02")
	path := filepath.Join(base, date, "events", "TAB1.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %d; want 1", len(lines))
	}
	var got bridge.Event
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Kind != bridge.EventChartReady || got.TargetID != "TAB1" {
		t.Fatalf("event = %+v; want chart_ready/TAB1", got)
	}
}

func TestEventLogRejectsAfterClose(t *testing.T) {
	log := NewEventLog(t.TempDir(), "TAB1", 8, 10)
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Rejection must be deterministic, not a coin flip between a ready
	// buffered send and the closed channel.
	for i := 0; i < 50; i++ {
		if err := log.Record(bridge.Event{Kind: bridge.EventLog}); err == nil {
			t.Fatalf("Record %d after Close should fail", i)
		}
	}
}

func TestEventLogConsumesBroker(t *testing.T) {
	base := t.TempDir()
	log := NewEventLog(base, "TAB2", 8, 10)
	broker := bridge.NewBroker()

	done := make(chan struct{})
	go func() {
		log.Consume(broker)
		close(done)
	}()

	// Let the consumer subscribe before publishing.
	deadline := time.Now().Add(time.Second)
	for broker.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("consumer never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	broker.Publish(bridge.Event{Kind: bridge.EventMeasure, TargetID: "TAB2", Time: time.Now().UTC()})

	// Writes are async; wait for the dated file to appear.
	date := time.Now().UTC().Format("2006-01-02")
	path := filepath.Join(base, date, "events", "TAB2.jsonl")
	deadline = time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("event file never appeared: %s", path)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Consume did not stop after Close")
	}
}
