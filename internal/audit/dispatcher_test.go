package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "flow_started"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDeliversAndFlushesOnClose(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{EventType: "flow_started", FlowID: "f1"})
	}
	d.Close()

	got := 0
	for {
		select {
		case ev := <-sink.Events():
			if ev.FlowID != "f1" {
				t.Fatalf("unexpected flow id %q", ev.FlowID)
			}
			got++
		case <-time.After(50 * time.Millisecond):
			if got != 3 {
				t.Fatalf("expected 3 events, got %d", got)
			}
			return
		}
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(context.Context, Event) { <-s.release }

func TestDispatcherDropIfFullCountsDrops(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "route_received"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a stalled sink")
	}
	close(sink.release)
	d.Close()
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "flow_completed", FlowID: "f2", Success: true})
	sink.Emit(context.Background(), Event{EventType: "flow_completed", FlowID: "f3"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.FlowID != "f2" || !ev.Success {
		t.Fatalf("unexpected decoded event %+v", ev)
	}
}

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{EventType: "flow_completed", Success: true})
	sink.Emit(context.Background(), Event{EventType: "status_lookup", Error: "backend down"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("unexpected levels %v %v", entries[0].Level, entries[1].Level)
	}
	if entries[1].LoggerName != "audit" {
		t.Fatalf("unexpected logger name %q", entries[1].LoggerName)
	}
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) { panic("sink exploded") }

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, panicSink{})
	d.Emit(context.Background(), Event{EventType: "flow_finished"})
	d.Emit(context.Background(), Event{EventType: "flow_finished"})
	d.Close()

	if d.Dropped() != 2 {
		t.Fatalf("expected 2 dropped events, got %d", d.Dropped())
	}
	if d.Delivered() != 0 {
		t.Fatalf("expected no deliveries, got %d", d.Delivered())
	}
}

func TestDispatcherBlockingEmitHonorsContext(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	d.Emit(context.Background(), Event{EventType: "flow_started"})
	// The relay may be holding the first event; fill the queue behind it.
	d.Emit(context.Background(), Event{EventType: "flow_started"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{EventType: "flow_started"})

	close(sink.release)
	d.Close()
	if d.Dropped() != 1 {
		t.Fatalf("expected the timed out emit to be dropped, got %d", d.Dropped())
	}
	if d.Delivered() != 2 {
		t.Fatalf("expected 2 deliveries, got %d", d.Delivered())
	}
}
