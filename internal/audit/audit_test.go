package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcherDeliversInOrderAndFlushesOnClose(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink, nil)

	for _, typ := range []string{"login_success", "logout"} {
		d.Emit(context.Background(), Event{EventType: typ, Success: true})
	}
	d.Close()

	first := <-sink.Events()
	second := <-sink.Events()
	if first.EventType != "login_success" || second.EventType != "logout" {
		t.Fatalf("unexpected order: %s, %s", first.EventType, second.EventType)
	}

	d.Emit(context.Background(), Event{EventType: "after_close"})
	select {
	case ev := <-sink.Events():
		t.Fatalf("event emitted after close: %+v", ev)
	default:
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{}, NoOpSink{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "ignored"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher cannot drop")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, Event) { <-s.release }

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, zap.NewNop())

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "flood"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected some events to be dropped")
	}
	close(sink.release)
	d.Close()
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "link_created", UserID: "u1", Provider: "google", Success: true})
	sink.Emit(context.Background(), Event{EventType: "unlink", UserID: "u1"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if ev.Provider != "google" || ev.EventType != "link_created" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{Timestamp: time.Now(), EventType: "login_success", UserID: "u1", Success: true})
	sink.Emit(context.Background(), Event{Timestamp: time.Now(), EventType: "oauth_conflict", Provider: "github", Error: "different account"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zap.InfoLevel || entries[1].Level != zap.WarnLevel {
		t.Fatalf("unexpected levels %v %v", entries[0].Level, entries[1].Level)
	}
	if entries[1].ContextMap()["provider"] != "github" {
		t.Fatalf("missing provider field: %v", entries[1].ContextMap())
	}
}
