package jobs

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

func newTestDispatcher(t *testing.T) *LocalDispatcher {
	t.Helper()
	dir := t.TempDir()
	d, err := NewLocalDispatcher(dir)
	if err != nil {
		t.Fatalf("NewLocalDispatcher: %v", err)
	}
	return d
}

func TestLocalDispatcherEnqueueReceiveAck(t *testing.T) {
	d := newTestDispatcher(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	job := models.Job{ChatID: "chat-1", BotName: "default", UserID: "user-1"}
	if err := d.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	del, err := d.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if del == nil {
		t.Fatal("Receive returned nil delivery for an enqueued job")
	}
	if del.Job != job {
		t.Fatalf("Job = %+v, want %+v", del.Job, job)
	}
	if del.Receipt != 1 {
		t.Fatalf("Receipt = %d, want 1", del.Receipt)
	}

	if err := d.Ack(ctx, del); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	entries, err := os.ReadDir(d.runningDir())
	if err != nil {
		t.Fatalf("ReadDir running: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("running dir not empty after Ack: %v", entries)
	}
}

func TestLocalDispatcherReceiveTimesOutWhenEmpty(t *testing.T) {
	d := newTestDispatcher(t)
	d.poll = 10 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	del, err := d.Receive(ctx)
	if del != nil {
		t.Fatalf("Receive on empty queue = %+v, want nil", del)
	}
	if err == nil {
		t.Fatal("Receive on empty queue with exhausted context want a deadline error")
	}
}

func TestLocalDispatcherNackReturnsJobToQueue(t *testing.T) {
	d := newTestDispatcher(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	job := models.Job{ChatID: "chat-2"}
	if err := d.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	del, err := d.Receive(ctx)
	if err != nil || del == nil {
		t.Fatalf("Receive: %v, %v", del, err)
	}
	if err := d.Nack(ctx, del); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	redelivered, err := d.Receive(ctx)
	if err != nil || redelivered == nil {
		t.Fatalf("Receive after Nack: %v, %v", redelivered, err)
	}
	if redelivered.Receipt != 2 {
		t.Fatalf("Receipt after redelivery = %d, want 2", redelivered.Receipt)
	}
}

func TestLocalDispatcherOrdersFIFO(t *testing.T) {
	d := newTestDispatcher(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i, id := range []string{"chat-a", "chat-b", "chat-c"} {
		if err := d.Enqueue(ctx, models.Job{ChatID: id}); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
		time.Sleep(2 * time.Millisecond) // ensure distinct timestamp prefixes
	}

	var order []string
	for i := 0; i < 3; i++ {
		del, err := d.Receive(ctx)
		if err != nil || del == nil {
			t.Fatalf("Receive %d: %v, %v", i, del, err)
		}
		order = append(order, del.Job.ChatID)
	}
	want := []string{"chat-a", "chat-b", "chat-c"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("delivery order = %v, want %v", order, want)
		}
	}
}

func TestJanitorReclaimsStuckEnvelope(t *testing.T) {
	d := newTestDispatcher(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := d.Enqueue(ctx, models.Job{ChatID: "stuck-chat"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	del, err := d.Receive(ctx)
	if err != nil || del == nil {
		t.Fatalf("Receive: %v, %v", del, err)
	}

	old := time.Now().Add(-time.Hour)
	path := d.runningDir() + "/" + del.Handle
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	j := NewJanitor(d, time.Minute, nil)
	j.sweep()

	redelivered, err := d.Receive(ctx)
	if err != nil || redelivered == nil {
		t.Fatalf("expected janitor to reclaim the stuck envelope: %v, %v", redelivered, err)
	}
	if redelivered.Job.ChatID != "stuck-chat" {
		t.Fatalf("reclaimed job = %+v, want chat-id stuck-chat", redelivered.Job)
	}
}
