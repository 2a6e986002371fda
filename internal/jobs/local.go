package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// LocalDispatcher is the single-process / CLI binding for Dispatcher.
// Each envelope is a small JSON file under baseDir; Enqueue writes to
// queued/, Receive atomically renames one file into running/ (the
// rename is the lock), Ack deletes it, Nack renames it back to
// queued/. A crashed worker simply leaves its envelope in running/
// forever — janitor.go is what reclaims those.
//
// There is no teacher file this is lifted from line-for-line (the
// teacher always talks to a real queue or database); it follows the
// same envelope/visibility-timeout vocabulary as
// internal/jobs/cockroach.go's job rows, rendered as files instead of
// table rows so a local `agentcore serve` needs no external service.
type LocalDispatcher struct {
	mu      sync.Mutex
	baseDir string
	poll    time.Duration
}

type envelope struct {
	Job        models.Job `json:"job"`
	Receipt    int        `json:"receipt"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
}

// NewLocalDispatcher creates the queued/ and running/ subdirectories
// under baseDir if they do not already exist.
func NewLocalDispatcher(baseDir string) (*LocalDispatcher, error) {
	for _, sub := range []string{"queued", "running"} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", sub, err)
		}
	}
	return &LocalDispatcher{baseDir: baseDir, poll: 250 * time.Millisecond}, nil
}

func (d *LocalDispatcher) queuedDir() string  { return filepath.Join(d.baseDir, "queued") }
func (d *LocalDispatcher) runningDir() string { return filepath.Join(d.baseDir, "running") }

func (d *LocalDispatcher) Enqueue(ctx context.Context, job models.Job) error {
	env := envelope{Job: job, EnqueuedAt: time.Now()}
	return d.writeEnvelope(d.queuedDir(), env)
}

func (d *LocalDispatcher) writeEnvelope(dir string, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	name := fmt.Sprintf("%d-%s.json", env.EnqueuedAt.UnixNano(), uuid.NewString())
	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return os.Rename(tmp, path)
}

// Receive polls queued/ for the oldest envelope (by filename, which is
// timestamp-prefixed) and renames it into running/. The rename target
// name is the delivery Handle; a losing race on the rename (another
// worker grabbed it first) is treated as "nothing available yet" and
// the poll continues.
func (d *LocalDispatcher) Receive(ctx context.Context) (*Delivery, error) {
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		if del, err := d.tryClaim(); err != nil {
			return nil, err
		} else if del != nil {
			return del, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *LocalDispatcher) tryClaim() (*Delivery, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := os.ReadDir(d.queuedDir())
	if err != nil {
		return nil, fmt.Errorf("list queued jobs: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)

	for _, name := range names {
		src := filepath.Join(d.queuedDir(), name)
		data, err := os.ReadFile(src)
		if err != nil {
			continue // raced with another claimant or the janitor
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			_ = os.Remove(src) // corrupt envelope, drop it rather than wedge the queue
			continue
		}
		dst := filepath.Join(d.runningDir(), name)
		if err := os.Rename(src, dst); err != nil {
			continue
		}
		env.Receipt++
		if data, err := json.Marshal(env); err == nil {
			_ = os.WriteFile(dst, data, 0o644)
		}
		return &Delivery{Job: env.Job, Handle: name, Receipt: env.Receipt}, nil
	}
	return nil, nil
}

func (d *LocalDispatcher) Ack(ctx context.Context, del *Delivery) error {
	path := filepath.Join(d.runningDir(), del.Handle)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove completed envelope: %w", err)
	}
	return nil
}

func (d *LocalDispatcher) Nack(ctx context.Context, del *Delivery) error {
	src := filepath.Join(d.runningDir(), del.Handle)
	dst := filepath.Join(d.queuedDir(), del.Handle)
	if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release envelope back to queue: %w", err)
	}
	return nil
}

func (d *LocalDispatcher) Close() error { return nil }
