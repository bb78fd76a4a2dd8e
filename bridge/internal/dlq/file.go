package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultBasePath is used when the file backend is enabled without a path.
const DefaultBasePath = "/var/lib/relay-stack/dlq"

// Queue writes one JSON file per failed delivery into a directory. It suits
// a single bridge instance; use JetStreamQueue when replicas share a DLQ.
// All methods are safe on a nil *Queue.
type Queue struct {
	basePath string
	written  atomic.Uint64
}

// NewQueue creates basePath (and parents) if needed.
func NewQueue(basePath string) (*Queue, error) {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("create dlq directory: %w", err)
	}
	return &Queue{basePath: basePath}, nil
}

// Write stores failed as failed_<unixnano>_<jobID>.json.
func (q *Queue) Write(ctx context.Context, failed FailedEvent) error {
	if q == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if failed.JobID == "" {
		failed.JobID = uuid.NewString()
	}
	if failed.Timestamp.IsZero() {
		failed.Timestamp = time.Now().UTC()
	}

	data, err := json.MarshalIndent(failed, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}

	name := fmt.Sprintf("failed_%d_%s.json", failed.Timestamp.UnixNano(), failed.JobID)
	tmp := filepath.Join(q.basePath, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write dlq entry: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(q.basePath, name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit dlq entry: %w", err)
	}

	q.written.Add(1)
	return nil
}

// List returns up to limit entries, oldest first.
func (q *Queue) List(ctx context.Context, limit int) ([]FailedEvent, error) {
	if q == nil {
		return nil, ErrNotEnabled
	}
	if limit <= 0 {
		limit = 100
	}

	files, err := q.files()
	if err != nil {
		return nil, err
	}

	events := make([]FailedEvent, 0, min(limit, len(files)))
	for _, name := range files {
		if len(events) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(q.basePath, name))
		if err != nil {
			continue
		}
		var failed FailedEvent
		if err := json.Unmarshal(data, &failed); err != nil {
			continue
		}
		events = append(events, failed)
	}
	return events, nil
}

// Delete removes the entry recorded for jobID.
func (q *Queue) Delete(ctx context.Context, jobID string) error {
	if q == nil {
		return ErrNotEnabled
	}
	matches, err := filepath.Glob(filepath.Join(q.basePath, "failed_*_"+jobID+".json"))
	if err != nil {
		return fmt.Errorf("find dlq entry: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("dlq entry for job %s not found", jobID)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return fmt.Errorf("delete dlq entry: %w", err)
		}
	}
	return nil
}

// Purge removes every entry.
func (q *Queue) Purge(ctx context.Context) error {
	if q == nil {
		return ErrNotEnabled
	}
	files, err := q.files()
	if err != nil {
		return err
	}
	for _, name := range files {
		if err := os.Remove(filepath.Join(q.basePath, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("purge dlq entry %s: %w", name, err)
		}
	}
	return nil
}

func (q *Queue) Stats(ctx context.Context) map[string]any {
	if q == nil {
		return map[string]any{"enabled": false, "backend": "file"}
	}
	pending := 0
	if files, err := q.files(); err == nil {
		pending = len(files)
	}
	return map[string]any{
		"enabled":       true,
		"backend":       "file",
		"written":       q.written.Load(),
		"pending_files": pending,
		"base_path":     q.basePath,
	}
}

func (q *Queue) files() ([]string, error) {
	entries, err := os.ReadDir(q.basePath)
	if err != nil {
		return nil, fmt.Errorf("read dlq directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "failed_") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	// unixnano prefixes have equal width for the foreseeable future
	sort.Strings(names)
	return names, nil
}
