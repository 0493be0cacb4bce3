package obs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// Heartbeat writes periodic liveness rows with Go runtime stats so operators
// can tell a hung daemon from a dead one.
type Heartbeat struct {
	db       *sql.DB
	worker   string
	hostname string
	pid      int
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewHeartbeat creates a heartbeat writer. Typical interval: 15s.
func NewHeartbeat(db *sql.DB, worker string, interval time.Duration) *Heartbeat {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &Heartbeat{
		db:       db,
		worker:   worker,
		hostname: hostname,
		pid:      os.Getpid(),
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the heartbeat goroutine: one beat immediately, then one per
// interval until Stop or context cancellation.
func (h *Heartbeat) Start(ctx context.Context) {
	go h.loop(ctx)
}

// Beat writes a single heartbeat row.
func (h *Heartbeat) Beat() error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	_, err := h.db.Exec(`
		INSERT INTO worker_heartbeats (
			worker_name, hostname, worker_pid, timestamp,
			goroutines_count, memory_alloc_mb, gc_count
		) VALUES (?,?,?,?,?,?,?)`,
		h.worker, h.hostname, h.pid, time.Now().Unix(),
		runtime.NumGoroutine(), float64(mem.Alloc)/1024/1024, mem.NumGC)
	if err != nil {
		return fmt.Errorf("insert heartbeat: %w", err)
	}
	return nil
}

// Stop signals the goroutine to exit and waits for it.
func (h *Heartbeat) Stop() {
	close(h.stop)
	<-h.done
}

func (h *Heartbeat) loop(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.Beat(); err != nil {
		slog.Error("heartbeat failed", "error", err, "worker", h.worker)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case <-ticker.C:
			if err := h.Beat(); err != nil {
				slog.Error("heartbeat failed", "error", err, "worker", h.worker)
			}
		}
	}
}

// Status is the latest heartbeat for a worker plus a staleness verdict.
type Status struct {
	WorkerName      string    `json:"worker_name"`
	Hostname        string    `json:"hostname"`
	PID             int       `json:"pid"`
	Timestamp       time.Time `json:"timestamp"`
	GoroutinesCount int       `json:"goroutines_count"`
	MemoryAllocMB   float64   `json:"memory_alloc_mb"`
	GCCount         int       `json:"gc_count"`
	Alive           bool      `json:"alive"`
}

// LatestStatus returns the most recent heartbeat for a worker; staleness is
// judged against the given threshold (typically 3x the beat interval).
// Returns nil, nil when no heartbeat exists yet.
func LatestStatus(ctx context.Context, db *sql.DB, worker string, staleness time.Duration) (*Status, error) {
	row := db.QueryRowContext(ctx, `
		SELECT worker_name, hostname, worker_pid, timestamp,
		       goroutines_count, memory_alloc_mb, gc_count
		FROM worker_heartbeats
		WHERE worker_name = ?
		ORDER BY timestamp DESC LIMIT 1`, worker)

	var s Status
	var ts int64
	err := row.Scan(&s.WorkerName, &s.Hostname, &s.PID, &ts,
		&s.GoroutinesCount, &s.MemoryAllocMB, &s.GCCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Timestamp = time.Unix(ts, 0)
	s.Alive = time.Since(s.Timestamp) <= staleness
	return &s, nil
}
