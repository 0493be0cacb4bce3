package obs

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Metric is a single timeseries datapoint.
type Metric struct {
	Name      string
	Timestamp time.Time
	Value     float64
	Labels    map[string]string
	Unit      string // "count", "milliseconds", "ratio"
}

// Metrics buffers datapoints and flushes them to SQLite in batches, so hot
// paths pay one mutexed append rather than a write per datapoint.
type Metrics struct {
	db            *sql.DB
	bufferSize    int
	flushInterval time.Duration

	mu     sync.Mutex
	buffer []*Metric

	stop chan struct{}
	done chan struct{}
}

// NewMetrics starts a buffered metrics writer. Zero bufferSize or
// flushInterval fall back to 100 datapoints / 5s.
func NewMetrics(db *sql.DB, bufferSize int, flushInterval time.Duration) *Metrics {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	m := &Metrics{
		db:            db,
		bufferSize:    bufferSize,
		flushInterval: flushInterval,
		buffer:        make([]*Metric, 0, bufferSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go m.flushLoop()
	return m
}

// Record queues a datapoint. Non-blocking.
func (m *Metrics) Record(dp *Metric) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffer = append(m.buffer, dp)
	if len(m.buffer) >= m.bufferSize {
		m.flushLocked()
	}
}

// Count records a counter-style datapoint without labels.
func (m *Metrics) Count(name string, value float64) {
	m.Record(&Metric{Name: name, Timestamp: time.Now(), Value: value, Unit: "count"})
}

// Observe records a duration in milliseconds.
func (m *Metrics) Observe(name string, d time.Duration) {
	m.Record(&Metric{
		Name:      name,
		Timestamp: time.Now(),
		Value:     float64(d.Milliseconds()),
		Unit:      "milliseconds",
	})
}

// Query returns the newest datapoints for one metric name; empty name means
// all metrics.
func (m *Metrics) Query(ctx context.Context, name string, limit int) ([]*Metric, error) {
	q := `SELECT metric_name, timestamp, value, labels, unit FROM metrics_timeseries`
	args := []any{}
	if name != "" {
		q += ` WHERE metric_name = ?`
		args = append(args, name)
	}
	q += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Metric
	for rows.Next() {
		var dp Metric
		var ts int64
		var labels sql.NullString
		if err := rows.Scan(&dp.Name, &ts, &dp.Value, &labels, &dp.Unit); err != nil {
			return nil, err
		}
		dp.Timestamp = time.Unix(ts, 0)
		if labels.Valid {
			json.Unmarshal([]byte(labels.String), &dp.Labels)
		}
		out = append(out, &dp)
	}
	return out, rows.Err()
}

// Flush persists buffered datapoints immediately.
func (m *Metrics) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushLocked()
}

// Close flushes remaining datapoints and stops the background goroutine.
func (m *Metrics) Close() error {
	close(m.stop)
	<-m.done
	return nil
}

func (m *Metrics) flushLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			m.Flush()
			return
		case <-ticker.C:
			m.Flush()
		}
	}
}

func (m *Metrics) flushLocked() {
	if len(m.buffer) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("metrics flush: begin tx", "error", err)
		return
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO metrics_timeseries (metric_name, timestamp, value, labels, unit) VALUES (?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		slog.Error("metrics flush: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, dp := range m.buffer {
		var labels sql.NullString
		if len(dp.Labels) > 0 {
			if b, err := json.Marshal(dp.Labels); err == nil {
				labels = sql.NullString{String: string(b), Valid: true}
			}
		}
		if _, err := stmt.ExecContext(ctx, dp.Name, dp.Timestamp.Unix(), dp.Value, labels, dp.Unit); err != nil {
			slog.Error("metrics flush: insert", "error", err, "metric", dp.Name)
		}
	}
	if err := tx.Commit(); err != nil {
		slog.Error("metrics flush: commit", "error", err)
		return
	}
	m.buffer = m.buffer[:0]
}
