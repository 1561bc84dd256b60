// Package scanlog records scan sessions, per-cycle spectrum snapshots and
// device observations to a local sqlite database for later inspection and
// waterfall rendering.
package scanlog

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rfsentry/cellmon/internal/band"
	"github.com/rfsentry/cellmon/internal/dsp"
)

//go:embed schema.sql
var schemaSQL string

const (
	insertSessionSQL = `
INSERT INTO sessions (id, started_at, source, config)
VALUES (?, ?, ?, ?)`

	insertObservationSQL = `
INSERT INTO observations (session_id, timestamp, device_id, technology, band, link, frequency, power, burst_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertSnapshotSQL = `
INSERT INTO snapshots (session_id, timestamp, center_freq, sample_rate, power_db)
VALUES (?, ?, ?, ?, ?)`

	selectSnapshotsSinceSQL = `
SELECT timestamp, center_freq, sample_rate, power_db
FROM snapshots
WHERE timestamp >= ?
ORDER BY timestamp
LIMIT ?`
)

// Observation is one classified detection tied to a scan session.
type Observation struct {
	Timestamp  time.Time
	DeviceID   string
	Technology band.Technology
	Band       int
	Link       band.Link
	Frequency  float64
	PowerDB    float64
	BurstCount int
}

// SpectrumRow is a stored spectrum snapshot read back for rendering.
type SpectrumRow struct {
	Timestamp  time.Time
	CenterFreq int64
	SampleRate int64
	PowerDB    []float64
}

// Recorder handles scan log database operations. Connections are opened
// lazily, separately for reads and writes.
type Recorder struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a recorder backed by the sqlite file at dbPath. The schema is
// initialized on first write.
func New(dbPath string) *Recorder {
	return &Recorder{dbPath: dbPath}
}

func (r *Recorder) getWriteDB() (*sql.DB, error) {
	r.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", r.dbPath))
		if err != nil {
			r.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			r.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		r.writeDB = db
	})
	return r.writeDB, r.writeDBErr
}

func (r *Recorder) getReadDB() (*sql.DB, error) {
	r.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", r.dbPath))
		if err != nil {
			r.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		r.readDB = db
	})
	return r.readDB, r.readDBErr
}

// BeginSession registers a new scan session and returns its id. Config can
// be any JSON-serializable value describing the capture setup.
func (r *Recorder) BeginSession(source string, config any) (string, error) {
	db, err := r.getWriteDB()
	if err != nil {
		return "", err
	}

	var configData sql.NullString
	if config != nil {
		p, err := json.Marshal(config)
		if err != nil {
			return "", fmt.Errorf("marshaling session config: %w", err)
		}
		configData = sql.NullString{String: string(p), Valid: true}
	}

	id := uuid.NewString()
	if _, err := db.Exec(insertSessionSQL, id, time.Now().UTC(), source, configData); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return id, nil
}

// RecordObservation stores one classified detection.
func (r *Recorder) RecordObservation(sessionID string, obs Observation) error {
	db, err := r.getWriteDB()
	if err != nil {
		return err
	}

	_, err = db.Exec(insertObservationSQL,
		sessionID,
		obs.Timestamp.UTC(),
		obs.DeviceID,
		string(obs.Technology),
		obs.Band,
		string(obs.Link),
		obs.Frequency,
		obs.PowerDB,
		obs.BurstCount,
	)
	if err != nil {
		return fmt.Errorf("storing observation: %w", err)
	}
	return nil
}

// RecordSnapshot stores the bin powers of one spectrum snapshot. Bins are
// serialized as JSON; snapshots are read back only for rendering, never on
// the hot path.
func (r *Recorder) RecordSnapshot(sessionID string, snap *dsp.Snapshot) error {
	db, err := r.getWriteDB()
	if err != nil {
		return err
	}

	bins, err := json.Marshal(snap.PowerDB)
	if err != nil {
		return fmt.Errorf("marshaling snapshot bins: %w", err)
	}

	_, err = db.Exec(insertSnapshotSQL,
		sessionID,
		snap.Timestamp.UTC(),
		snap.CenterFreq,
		snap.SampleRate,
		string(bins),
	)
	if err != nil {
		return fmt.Errorf("storing snapshot: %w", err)
	}
	return nil
}

// SnapshotsSince returns up to limit stored snapshots not older than since,
// in chronological order.
func (r *Recorder) SnapshotsSince(since time.Time, limit int) ([]SpectrumRow, error) {
	db, err := r.getReadDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(selectSnapshotsSinceSQL, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var out []SpectrumRow
	for rows.Next() {
		var row SpectrumRow
		var bins string
		if err := rows.Scan(&row.Timestamp, &row.CenterFreq, &row.SampleRate, &bins); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if err := json.Unmarshal([]byte(bins), &row.PowerDB); err != nil {
			return nil, fmt.Errorf("decoding snapshot bins: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshots: %w", err)
	}
	return out, nil
}

// Close releases both database handles. Safe to call multiple times.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		if r.writeDB != nil {
			if err := r.writeDB.Close(); err != nil {
				r.closeErr = err
			}
		}
		if r.readDB != nil {
			if err := r.readDB.Close(); err != nil && r.closeErr == nil {
				r.closeErr = err
			}
		}
	})
	return r.closeErr
}
