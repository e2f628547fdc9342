package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Fullex26/camnotify/pkg/models"
	_ "modernc.org/sqlite"
)

const DefaultDBPath = "/var/lib/camnotify/dispatches.db"

// recentLimit caps GetRecentDispatches
const recentLimit = 100

// Store persists dispatch records in SQLite
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database, creating its parent directory if needed
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS dispatches (
			id TEXT PRIMARY KEY,
			detection_id TEXT NOT NULL,
			notifier TEXT NOT NULL,
			camera TEXT NOT NULL,
			outcome TEXT NOT NULL,
			status_code INTEGER NOT NULL DEFAULT 0,
			timestamp DATETIME NOT NULL,
			payload TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_dispatches_timestamp ON dispatches(timestamp);
		CREATE INDEX IF NOT EXISTS idx_dispatches_outcome ON dispatches(outcome);
		CREATE INDEX IF NOT EXISTS idx_dispatches_notifier ON dispatches(notifier);
	`)
	return err
}

// SaveDispatch persists a dispatch record
func (s *Store) SaveDispatch(d models.Dispatch) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding dispatch: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO dispatches (id, detection_id, notifier, camera, outcome, status_code, timestamp, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.DetectionID, d.Notifier, d.Camera, string(d.Outcome), d.StatusCode, d.Timestamp, string(payload),
	)
	return err
}

// GetRecentDispatches returns dispatches from the last N hours, newest first
func (s *Store) GetRecentDispatches(hours int) ([]models.Dispatch, error) {
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	rows, err := s.db.Query(`
		SELECT payload FROM dispatches
		WHERE timestamp > ?
		ORDER BY timestamp DESC
		LIMIT ?`, since, recentLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dispatches []models.Dispatch
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var d models.Dispatch
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			continue
		}
		dispatches = append(dispatches, d)
	}
	return dispatches, rows.Err()
}

// GetDispatchCount returns the number of dispatches in the last N hours
func (s *Store) GetDispatchCount(hours int) (int, error) {
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM dispatches WHERE timestamp > ?`, since).Scan(&count)
	return count, err
}

// GetOutcomeCounts groups the dispatches of the last N hours by outcome
func (s *Store) GetOutcomeCounts(hours int) (map[models.Outcome]int, error) {
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	rows, err := s.db.Query(`
		SELECT outcome, COUNT(*) FROM dispatches
		WHERE timestamp > ?
		GROUP BY outcome`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[models.Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

// GetLastSuccessTime returns when an endpoint last accepted a notification
func (s *Store) GetLastSuccessTime() (string, error) {
	var timestamp time.Time
	err := s.db.QueryRow(`
		SELECT timestamp FROM dispatches
		WHERE outcome = ?
		ORDER BY timestamp DESC
		LIMIT 1`, string(models.OutcomeSuccess)).Scan(&timestamp)
	if err == sql.ErrNoRows {
		return "never", nil
	}
	if err != nil {
		return "", err
	}

	diff := time.Since(timestamp)
	if diff < time.Hour {
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes())), nil
	}
	if diff < 24*time.Hour {
		return fmt.Sprintf("%d hours ago", int(diff.Hours())), nil
	}
	return fmt.Sprintf("%d days ago", int(diff.Hours()/24)), nil
}

// Prune removes dispatches older than N days
func (s *Store) Prune(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result, err := s.db.Exec(`DELETE FROM dispatches WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
