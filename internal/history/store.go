package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcus/dispatch/internal/db"
	"github.com/marcus/dispatch/internal/task"
)

// Store persists outcomes to the SQLite database.
type Store struct {
	db *db.DB
}

// NewStore creates a store on an opened database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Append writes one outcome.
func (s *Store) Append(o Outcome) error {
	snapshot, err := json.Marshal(o.Snapshot)
	if err != nil {
		return fmt.Errorf("marshaling task snapshot: %w", err)
	}

	_, err = s.db.SQL().Exec(
		`INSERT INTO outcomes (task_id, snapshot, result, success, stage, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.TaskID, string(snapshot), o.Result, boolToInt(o.Success), o.Stage,
		o.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting outcome: %w", err)
	}
	return nil
}

// Recent returns up to limit outcomes, most recent first.
func (s *Store) Recent(limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.SQL().Query(
		`SELECT task_id, snapshot, result, success, stage, created_at
		 FROM outcomes
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	outcomes := make([]Outcome, 0, limit)
	for rows.Next() {
		var (
			o        Outcome
			snapshot string
			success  int
			created  string
		)
		if err := rows.Scan(&o.TaskID, &snapshot, &o.Result, &success, &o.Stage, &created); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Success = success != 0
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			o.Timestamp = ts
		}
		var snap task.Task
		if err := json.Unmarshal([]byte(snapshot), &snap); err == nil {
			o.Snapshot = &snap
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
