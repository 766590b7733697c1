package store

import (
	"database/sql"
	"fmt"
	"time"

	"elasticgrid/kernel"
	"elasticgrid/logger"
)

// DecisionStore is the append-only audit trail of every action the engine
// emitted, kept purely for observability alongside the JSON state snapshot.
type DecisionStore struct {
	db *sql.DB
}

// DecisionRecord is one persisted row of tick_decisions.
type DecisionRecord struct {
	ID           int64
	Timestamp    time.Time
	Side         string
	Action       string
	Volume       float64
	Comment      string
	BasketProfit float64
}

func (s *DecisionStore) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tick_decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			side TEXT NOT NULL,
			action TEXT NOT NULL,
			volume REAL NOT NULL DEFAULT 0,
			comment TEXT NOT NULL DEFAULT '',
			basket_profit REAL NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("create tick_decisions table: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_tick_decisions_ts ON tick_decisions(timestamp)`)
	return err
}

// RecordDecision appends one emitted action to the audit log. Implements
// kernel.Recorder; a write failure is logged and swallowed, since the
// audit log must never block tick processing.
func (s *DecisionStore) RecordDecision(side kernel.Side, action kernel.Action, basketProfit float64, ts time.Time) {
	_, err := s.db.Exec(`
		INSERT INTO tick_decisions (timestamp, side, action, volume, comment, basket_profit)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ts, string(side), string(action.Kind), action.Volume, action.Comment, basketProfit)
	if err != nil {
		logger.Warnf("store: failed to record decision: %v", err)
	}
}

// Recent returns the most recent n audit rows, newest first.
func (s *DecisionStore) Recent(n int) ([]DecisionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, side, action, volume, comment, basket_profit
		FROM tick_decisions ORDER BY id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query tick_decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Side, &rec.Action, &rec.Volume, &rec.Comment, &rec.BasketProfit); err != nil {
			return nil, fmt.Errorf("scan tick_decisions row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
