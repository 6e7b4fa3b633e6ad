package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relief-data/landform.report/internal/landform"
)

// EnsembleRun describes one persisted voting run.
type EnsembleRun struct {
	RunID      string          `json:"run_id"`
	Voted      int             `json:"voted"`
	Unvoted    int             `json:"unvoted"`
	ParamsJSON json.RawMessage `json:"params_json,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// VoteStore provides persistence for ensemble voting runs and their
// per-segment votes.
type VoteStore struct {
	db *sql.DB
}

// NewVoteStore creates a new VoteStore.
func NewVoteStore(db *sql.DB) *VoteStore {
	return &VoteStore{db: db}
}

// InsertOutcome persists a voting run and all of its votes in one
// transaction. If runID is empty a UUID is generated; the run ID used is
// returned either way.
func (s *VoteStore) InsertOutcome(runID string, outcome *landform.EnsembleOutcome, params json.RawMessage) (string, error) {
	if runID == "" {
		runID = uuid.New().String()
	}
	err := retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin vote insert: %w", err)
		}
		defer tx.Rollback()

		var paramsStr any
		if len(params) > 0 {
			paramsStr = string(params)
		}
		_, err = tx.Exec(`
			INSERT INTO ensemble_runs (run_id, voted, unvoted, params_json, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			runID, outcome.Voted, outcome.Unvoted, paramsStr, time.Now().UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("insert ensemble run: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO ensemble_votes (run_id, segment_id, label, sources, score, overridden)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare vote insert: %w", err)
		}
		defer stmt.Close()

		for i := range outcome.Votes {
			v := &outcome.Votes[i]
			var label, sources any
			var score any
			if v.Label != "" {
				label = string(v.Label)
				sources = joinSources(v.Sources)
				score = v.Score
			}
			if _, err := stmt.Exec(runID, v.SegmentID, label, sources, score, v.Overridden); err != nil {
				return fmt.Errorf("insert vote for segment %s: %w", v.SegmentID, err)
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return "", err
	}
	return runID, nil
}

// GetOutcome loads a voting run's votes in stored order.
func (s *VoteStore) GetOutcome(runID string) (*landform.EnsembleOutcome, error) {
	var voted, unvoted int
	err := s.db.QueryRow(`SELECT voted, unvoted FROM ensemble_runs WHERE run_id = ?`, runID).
		Scan(&voted, &unvoted)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ensemble run %s not found", runID)
		}
		return nil, fmt.Errorf("scan ensemble run: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT segment_id, label, sources, score, overridden
		FROM ensemble_votes WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query ensemble votes: %w", err)
	}
	defer rows.Close()

	outcome := &landform.EnsembleOutcome{Voted: voted, Unvoted: unvoted}
	for rows.Next() {
		var v landform.EnsembleVote
		var label, sources sql.NullString
		var score sql.NullFloat64
		if err := rows.Scan(&v.SegmentID, &label, &sources, &score, &v.Overridden); err != nil {
			return nil, fmt.Errorf("scan ensemble vote: %w", err)
		}
		if label.Valid {
			v.Label = landform.ClassCode(label.String)
		}
		if sources.Valid && sources.String != "" {
			for _, s := range strings.Split(sources.String, "+") {
				v.Sources = append(v.Sources, landform.ClassifierID(s))
			}
		}
		if score.Valid {
			v.Score = score.Float64
		}
		outcome.Votes = append(outcome.Votes, v)
	}
	return outcome, rows.Err()
}

// ListRuns returns all ensemble runs, newest first.
func (s *VoteStore) ListRuns() ([]*EnsembleRun, error) {
	rows, err := s.db.Query(`
		SELECT run_id, voted, unvoted, params_json, created_at
		FROM ensemble_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query ensemble runs: %w", err)
	}
	defer rows.Close()

	var out []*EnsembleRun
	for rows.Next() {
		var run EnsembleRun
		var params sql.NullString
		var createdNanos int64
		if err := rows.Scan(&run.RunID, &run.Voted, &run.Unvoted, &params, &createdNanos); err != nil {
			return nil, fmt.Errorf("scan ensemble run: %w", err)
		}
		if params.Valid {
			run.ParamsJSON = json.RawMessage(params.String)
		}
		run.CreatedAt = nanosToTime(createdNanos)
		out = append(out, &run)
	}
	return out, rows.Err()
}

// LabelCounts returns how many segments received each ensemble label in a
// run, for the results dashboard.
func (s *VoteStore) LabelCounts(runID string) (map[landform.ClassCode]int, error) {
	rows, err := s.db.Query(`
		SELECT label, COUNT(*) FROM ensemble_votes
		WHERE run_id = ? AND label IS NOT NULL
		GROUP BY label`, runID)
	if err != nil {
		return nil, fmt.Errorf("query label counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[landform.ClassCode]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("scan label count: %w", err)
		}
		counts[landform.ClassCode(label)] = n
	}
	return counts, rows.Err()
}

func joinSources(sources []landform.ClassifierID) string {
	parts := make([]string, len(sources))
	for i, clf := range sources {
		parts[i] = string(clf)
	}
	return strings.Join(parts, "+")
}

func nanosToTime(nanos int64) time.Time {
	return time.Unix(0, nanos)
}
