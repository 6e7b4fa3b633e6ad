package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/relief-data/landform.report/internal/landform"
)

// MetricsStore provides persistence for accuracy assessment results: one row
// per run plus one row per (run, class) metric entry.
type MetricsStore struct {
	db *sql.DB
}

// NewMetricsStore creates a new MetricsStore.
func NewMetricsStore(db *sql.DB) *MetricsStore {
	return &MetricsStore{db: db}
}

// Insert persists an assessment result and its per-class table in one
// transaction. The result's run ID must be set (the assessor generates one).
func (s *MetricsStore) Insert(res *landform.AssessmentResult) error {
	if res.RunID == "" {
		return fmt.Errorf("assessment result has no run id")
	}
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin assessment insert: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO assessment_runs (run_id, classifier, overall_accuracy, assessed, unassessed, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			res.RunID, string(res.Classifier), res.OverallAccuracy,
			res.Assessed, res.Unassessed, res.CreatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("insert assessment run: %w", err)
		}

		for i := range res.PerClass {
			m := &res.PerClass[i]
			_, err = tx.Exec(`
				INSERT INTO class_metrics (
					run_id, class, tp, fp, fn,
					producer_accuracy, user_accuracy, iou, f1, fn_prop, fp_prop
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				res.RunID, string(m.Class), m.TP, m.FP, m.FN,
				nullable(m.ProducerAcc), nullable(m.UserAcc), nullable(m.IoU),
				nullable(m.F1), nullable(m.FNProp), nullable(m.FPProp),
			)
			if err != nil {
				return fmt.Errorf("insert class metrics for %s: %w", m.Class, err)
			}
		}

		return tx.Commit()
	})
}

// Get returns a single assessment result by run ID, with its per-class table
// in stored order.
func (s *MetricsStore) Get(runID string) (*landform.AssessmentResult, error) {
	row := s.db.QueryRow(`
		SELECT run_id, classifier, overall_accuracy, assessed, unassessed, created_at
		FROM assessment_runs WHERE run_id = ?`, runID)

	res, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("assessment run %s not found", runID)
		}
		return nil, err
	}
	if err := s.loadPerClass(res); err != nil {
		return nil, err
	}
	return res, nil
}

// LatestByClassifier returns the most recent assessment for a classifier,
// the one whose metrics the voting stage should consume.
func (s *MetricsStore) LatestByClassifier(clf landform.ClassifierID) (*landform.AssessmentResult, error) {
	row := s.db.QueryRow(`
		SELECT run_id, classifier, overall_accuracy, assessed, unassessed, created_at
		FROM assessment_runs WHERE classifier = ?
		ORDER BY created_at DESC LIMIT 1`, string(clf))

	res, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no assessment run for classifier %s", clf)
		}
		return nil, err
	}
	if err := s.loadPerClass(res); err != nil {
		return nil, err
	}
	return res, nil
}

// ListRuns returns all assessment runs, newest first, without their
// per-class tables.
func (s *MetricsStore) ListRuns() ([]*landform.AssessmentResult, error) {
	rows, err := s.db.Query(`
		SELECT run_id, classifier, overall_accuracy, assessed, unassessed, created_at
		FROM assessment_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query assessment runs: %w", err)
	}
	defer rows.Close()

	var out []*landform.AssessmentResult
	for rows.Next() {
		res, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Delete removes an assessment run and its per-class rows.
func (s *MetricsStore) Delete(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM assessment_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete assessment run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("assessment run %s not found", runID)
		}
		return nil
	})
}

func (s *MetricsStore) loadPerClass(res *landform.AssessmentResult) error {
	rows, err := s.db.Query(`
		SELECT class, tp, fp, fn, producer_accuracy, user_accuracy, iou, f1, fn_prop, fp_prop
		FROM class_metrics WHERE run_id = ? ORDER BY rowid`, res.RunID)
	if err != nil {
		return fmt.Errorf("query class metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m landform.ClassMetrics
		var class string
		var pa, ua, iou, f1, fnp, fpp sql.NullFloat64
		if err := rows.Scan(&class, &m.TP, &m.FP, &m.FN, &pa, &ua, &iou, &f1, &fnp, &fpp); err != nil {
			return fmt.Errorf("scan class metrics: %w", err)
		}
		m.Class = landform.ClassCode(class)
		m.ProducerAcc = fromNull(pa)
		m.UserAcc = fromNull(ua)
		m.IoU = fromNull(iou)
		m.F1 = fromNull(f1)
		m.FNProp = fromNull(fnp)
		m.FPProp = fromNull(fpp)
		res.PerClass = append(res.PerClass, m)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*landform.AssessmentResult, error) {
	var res landform.AssessmentResult
	var classifier string
	var createdNanos int64
	if err := row.Scan(&res.RunID, &classifier, &res.OverallAccuracy, &res.Assessed, &res.Unassessed, &createdNanos); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan assessment run: %w", err)
	}
	res.Classifier = landform.ClassifierID(classifier)
	res.CreatedAt = nanosToTime(createdNanos)
	return &res, nil
}

func nullable(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
