package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/relief-data/landform.report/internal/landform"
)

// SegmentStore persists the segment attribute table: identifiers, reference
// labels, elevations, and the per-classifier predictions as a JSON column.
// Geometry stays with the external spatial layer and is never stored here.
type SegmentStore struct {
	db *sql.DB
}

// NewSegmentStore creates a new SegmentStore.
func NewSegmentStore(db *sql.DB) *SegmentStore {
	return &SegmentStore{db: db}
}

// Upsert writes segments, replacing existing rows with the same identifier.
func (s *SegmentStore) Upsert(segments []landform.Segment) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin segment upsert: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO segments (segment_id, ref_class, mean_elev, preds_json)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(segment_id) DO UPDATE SET
				ref_class = excluded.ref_class,
				mean_elev = excluded.mean_elev,
				preds_json = excluded.preds_json`)
		if err != nil {
			return fmt.Errorf("prepare segment upsert: %w", err)
		}
		defer stmt.Close()

		for i := range segments {
			seg := &segments[i]
			var refClass any
			if seg.RefClass != "" {
				refClass = string(seg.RefClass)
			}
			var elev any
			if seg.MeanElev != nil {
				elev = *seg.MeanElev
			}
			var predsJSON any
			if len(seg.Preds) > 0 {
				b, err := json.Marshal(seg.Preds)
				if err != nil {
					return fmt.Errorf("marshal predictions for %s: %w", seg.ID, err)
				}
				predsJSON = string(b)
			}
			if _, err := stmt.Exec(seg.ID, refClass, elev, predsJSON); err != nil {
				return fmt.Errorf("upsert segment %s: %w", seg.ID, err)
			}
		}

		return tx.Commit()
	})
}

// List returns all stored segments ordered by identifier.
func (s *SegmentStore) List() ([]landform.Segment, error) {
	rows, err := s.db.Query(`
		SELECT segment_id, ref_class, mean_elev, preds_json
		FROM segments ORDER BY segment_id`)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var out []landform.Segment
	for rows.Next() {
		var seg landform.Segment
		var refClass, predsJSON sql.NullString
		var elev sql.NullFloat64
		if err := rows.Scan(&seg.ID, &refClass, &elev, &predsJSON); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		if refClass.Valid {
			seg.RefClass = landform.ClassCode(refClass.String)
		}
		if elev.Valid {
			v := elev.Float64
			seg.MeanElev = &v
		}
		if predsJSON.Valid && predsJSON.String != "" {
			if err := json.Unmarshal([]byte(predsJSON.String), &seg.Preds); err != nil {
				return nil, fmt.Errorf("unmarshal predictions for %s: %w", seg.ID, err)
			}
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// Count returns the number of stored segments.
func (s *SegmentStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM segments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count segments: %w", err)
	}
	return n, nil
}
