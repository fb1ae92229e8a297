package database

import (
	"context"
	"database/sql"
	"fmt"

	"crypto-alerts-bot/internal/types"

	log "github.com/sirupsen/logrus"
)

// SaveMetrics upserts a snapshot of counters in one transaction.
func (s *Store) SaveMetrics(ctx context.Context, samples []types.MetricSample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin metrics snapshot: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO metrics (metric_name, label_key, label_value, metric_value)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (metric_name, label_key, label_value) DO UPDATE SET metric_value = excluded.metric_value;`)
	if err != nil {
		return fmt.Errorf("failed to prepare metric upsert: %w", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		if _, err := stmt.ExecContext(ctx, sample.Name, sample.LabelKey, sample.LabelValue, sample.Value); err != nil {
			return fmt.Errorf("failed to save metric %s: %w", sample.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metrics snapshot: %w", err)
	}
	log.Debugf("Saved %d metric samples", len(samples))
	return nil
}

// LoadMetric reads an unlabelled counter. The bool is false when nothing was saved yet.
func (s *Store) LoadMetric(ctx context.Context, name string) (float64, bool, error) {
	var value float64
	query := `
	SELECT metric_value FROM metrics
	WHERE metric_name = ? AND label_key = '' AND label_value = '';`
	err := s.db.QueryRowContext(ctx, query, name).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, false, nil
	} else if err != nil {
		return 0, false, fmt.Errorf("failed to load metric %s: %w", name, err)
	}
	return value, true, nil
}

// LoadLabelledMetrics reads every labelled sample of a counter.
func (s *Store) LoadLabelledMetrics(ctx context.Context, name string) ([]types.MetricSample, error) {
	query := `
	SELECT label_key, label_value, metric_value FROM metrics
	WHERE metric_name = ? AND label_key != ''
	ORDER BY label_key, label_value;`

	rows, err := s.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query labelled metric %s: %w", name, err)
	}
	defer rows.Close()

	var samples []types.MetricSample
	for rows.Next() {
		sample := types.MetricSample{Name: name}
		if err := rows.Scan(&sample.LabelKey, &sample.LabelValue, &sample.Value); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}
