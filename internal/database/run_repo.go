package database

import (
	"database/sql"
	"fmt"

	"github.com/kelvinpraises/vidrune/internal/models"
)

type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) InsertRun(run *models.IndexRun) error {
	_, err := r.db.conn.Exec(`
		INSERT INTO index_runs (id, video_id, status, scene_count, manifest, srt, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.VideoID, run.Status, run.SceneCount,
		run.Manifest, run.SRT, run.Error, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert index run: %w", err)
	}
	return nil
}

func (r *RunRepository) GetRunByID(id string) (*models.IndexRun, error) {
	row := r.db.conn.QueryRow(`
		SELECT id, video_id, status, scene_count, manifest, srt, error, started_at, finished_at
		FROM index_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("index run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get index run: %w", err)
	}
	return run, nil
}

// LatestRunForVideo returns the most recent run over a video, or nil when
// the video has never been indexed.
func (r *RunRepository) LatestRunForVideo(videoID string) (*models.IndexRun, error) {
	row := r.db.conn.QueryRow(`
		SELECT id, video_id, status, scene_count, manifest, srt, error, started_at, finished_at
		FROM index_runs WHERE video_id = ?
		ORDER BY started_at DESC LIMIT 1`, videoID)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest index run: %w", err)
	}
	return run, nil
}

func (r *RunRepository) ListRunsForVideo(videoID string) ([]*models.IndexRun, error) {
	rows, err := r.db.conn.Query(`
		SELECT id, video_id, status, scene_count, manifest, srt, error, started_at, finished_at
		FROM index_runs WHERE video_id = ?
		ORDER BY started_at DESC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list index runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.IndexRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan index run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row rowScanner) (*models.IndexRun, error) {
	var run models.IndexRun
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.VideoID, &run.Status, &run.SceneCount,
		&run.Manifest, &run.SRT, &run.Error, &run.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}
