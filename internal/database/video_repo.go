package database

import (
	"database/sql"
	"fmt"

	"github.com/kelvinpraises/vidrune/internal/models"
)

type VideoRepository struct {
	db *DB
}

func NewVideoRepository(db *DB) *VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) InsertVideo(video *models.Video) error {
	_, err := r.db.conn.Exec(`
		INSERT INTO videos (id, title, description, uploaded_by, filename, content_type, size, upload_time, index_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		video.ID, video.Title, video.Description, video.UploadedBy,
		video.Filename, video.ContentType, video.Size, video.UploadTime, video.IndexStatus)
	if err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}
	return nil
}

func (r *VideoRepository) GetVideoByID(id string) (*models.Video, error) {
	row := r.db.conn.QueryRow(`
		SELECT id, title, description, uploaded_by, filename, content_type, size, upload_time, index_status
		FROM videos WHERE id = ?`, id)

	video, err := scanVideo(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("video not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return video, nil
}

func (r *VideoRepository) ListVideos() ([]*models.Video, error) {
	rows, err := r.db.conn.Query(`
		SELECT id, title, description, uploaded_by, filename, content_type, size, upload_time, index_status
		FROM videos ORDER BY upload_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

func (r *VideoRepository) SearchVideos(query string) ([]*models.Video, error) {
	if query == "" {
		return r.ListVideos()
	}

	pattern := "%" + query + "%"
	rows, err := r.db.conn.Query(`
		SELECT id, title, description, uploaded_by, filename, content_type, size, upload_time, index_status
		FROM videos
		WHERE LOWER(title) LIKE LOWER(?) OR LOWER(description) LIKE LOWER(?)
		ORDER BY upload_time DESC LIMIT 20`, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

func (r *VideoRepository) UpdateIndexStatus(id, status string) error {
	result, err := r.db.conn.Exec(`UPDATE videos SET index_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update index status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("video not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.Title, &v.Description, &v.UploadedBy,
		&v.Filename, &v.ContentType, &v.Size, &v.UploadTime, &v.IndexStatus)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func collectVideos(rows *sql.Rows) ([]*models.Video, error) {
	var videos []*models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}
