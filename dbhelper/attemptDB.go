package dbhelper

import (
	"context"
	"time"

	"github.com/whiskeyshelf/apiv1/models"
)

func (s *Store) RecordLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	db, cancel := s.session(ctx)
	defer cancel()
	return db.Create(attempt).Error
}

// RecentLoginAttempts lists the newest attempts for a username, newest first.
func (s *Store) RecentLoginAttempts(ctx context.Context, username string, limit int) ([]models.LoginAttempt, error) {
	db, cancel := s.session(ctx)
	defer cancel()
	var attempts []models.LoginAttempt
	err := db.Where("username = ?", username).
		Order("attempted_at DESC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

func (s *Store) DeleteLoginAttemptsBefore(ctx context.Context, before time.Time) (int64, error) {
	db, cancel := s.session(ctx)
	defer cancel()
	result := db.Where("attempted_at < ?", before).Delete(&models.LoginAttempt{})
	return result.RowsAffected, result.Error
}
