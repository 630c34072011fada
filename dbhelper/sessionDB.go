package dbhelper

import (
	"context"
	"time"

	"github.com/whiskeyshelf/apiv1/models"
)

func (s *Store) CreateSession(ctx context.Context, session *models.Session) error {
	db, cancel := s.session(ctx)
	defer cancel()
	return db.Create(session).Error
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	db, cancel := s.session(ctx)
	defer cancel()
	var session models.Session
	if err := db.Where("id = ?", id).First(&session).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// GetSessionByToken returns the newest live session userID started with
// the bearer token hashed to tokenHash.
func (s *Store) GetSessionByToken(ctx context.Context, userID uint, tokenHash string, now time.Time) (*models.Session, error) {
	db, cancel := s.session(ctx)
	defer cancel()
	var session models.Session
	err := db.Where("user_id = ? AND token_hash = ? AND expires_at > ?", userID, tokenHash, now).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (s *Store) TouchSession(ctx context.Context, id string, lastSeen, expiresAt time.Time) error {
	db, cancel := s.session(ctx)
	defer cancel()
	result := db.Model(&models.Session{}).Where("id = ?", id).Updates(map[string]any{
		"last_seen_at": lastSeen,
		"expires_at":   expiresAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	db, cancel := s.session(ctx)
	defer cancel()
	return db.Where("id = ?", id).Delete(&models.Session{}).Error
}

func (s *Store) DeleteUserSessions(ctx context.Context, userID uint) error {
	db, cancel := s.session(ctx)
	defer cancel()
	return db.Where("user_id = ?", userID).Delete(&models.Session{}).Error
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	db, cancel := s.session(ctx)
	defer cancel()
	result := db.Where("expires_at <= ?", now).Delete(&models.Session{})
	return result.RowsAffected, result.Error
}
