package dbhelper

import (
	"context"
	"time"

	"github.com/whiskeyshelf/apiv1/models"
	"gorm.io/gorm"
)

// CreateUser inserts a user after checking username and email are free.
// The unique indexes still catch a concurrent insert that wins the race.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	db, cancel := s.session(ctx)
	defer cancel()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := findConflict(tx, user.Username, user.Email, 0); err != nil {
			return err
		}
		return tx.Create(user).Error
	})
	if err != nil && isDuplicateKey(err) {
		if conflict := findConflict(db, user.Username, user.Email, 0); conflict != nil {
			return conflict
		}
	}
	return err
}

// findConflict includes soft-deleted rows because they still hold their
// unique index entries.
func findConflict(tx *gorm.DB, username string, email *string, exceptID uint) error {
	if username != "" {
		var count int64
		err := tx.Unscoped().Model(&models.User{}).
			Where("username = ? AND id <> ?", username, exceptID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameTaken
		}
	}
	if email != nil {
		var count int64
		err := tx.Unscoped().Model(&models.User{}).
			Where("email = ? AND id <> ?", *email, exceptID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, "username = ?", username)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email = ?", email)
}

func (s *Store) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return s.findUser(ctx, "google_id = ?", googleID)
}

func (s *Store) findUser(ctx context.Context, query string, arg any) (*models.User, error) {
	db, cancel := s.session(ctx)
	defer cancel()
	var user models.User
	if err := db.Where(query, arg).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// ProfileUpdate holds the optional profile fields; nil means unchanged.
type ProfileUpdate struct {
	DisplayName *string
	Email       *string
}

func (s *Store) UpdateProfile(ctx context.Context, id uint, update ProfileUpdate) (*models.User, error) {
	db, cancel := s.session(ctx)
	defer cancel()
	var user models.User
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			return translate(err)
		}
		fields := map[string]any{}
		if update.DisplayName != nil {
			fields["display_name"] = *update.DisplayName
		}
		if update.Email != nil {
			if err := findConflict(tx, "", update.Email, id); err != nil {
				return err
			}
			fields["email"] = *update.Email
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.Model(&user).Updates(fields).Error; err != nil {
			return err
		}
		return tx.First(&user, id).Error
	})
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) SetAuthToken(ctx context.Context, id uint, token string, expiresAt time.Time) error {
	return s.updateUser(ctx, id, map[string]any{
		"auth_token":            token,
		"auth_token_expires_at": expiresAt,
	})
}

func (s *Store) ClearAuthToken(ctx context.Context, id uint) error {
	return s.updateUser(ctx, id, map[string]any{
		"auth_token":            nil,
		"auth_token_expires_at": nil,
	})
}

// SetPasswordHash replaces the stored hash. revokeToken also drops the
// bearer token, which every password change and reset must do.
func (s *Store) SetPasswordHash(ctx context.Context, id uint, hash string, revokeToken bool) error {
	fields := map[string]any{"password_hash": hash}
	if revokeToken {
		fields["auth_token"] = nil
		fields["auth_token_expires_at"] = nil
	}
	return s.updateUser(ctx, id, fields)
}

func (s *Store) SetGoogleID(ctx context.Context, id uint, googleID *string) error {
	err := s.updateUser(ctx, id, map[string]any{"google_id": googleID})
	if err != nil && isDuplicateKey(err) {
		return ErrGoogleIDTaken
	}
	return err
}

func (s *Store) updateUser(ctx context.Context, id uint, fields map[string]any) error {
	db, cancel := s.session(ctx)
	defer cancel()
	return db.Model(&models.User{}).Where("id = ?", id).Updates(fields).Error
}

// DeleteUser removes the account for good together with everything that
// could still authenticate as it.
func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	db, cancel := s.session(ctx)
	defer cancel()
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return err
		}
		result := tx.Unscoped().Delete(&models.User{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
