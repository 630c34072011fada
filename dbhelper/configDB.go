package dbhelper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/whiskeyshelf/apiv1/config"
	"github.com/whiskeyshelf/apiv1/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const mysqlDuplicateKey = "Error 1062"
const sqliteDuplicateKey = "UNIQUE constraint failed"

var (
	ErrNotFound          = errors.New("record not found")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrEmailTaken        = errors.New("email already taken")
	ErrGoogleIDTaken     = errors.New("google account already linked")
	ErrInvalidResetToken = errors.New("reset token is invalid, expired or already used")
)

// Store is the credential store. Every call is bounded by Timeout so a stuck
// database fails the request instead of hanging it.
type Store struct {
	DB      *gorm.DB
	Timeout time.Duration
}

func NewStore(db *gorm.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{DB: db, Timeout: timeout}
}

func (s *Store) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	return s.DB.WithContext(ctx), cancel
}

func OpenDB(cfg config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger: logger.New(log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
	switch cfg.Driver {
	case "mysql":
		return gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath, gormConfig)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenSQLite opens a sqlite database with a single connection, which is what
// sqlite needs to serialize writers without "database is locked" errors.
func OpenSQLite(path string, gormConfig *gorm.Config) (*gorm.DB, error) {
	if gormConfig == nil {
		gormConfig = &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)}
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func InitDB(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.LoginAttempt{},
		&models.PasswordResetToken{},
	)
	if err != nil {
		return err
	}
	if db.Dialector.Name() == "mysql" {
		// usernames are case-sensitive, the default MySQL collation is not
		return db.Exec(
			"ALTER TABLE users MODIFY username VARCHAR(64) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL",
		).Error
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.HasPrefix(msg, mysqlDuplicateKey) || strings.Contains(msg, sqliteDuplicateKey)
}
