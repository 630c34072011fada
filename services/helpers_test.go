package services

import (
	"context"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/whiskeyshelf/apiv1/dbhelper"
	"github.com/whiskeyshelf/apiv1/utils"
)

const testTokenTTL = 30 * 24 * time.Hour

func openTestStore(t *testing.T, path string) *dbhelper.Store {
	t.Helper()
	db, err := dbhelper.OpenSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, dbhelper.InitDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return dbhelper.NewStore(db, 5*time.Second)
}

func newTestStore(t *testing.T) *dbhelper.Store {
	return openTestStore(t, filepath.Join(t.TempDir(), "test.db"))
}

func testLogger() *logrus.Entry {
	log, _ := test.NewNullLogger()
	return logrus.NewEntry(log)
}

type recordingMailer struct {
	mu    sync.Mutex
	mails []PasswordResetMail
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, mail PasswordResetMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mails = append(m.mails, mail)
	return nil
}

func (m *recordingMailer) last(t *testing.T) PasswordResetMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.mails)
	return m.mails[len(m.mails)-1]
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mails)
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

type testEnv struct {
	store    *dbhelper.Store
	clock    *fakeClock
	tokens   *TokenAuthenticator
	sessions *SessionManager
	mailer   *recordingMailer
	auth     *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newFakeClock()
	store := newTestStore(t)

	signer := utils.NewTokenSigner("test-token-secret-0123456789-0123", "", testTokenTTL)
	signer.Now = clock.Now
	tokens := NewTokenAuthenticator(store, signer, testTokenTTL)
	tokens.Now = clock.Now
	sessions := NewSessionManager(store, 30*24*time.Hour)
	sessions.Now = clock.Now
	mailer := &recordingMailer{}

	auth, err := NewAuthService(
		store,
		utils.NewPasswordHasher(4),
		tokens,
		sessions,
		mailer,
		AuthSettings{
			Lockout:       LockoutPolicy{Threshold: 5, Duration: 30 * time.Minute},
			ResetTokenTTL: time.Hour,
			ResetURL:      "http://app.test/reset-password",
		},
		testLogger(),
	)
	require.NoError(t, err)
	auth.Now = clock.Now

	return &testEnv{
		store:    store,
		clock:    clock,
		tokens:   tokens,
		sessions: sessions,
		mailer:   mailer,
		auth:     auth,
	}
}

func (e *testEnv) register(t *testing.T, username, password, email string) *LoginResult {
	t.Helper()
	in := RegisterInput{Username: username, Password: password}
	if email != "" {
		in.Email = &email
	}
	result, err := e.auth.Register(context.Background(), in)
	require.NoError(t, err)
	return result
}

func requireKind(t *testing.T, err error, kind ErrorKind) *AuthError {
	t.Helper()
	require.Error(t, err)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, kind, authErr.Kind, err.Error())
	return authErr
}
