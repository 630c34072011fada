package middlewares

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whiskeyshelf/apiv1/config"
	"github.com/whiskeyshelf/apiv1/dbhelper"
	"github.com/whiskeyshelf/apiv1/models"
	"github.com/whiskeyshelf/apiv1/services"
	"github.com/whiskeyshelf/apiv1/utils"
)

type authFixture struct {
	store   *dbhelper.Store
	signer  *utils.TokenSigner
	tokens  *services.TokenAuthenticator
	cookies *services.CookieStore
	chain   *AuthChain
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db, err := dbhelper.OpenSQLite(filepath.Join(t.TempDir(), "auth.db"), nil)
	require.NoError(t, err)
	require.NoError(t, dbhelper.InitDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	store := dbhelper.NewStore(db, time.Second)

	log, _ := test.NewNullLogger()
	entry := logrus.NewEntry(log)
	signer := utils.NewTokenSigner("middleware-secret-0123456789-01234", "", time.Hour)
	tokens := services.NewTokenAuthenticator(store, signer, time.Hour)
	cookies := services.NewCookieStore(services.NewSessionManager(store, 24*time.Hour), config.Local, []byte("cookie-secret-0123456789-0123456789"))
	return &authFixture{
		store:   store,
		signer:  signer,
		tokens:  tokens,
		cookies: cookies,
		chain: NewAuthChain(entry,
			NewSessionAuthenticator(cookies, store),
			NewBearerAuthenticator(tokens, cookies, entry),
		),
	}
}

func (f *authFixture) user(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username}
	require.NoError(t, f.store.CreateUser(context.Background(), user))
	return user
}

func (f *authFixture) sessionCookie(t *testing.T, user *models.User) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, f.cookies.Establish(rec, httptest.NewRequest(http.MethodPost, "/", nil), user.ID))
	return findCookie(rec)
}

func findCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == services.SessionCookieName {
			return c
		}
	}
	return nil
}

// whoami answers with the username the chain attached.
var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	if !ok {
		w.Write([]byte("anonymous"))
		return
	}
	w.Write([]byte(user.Username))
})

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) utils.ErrorBody {
	t.Helper()
	var body struct {
		Error utils.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestGetTokenFromAuthorizationHeader(t *testing.T) {
	tests := map[string]string{
		"Bearer abc.def":    "abc.def",
		"bearer abc.def":    "abc.def",
		"  Bearer  abc  ":   "abc",
		"Basic dXNlcjpwdw=": "",
		"Bearer":            "",
		"":                  "",
		"abc.def":           "",
	}
	for header, want := range tests {
		assert.Equal(t, want, GetTokenFromAuthorizationHeader(header), header)
	}
}

func TestRequired_SessionCookie(t *testing.T) {
	f := newAuthFixture(t)
	alice := f.user(t, "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.AddCookie(f.sessionCookie(t, alice))
	rec := httptest.NewRecorder()
	f.chain.Required(whoami).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestRequired_SessionWinsOverToken(t *testing.T) {
	f := newAuthFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	bobToken, err := f.tokens.Issue(context.Background(), bob)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.AddCookie(f.sessionCookie(t, alice))
	req.Header.Set("Authorization", "Bearer "+bobToken.Token)
	rec := httptest.NewRecorder()
	f.chain.Required(whoami).ServeHTTP(rec, req)

	assert.Equal(t, "alice", rec.Body.String())
}

func TestRequired_TokenEstablishesSession(t *testing.T) {
	f := newAuthFixture(t)
	bob := f.user(t, "bob")
	token, err := f.tokens.Issue(context.Background(), bob)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.Header.Set("Authorization", "Bearer "+token.Token)
	rec := httptest.NewRecorder()
	f.chain.Required(whoami).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob", rec.Body.String())
	cookie := findCookie(rec)
	require.NotNil(t, cookie)

	// the cookie alone is enough from now on
	req = httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	f.chain.Required(whoami).ServeHTTP(rec, req)
	assert.Equal(t, "bob", rec.Body.String())
}

func TestRequired_TokenOnlyClientsShareOneSession(t *testing.T) {
	f := newAuthFixture(t)
	bob := f.user(t, "bob")
	token, err := f.tokens.Issue(context.Background(), bob)
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
		req.Header.Set("Authorization", "Bearer "+token.Token)
		rec := httptest.NewRecorder()
		f.chain.Required(whoami).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		require.NotNil(t, findCookie(rec))
	}

	var rows int64
	require.NoError(t, f.store.DB.Model(&models.Session{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestRequired_Rejections(t *testing.T) {
	f := newAuthFixture(t)
	carol := f.user(t, "carol")
	token, err := f.tokens.Issue(context.Background(), carol)
	require.NoError(t, err)

	t.Run("no credentials", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.chain.Required(whoami).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, string(services.KindNotAuthenticated), decodeError(t, rec).Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		f.chain.Required(whoami).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, string(services.KindNotAuthenticated), decodeError(t, rec).Code)
	})

	t.Run("expired token", func(t *testing.T) {
		f.signer.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { f.signer.Now = time.Now }()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token.Token)
		rec := httptest.NewRecorder()
		f.chain.Required(whoami).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, string(services.KindTokenExpired), decodeError(t, rec).Code)
	})

	t.Run("deleted user", func(t *testing.T) {
		dave := f.user(t, "dave")
		cookie := f.sessionCookie(t, dave)
		require.NoError(t, f.store.DeleteUser(context.Background(), dave.ID))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		f.chain.Required(whoami).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequired_StorageFailureIsUnavailable(t *testing.T) {
	f := newAuthFixture(t)
	alice := f.user(t, "alice")
	cookie := f.sessionCookie(t, alice)
	sqlDB, err := f.store.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.chain.Required(whoami).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(services.KindUnavailable), decodeError(t, rec).Code)
}

func TestOptional(t *testing.T) {
	f := newAuthFixture(t)
	alice := f.user(t, "alice")

	rec := httptest.NewRecorder()
	f.chain.Optional(whoami).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/logout", nil))
	assert.Equal(t, "anonymous", rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.AddCookie(f.sessionCookie(t, alice))
	rec = httptest.NewRecorder()
	f.chain.Optional(whoami).ServeHTTP(rec, req)
	assert.Equal(t, "alice", rec.Body.String())
}
