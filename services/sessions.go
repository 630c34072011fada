package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/whiskeyshelf/apiv1/config"
	"github.com/whiskeyshelf/apiv1/dbhelper"
	"github.com/whiskeyshelf/apiv1/models"
	"github.com/whiskeyshelf/apiv1/utils"
)

const SessionCookieName = "whiskeyshelf_session"

var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists server side sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	GetSessionByToken(ctx context.Context, userID uint, tokenHash string, now time.Time) (*models.Session, error)
	TouchSession(ctx context.Context, id string, lastSeen, expiresAt time.Time) error
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID uint) error
}

// SessionManager owns the lifecycle of session rows. Expiry is rolling:
// every touch moves it to now+ttl. Touches closer together than
// touchInterval are not written, which keeps busy clients from turning
// every read into a write.
type SessionManager struct {
	store         SessionStore
	ttl           time.Duration
	touchInterval time.Duration
	Now           func() time.Time
}

func NewSessionManager(store SessionStore, ttl time.Duration) *SessionManager {
	return &SessionManager{
		store:         store,
		ttl:           ttl,
		touchInterval: time.Minute,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

func (m *SessionManager) Create(ctx context.Context, userID uint) (*models.Session, error) {
	return m.create(ctx, userID, nil)
}

func (m *SessionManager) create(ctx context.Context, userID uint, tokenHash *string) (*models.Session, error) {
	now := m.Now()
	session := &models.Session{
		ID:         utils.RandomToken(32),
		UserID:     userID,
		TokenHash:  tokenHash,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
		LastSeenAt: now,
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// Resume returns the live session userID started with the bearer token
// hashed to tokenHash, sliding its expiry, and only creates one when there
// is none. Clients that never keep the cookie therefore share one row.
func (m *SessionManager) Resume(ctx context.Context, userID uint, tokenHash string) (*models.Session, error) {
	session, err := m.store.GetSessionByToken(ctx, userID, tokenHash, m.Now())
	if errors.Is(err, dbhelper.ErrNotFound) {
		return m.create(ctx, userID, &tokenHash)
	}
	if err != nil {
		return nil, fmt.Errorf("find token session: %w", err)
	}
	if _, err := m.Touch(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Load returns ErrSessionNotFound for unknown and expired sessions. Expired
// rows are deleted on the way.
func (m *SessionManager) Load(ctx context.Context, id string) (*models.Session, error) {
	session, err := m.store.GetSession(ctx, id)
	if errors.Is(err, dbhelper.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.Expired(m.Now()) {
		if err := m.store.DeleteSession(ctx, id); err != nil {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Touch slides the expiry of session. It reports whether anything was
// written, in which case the cookie needs to be sent again.
func (m *SessionManager) Touch(ctx context.Context, session *models.Session) (bool, error) {
	now := m.Now()
	if now.Sub(session.LastSeenAt) < m.touchInterval {
		return false, nil
	}
	expiresAt := now.Add(m.ttl)
	err := m.store.TouchSession(ctx, session.ID, now, expiresAt)
	if errors.Is(err, dbhelper.ErrNotFound) {
		return false, ErrSessionNotFound
	}
	if err != nil {
		return false, fmt.Errorf("touch session: %w", err)
	}
	session.LastSeenAt = now
	session.ExpiresAt = expiresAt
	return true, nil
}

func (m *SessionManager) Destroy(ctx context.Context, id string) error {
	return m.store.DeleteSession(ctx, id)
}

func (m *SessionManager) DestroyAllForUser(ctx context.Context, userID uint) error {
	return m.store.DeleteUserSessions(ctx, userID)
}

type sessionKey int

const (
	userIDValue sessionKey = iota
	recordValue
)

// CookieStore is a gorilla sessions.Store whose cookie holds nothing but the
// signed session id; the session itself lives in the database.
type CookieStore struct {
	manager *SessionManager
	codecs  []securecookie.Codec
	Options *sessions.Options
}

// NewCookieStore signs cookies with keyPairs as in securecookie.CodecsFromPairs.
// The Secure flag follows the deployment profile.
func NewCookieStore(manager *SessionManager, profile config.DeploymentProfile, keyPairs ...[]byte) *CookieStore {
	maxAge := int(manager.TTL().Seconds())
	store := &CookieStore{
		manager: manager,
		codecs:  securecookie.CodecsFromPairs(keyPairs...),
		Options: &sessions.Options{
			Path:     "/",
			MaxAge:   maxAge,
			HttpOnly: true,
			Secure:   profile == config.Production,
			SameSite: http.SameSiteLaxMode,
		},
	}
	for _, codec := range store.codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(maxAge)
		}
	}
	return store
}

func (s *CookieStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New loads the session named by the request cookie. A missing, tampered
// or expired cookie gives a fresh session; a storage failure is returned so
// callers can fail closed.
func (s *CookieStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := s.newSession(name)
	cookie, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	var id string
	if err := securecookie.DecodeMulti(name, cookie.Value, &id, s.codecs...); err != nil {
		return session, nil
	}
	record, err := s.manager.Load(r.Context(), id)
	if errors.Is(err, ErrSessionNotFound) {
		return session, nil
	}
	if err != nil {
		return session, err
	}
	session.ID = record.ID
	session.Values[userIDValue] = record.UserID
	session.Values[recordValue] = record
	session.IsNew = false
	return session, nil
}

// Save creates, slides or (with MaxAge < 0) destroys the session and
// writes the matching cookie.
func (s *CookieStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	ctx := r.Context()
	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.manager.Destroy(ctx, session.ID); err != nil {
				return err
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		userID, ok := SessionUserID(session)
		if !ok {
			return errors.New("session has no user")
		}
		record, err := s.manager.Create(ctx, userID)
		if err != nil {
			return err
		}
		session.ID = record.ID
		session.Values[recordValue] = record
	} else {
		record, ok := session.Values[recordValue].(*models.Session)
		if !ok {
			return errors.New("session was not loaded from this store")
		}
		touched, err := s.manager.Touch(ctx, record)
		if err != nil || !touched {
			return err
		}
	}

	return s.writeCookie(w, session)
}

func (s *CookieStore) writeCookie(w http.ResponseWriter, session *sessions.Session) error {
	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Establish starts a new session for userID. Any session the request
// already carried is destroyed first so a login never inherits an id. The
// request's registered session becomes the new one, so a later Clear in the
// same request ends it.
func (s *CookieStore) Establish(w http.ResponseWriter, r *http.Request, userID uint) error {
	session, err := s.Get(r, SessionCookieName)
	if err != nil {
		return err
	}
	if !session.IsNew {
		if err := s.manager.Destroy(r.Context(), session.ID); err != nil {
			return err
		}
	}
	opts := *s.Options
	session.ID = ""
	session.Values = map[interface{}]interface{}{userIDValue: userID}
	session.Options = &opts
	session.IsNew = true
	if err := s.Save(r, w, session); err != nil {
		return err
	}
	session.IsNew = false
	return nil
}

// EstablishFromToken puts the request on the session tied to the bearer
// token it authenticated with, creating that session only the first time.
// Any other session the request carried is destroyed.
func (s *CookieStore) EstablishFromToken(w http.ResponseWriter, r *http.Request, userID uint, token string) error {
	session, err := s.Get(r, SessionCookieName)
	if err != nil {
		return err
	}
	if !session.IsNew {
		if err := s.manager.Destroy(r.Context(), session.ID); err != nil {
			return err
		}
	}
	record, err := s.manager.Resume(r.Context(), userID, utils.HashToken(token))
	if err != nil {
		return err
	}
	opts := *s.Options
	session.ID = record.ID
	session.Values = map[interface{}]interface{}{userIDValue: userID, recordValue: record}
	session.Options = &opts
	session.IsNew = false
	return s.writeCookie(w, session)
}

// Clear destroys the request's session, if any, and expires the cookie.
func (s *CookieStore) Clear(w http.ResponseWriter, r *http.Request) error {
	session, err := s.Get(r, SessionCookieName)
	if err != nil {
		// the row could not be read; still drop the cookie
		session = s.newSession(SessionCookieName)
	}
	session.Options.MaxAge = -1
	return s.Save(r, w, session)
}

func (s *CookieStore) newSession(name string) *sessions.Session {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true
	return session
}

// SessionUserID returns the user a loaded session belongs to.
func SessionUserID(session *sessions.Session) (uint, bool) {
	id, ok := session.Values[userIDValue].(uint)
	return id, ok && id != 0
}
