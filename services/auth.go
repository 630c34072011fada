package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/whiskeyshelf/apiv1/dbhelper"
	"github.com/whiskeyshelf/apiv1/models"
	"github.com/whiskeyshelf/apiv1/utils"
)

// loginHistoryLimit caps how many attempts LoginHistory returns.
const loginHistoryLimit = 20

// CredentialStore is everything the auth service persists.
type CredentialStore interface {
	LockoutStore
	TokenUserStore
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	UpdateProfile(ctx context.Context, id uint, update dbhelper.ProfileUpdate) (*models.User, error)
	SetPasswordHash(ctx context.Context, id uint, hash string, revokeToken bool) error
	SetGoogleID(ctx context.Context, id uint, googleID *string) error
	CreateResetToken(ctx context.Context, userID uint, tokenHash string, expiresAt time.Time) error
	GetResetToken(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*models.User, error)
	RecordLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	RecentLoginAttempts(ctx context.Context, username string, limit int) ([]models.LoginAttempt, error)
	DeleteUser(ctx context.Context, id uint) error
}

type AuthSettings struct {
	Lockout       LockoutPolicy
	ResetTokenTTL time.Duration
	// ResetURL is the frontend page the reset token is appended to.
	ResetURL string
}

type RegisterInput struct {
	Username    string  `json:"username" validate:"required,username"`
	Password    string  `json:"password" validate:"required,strongpassword"`
	Email       *string `json:"email" validate:"omitempty,email,max=191"`
	DisplayName string  `json:"displayName" validate:"max=128"`
}

type LoginInput struct {
	Username  string `json:"username" validate:"required,max=64"`
	Password  string `json:"password" validate:"required,max=128"`
	IPAddress string `json:"-"`
}

type ProfileInput struct {
	DisplayName     *string `json:"displayName" validate:"omitempty,max=128"`
	Email           *string `json:"email" validate:"omitempty,email,max=191"`
	CurrentPassword string  `json:"currentPassword" validate:"max=128"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required,max=128"`
	NewPassword     string `json:"newPassword" validate:"required,strongpassword"`
}

type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordInput struct {
	Token       string `json:"token" validate:"required,max=256"`
	NewPassword string `json:"newPassword" validate:"required,strongpassword"`
}

type UnlinkInput struct {
	Password string `json:"password" validate:"required,max=128"`
}

type DeleteAccountInput struct {
	Password string `json:"password" validate:"max=128"`
}

type LoginResult struct {
	User  *models.User
	Token IssuedToken
}

type ResetTokenStatus struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
}

// AuthService implements the account operations behind the HTTP gateway.
type AuthService struct {
	store    CredentialStore
	hasher   *utils.PasswordHasher
	tokens   *TokenAuthenticator
	sessions *SessionManager
	lockout  *LockoutTracker
	mailer   Mailer
	validate *validator.Validate
	settings AuthSettings
	log      *logrus.Entry
	// dummyHash is verified against for unknown users so a miss costs as
	// much time as a wrong password.
	dummyHash string
	Now       func() time.Time
}

func NewAuthService(
	store CredentialStore,
	hasher *utils.PasswordHasher,
	tokens *TokenAuthenticator,
	sessions *SessionManager,
	mailer Mailer,
	settings AuthSettings,
	log *logrus.Entry,
) (*AuthService, error) {
	dummyHash, err := hasher.Hash(context.Background(), utils.RandomToken(16))
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &AuthService{
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		sessions:  sessions,
		lockout:   NewLockoutTracker(store, settings.Lockout),
		mailer:    mailer,
		validate:  utils.NewValidator(),
		settings:  settings,
		log:       log,
		dummyHash: dummyHash,
		Now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := s.check(in); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, internalError("register: hash password", err)
	}
	user := &models.User{
		Username:     in.Username,
		PasswordHash: &hash,
		Email:        in.Email,
		DisplayName:  in.DisplayName,
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}
	switch err := s.store.CreateUser(ctx, user); {
	case errors.Is(err, dbhelper.ErrUsernameTaken):
		return nil, newError(KindUsernameTaken, utils.USERNAME_TAKEN_SIGNUP_ERROR)
	case errors.Is(err, dbhelper.ErrEmailTaken):
		return nil, newError(KindEmailTaken, utils.EMAIL_TAKEN_SIGNUP_ERROR)
	case err != nil:
		return nil, internalError("register: create user", err)
	}
	token, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, internalError("register: issue token", err)
	}
	s.log.WithField("user_id", user.ID).Info("user registered")
	return &LoginResult{User: user, Token: token}, nil
}

// Login checks credentials behind the account lockout. The attempt is
// audited whatever the outcome, and lockout bookkeeping survives request
// cancellation so an aborted request cannot dodge the counter.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	now := s.Now()
	bookkeeping := context.WithoutCancel(ctx)
	attempt := &models.LoginAttempt{
		Username:    in.Username,
		IPAddress:   in.IPAddress,
		AttemptedAt: now,
	}
	defer s.recordAttempt(bookkeeping, attempt)

	user, err := s.store.GetUserByUsername(ctx, in.Username)
	if errors.Is(err, dbhelper.ErrNotFound) {
		s.hasher.Verify(ctx, in.Password, s.dummyHash)
		attempt.Reason = models.AttemptReasonUnknownUser
		return nil, invalidCredentials(nil)
	}
	if err != nil {
		attempt.Reason = models.AttemptReasonInternalError
		return nil, internalError("login: load user", err)
	}
	attempt.UserID = &user.ID

	if locked, remaining := s.lockout.Locked(user, now); locked {
		attempt.Reason = models.AttemptReasonLocked
		return nil, accountLocked(remaining)
	}

	var checkedHash *string
	outcome, err := s.lockout.Attempt(bookkeeping, user.ID, now, func(passwordHash *string) (bool, error) {
		checkedHash = passwordHash
		if passwordHash == nil || *passwordHash == "" {
			s.hasher.Verify(ctx, in.Password, s.dummyHash)
			return false, nil
		}
		return s.hasher.Verify(ctx, in.Password, *passwordHash)
	})
	if err != nil {
		attempt.Reason = models.AttemptReasonInternalError
		return nil, internalError("login: lockout", err)
	}
	if !outcome.Checked {
		// locked by concurrent attempts since the user was loaded
		attempt.Reason = models.AttemptReasonLocked
		return nil, accountLocked(outcome.RetryAfter)
	}
	if !outcome.Matched {
		switch {
		case outcome.CheckErr != nil:
			attempt.Reason = models.AttemptReasonInternalError
		case checkedHash == nil || *checkedHash == "":
			attempt.Reason = models.AttemptReasonNoPassword
		default:
			attempt.Reason = models.AttemptReasonBadPassword
		}
		if outcome.CheckErr != nil {
			return nil, internalError("login: verify password", outcome.CheckErr)
		}
		if outcome.Locked {
			s.log.WithField("user_id", user.ID).Warn("account locked after repeated failed logins")
			return nil, accountLocked(outcome.RetryAfter)
		}
		return nil, invalidCredentials(&outcome.RemainingAttempts)
	}

	user.PasswordHash = checkedHash
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	s.upgradeHash(ctx, user, in.Password)

	token, err := s.tokens.IssueOrReuse(ctx, user)
	if err != nil {
		attempt.Reason = models.AttemptReasonInternalError
		return nil, internalError("login: issue token", err)
	}
	attempt.Success = true
	return &LoginResult{User: user, Token: token}, nil
}

// upgradeHash moves legacy hashes to the current scheme. Failing to do so
// is not worth failing a login over.
func (s *AuthService) upgradeHash(ctx context.Context, user *models.User, password string) {
	if !s.hasher.NeedsRehash(*user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(ctx, password)
	if err == nil {
		err = s.store.SetPasswordHash(ctx, user.ID, hash, false)
	}
	if err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("could not upgrade password hash")
		return
	}
	user.PasswordHash = &hash
}

func (s *AuthService) recordAttempt(ctx context.Context, attempt *models.LoginAttempt) {
	if err := s.store.RecordLoginAttempt(ctx, attempt); err != nil {
		s.log.WithError(err).WithField("username", attempt.Username).Error("could not record login attempt")
	}
}

// Logout revokes the user's bearer token. Destroying the session is up to
// the caller, which owns the cookie.
func (s *AuthService) Logout(ctx context.Context, userID uint) error {
	if err := s.tokens.Revoke(ctx, userID); err != nil {
		return internalError("logout: revoke token", err)
	}
	return nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, dbhelper.ErrNotFound) {
		return nil, newError(KindNotAuthenticated, utils.NOT_AUTHENTICATED_ERROR)
	}
	if err != nil {
		return nil, internalError("current user", err)
	}
	return user, nil
}

// UpdateProfile changes display name and email. Changing the email needs
// the current password, so OAuth-only accounts cannot change it here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if in.DisplayName != nil {
		trimmed := strings.TrimSpace(*in.DisplayName)
		in.DisplayName = &trimmed
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Email != nil && (user.Email == nil || *user.Email != *in.Email) {
		if !user.HasPassword() {
			return nil, newError(KindNoPasswordSet, utils.NO_PASSWORD_SET_ERROR)
		}
		if in.CurrentPassword == "" {
			return nil, validationError(map[string]string{"currentPassword": "required to change email"})
		}
		if err := s.confirmPassword(ctx, user, in.CurrentPassword); err != nil {
			return nil, err
		}
	}
	updated, err := s.store.UpdateProfile(ctx, userID, dbhelper.ProfileUpdate{
		DisplayName: in.DisplayName,
		Email:       in.Email,
	})
	switch {
	case errors.Is(err, dbhelper.ErrEmailTaken):
		return nil, newError(KindEmailTaken, utils.EMAIL_TAKEN_SIGNUP_ERROR)
	case errors.Is(err, dbhelper.ErrNotFound):
		return nil, newError(KindNotAuthenticated, utils.NOT_AUTHENTICATED_ERROR)
	case err != nil:
		return nil, internalError("update profile", err)
	}
	return updated, nil
}

// ChangePassword replaces the password hash and revokes the bearer token.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, in ChangePasswordInput) error {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return newError(KindNoPasswordSet, utils.NO_PASSWORD_SET_ERROR)
	}
	if err := s.check(in); err != nil {
		return err
	}
	if err := s.confirmPassword(ctx, user, in.CurrentPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(ctx, in.NewPassword)
	if err != nil {
		return internalError("change password: hash", err)
	}
	if err := s.store.SetPasswordHash(ctx, user.ID, hash, true); err != nil {
		return internalError("change password: store", err)
	}
	s.log.WithField("user_id", user.ID).Info("password changed")
	return nil
}

// ForgotPassword mails a reset link when email belongs to an account. It
// never reports whether it did; failures are only logged.
func (s *AuthService) ForgotPassword(ctx context.Context, in ForgotPasswordInput) {
	email := normalizeEmail(&in.Email)
	if email == nil || s.check(ForgotPasswordInput{Email: *email}) != nil {
		return
	}
	log := s.log.WithField("op", "forgot_password")
	user, err := s.store.GetUserByEmail(ctx, *email)
	if errors.Is(err, dbhelper.ErrNotFound) {
		return
	}
	if err != nil {
		log.WithError(err).Error("could not look up user")
		return
	}
	token := utils.RandomToken(32)
	expiresAt := s.Now().Add(s.settings.ResetTokenTTL)
	if err := s.store.CreateResetToken(ctx, user.ID, utils.HashToken(token), expiresAt); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("could not store reset token")
		return
	}
	mail := PasswordResetMail{
		To:        *email,
		Username:  user.Username,
		Link:      s.resetLink(token),
		ExpiresAt: expiresAt,
	}
	if err := s.mailer.SendPasswordReset(ctx, mail); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("could not send reset mail")
	}
}

func (s *AuthService) resetLink(token string) string {
	sep := "?"
	if strings.Contains(s.settings.ResetURL, "?") {
		sep = "&"
	}
	return s.settings.ResetURL + sep + "token=" + url.QueryEscape(token)
}

func (s *AuthService) ValidateResetToken(ctx context.Context, token string) (ResetTokenStatus, error) {
	if token == "" {
		return ResetTokenStatus{}, nil
	}
	stored, err := s.store.GetResetToken(ctx, utils.HashToken(token))
	if errors.Is(err, dbhelper.ErrNotFound) {
		return ResetTokenStatus{}, nil
	}
	if err != nil {
		return ResetTokenStatus{}, internalError("validate reset token", err)
	}
	if !stored.Usable(s.Now()) {
		return ResetTokenStatus{}, nil
	}
	user, err := s.store.GetUserByID(ctx, stored.UserID)
	if errors.Is(err, dbhelper.ErrNotFound) {
		return ResetTokenStatus{}, nil
	}
	if err != nil {
		return ResetTokenStatus{}, internalError("validate reset token: load user", err)
	}
	return ResetTokenStatus{Valid: true, Username: user.Username}, nil
}

// ResetPassword spends a reset token. The new password replaces the old
// one, the bearer token is revoked and every session of the user ends.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := s.check(in); err != nil {
		return err
	}
	status, err := s.ValidateResetToken(ctx, in.Token)
	if err != nil {
		return err
	}
	if !status.Valid {
		return newError(KindInvalidOrExpiredToken, utils.INVALID_RESET_TOKEN_ERROR)
	}
	hash, err := s.hasher.Hash(ctx, in.NewPassword)
	if err != nil {
		return internalError("reset password: hash", err)
	}
	user, err := s.store.ConsumeResetToken(ctx, utils.HashToken(in.Token), hash, s.Now())
	if errors.Is(err, dbhelper.ErrInvalidResetToken) {
		return newError(KindInvalidOrExpiredToken, utils.INVALID_RESET_TOKEN_ERROR)
	}
	if err != nil {
		return internalError("reset password: consume token", err)
	}
	if err := s.sessions.DestroyAllForUser(ctx, user.ID); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Error("could not end sessions after password reset")
	}
	s.log.WithField("user_id", user.ID).Info("password reset")
	return nil
}

// UnlinkGoogle removes the Google link. The password must be confirmed and
// must exist, otherwise the account would have no way to sign in.
func (s *AuthService) UnlinkGoogle(ctx context.Context, userID uint, in UnlinkInput) error {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.GoogleID == nil {
		return validationError(map[string]string{"google": "no Google account is linked"})
	}
	if !user.HasPassword() {
		return newError(KindNoPasswordSet, utils.NO_PASSWORD_SET_ERROR)
	}
	if err := s.check(in); err != nil {
		return err
	}
	if err := s.confirmPassword(ctx, user, in.Password); err != nil {
		return err
	}
	if err := s.store.SetGoogleID(ctx, user.ID, nil); err != nil {
		return internalError("unlink google", err)
	}
	return nil
}

// DeleteAccount removes the user together with their sessions and tokens.
// Accounts that have a password must confirm it.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uint, in DeleteAccountInput) error {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.check(in); err != nil {
		return err
	}
	if user.HasPassword() {
		if in.Password == "" {
			return validationError(map[string]string{"password": "is required"})
		}
		if err := s.confirmPassword(ctx, user, in.Password); err != nil {
			return err
		}
	}
	err = s.store.DeleteUser(ctx, user.ID)
	if errors.Is(err, dbhelper.ErrNotFound) {
		return newError(KindNotAuthenticated, utils.NOT_AUTHENTICATED_ERROR)
	}
	if err != nil {
		return internalError("delete account", err)
	}
	s.log.WithField("user_id", user.ID).Info("account deleted")
	return nil
}

// LoginHistory returns the user's latest login attempts, newest first.
// Attempts made on the username before the account existed are left out.
func (s *AuthService) LoginHistory(ctx context.Context, userID uint) ([]models.LoginAttempt, error) {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.store.RecentLoginAttempts(ctx, user.Username, loginHistoryLimit)
	if err != nil {
		return nil, internalError("login history", err)
	}
	own := attempts[:0]
	for _, attempt := range attempts {
		if attempt.UserID != nil && *attempt.UserID == user.ID {
			own = append(own, attempt)
		}
	}
	return own, nil
}

// LoginWithGoogle signs in the account linked to identity. An unlinked
// verified email is linked to the matching account; otherwise a new
// password-less account is created.
func (s *AuthService) LoginWithGoogle(ctx context.Context, identity OAuthIdentity) (*LoginResult, error) {
	if identity.Subject == "" {
		return nil, newError(KindNotAuthenticated, utils.NOT_AUTHENTICATED_ERROR)
	}
	user, err := s.store.GetUserByGoogleID(ctx, identity.Subject)
	if errors.Is(err, dbhelper.ErrNotFound) {
		user, err = s.linkOrCreate(ctx, identity)
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return nil, err
	}
	if err != nil {
		return nil, internalError("google login", err)
	}
	token, err := s.tokens.IssueOrReuse(ctx, user)
	if err != nil {
		return nil, internalError("google login: issue token", err)
	}
	return &LoginResult{User: user, Token: token}, nil
}

func (s *AuthService) linkOrCreate(ctx context.Context, identity OAuthIdentity) (*models.User, error) {
	email := normalizeEmail(&identity.Email)
	if email != nil && identity.EmailVerified {
		user, err := s.store.GetUserByEmail(ctx, *email)
		if err == nil {
			if user.GoogleID != nil && *user.GoogleID != identity.Subject {
				s.log.WithField("user_id", user.ID).Warn("refused to relink account to another google identity")
				return nil, newError(KindEmailTaken, utils.GOOGLE_ALREADY_LINKED_ERROR)
			}
			if err := s.store.SetGoogleID(ctx, user.ID, &identity.Subject); err != nil {
				return nil, err
			}
			user.GoogleID = &identity.Subject
			return user, nil
		}
		if !errors.Is(err, dbhelper.ErrNotFound) {
			return nil, err
		}
	} else {
		email = nil
	}

	base := usernameFrom(identity)
	subject := identity.Subject
	for i := 0; i < 5; i++ {
		username := base
		if i > 0 {
			username = fmt.Sprintf("%s-%s", base, strings.ToLower(utils.RandomToken(3)))
		}
		user := &models.User{
			Username:    username,
			Email:       email,
			DisplayName: identity.Name,
			GoogleID:    &subject,
		}
		if user.DisplayName == "" {
			user.DisplayName = username
		}
		err := s.store.CreateUser(ctx, user)
		if errors.Is(err, dbhelper.ErrUsernameTaken) {
			continue
		}
		if errors.Is(err, dbhelper.ErrEmailTaken) {
			email = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		return user, nil
	}
	return nil, errors.New("could not find a free username")
}

func usernameFrom(identity OAuthIdentity) string {
	local, _, _ := strings.Cut(identity.Email, "@")
	var b strings.Builder
	for _, r := range local {
		if r < 128 && (r == '_' || r == '.' || r == '-' || ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')) {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if len(name) > 48 {
		name = name[:48]
	}
	if len(name) < 3 {
		name = "user-" + strings.ToLower(utils.RandomToken(3))
	}
	return name
}

func (s *AuthService) confirmPassword(ctx context.Context, user *models.User, password string) error {
	ok, err := s.hasher.Verify(ctx, password, *user.PasswordHash)
	if err != nil {
		return internalError("verify password", err)
	}
	if !ok {
		return newError(KindIncorrectPassword, utils.INCORRECT_PASSWORD_ERROR)
	}
	return nil
}

// check validates in. A failing password policy alone is WeakPassword,
// anything else is a ValidationError listing the bad fields.
func (s *AuthService) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return validationError(map[string]string{"body": "invalid request"})
	}
	fields := map[string]string{}
	weak := false
	for _, fe := range fieldErrors {
		if fe.Tag() == "strongpassword" {
			weak = true
			fields[fe.Field()] = utils.WEAK_PASSWORD_ERROR
			continue
		}
		fields[fe.Field()] = describeFieldError(fe)
	}
	if weak && len(fields) == 1 {
		return &AuthError{Kind: KindWeakPassword, Message: utils.WEAK_PASSWORD_ERROR, Fields: fields}
	}
	return validationError(fields)
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "username":
		return "must be 3 to 64 letters, digits, dots, dashes or underscores"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	normalized := strings.ToLower(strings.TrimSpace(*email))
	if normalized == "" {
		return nil
	}
	return &normalized
}

func invalidCredentials(remaining *int) *AuthError {
	err := newError(KindInvalidCredentials, utils.INVALID_CREDENTIALS_ERROR)
	if remaining != nil && *remaining > 0 && *remaining <= utils.REMAINING_ATTEMPTS_HINT {
		n := *remaining
		err.RemainingAttempts = &n
	}
	return err
}

func accountLocked(remaining time.Duration) *AuthError {
	err := newError(KindAccountLocked, utils.ACCOUNT_LOCKED_ERROR+utils.GenerateBanMessage(remaining))
	err.RetryAfter = remaining
	return err
}

// Seconds rounds a duration up to whole seconds for clients.
func Seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
