package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
)

const (
	defaultMaxAttempts   = 5
	defaultAttemptWindow = 15 * time.Minute
	defaultBlockDuration = 2880 * time.Minute
	otpTTL               = 10 * time.Minute
	resetTokenTTL        = 10 * time.Minute
)

// ThrottleConfig tunes the IP block guard.
type ThrottleConfig struct {
	MaxAttempts   int
	AttemptWindow time.Duration
	BlockDuration time.Duration
}

// BootstrapConfig holds the accounts created on first-ever login.
type BootstrapConfig struct {
	SuperOwnerUsername string
	SuperOwnerPassword string
	OwnerUsername      string
	OwnerPassword      string
}

// AuthService implements the login gate, registration via referral
// redemption, session lifecycle, and the forgot-password flow.
type AuthService struct {
	users       ports.UserRepository
	sessions    ports.SessionRepository
	security    ports.SecurityRepository
	referrals   ports.ReferralRepository
	activities  ports.ActivityRepository
	otp         ports.OTPStore
	mailer      ports.Mailer
	throttle    ThrottleConfig
	bootstrap   BootstrapConfig
	resetSecret string
	log         zerolog.Logger
}

func NewAuthService(
	users ports.UserRepository,
	sessions ports.SessionRepository,
	security ports.SecurityRepository,
	referrals ports.ReferralRepository,
	activities ports.ActivityRepository,
	otp ports.OTPStore,
	mailer ports.Mailer,
	throttle ThrottleConfig,
	bootstrap BootstrapConfig,
	resetSecret string,
	log zerolog.Logger,
) *AuthService {
	if throttle.MaxAttempts <= 0 {
		throttle.MaxAttempts = defaultMaxAttempts
	}
	if throttle.AttemptWindow <= 0 {
		throttle.AttemptWindow = defaultAttemptWindow
	}
	if throttle.BlockDuration <= 0 {
		throttle.BlockDuration = defaultBlockDuration
	}
	return &AuthService{
		users:       users,
		sessions:    sessions,
		security:    security,
		referrals:   referrals,
		activities:  activities,
		otp:         otp,
		mailer:      mailer,
		throttle:    throttle,
		bootstrap:   bootstrap,
		resetSecret: resetSecret,
		log:         log,
	}
}

// Login runs the full gate: IP block check, bootstrap/maintenance, credential
// verification, attempt recording, and escalation to a temporary block once
// the failure threshold is reached within the trailing window.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	now := time.Now().UTC()

	block, err := s.security.ActiveBlock(ctx, in.IP, now)
	if err != nil {
		return nil, fmt.Errorf("login: block lookup: %w", err)
	}
	if block != nil {
		return nil, domain.ErrIPBlocked
	}

	// One-time bootstrap plus the system-owner expiry cascade live on the
	// login hot path; their failure must not take the gate down.
	if err := s.maintain(ctx, now); err != nil {
		s.log.Warn().Err(err).Msg("login maintenance failed")
	}

	user, verr := s.verifyCredentials(ctx, in.Username, in.Password, now)

	attempt := &domain.LoginAttempt{
		IP:        in.IP,
		Username:  in.Username,
		Success:   verr == nil,
		Timestamp: now,
		UserAgent: in.UserAgent,
	}
	if err := s.security.InsertAttempt(ctx, attempt); err != nil {
		s.log.Warn().Err(err).Str("ip", in.IP).Msg("failed to record login attempt")
	}

	if verr != nil {
		return nil, s.escalate(ctx, in.IP, now, verr)
	}

	token, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("login: token: %w", err)
	}
	session := &domain.Session{
		Token:     token,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.SessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("login: create session: %w", err)
	}

	s.log.Info().Str("username", user.Username).Str("role", string(user.Role)).Msg("login successful")
	return &ports.LoginResult{Token: token, Session: session, User: user}, nil
}

func (s *AuthService) verifyCredentials(ctx context.Context, username, password string, now time.Time) (*domain.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrAccountDisabled
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if user.Expired(now) {
		return nil, domain.ErrAccountExpired
	}
	return user, nil
}

// escalate counts failures in the trailing window and inserts a temporary
// block once the threshold is hit. The block wins over the original error.
func (s *AuthService) escalate(ctx context.Context, ip string, now time.Time, verr error) error {
	count, err := s.security.CountFailures(ctx, ip, now.Add(-s.throttle.AttemptWindow))
	if err != nil {
		s.log.Warn().Err(err).Str("ip", ip).Msg("failure count lookup failed")
		return verr
	}
	if int(count) >= s.throttle.MaxAttempts {
		expires := now.Add(s.throttle.BlockDuration)
		block := &domain.BlockedIP{
			IP:           ip,
			BlockedAt:    now,
			Reason:       "too many failed login attempts",
			AttemptCount: int(count),
			IsPermanent:  false,
			ExpiresAt:    &expires,
		}
		if err := s.security.InsertBlock(ctx, block); err != nil {
			s.log.Error().Err(err).Str("ip", ip).Msg("failed to insert ip block")
		}
		s.log.Warn().Str("ip", ip).Int64("failures", count).Msg("ip blocked")
		return domain.ErrIPBlocked
	}
	if errors.Is(verr, domain.ErrInvalidCredentials) {
		return &domain.LoginRejectedError{Remaining: s.throttle.MaxAttempts - int(count)}
	}
	return verr
}

// maintain performs the embedded first-run migration: default account
// creation, super-owner balance backfill, and the system-owner expiry cascade.
func (s *AuthService) maintain(ctx context.Context, now time.Time) error {
	count, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		if err := s.createDefaults(ctx, now); err != nil {
			return err
		}
	}

	// Backfill: super owners must always carry the unlimited sentinel.
	supers, err := s.users.List(ctx, ports.UserListFilter{Visibility: domain.VisibilityAll, Role: domain.RoleSuperOwner})
	if err != nil {
		return err
	}
	for _, u := range supers {
		if u.Balance == 0 {
			if err := s.users.SetBalance(ctx, u.Username, domain.UnlimitedBalance); err != nil {
				s.log.Warn().Err(err).Str("username", u.Username).Msg("balance backfill failed")
			}
		}
	}

	return s.systemOwnerCascade(ctx, now)
}

func (s *AuthService) createDefaults(ctx context.Context, now time.Time) error {
	superHash, err := bcrypt.GenerateFromPassword([]byte(s.bootstrap.SuperOwnerPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	ownerHash, err := bcrypt.GenerateFromPassword([]byte(s.bootstrap.OwnerPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if _, err := s.users.Create(ctx, &domain.User{
		Username:     s.bootstrap.SuperOwnerUsername,
		PasswordHash: string(superHash),
		Role:         domain.RoleSuperOwner,
		CreatedBy:    domain.SystemCreator,
		CreatedAt:    now,
		IsActive:     true,
		Balance:      domain.UnlimitedBalance,
		ServerStatus: true,
	}); err != nil && !errors.Is(err, domain.ErrUserExists) {
		return err
	}

	if _, err := s.users.Create(ctx, &domain.User{
		Username:     s.bootstrap.OwnerUsername,
		PasswordHash: string(ownerHash),
		Role:         domain.RoleOwner,
		CreatedBy:    domain.SystemCreator,
		CreatedAt:    now,
		IsActive:     true,
		ServerStatus: true,
	}); err != nil && !errors.Is(err, domain.ErrUserExists) {
		return err
	}

	s.log.Info().Msg("bootstrap accounts created")
	return nil
}

// systemOwnerCascade disables every non-super-owner account while the system
// owner is past its expiry, remembering the original isActive so the state is
// restored once the expiry is extended.
func (s *AuthService) systemOwnerCascade(ctx context.Context, now time.Time) error {
	owner, err := s.users.FindByUsername(ctx, s.bootstrap.OwnerUsername)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if !owner.IsSystemOwner() {
		return nil
	}

	if owner.Expired(now) {
		all, err := s.users.List(ctx, ports.UserListFilter{Visibility: domain.VisibilityAll})
		if err != nil {
			return err
		}
		for _, u := range all {
			if u.Role == domain.RoleSuperOwner || u.PreviousIsActive != nil {
				continue
			}
			if err := s.users.SuspendForSystemExpiry(ctx, u.Username); err != nil {
				s.log.Warn().Err(err).Str("username", u.Username).Msg("system-expiry suspend failed")
			}
		}
		return nil
	}

	suspended, err := s.users.ListSuspendedBySystemExpiry(ctx)
	if err != nil {
		return err
	}
	for _, u := range suspended {
		if err := s.users.RestoreFromSystemExpiry(ctx, u.Username); err != nil {
			s.log.Warn().Err(err).Str("username", u.Username).Msg("system-expiry restore failed")
		}
	}
	return nil
}

// Register redeems a referral code into a new account. Redemption is
// exactly-once: the code flip is an atomic conditional update, so a second
// attempt with the same code fails regardless of interleaving.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	if in.Code == "" || in.Username == "" || in.Password == "" {
		return nil, domain.ErrInvalidPayload
	}

	// Case-sensitive uniqueness check only; the unique index backs it up.
	if _, err := s.users.FindByUsername(ctx, in.Username); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	code, err := s.referrals.Redeem(ctx, in.Code, in.Username, now)
	if err != nil {
		return nil, err
	}

	expiry := code.ExpiryDate
	if expiry.IsZero() {
		expiry = now.AddDate(0, 0, code.ExpiryDays)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, &domain.User{
		Username:          in.Username,
		PasswordHash:      string(hash),
		Role:              code.Role,
		CreatedBy:         code.CreatedBy,
		CreatedAt:         now,
		IsActive:          true,
		Balance:           code.InitialBalance,
		Email:             in.Email,
		ServerStatus:      true,
		AccountExpiryDate: &expiry,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, user.Username, user.Role, "register", "user", user.Username,
		fmt.Sprintf("registered via referral %s", code.Code))
	return user, nil
}

// Logout deletes the session row. Idempotent: a second call is a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

// Resolve maps a bearer token to its unexpired session.
func (s *AuthService) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.sessions.Find(ctx, token, time.Now().UTC())
}

// SendOTP issues a 6-digit one-time code for password reset and emails it.
func (s *AuthService) SendOTP(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrEmailUnknown
		}
		return err
	}

	code, err := randomDigits(6)
	if err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	if err := s.otp.Save(ctx, email, code, otpTTL); err != nil {
		return fmt.Errorf("send otp: store: %w", err)
	}
	if err := s.mailer.SendOTP(email, code); err != nil {
		return fmt.Errorf("send otp: mail: %w", err)
	}

	s.log.Info().Str("username", user.Username).Msg("password reset otp sent")
	return nil
}

// VerifyOTP consumes the stored code and mints a short-lived signed reset
// token. Consumption is destructive, so replaying a code fails.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	stored, err := s.otp.Consume(ctx, email)
	if err != nil || stored == "" || stored != code {
		return "", domain.ErrOTPInvalid
	}

	claims := jwt.MapClaims{
		"sub":     email,
		"purpose": "password_reset",
		"exp":     time.Now().Add(resetTokenTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.resetSecret))
}

// ResetPassword validates the reset token and installs a new password hash.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if len(newPassword) < 6 {
		return domain.ErrInvalidPayload
	}

	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(resetToken, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(s.resetSecret), nil
	})
	if err != nil || !tkn.Valid {
		return domain.ErrResetToken
	}
	if purpose, _ := claims["purpose"].(string); purpose != "password_reset" {
		return domain.ErrResetToken
	}
	email, _ := claims["sub"].(string)
	if email == "" {
		return domain.ErrResetToken
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, user.Username, string(hash)); err != nil {
		return err
	}

	s.record(ctx, user.Username, user.Role, "password_reset", "user", user.Username, "")
	return nil
}

// ListBlockedIPs is restricted to owners and super owners.
func (s *AuthService) ListBlockedIPs(ctx context.Context, caller ports.Caller) ([]*domain.BlockedIP, error) {
	if caller.Role != domain.RoleSuperOwner && caller.Role != domain.RoleOwner {
		return nil, domain.ErrForbidden
	}
	return s.security.ListBlocks(ctx)
}

// Unblock removes every block row for the given IP.
func (s *AuthService) Unblock(ctx context.Context, caller ports.Caller, ip string) error {
	if caller.Role != domain.RoleSuperOwner && caller.Role != domain.RoleOwner {
		return domain.ErrForbidden
	}
	if err := s.security.DeleteBlock(ctx, ip); err != nil {
		return err
	}
	s.record(ctx, caller.Username, caller.Role, "unblock_ip", "ip", ip, "")
	return nil
}

// record appends an audit row; failures are logged and swallowed.
func (s *AuthService) record(ctx context.Context, username string, role domain.Role, action, targetType, target, details string) {
	a := &domain.Activity{
		Username:   username,
		Role:       role,
		Action:     action,
		TargetType: targetType,
		Target:     target,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.activities.Insert(ctx, a); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("failed to record activity")
	}
}

// randomToken returns a 256-bit hex session token.
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// randomDigits returns n cryptographically random decimal digits.
func randomDigits(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		out[i] = byte('0' + d.Int64())
	}
	return string(out), nil
}
