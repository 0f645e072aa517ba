package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
)

// --- users ---

type stubUserRepo struct {
	users map[string]*domain.User
	seq   int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	if _, exists := r.users[user.Username]; exists {
		return nil, domain.ErrUserExists
	}
	r.seq++
	copy := cloneUser(user)
	copy.ID = fmt.Sprintf("u%d", r.seq)
	r.users[copy.Username] = copy
	return cloneUser(copy), nil
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	u, ok := r.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) List(_ context.Context, filter ports.UserListFilter) ([]*domain.User, error) {
	excluded := make(map[string]struct{}, len(filter.ExcludeCreators))
	for _, c := range filter.ExcludeCreators {
		excluded[c] = struct{}{}
	}

	var out []*domain.User
	for _, u := range r.users {
		switch filter.Visibility {
		case domain.VisibilityAll:
		case domain.VisibilityNonSuperOwner:
			if u.Role == domain.RoleSuperOwner {
				continue
			}
			if _, hit := excluded[u.CreatedBy]; hit {
				continue
			}
		case domain.VisibilityOwnCreated:
			if u.Username != filter.Caller && u.CreatedBy != filter.Caller {
				continue
			}
		case domain.VisibilitySelf:
			if u.Username != filter.Caller {
				continue
			}
		default:
			return nil, domain.ErrForbidden
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		out = append(out, cloneUser(u))
	}
	return out, nil
}

func (r *stubUserRepo) ListByCreator(ctx context.Context, creator string) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range r.users {
		if u.CreatedBy == creator {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (r *stubUserRepo) ListUsernamesByRole(_ context.Context, role domain.Role) ([]string, error) {
	var out []string
	for _, u := range r.users {
		if u.Role == role {
			out = append(out, u.Username)
		}
	}
	return out, nil
}

func (r *stubUserRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.users)), nil
}

func (r *stubUserRepo) Debit(_ context.Context, username string, amount float64) error {
	u, ok := r.users[username]
	if !ok || u.Balance < amount {
		return domain.ErrInsufficientBalance
	}
	u.Balance -= amount
	return nil
}

func (r *stubUserRepo) Credit(_ context.Context, username string, amount float64) error {
	u, ok := r.users[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Balance += amount
	return nil
}

func (r *stubUserRepo) SetBalance(_ context.Context, username string, balance float64) error {
	u, ok := r.users[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Balance = balance
	return nil
}

func (r *stubUserRepo) UpdatePasswordHash(_ context.Context, username, hash string) error {
	u, ok := r.users[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *stubUserRepo) UpdateUsername(_ context.Context, oldName, newName string) error {
	u, ok := r.users[oldName]
	if !ok {
		return domain.ErrUserNotFound
	}
	if _, exists := r.users[newName]; exists {
		return domain.ErrUserExists
	}
	delete(r.users, oldName)
	u.Username = newName
	r.users[newName] = u
	return nil
}

func (r *stubUserRepo) SetActive(_ context.Context, username string, active bool) error {
	u, ok := r.users[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.IsActive = active
	return nil
}

func (r *stubUserRepo) SetServerStatus(_ context.Context, username string, on bool) error {
	u, ok := r.users[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.ServerStatus = on
	return nil
}

func (r *stubUserRepo) SuspendForSystemExpiry(_ context.Context, username string) error {
	u, ok := r.users[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	prev := u.IsActive
	u.PreviousIsActive = &prev
	u.IsActive = false
	return nil
}

func (r *stubUserRepo) RestoreFromSystemExpiry(_ context.Context, username string) error {
	u, ok := r.users[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.PreviousIsActive != nil {
		u.IsActive = *u.PreviousIsActive
		u.PreviousIsActive = nil
	}
	return nil
}

func (r *stubUserRepo) ListSuspendedBySystemExpiry(_ context.Context) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range r.users {
		if u.PreviousIsActive != nil {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

// --- sessions ---

type stubSessionRepo struct {
	sessions map[string]*domain.Session
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (r *stubSessionRepo) Create(_ context.Context, s *domain.Session) error {
	clone := *s
	r.sessions[s.Token] = &clone
	return nil
}

func (r *stubSessionRepo) Find(_ context.Context, token string, now time.Time) (*domain.Session, error) {
	s, ok := r.sessions[token]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, domain.ErrUnauthorized
	}
	clone := *s
	return &clone, nil
}

func (r *stubSessionRepo) Delete(_ context.Context, token string) error {
	delete(r.sessions, token)
	return nil
}

// --- security ---

type stubSecurityRepo struct {
	attempts []*domain.LoginAttempt
	blocks   []*domain.BlockedIP
}

func newStubSecurityRepo() *stubSecurityRepo {
	return &stubSecurityRepo{}
}

func (r *stubSecurityRepo) InsertAttempt(_ context.Context, a *domain.LoginAttempt) error {
	clone := *a
	r.attempts = append(r.attempts, &clone)
	return nil
}

func (r *stubSecurityRepo) CountFailures(_ context.Context, ip string, since time.Time) (int64, error) {
	var n int64
	for _, a := range r.attempts {
		if a.IP == ip && !a.Success && a.Timestamp.After(since) {
			n++
		}
	}
	return n, nil
}

func (r *stubSecurityRepo) InsertBlock(_ context.Context, b *domain.BlockedIP) error {
	clone := *b
	r.blocks = append(r.blocks, &clone)
	return nil
}

func (r *stubSecurityRepo) ActiveBlock(_ context.Context, ip string, now time.Time) (*domain.BlockedIP, error) {
	for _, b := range r.blocks {
		if b.IP == ip && b.Active(now) {
			clone := *b
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *stubSecurityRepo) ListBlocks(_ context.Context) ([]*domain.BlockedIP, error) {
	out := make([]*domain.BlockedIP, 0, len(r.blocks))
	for _, b := range r.blocks {
		clone := *b
		out = append(out, &clone)
	}
	return out, nil
}

func (r *stubSecurityRepo) DeleteBlock(_ context.Context, ip string) error {
	kept := r.blocks[:0]
	for _, b := range r.blocks {
		if b.IP != ip {
			kept = append(kept, b)
		}
	}
	r.blocks = kept
	return nil
}

// --- referrals ---

type stubReferralRepo struct {
	codes map[string]*domain.ReferralCode
}

func newStubReferralRepo() *stubReferralRepo {
	return &stubReferralRepo{codes: make(map[string]*domain.ReferralCode)}
}

func (r *stubReferralRepo) Insert(_ context.Context, c *domain.ReferralCode) error {
	clone := *c
	r.codes[c.Code] = &clone
	return nil
}

func (r *stubReferralRepo) FindByCode(_ context.Context, code string) (*domain.ReferralCode, error) {
	c, ok := r.codes[code]
	if !ok {
		return nil, domain.ErrReferralNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *stubReferralRepo) Redeem(_ context.Context, code, usedBy string, at time.Time) (*domain.ReferralCode, error) {
	c, ok := r.codes[code]
	if !ok || !c.Redeemable() {
		return nil, domain.ErrReferralInvalid
	}
	c.UsedBy = usedBy
	c.UsedAt = &at
	c.IsActive = false
	clone := *c
	return &clone, nil
}

func (r *stubReferralRepo) List(_ context.Context, filter ports.ReferralListFilter) ([]*domain.ReferralCode, error) {
	excluded := make(map[string]struct{}, len(filter.ExcludeCreators))
	for _, c := range filter.ExcludeCreators {
		excluded[c] = struct{}{}
	}
	var out []*domain.ReferralCode
	for _, c := range r.codes {
		switch filter.Visibility {
		case domain.VisibilityAll:
		case domain.VisibilityNonSuperOwner:
			if _, hit := excluded[c.CreatedBy]; hit {
				continue
			}
		case domain.VisibilityOwnCreated:
			if c.CreatedBy != filter.Caller {
				continue
			}
		default:
			return nil, domain.ErrForbidden
		}
		clone := *c
		out = append(out, &clone)
	}
	return out, nil
}

func (r *stubReferralRepo) Delete(_ context.Context, code string) error {
	delete(r.codes, code)
	return nil
}

// --- keys ---

type stubKeyRepo struct {
	keys    map[string]*domain.Key
	devices map[string]*domain.Device // key+"/"+uuid
	seq     int
}

func newStubKeyRepo() *stubKeyRepo {
	return &stubKeyRepo{
		keys:    make(map[string]*domain.Key),
		devices: make(map[string]*domain.Device),
	}
}

func (r *stubKeyRepo) Insert(_ context.Context, k *domain.Key) error {
	if _, exists := r.keys[k.Key]; exists {
		return domain.ErrKeyExhausted
	}
	r.seq++
	clone := *k
	clone.ID = fmt.Sprintf("k%d", r.seq)
	r.keys[k.Key] = &clone
	return nil
}

func (r *stubKeyRepo) Exists(_ context.Context, key string) (bool, error) {
	_, ok := r.keys[key]
	return ok, nil
}

func (r *stubKeyRepo) FindByKey(_ context.Context, key string) (*domain.Key, error) {
	k, ok := r.keys[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	clone := *k
	return &clone, nil
}

func (r *stubKeyRepo) List(_ context.Context, filter ports.KeyListFilter) ([]*domain.Key, error) {
	excluded := make(map[string]struct{}, len(filter.ExcludeCreators))
	for _, c := range filter.ExcludeCreators {
		excluded[c] = struct{}{}
	}
	var out []*domain.Key
	for _, k := range r.keys {
		switch filter.Visibility {
		case domain.VisibilityAll:
		case domain.VisibilityNonSuperOwner:
			if _, hit := excluded[k.CreatedBy]; hit {
				continue
			}
		case domain.VisibilityOwnCreated, domain.VisibilitySelf:
			if k.CreatedBy != filter.Caller {
				continue
			}
		default:
			return nil, domain.ErrForbidden
		}
		clone := *k
		out = append(out, &clone)
	}
	return out, nil
}

func (r *stubKeyRepo) Update(_ context.Context, key string, upd ports.KeyUpdate) error {
	k, ok := r.keys[key]
	if !ok {
		return domain.ErrKeyNotFound
	}
	if upd.IsActive != nil {
		k.IsActive = *upd.IsActive
	}
	if upd.MaxDevices != nil {
		k.MaxDevices = *upd.MaxDevices
	}
	if upd.ExpiryDate != nil {
		k.ExpiryDate = *upd.ExpiryDate
	}
	if upd.Price != nil {
		k.Price = *upd.Price
	}
	return nil
}

func (r *stubKeyRepo) BulkSetActive(_ context.Context, keys []string, active bool) (int64, error) {
	var n int64
	for _, name := range keys {
		if k, ok := r.keys[name]; ok {
			k.IsActive = active
			n++
		}
	}
	return n, nil
}

func (r *stubKeyRepo) Delete(_ context.Context, key string) error {
	if _, ok := r.keys[key]; !ok {
		return domain.ErrKeyNotFound
	}
	delete(r.keys, key)
	return nil
}

func (r *stubKeyRepo) Activate(_ context.Context, key string, at, expiry time.Time) error {
	k, ok := r.keys[key]
	if !ok {
		return domain.ErrKeyNotFound
	}
	k.ActivatedAt = &at
	k.ExpiryDate = expiry
	return nil
}

func (r *stubKeyRepo) IncrementDevices(_ context.Context, key string) error {
	k, ok := r.keys[key]
	if !ok {
		return domain.ErrKeyNotFound
	}
	k.CurrentDevices++
	return nil
}

func (r *stubKeyRepo) ResetDevices(_ context.Context, key string) error {
	k, ok := r.keys[key]
	if !ok {
		return domain.ErrKeyNotFound
	}
	k.CurrentDevices = 0
	return nil
}

func (r *stubKeyRepo) InsertDevice(_ context.Context, d *domain.Device) error {
	clone := *d
	r.devices[d.Key+"/"+d.UUID] = &clone
	return nil
}

func (r *stubKeyRepo) FindDevice(_ context.Context, key, uuid string) (*domain.Device, error) {
	d, ok := r.devices[key+"/"+uuid]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *stubKeyRepo) DeleteDevicesByKey(_ context.Context, key string) error {
	for id := range r.devices {
		if strings.HasPrefix(id, key+"/") {
			delete(r.devices, id)
		}
	}
	return nil
}

// --- activities ---

type stubActivityRepo struct {
	rows []*domain.Activity
}

func newStubActivityRepo() *stubActivityRepo {
	return &stubActivityRepo{}
}

func (r *stubActivityRepo) Insert(_ context.Context, a *domain.Activity) error {
	clone := *a
	r.rows = append(r.rows, &clone)
	return nil
}

func (r *stubActivityRepo) List(_ context.Context, filter ports.ActivityListFilter) ([]*domain.Activity, error) {
	suppressed := make(map[domain.Role]struct{}, len(filter.SuppressRoles))
	for _, role := range filter.SuppressRoles {
		suppressed[role] = struct{}{}
	}
	var out []*domain.Activity
	for _, a := range r.rows {
		if _, hit := suppressed[a.Role]; hit {
			continue
		}
		switch filter.Visibility {
		case domain.VisibilityAll, domain.VisibilityNonSuperOwner:
		case domain.VisibilityOwnCreated, domain.VisibilitySelf:
			if a.Username != filter.Caller {
				continue
			}
		default:
			return nil, domain.ErrForbidden
		}
		clone := *a
		out = append(out, &clone)
		if filter.Limit > 0 && int64(len(out)) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// --- settings ---

type stubSettingsRepo struct {
	settings *domain.PricingSettings
}

func newStubSettingsRepo() *stubSettingsRepo {
	return &stubSettingsRepo{}
}

func (r *stubSettingsRepo) Get(_ context.Context) (*domain.PricingSettings, error) {
	if r.settings == nil {
		return nil, nil
	}
	clone := *r.settings
	return &clone, nil
}

func (r *stubSettingsRepo) Put(_ context.Context, s *domain.PricingSettings) error {
	clone := *s
	r.settings = &clone
	return nil
}

// --- otp / mail ---

type stubOTPStore struct {
	codes map[string]string
}

func newStubOTPStore() *stubOTPStore {
	return &stubOTPStore{codes: make(map[string]string)}
}

func (s *stubOTPStore) Save(_ context.Context, email, code string, _ time.Duration) error {
	s.codes[email] = code
	return nil
}

func (s *stubOTPStore) Consume(_ context.Context, email string) (string, error) {
	code, ok := s.codes[email]
	if !ok {
		return "", domain.ErrOTPInvalid
	}
	delete(s.codes, email)
	return code, nil
}

type stubMailer struct {
	sent []string // "to:code"
}

func (m *stubMailer) SendOTP(to, code string) error {
	m.sent = append(m.sent, to+":"+code)
	return nil
}
