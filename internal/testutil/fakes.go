// Package testutil provides in-memory repository fakes for service tests.
// They mirror the conditional-update semantics of the SQL implementations so
// tests exercise the same race behavior the database provides.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"oneoffice/internal/entity"

	"github.com/google/uuid"
)

// FixedClock returns a preset instant and can be advanced by tests.
type FixedClock struct {
	mutex sync.Mutex
	now   time.Time
}

func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

func (c *FixedClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

func (c *FixedClock) Set(now time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = now
}

// FakeUserRepo is an in-memory UserRepository. Set Err to force failures.
type FakeUserRepo struct {
	mutex sync.Mutex
	users map[uuid.UUID]*entity.User
	Err   error
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{users: make(map[uuid.UUID]*entity.User)}
}

func (r *FakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *FakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (r *FakeUserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *FakeUserRepo) Update(ctx context.Context, user *entity.User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return r.Err
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *FakeUserRepo) VerifyEmail(ctx context.Context, userID uuid.UUID, at time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if user, ok := r.users[userID]; ok && user.EmailVerifiedAt == nil {
		verifiedAt := at
		user.EmailVerifiedAt = &verifiedAt
	}
	return nil
}

func (r *FakeUserRepo) List(ctx context.Context, limit, offset int) ([]entity.User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	users := make([]entity.User, 0, len(r.users))
	for _, user := range r.users {
		if user.IsActive {
			users = append(users, *user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	if offset > len(users) {
		offset = len(users)
	}
	users = users[offset:]
	if limit > 0 && limit < len(users) {
		users = users[:limit]
	}
	return users, nil
}

// FakeSessionRepo keeps sessions in memory with the same conditional-update
// rules as the SQL repo: state changes apply only to rows still active.
type FakeSessionRepo struct {
	mutex    sync.Mutex
	sessions map[uuid.UUID]*entity.Session
	Err      error
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{sessions: make(map[uuid.UUID]*entity.Session)}
}

func (r *FakeSessionRepo) Create(ctx context.Context, session *entity.Session) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *FakeSessionRepo) FindByTokenHash(ctx context.Context, hash string) (*entity.Session, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, session := range r.sessions {
		if session.TokenHash == hash {
			copied := *session
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *FakeSessionRepo) FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]entity.Session, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var active []entity.Session
	for _, session := range r.sessions {
		if session.UserID == userID && session.IsActive {
			active = append(active, *session)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].LastActivityAt.After(active[j].LastActivityAt)
	})
	return active, nil
}

func (r *FakeSessionRepo) Deactivate(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID, at time.Time) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	session, ok := r.sessions[sessionID]
	if !ok || session.UserID != userID || !session.IsActive {
		return false, nil
	}
	r.deactivate(session, at)
	return true, nil
}

func (r *FakeSessionRepo) DeactivateOthers(ctx context.Context, userID uuid.UUID, keepID uuid.UUID, at time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	var affected int64
	for _, session := range r.sessions {
		if session.UserID == userID && session.ID != keepID && session.IsActive {
			r.deactivate(session, at)
			affected++
		}
	}
	return affected, nil
}

func (r *FakeSessionRepo) DeactivateAllByUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	var affected int64
	for _, session := range r.sessions {
		if session.UserID == userID && session.IsActive {
			r.deactivate(session, at)
			affected++
		}
	}
	return affected, nil
}

func (r *FakeSessionRepo) Touch(ctx context.Context, sessionID uuid.UUID, at time.Time, expiresAt time.Time) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	session, ok := r.sessions[sessionID]
	if !ok || !session.IsActive || !at.Before(session.ExpiresAt) {
		return false, nil
	}
	session.LastActivityAt = at
	session.ExpiresAt = expiresAt
	return true, nil
}

func (r *FakeSessionRepo) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	var deleted int64
	for id, session := range r.sessions {
		if !session.IsActive && session.LogoutAt != nil && session.LogoutAt.Before(cutoff) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Get returns the stored row for assertions.
func (r *FakeSessionRepo) Get(sessionID uuid.UUID) *entity.Session {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	copied := *session
	return &copied
}

func (r *FakeSessionRepo) deactivate(session *entity.Session, at time.Time) {
	session.IsActive = false
	logoutAt := at
	session.LogoutAt = &logoutAt
}

// FakePermissionRepo resolves permission lookups against in-memory role and
// override tables.
type FakePermissionRepo struct {
	mutex           sync.Mutex
	Permissions     []entity.Permission
	Roles           []entity.Role
	RolePermissions []entity.RolePermission
	UserRoles       []entity.UserRole
	Overrides       []entity.UserPermission
	Err             error
}

func NewFakePermissionRepo() *FakePermissionRepo {
	return &FakePermissionRepo{}
}

func (r *FakePermissionRepo) FindByKey(ctx context.Context, key entity.PermissionKey) (*entity.Permission, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for i := range r.Permissions {
		if r.Permissions[i].Key() == key {
			copied := r.Permissions[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *FakePermissionRepo) FindDirectOverride(ctx context.Context, userID uuid.UUID, permissionID uuid.UUID, now time.Time) (*entity.UserPermission, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var newest *entity.UserPermission
	for i := range r.Overrides {
		override := &r.Overrides[i]
		if override.UserID != userID || override.PermissionID != permissionID {
			continue
		}
		if !override.IsEffectiveAt(now) {
			continue
		}
		if newest == nil || override.CreatedAt.After(newest.CreatedAt) {
			newest = override
		}
	}
	if newest == nil {
		return nil, nil
	}
	copied := *newest
	return &copied, nil
}

func (r *FakePermissionRepo) HasRoleGrant(ctx context.Context, userID uuid.UUID, permissionID uuid.UUID, now time.Time) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	for i := range r.UserRoles {
		assignment := &r.UserRoles[i]
		if assignment.UserID != userID || !assignment.IsEffectiveAt(now) {
			continue
		}
		role := r.findRole(assignment.RoleID)
		if role == nil || !role.IsActive {
			continue
		}
		for j := range r.RolePermissions {
			rp := &r.RolePermissions[j]
			if rp.RoleID == role.ID && rp.PermissionID == permissionID && rp.IsGranted {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *FakePermissionRepo) findRole(id uuid.UUID) *entity.Role {
	for i := range r.Roles {
		if r.Roles[i].ID == id {
			return &r.Roles[i]
		}
	}
	return nil
}

// FakeSecurityLogRepo records security events for assertions.
type FakeSecurityLogRepo struct {
	mutex   sync.Mutex
	Entries []entity.SecurityLog
	Err     error
}

func NewFakeSecurityLogRepo() *FakeSecurityLogRepo {
	return &FakeSecurityLogRepo{}
}

func (r *FakeSecurityLogRepo) Log(ctx context.Context, log *entity.SecurityLog) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Entries = append(r.Entries, *log)
	return nil
}

func (r *FakeSecurityLogRepo) ByAction(action entity.SecurityAction) []entity.SecurityLog {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var matched []entity.SecurityLog
	for _, entry := range r.Entries {
		if entry.Action == action {
			matched = append(matched, entry)
		}
	}
	return matched
}

// FakeVerificationTokenRepo is an in-memory VerificationTokenRepository.
type FakeVerificationTokenRepo struct {
	mutex  sync.Mutex
	Tokens []entity.VerificationToken
	Err    error
}

func NewFakeVerificationTokenRepo() *FakeVerificationTokenRepo {
	return &FakeVerificationTokenRepo{}
}

func (r *FakeVerificationTokenRepo) Create(ctx context.Context, token *entity.VerificationToken) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	r.Tokens = append(r.Tokens, *token)
	return nil
}

func (r *FakeVerificationTokenRepo) FindValid(ctx context.Context, tokenHash string, tokenType entity.VerificationType, now time.Time) (*entity.VerificationToken, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for i := range r.Tokens {
		token := &r.Tokens[i]
		if token.TokenHash == tokenHash && token.Type == tokenType && token.UsedAt == nil && now.Before(token.ExpiresAt) {
			copied := *token
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *FakeVerificationTokenRepo) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return r.Err
	}
	for i := range r.Tokens {
		if r.Tokens[i].ID == id {
			usedAt := at
			r.Tokens[i].UsedAt = &usedAt
		}
	}
	return nil
}

// FakeMFASecretRepo is an in-memory MFASecretRepository.
type FakeMFASecretRepo struct {
	mutex   sync.Mutex
	secrets map[uuid.UUID]*entity.MFASecret
	Err     error
}

func NewFakeMFASecretRepo() *FakeMFASecretRepo {
	return &FakeMFASecretRepo{secrets: make(map[uuid.UUID]*entity.MFASecret)}
}

func (r *FakeMFASecretRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.MFASecret, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	secret, ok := r.secrets[userID]
	if !ok {
		return nil, nil
	}
	copied := *secret
	return &copied, nil
}

func (r *FakeMFASecretRepo) Upsert(ctx context.Context, secret *entity.MFASecret) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if secret.ID == uuid.Nil {
		secret.ID = uuid.New()
	}
	copied := *secret
	r.secrets[secret.UserID] = &copied
	return nil
}

func (r *FakeMFASecretRepo) Disable(ctx context.Context, userID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if secret, ok := r.secrets[userID]; ok {
		secret.EnabledAt = nil
	}
	return nil
}
