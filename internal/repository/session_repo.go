package repository

import (
	"context"
	"errors"
	"time"

	"oneoffice/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionRepository is the session store. All state changes are conditional
// single-row UPDATEs (WHERE ... AND is_active) so that concurrent requests on
// the same row serialize at the database and a deactivation is visible to
// every subsequent read.
type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	FindByTokenHash(ctx context.Context, hash string) (*entity.Session, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]entity.Session, error)

	// Deactivate marks one active session inactive. Returns false when the row
	// was already inactive or does not belong to userID.
	Deactivate(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID, at time.Time) (bool, error)
	DeactivateOthers(ctx context.Context, userID uuid.UUID, keepID uuid.UUID, at time.Time) (int64, error)
	DeactivateAllByUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)

	// Touch refreshes the activity window of a still-active, unexpired session.
	// A session that lost the race (deactivated or expired) is left untouched.
	Touch(ctx context.Context, sessionID uuid.UUID, at time.Time, expiresAt time.Time) (bool, error)

	// DeleteInactiveBefore is for the external retention job; nothing in the
	// request path calls it.
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, s *entity.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepository) FindByTokenHash(ctx context.Context, hash string) (*entity.Session, error) {
	var session entity.Session
	err := r.db.WithContext(ctx).
		Where("token_hash = ?", hash).
		First(&session).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &session, err
}

func (r *sessionRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]entity.Session, error) {
	var sessions []entity.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = true", userID).
		Order("last_activity_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepository) Deactivate(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("id = ? AND user_id = ? AND is_active = true", sessionID, userID).
		Updates(map[string]any{"is_active": false, "logout_at": &at})
	return result.RowsAffected > 0, result.Error
}

func (r *sessionRepository) DeactivateOthers(ctx context.Context, userID uuid.UUID, keepID uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("user_id = ? AND id <> ? AND is_active = true", userID, keepID).
		Updates(map[string]any{"is_active": false, "logout_at": &at})
	return result.RowsAffected, result.Error
}

func (r *sessionRepository) DeactivateAllByUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("user_id = ? AND is_active = true", userID).
		Updates(map[string]any{"is_active": false, "logout_at": &at})
	return result.RowsAffected, result.Error
}

func (r *sessionRepository) Touch(ctx context.Context, sessionID uuid.UUID, at time.Time, expiresAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("id = ? AND is_active = true AND expires_at > ?", sessionID, at).
		Updates(map[string]any{"last_activity_at": at, "expires_at": expiresAt})
	return result.RowsAffected > 0, result.Error
}

func (r *sessionRepository) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("(is_active = false AND logout_at < ?) OR expires_at < ?", cutoff, cutoff).
		Delete(&entity.Session{})
	return result.RowsAffected, result.Error
}
