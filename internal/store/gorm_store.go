package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/watchhub/signalhub/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormStore is the default Store implementation, backed by gorm.io/gorm.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an already-migrated *gorm.DB as a Store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) RegisterDevice(ctx context.Context, deviceID, name, deviceType string) (*models.Device, error) {
	if deviceType == "" {
		deviceType = models.DeviceTypeCamera
	}

	var device models.Device
	err := s.db.WithContext(ctx).Where(models.Device{DeviceID: deviceID}).
		Attrs(models.Device{Name: name, Type: deviceType}).
		FirstOrCreate(&device).Error
	if err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}
	return &device, nil
}

func (s *gormStore) GetDeviceByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	var device models.Device
	err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return &device, nil
}

func (s *gormStore) GetDeviceByID(ctx context.Context, id uint) (*models.Device, error) {
	var device models.Device
	err := s.db.WithContext(ctx).First(&device, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device by id: %w", err)
	}
	return &device, nil
}

func (s *gormStore) SetDeviceOnline(ctx context.Context, deviceID string, online bool, lastSeen time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Device{}).Where("device_id = ?", deviceID).
		Updates(map[string]any{"online": online, "last_seen": lastSeen}).Error
	if err != nil {
		return fmt.Errorf("set device online: %w", err)
	}
	return nil
}

func (s *gormStore) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (s *gormStore) CreatePairingCode(ctx context.Context, code string, deviceID uint, ttl time.Duration) (*models.PairingCode, error) {
	pc := models.PairingCode{
		Code:      code,
		DeviceID:  deviceID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.db.WithContext(ctx).Create(&pc).Error; err != nil {
		return nil, fmt.Errorf("create pairing code: %w", err)
	}
	return &pc, nil
}

func (s *gormStore) CodeOutstanding(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PairingCode{}).
		Where("code = ? AND used = ? AND expires_at > ?", code, false, time.Now()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check pairing code: %w", err)
	}
	return count > 0, nil
}

// RedeemPairingCode consumes a pairing code exactly once even under
// concurrent callers (spec.md §3 invariants, §8 scenario 6). It locks the
// row with SELECT ... FOR UPDATE inside a transaction so two concurrent
// redemptions of the same code serialize: the loser sees Used=true and
// returns ErrAlreadyUsed.
func (s *gormStore) RedeemPairingCode(ctx context.Context, code string, userID uint) (*models.Device, error) {
	var device models.Device
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pc models.PairingCode
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", code).First(&pc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAlreadyUsed
		}
		if err != nil {
			return fmt.Errorf("lock pairing code: %w", err)
		}
		if pc.Used || pc.ExpiresAt.Before(time.Now()) {
			return ErrAlreadyUsed
		}

		if err := tx.Model(&pc).Update("used", true).Error; err != nil {
			return fmt.Errorf("mark pairing code used: %w", err)
		}

		ownership := models.DeviceOwnership{
			UserID:   userID,
			DeviceID: pc.DeviceID,
			Role:     "owner",
		}
		if err := tx.Create(&ownership).Error; err != nil {
			return fmt.Errorf("create device ownership: %w", err)
		}

		if err := tx.First(&device, pc.DeviceID).Error; err != nil {
			return fmt.Errorf("load paired device: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (s *gormStore) CreateWatchSession(ctx context.Context, sessionID string, userID, deviceID uint) (*models.WatchSession, error) {
	session := models.WatchSession{
		SessionID: sessionID,
		UserID:    userID,
		DeviceID:  deviceID,
		Status:    models.WatchSessionPending,
		StartedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("create watch session: %w", err)
	}
	return &session, nil
}

func (s *gormStore) GetWatchSession(ctx context.Context, sessionID string) (*models.WatchSession, error) {
	var session models.WatchSession
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get watch session: %w", err)
	}
	return &session, nil
}

// PromoteWatchSession only moves pending -> active; ended sessions and
// already-active sessions are left untouched (spec.md §3: "once ended,
// immutable"; the state machine table has no active->active side effect
// beyond forwarding).
func (s *gormStore) PromoteWatchSession(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).Model(&models.WatchSession{}).
		Where("session_id = ? AND status = ?", sessionID, models.WatchSessionPending).
		Update("status", models.WatchSessionActive).Error
	if err != nil {
		return fmt.Errorf("promote watch session: %w", err)
	}
	return nil
}

func (s *gormStore) EndWatchSession(ctx context.Context, sessionID string, reason models.WatchSessionEndReason) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(&models.WatchSession{}).
		Where("session_id = ? AND status <> ?", sessionID, models.WatchSessionEnded).
		Updates(map[string]any{
			"status":       models.WatchSessionEnded,
			"ended_at":     &now,
			"ended_reason": reason,
		}).Error
	if err != nil {
		return fmt.Errorf("end watch session: %w", err)
	}
	return nil
}

func (s *gormStore) ActiveSessionsForDevice(ctx context.Context, deviceID uint) ([]models.WatchSession, error) {
	var sessions []models.WatchSession
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND status IN ?", deviceID, []models.WatchSessionStatus{models.WatchSessionPending, models.WatchSessionActive}).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list active sessions for device: %w", err)
	}
	return sessions, nil
}

func (s *gormStore) ActiveSessionsForUser(ctx context.Context, userID uint) ([]models.WatchSession, error) {
	var sessions []models.WatchSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []models.WatchSessionStatus{models.WatchSessionPending, models.WatchSessionActive}).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list active sessions for user: %w", err)
	}
	return sessions, nil
}
