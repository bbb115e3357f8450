package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

// userRecord is the persisted form of one user's push registrations. The
// registration list is stored as a JSON blob, matching the shape browsers
// hand us at registration time.
type userRecord struct {
	Username      string `gorm:"primaryKey;column:username"`
	Registrations string `gorm:"column:registrations"`
}

func (userRecord) TableName() string {
	return "push_registrations"
}

// Store is a SubscriptionRegistry backed by a local SQLite database.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the registration database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open subscription database: %w", err)
	}
	if err := db.AutoMigrate(&userRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate subscription schema: %w", err)
	}
	return &Store{db: db}, nil
}

func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&userRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate subscription schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Users(ctx context.Context) ([]string, error) {
	var users []string
	err := s.db.WithContext(ctx).
		Model(&userRecord{}).
		Order("username").
		Pluck("username", &users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *Store) RegistrationsForUser(ctx context.Context, user string) ([]domain.PushRegistration, error) {
	var record userRecord
	err := s.db.WithContext(ctx).First(&record, "username = ?", user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load registrations: %w", err)
	}

	var regs []domain.PushRegistration
	if record.Registrations != "" {
		if err := json.Unmarshal([]byte(record.Registrations), &regs); err != nil {
			return nil, fmt.Errorf("corrupt registration record for %s: %w", user, err)
		}
	}
	return regs, nil
}

func (s *Store) AddRegistration(ctx context.Context, user string, reg domain.PushRegistration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record userRecord
		err := tx.First(&record, "username = ?", user).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load registrations: %w", err)
		}

		var regs []domain.PushRegistration
		if record.Registrations != "" {
			if err := json.Unmarshal([]byte(record.Registrations), &regs); err != nil {
				return fmt.Errorf("corrupt registration record for %s: %w", user, err)
			}
		}

		// Re-registering an existing endpoint refreshes its keys.
		replaced := false
		for i := range regs {
			if regs[i].Endpoint == reg.Endpoint {
				regs[i] = reg
				replaced = true
				break
			}
		}
		if !replaced {
			regs = append(regs, reg)
		}

		return saveRecord(tx, user, regs)
	})
}

func (s *Store) ReplaceRegistrations(ctx context.Context, user string, regs []domain.PushRegistration) error {
	return saveRecord(s.db.WithContext(ctx), user, regs)
}

func saveRecord(tx *gorm.DB, user string, regs []domain.PushRegistration) error {
	data, err := json.Marshal(regs)
	if err != nil {
		return fmt.Errorf("failed to encode registrations: %w", err)
	}
	record := userRecord{Username: user, Registrations: string(data)}
	if err := tx.Save(&record).Error; err != nil {
		return fmt.Errorf("failed to save registrations: %w", err)
	}
	return nil
}
