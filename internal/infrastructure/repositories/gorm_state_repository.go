package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/you/chefkix/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStateRepository implements domain.StateStore using GORM (sqlite or postgres)
type GormStateRepository struct {
	db        *gorm.DB
	namespace string
}

// DBStateEntry represents a persisted client state document
type DBStateEntry struct {
	Namespace string    `gorm:"primaryKey;size:64"`
	Key       string    `gorm:"column:state_key;primaryKey;size:128"`
	Value     []byte    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (DBStateEntry) TableName() string {
	return "client_state"
}

// NewGormStateRepository creates a new GORM-backed state store
func NewGormStateRepository(db *gorm.DB, namespace string) *GormStateRepository {
	return &GormStateRepository{db: db, namespace: namespace}
}

// Load implements domain.StateStore
func (r *GormStateRepository) Load(ctx context.Context, key string, v interface{}) (bool, error) {
	var entry DBStateEntry
	err := r.db.WithContext(ctx).
		Where("namespace = ? AND state_key = ?", r.namespace, key).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	if err := json.Unmarshal(entry.Value, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Save implements domain.StateStore
func (r *GormStateRepository) Save(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	entry := &DBStateEntry{
		Namespace: r.namespace,
		Key:       key,
		Value:     data,
		UpdatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "state_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(entry).Error
}

// Delete implements domain.StateStore
func (r *GormStateRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).
		Where("namespace = ? AND state_key = ?", r.namespace, key).
		Delete(&DBStateEntry{}).Error
}

var _ domain.StateStore = (*GormStateRepository)(nil)
