package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sessionRecord struct {
	ID         string         `gorm:"primaryKey;column:id"`
	UserWallet string         `gorm:"column:user_wallet;index"`
	Status     string         `gorm:"column:status"`
	Document   datatypes.JSON `gorm:"column:document"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at"`
}

func (sessionRecord) TableName() string {
	return "upload_sessions"
}

// GormStore persists sessions in Postgres, one JSON document per row with
// the columns the API filters on promoted for indexing. Backup and recovery
// are delegated to database operations rather than reimplemented here.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&sessionRecord{})
}

func (s *GormStore) Put(ctx context.Context, sess *Session) error {
	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	rec := sessionRecord{
		ID:         sess.ID,
		UserWallet: sess.UserWallet,
		Status:     sess.Status,
		Document:   datatypes.JSON(doc),
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.UpdatedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

func (s *GormStore) Get(ctx context.Context, id string) (*Session, error) {
	var rec sessionRecord
	result := s.db.WithContext(ctx).First(&rec, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return decodeRecord(&rec)
}

func (s *GormStore) ListByWallet(ctx context.Context, wallet string) ([]*Session, error) {
	var recs []sessionRecord
	if err := s.db.WithContext(ctx).
		Where("user_wallet = ?", wallet).
		Order("created_at DESC").
		Find(&recs).Error; err != nil {
		return nil, err
	}

	out := make([]*Session, 0, len(recs))
	for i := range recs {
		sess, err := decodeRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&sessionRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeRecord(rec *sessionRecord) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(rec.Document, &sess); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", rec.ID, err)
	}
	return &sess, nil
}
