package notifier

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type NotificationModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	EventID   string    `gorm:"column:event_id"`
	EventType string    `gorm:"column:event_type"`
	UploadID  string    `gorm:"column:upload_id"`
	Wallet    string    `gorm:"column:wallet;index"`
	Message   string    `gorm:"column:message"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (NotificationModel) TableName() string {
	return "notifications"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&NotificationModel{})
}

func (r *Repository) Save(ctx context.Context, n *NotificationModel) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *Repository) ListByWallet(ctx context.Context, wallet string) ([]NotificationModel, error) {
	var rows []NotificationModel
	err := r.db.WithContext(ctx).
		Where("wallet = ?", wallet).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
