package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ecochain/platform/pkg/common/logger"
	"github.com/ecochain/platform/pkg/common/models"
)

// Store is the persistence surface the service needs. *Repository satisfies
// it; tests substitute an in-memory implementation.
type Store interface {
	Save(ctx context.Context, n *NotificationModel) error
	ListByWallet(ctx context.Context, wallet string) ([]NotificationModel, error)
}

// Service projects upload pipeline events into user-facing notifications.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Process renders and records a notification for one pipeline event.
// Event types the notifier does not recognize are skipped without error so
// the consumer commits and moves on.
func (s *Service) Process(ctx context.Context, event models.Event) error {
	message, ok := renderMessage(event)
	if !ok {
		logger.Log.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Debug("skipping event with no notification mapping")
		return nil
	}

	row := &NotificationModel{
		ID:        uuid.New().String(),
		EventID:   event.ID,
		EventType: event.Type,
		UploadID:  stringField(event.Data, "upload_id"),
		Wallet:    stringField(event.Data, "user_wallet"),
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.Save(ctx, row); err != nil {
		return fmt.Errorf("saving notification: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"event_id":  event.ID,
		"upload_id": row.UploadID,
		"wallet":    row.Wallet,
	}).Info("Notification recorded")

	return nil
}

// ListByWallet returns notifications for a wallet, newest first, converted to
// the cross-service view.
func (s *Service) ListByWallet(ctx context.Context, wallet string) ([]models.Notification, error) {
	rows, err := s.store.ListByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}

	out := make([]models.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Notification{
			ID:        row.ID,
			EventID:   row.EventID,
			EventType: row.EventType,
			UploadID:  row.UploadID,
			Wallet:    row.Wallet,
			Message:   row.Message,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

func renderMessage(event models.Event) (string, bool) {
	filename := stringField(event.Data, "filename")
	if filename == "" {
		filename = "your document"
	}

	switch event.Type {
	case models.EventUploadReceived:
		return fmt.Sprintf("We received %s and started processing it.", filename), true
	case models.EventUploadCompleted:
		if minted, _ := event.Data["mint_total_success"].(bool); minted {
			credits := floatField(event.Data, "final_credits")
			return fmt.Sprintf("%s was processed and %s eco tokens were minted to your wallet.", filename, trimFloat(credits)), true
		}
		if shouldMint, _ := event.Data["should_mint"].(bool); shouldMint {
			return fmt.Sprintf("%s was processed. Token minting is still pending, we will retry shortly.", filename), true
		}
		return fmt.Sprintf("%s was processed. It did not qualify for token rewards this time.", filename), true
	case models.EventUploadFailed:
		if reason := stringField(event.Data, "error"); reason != "" {
			return fmt.Sprintf("Processing %s failed: %s", filename, reason), true
		}
		return fmt.Sprintf("Processing %s failed. Please try uploading again.", filename), true
	case models.EventUploadDeleted:
		return fmt.Sprintf("%s was deleted along with its processing record.", filename), true
	default:
		return "", false
	}
}

func stringField(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	v, _ := data[key].(string)
	return v
}

func floatField(data map[string]interface{}, key string) float64 {
	if data == nil {
		return 0
	}
	v, _ := data[key].(float64)
	return v
}

// trimFloat renders 96 as "96" and 96.5 as "96.5" so notification copy does
// not read like a ledger entry.
func trimFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
