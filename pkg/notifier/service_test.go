package notifier

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ecochain/platform/pkg/common/logger"
	"github.com/ecochain/platform/pkg/common/models"
)

func init() {
	logger.Init()
}

type memoryStore struct {
	mu   sync.Mutex
	rows []NotificationModel
	fail bool
}

func (m *memoryStore) Save(ctx context.Context, n *NotificationModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return context.DeadlineExceeded
	}
	m.rows = append(m.rows, *n)
	return nil
}

func (m *memoryStore) ListByWallet(ctx context.Context, wallet string) ([]NotificationModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []NotificationModel
	for _, row := range m.rows {
		if row.Wallet == wallet {
			out = append(out, row)
		}
	}
	return out, nil
}

func pipelineEvent(eventType string, data map[string]interface{}) models.Event {
	return models.Event{
		ID:        "evt-1",
		Type:      eventType,
		Source:    "upload-service",
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func TestProcessRecordsNotification(t *testing.T) {
	store := &memoryStore{}
	svc := NewService(store)

	event := pipelineEvent(models.EventUploadReceived, map[string]interface{}{
		"upload_id":   "up-1",
		"user_wallet": "0xabc",
		"filename":    "report.pdf",
	})

	if err := svc.Process(context.Background(), event); err != nil {
		t.Fatalf("Process: %v", err)
	}

	rows, err := store.ListByWallet(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("ListByWallet: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(rows))
	}

	row := rows[0]
	if row.ID == "" {
		t.Error("notification ID not assigned")
	}
	if row.EventID != "evt-1" {
		t.Errorf("event id = %q", row.EventID)
	}
	if row.EventType != models.EventUploadReceived {
		t.Errorf("event type = %q", row.EventType)
	}
	if row.UploadID != "up-1" {
		t.Errorf("upload id = %q", row.UploadID)
	}
	if !strings.Contains(row.Message, "report.pdf") {
		t.Errorf("message %q does not mention the file", row.Message)
	}
}

func TestProcessMessageVariants(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		data      map[string]interface{}
		want      string
	}{
		{
			name:      "completed with minted tokens",
			eventType: models.EventUploadCompleted,
			data: map[string]interface{}{
				"filename":           "report.pdf",
				"final_credits":      96.0,
				"should_mint":        true,
				"mint_total_success": true,
			},
			want: "96 eco tokens",
		},
		{
			name:      "completed with mint pending",
			eventType: models.EventUploadCompleted,
			data: map[string]interface{}{
				"filename":           "report.pdf",
				"should_mint":        true,
				"mint_total_success": false,
			},
			want: "still pending",
		},
		{
			name:      "completed below threshold",
			eventType: models.EventUploadCompleted,
			data: map[string]interface{}{
				"filename":    "report.pdf",
				"should_mint": false,
			},
			want: "did not qualify",
		},
		{
			name:      "failed with reason",
			eventType: models.EventUploadFailed,
			data: map[string]interface{}{
				"filename": "report.pdf",
				"error":    "mint dispatcher stopped",
			},
			want: "mint dispatcher stopped",
		},
		{
			name:      "failed without reason",
			eventType: models.EventUploadFailed,
			data:      map[string]interface{}{"filename": "report.pdf"},
			want:      "try uploading again",
		},
		{
			name:      "deleted",
			eventType: models.EventUploadDeleted,
			data:      map[string]interface{}{"filename": "report.pdf"},
			want:      "deleted",
		},
		{
			name:      "missing filename falls back to generic wording",
			eventType: models.EventUploadReceived,
			data:      map[string]interface{}{},
			want:      "your document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStore{}
			svc := NewService(store)

			data := tt.data
			data["user_wallet"] = "0xabc"
			if err := svc.Process(context.Background(), pipelineEvent(tt.eventType, data)); err != nil {
				t.Fatalf("Process: %v", err)
			}

			rows, _ := store.ListByWallet(context.Background(), "0xabc")
			if len(rows) != 1 {
				t.Fatalf("expected 1 notification, got %d", len(rows))
			}
			if !strings.Contains(rows[0].Message, tt.want) {
				t.Errorf("message %q does not contain %q", rows[0].Message, tt.want)
			}
		})
	}
}

func TestProcessSkipsUnknownEventTypes(t *testing.T) {
	store := &memoryStore{}
	svc := NewService(store)

	event := pipelineEvent("normalize", map[string]interface{}{"user_wallet": "0xabc"})
	if err := svc.Process(context.Background(), event); err != nil {
		t.Fatalf("Process returned error for unknown event: %v", err)
	}

	rows, _ := store.ListByWallet(context.Background(), "0xabc")
	if len(rows) != 0 {
		t.Fatalf("unknown event should not record a notification, got %d rows", len(rows))
	}
}

func TestProcessPropagatesStoreError(t *testing.T) {
	store := &memoryStore{fail: true}
	svc := NewService(store)

	event := pipelineEvent(models.EventUploadReceived, map[string]interface{}{"user_wallet": "0xabc"})
	if err := svc.Process(context.Background(), event); err == nil {
		t.Fatal("expected error when store save fails")
	}
}

func TestListByWalletConvertsRows(t *testing.T) {
	store := &memoryStore{}
	svc := NewService(store)

	event := pipelineEvent(models.EventUploadCompleted, map[string]interface{}{
		"upload_id":   "up-9",
		"user_wallet": "0xdef",
		"filename":    "audit.csv",
		"should_mint": false,
	})
	if err := svc.Process(context.Background(), event); err != nil {
		t.Fatalf("Process: %v", err)
	}

	notifications, err := svc.ListByWallet(context.Background(), "0xdef")
	if err != nil {
		t.Fatalf("ListByWallet: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
	n := notifications[0]
	if n.UploadID != "up-9" || n.Wallet != "0xdef" || n.EventType != models.EventUploadCompleted {
		t.Errorf("unexpected notification view: %+v", n)
	}
	if n.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}
