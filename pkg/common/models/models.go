package models

import "time"

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // upload.received, upload.completed, upload.failed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Event types emitted by the upload pipeline.
const (
	EventUploadReceived  = "upload.received"
	EventUploadCompleted = "upload.completed"
	EventUploadFailed    = "upload.failed"
	EventUploadDeleted   = "upload.deleted"
)

// WalletInfo accompanies upload responses so callers can follow their wallet
// on the block explorer without a second lookup.
type WalletInfo struct {
	Address     string `json:"address"`
	Network     string `json:"network"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

// Notification is the cross-service view of a recorded pipeline notification.
type Notification struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	UploadID  string    `json:"upload_id,omitempty"`
	Wallet    string    `json:"wallet,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
