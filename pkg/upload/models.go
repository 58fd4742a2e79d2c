package upload

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecochain/platform/pkg/contentstore"
	"github.com/ecochain/platform/pkg/minting"
	"github.com/ecochain/platform/pkg/scoring"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Session is the durable record tracking one upload from intake through
// scoring to minting. It is persisted as a JSON document, so every field
// carries an explicit JSON name.
type Session struct {
	ID              string           `json:"upload_id"`
	Filename        string           `json:"filename"`
	ContentType     string           `json:"content_type"`
	UploadType      string           `json:"upload_type"`
	UserWallet      string           `json:"user_wallet"`
	Metadata        string           `json:"metadata,omitempty"`
	Status          string           `json:"status"`
	Error           string           `json:"error,omitempty"`
	FileSize        int64            `json:"file_size"`
	ContentHash     string           `json:"content_hash"`
	CID             string           `json:"cid,omitempty"`
	GatewayURL      string           `json:"gateway_url,omitempty"`
	StorageFallback bool             `json:"storage_fallback"`
	Scoring         *scoring.Result  `json:"scoring_result,omitempty"`
	Mint            *minting.Summary `json:"mint_outcomes,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`

	// Duplicate marks a dedupe short-circuit on the copy handed back to the
	// caller. It is never stored.
	Duplicate bool `json:"-"`
}

// Request carries one validated intake through the pipeline.
type Request struct {
	Filename    string
	ContentType string
	UploadType  string
	UserWallet  string
	Metadata    string
	Content     []byte
}

// NewSession starts a processing-state session for a validated request. The
// upload type is stored lowercased so category lookups downstream see the
// canonical form regardless of the client's casing.
func NewSession(req Request) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          uuid.New().String(),
		Filename:    req.Filename,
		ContentType: req.ContentType,
		UploadType:  strings.TrimSpace(strings.ToLower(req.UploadType)),
		UserWallet:  req.UserWallet,
		Metadata:    req.Metadata,
		Status:      StatusProcessing,
		FileSize:    int64(len(req.Content)),
		ContentHash: contentstore.ContentHash(req.Content),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
