package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ecochain/platform/pkg/common/logger"
	"github.com/ecochain/platform/pkg/common/models"
	"github.com/ecochain/platform/pkg/ledger"
	"github.com/ecochain/platform/pkg/minting"
)

const multipartMemoryLimit = 10 << 20

type HandlerConfig struct {
	MaxBody          int64
	Network          string
	ExplorerBaseURL  string
	NFTContract      string
	RegistryContract string
}

type HTTPHandler struct {
	service *Service
	cfg     HandlerConfig
}

func NewHTTPHandler(service *Service, cfg HandlerConfig) *HTTPHandler {
	return &HTTPHandler{service: service, cfg: cfg}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	// Both spellings are registered because existing clients call the
	// collection endpoints with a trailing slash.
	router.HandleFunc("/upload", h.handleUpload).Methods(http.MethodPost)
	router.HandleFunc("/upload/", h.handleUpload).Methods(http.MethodPost)
	router.HandleFunc("/upload", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/upload/", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/upload/{id}/status", h.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/upload/{id}/cid", h.handleCID).Methods(http.MethodGet)
	router.HandleFunc("/upload/{id}/remint", h.handleRemint).Methods(http.MethodPost)
	router.HandleFunc("/upload/{id}", h.handleDelete).Methods(http.MethodDelete)
}

type uploadResponse struct {
	UploadID               string                  `json:"upload_id"`
	Status                 string                  `json:"status"`
	Filename               string                  `json:"filename"`
	UploadType             string                  `json:"upload_type"`
	Duplicate              bool                    `json:"duplicate,omitempty"`
	CID                    string                  `json:"cid,omitempty"`
	GatewayURL             string                  `json:"gateway_url,omitempty"`
	ShouldMint             *bool                   `json:"should_mint,omitempty"`
	TokenAmount            *float64                `json:"token_amount,omitempty"`
	Reasoning              string                  `json:"reasoning,omitempty"`
	ImpactScore            *float64                `json:"impact_score,omitempty"`
	MintOutcomes           *minting.Summary        `json:"mint_outcomes,omitempty"`
	BlockchainTransactions *blockchainTransactions `json:"blockchain_transactions,omitempty"`
	WalletInfo             *models.WalletInfo      `json:"wallet_info,omitempty"`
}

type tokenMintInfo struct {
	Success          bool             `json:"success"`
	TxHash           string           `json:"tx_hash,omitempty"`
	ExplorerURL      string           `json:"explorer_url,omitempty"`
	Amount           float64          `json:"amount,omitempty"`
	Error            string           `json:"error,omitempty"`
	ErrorKind        ledger.ErrorKind `json:"error_kind,omitempty"`
	RetryRecommended *bool            `json:"retry_recommended,omitempty"`
}

type nftMintInfo struct {
	Success          bool             `json:"success"`
	TxHash           string           `json:"tx_hash,omitempty"`
	TokenID          int64            `json:"token_id,omitempty"`
	ExplorerURL      string           `json:"explorer_url,omitempty"`
	NFTContract      string           `json:"nft_contract,omitempty"`
	Error            string           `json:"error,omitempty"`
	ErrorKind        ledger.ErrorKind `json:"error_kind,omitempty"`
	RetryRecommended *bool            `json:"retry_recommended,omitempty"`
}

type proofRegistrationInfo struct {
	Success          bool             `json:"success"`
	TxHash           string           `json:"tx_hash,omitempty"`
	ProofID          string           `json:"proof_id,omitempty"`
	ExplorerURL      string           `json:"explorer_url,omitempty"`
	RegistryContract string           `json:"registry_contract,omitempty"`
	Error            string           `json:"error,omitempty"`
	ErrorKind        ledger.ErrorKind `json:"error_kind,omitempty"`
	RetryRecommended *bool            `json:"retry_recommended,omitempty"`
}

type blockchainTransactions struct {
	EcoTokenMinting   *tokenMintInfo         `json:"eco_token_minting,omitempty"`
	NFTMinting        *nftMintInfo           `json:"nft_minting,omitempty"`
	ProofRegistration *proofRegistrationInfo `json:"proof_registration,omitempty"`
}

func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.cfg.MaxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBody)
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		logger.Log.WithError(err).Warn("invalid multipart upload")
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		logger.Log.WithError(err).Error("failed to read uploaded file")
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		return
	}

	req := Request{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		UploadType:  r.FormValue("upload_type"),
		UserWallet:  r.FormValue("user_wallet"),
		Metadata:    r.FormValue("metadata"),
		Content:     content,
	}

	// The pipeline keeps running if the client disconnects; once accepted,
	// mint operations run to completion on their own schedule.
	sess, err := h.service.Process(context.WithoutCancel(r.Context()), req)
	if err != nil {
		if IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("upload pipeline failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, h.buildResponse(sess))
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sess, err := h.service.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "upload not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch upload status")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *HTTPHandler) handleCID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sess, err := h.service.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "upload not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch upload")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	switch sess.Status {
	case StatusCompleted:
		if sess.CID == "" {
			http.Error(w, "upload completed but content address missing", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"upload_id":        sess.ID,
			"cid":              sess.CID,
			"gateway_url":      sess.GatewayURL,
			"storage_fallback": sess.StorageFallback,
		})
	case StatusFailed:
		http.Error(w, fmt.Sprintf("upload failed: %s", sess.Error), http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"upload_id": sess.ID,
			"status":    sess.Status,
		})
	}
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("user_wallet")
	if wallet == "" {
		http.Error(w, "user_wallet query parameter required", http.StatusBadRequest)
		return
	}

	sessions, err := h.service.ListByWallet(r.Context(), wallet)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list uploads")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []*Session{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_wallet": wallet,
		"uploads":     sessions,
		"total_count": len(sessions),
	})
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "upload not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to delete upload")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"upload_id": id,
		"status":    "deleted",
		"message":   "Upload deleted successfully",
	})
}

func (h *HTTPHandler) handleRemint(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sess, err := h.service.Remint(context.WithoutCancel(r.Context()), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "upload not found", http.StatusNotFound)
		case IsValidationError(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, minting.ErrDispatcherStopped):
			http.Error(w, "service shutting down", http.StatusServiceUnavailable)
		default:
			logger.Log.WithError(err).Error("remint failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, h.buildResponse(sess))
}

func (h *HTTPHandler) buildResponse(sess *Session) uploadResponse {
	resp := uploadResponse{
		UploadID:   sess.ID,
		Status:     sess.Status,
		Filename:   sess.Filename,
		UploadType: sess.UploadType,
		Duplicate:  sess.Duplicate,
		CID:        sess.CID,
		GatewayURL: sess.GatewayURL,
	}

	if sess.Scoring != nil {
		resp.ShouldMint = &sess.Scoring.ShouldMint
		resp.TokenAmount = &sess.Scoring.FinalCredits
		resp.Reasoning = sess.Scoring.Reasoning
		resp.ImpactScore = &sess.Scoring.ImpactScore
	}

	if sess.Mint != nil {
		resp.MintOutcomes = sess.Mint
		resp.BlockchainTransactions = h.transactionsFrom(sess.Mint)
		resp.WalletInfo = &models.WalletInfo{
			Address:     sess.UserWallet,
			Network:     h.cfg.Network,
			ExplorerURL: ledger.ExplorerAddressURL(h.cfg.ExplorerBaseURL, sess.UserWallet),
		}
	}

	return resp
}

// transactionsFrom exposes every attempted operation under its API name.
// Confirmed operations carry tx fields; failed ones carry the error, its
// kind, and the retry hint.
func (h *HTTPHandler) transactionsFrom(summary *minting.Summary) *blockchainTransactions {
	txs := &blockchainTransactions{}

	if o := summary.Outcome(ledger.OpRewardToken); o != nil {
		info := &tokenMintInfo{Success: o.Success}
		if o.Success {
			info.TxHash = o.TxHash
			info.ExplorerURL = o.ExplorerURL
			info.Amount = summary.TokenAmount
		} else {
			info.Error = o.Error
			info.ErrorKind = o.ErrorKind
			info.RetryRecommended = &o.RetryRecommended
		}
		txs.EcoTokenMinting = info
	}
	if o := summary.Outcome(ledger.OpCertificateNFT); o != nil {
		info := &nftMintInfo{Success: o.Success}
		if o.Success {
			info.TxHash = o.TxHash
			info.TokenID = o.TokenID
			info.ExplorerURL = o.ExplorerURL
			info.NFTContract = h.cfg.NFTContract
		} else {
			info.Error = o.Error
			info.ErrorKind = o.ErrorKind
			info.RetryRecommended = &o.RetryRecommended
		}
		txs.NFTMinting = info
	}
	if o := summary.Outcome(ledger.OpProofRegistry); o != nil {
		info := &proofRegistrationInfo{Success: o.Success}
		if o.Success {
			info.TxHash = o.TxHash
			info.ProofID = o.ProofID
			info.ExplorerURL = o.ExplorerURL
			info.RegistryContract = h.cfg.RegistryContract
		} else {
			info.Error = o.Error
			info.ErrorKind = o.ErrorKind
			info.RetryRecommended = &o.RetryRecommended
		}
		txs.ProofRegistration = info
	}

	return txs
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
