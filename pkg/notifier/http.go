package notifier

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ecochain/platform/pkg/common/logger"
	"github.com/ecochain/platform/pkg/common/models"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/notifications", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/notifications/", h.handleList).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("user_wallet")
	if wallet == "" {
		http.Error(w, "user_wallet query parameter required", http.StatusBadRequest)
		return
	}

	notifications, err := h.service.ListByWallet(r.Context(), wallet)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list notifications")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"user_wallet":   wallet,
		"notifications": notifications,
		"total_count":   len(notifications),
	}); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}
