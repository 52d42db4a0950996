package extraction

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"snapexpense/internal/transport"
	"snapexpense/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Client *Client
}

func NewHandler(client *Client) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Client:      client,
	}
}

type scanRequest struct {
	Image string `json:"image"`
}

// ScanReceipt runs extraction over an uploaded data-URI image. It always
// answers 200: extraction failures surface as the fallback result, which
// the client presents as an editable draft.
func (h *Handler) ScanReceipt(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Image == "" {
		h.WriteError(w, http.StatusBadRequest, "image is required")
		return
	}

	result := h.Client.Extract(r.Context(), req.Image)
	h.WriteJSON(w, http.StatusOK, result)
}
