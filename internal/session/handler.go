package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"snapexpense/internal"
	"snapexpense/internal/transport"
	"snapexpense/internal/user"
	"snapexpense/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Manager:     manager,
	}
}

// loginResponse pairs the access token with the resolved user so clients
// can render the shell without a second round trip.
type loginResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto user.LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, token, err := h.Manager.Login(dto.Email, dto.Password)
	if err != nil {
		if errors.Is(err, internal.ErrInvalidCredentials) {
			h.Logger.Warn("Login: invalid credentials", "email", dto.Email)
		} else {
			h.Logger.Error("Login: failed", "error", err)
		}
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("Login: session started", "user_id", u.ID)
	h.WriteJSON(w, http.StatusOK, loginResponse{Token: token, User: u})
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var dto user.SignupDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, token, err := h.Manager.Signup(r.Context(), dto.Name, dto.Email, dto.Password)
	if err != nil {
		h.Logger.Error("Signup: failed", "error", err, "email", dto.Email)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("Signup: account created", "user_id", u.ID)
	h.WriteJSON(w, http.StatusCreated, loginResponse{Token: token, User: u})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Manager.Logout()
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated caller's current record.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}
