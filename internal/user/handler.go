package user

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"snapexpense/internal/transport"
	"snapexpense/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Repo:        repo,
	}
}

// ListUsers is manager-scoped via routing; the address book view needs it
// for approver pickers and the admin screen.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.Repo.List())
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, ok := h.Repo.Get(id)
	if !ok {
		h.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	var dto UpdateRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Repo.UpdateRole(r.Context(), actor.ID, id, dto.Role); err != nil {
		h.Logger.Error("UpdateRole: repository error", "error", err, "user_id", id)
		h.HandleServiceError(w, err)
		return
	}

	updated, _ := h.Repo.Get(id)
	h.WriteJSON(w, http.StatusOK, updated)
}

// UpdateAvatar changes the caller's own avatar image.
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	u, ok := FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto UpdateAvatarDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Repo.UpdateAvatar(r.Context(), u.ID, dto.Avatar); err != nil {
		h.Logger.Error("UpdateAvatar: repository error", "error", err, "user_id", u.ID)
		h.HandleServiceError(w, err)
		return
	}

	updated, _ := h.Repo.Get(u.ID)
	h.WriteJSON(w, http.StatusOK, updated)
}

// UpdatePassword changes the caller's own password.
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto UpdatePasswordDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Repo.UpdatePassword(r.Context(), u.ID, dto.Password); err != nil {
		h.Logger.Error("UpdatePassword: repository error", "error", err, "user_id", u.ID)
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RequestProfileUpdate stages a name/email change on the caller's record
// for later admin resolution. A second request replaces the first.
func (h *Handler) RequestProfileUpdate(w http.ResponseWriter, r *http.Request) {
	u, ok := FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto ProfileUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Repo.RequestProfileUpdate(r.Context(), u.ID, dto.Name, dto.Email); err != nil {
		h.Logger.Error("RequestProfileUpdate: repository error", "error", err, "user_id", u.ID)
		h.HandleServiceError(w, err)
		return
	}

	updated, _ := h.Repo.Get(u.ID)
	h.WriteJSON(w, http.StatusOK, updated)
}

// ResolveProfileUpdate approves or rejects a staged change. Admin-scoped
// via routing.
func (h *Handler) ResolveProfileUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var dto ResolveProfileUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Repo.ResolveProfileUpdate(r.Context(), id, dto.Approve); err != nil {
		h.Logger.Error("ResolveProfileUpdate: repository error", "error", err, "user_id", id)
		h.HandleServiceError(w, err)
		return
	}

	updated, _ := h.Repo.Get(id)
	h.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.Repo.Get(id); !ok {
		h.WriteError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := h.Repo.DeleteUser(r.Context(), actor.ID, id); err != nil {
		h.Logger.Error("DeleteUser: repository error", "error", err, "user_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("DeleteUser: user and owned expenses removed", "user_id", id, "actor_id", actor.ID)
	w.WriteHeader(http.StatusNoContent)
}
