package expense

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/google/uuid"

	"snapexpense/internal/transport"
	"snapexpense/internal/user"
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

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateExpenseDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateExpense: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := dto.ID
	if id == "" {
		id = uuid.NewString()
	}

	e := &Expense{
		ID:           id,
		UserID:       u.ID,
		UserName:     u.Name,
		Merchant:     dto.Merchant,
		Date:         dto.Date,
		Subtotal:     dto.Subtotal,
		Tax:          dto.Tax,
		Total:        dto.Total,
		Category:     dto.Category,
		ReceiptImage: dto.ReceiptImage,
		Notes:        dto.Notes,
	}

	if err := h.Repo.Create(r.Context(), e); err != nil {
		h.Logger.Error("CreateExpense: repository error", "error", err, "user_id", u.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateExpense: expense created",
		"expense_id", e.ID,
		"user_id", u.ID,
		"total", e.Total)

	h.WriteJSON(w, http.StatusCreated, e)
}

// ListExpenses returns every expense for managers and admins, and only the
// caller's own expenses otherwise.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var expenses []*Expense
	if u.IsManager() {
		expenses = h.Repo.List()
	} else {
		expenses = h.Repo.ListByOwner(u.ID)
	}

	h.WriteJSON(w, http.StatusOK, expenses)
}

func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	e, ok := h.Repo.Get(id)
	if !ok {
		h.WriteError(w, http.StatusNotFound, "expense not found")
		return
	}

	if e.UserID != u.ID && !u.IsManager() {
		h.WriteError(w, http.StatusForbidden, "not your expense")
		return
	}

	h.WriteJSON(w, http.StatusOK, e)
}

// UpdateExpense applies a partial edit. Owners edit their own records;
// managers and admins can edit any.
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	e, ok := h.Repo.Get(id)
	if !ok {
		h.WriteError(w, http.StatusNotFound, "expense not found")
		return
	}
	if e.UserID != u.ID && !u.IsManager() {
		h.WriteError(w, http.StatusForbidden, "not your expense")
		return
	}

	var dto UpdateExpenseDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Repo.Edit(r.Context(), id, dto.Fields()); err != nil {
		h.Logger.Error("UpdateExpense: repository error", "error", err, "expense_id", id)
		h.HandleServiceError(w, err)
		return
	}

	updated, _ := h.Repo.Get(id)
	h.WriteJSON(w, http.StatusOK, updated)
}

// UpdateStatus approves or rejects a submitted expense. Routing guards
// this behind the manager role.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.Repo.Get(id); !ok {
		h.WriteError(w, http.StatusNotFound, "expense not found")
		return
	}

	var dto UpdateStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Repo.UpdateStatus(r.Context(), id, dto.Status, dto.Notes); err != nil {
		h.Logger.Error("UpdateStatus: repository error", "error", err, "expense_id", id)
		h.HandleServiceError(w, err)
		return
	}

	updated, _ := h.Repo.Get(id)
	h.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	e, ok := h.Repo.Get(id)
	if !ok {
		h.WriteError(w, http.StatusNotFound, "expense not found")
		return
	}
	if e.UserID != u.ID && !u.IsAdmin() {
		h.WriteError(w, http.StatusForbidden, "not your expense")
		return
	}

	if err := h.Repo.Delete(r.Context(), id); err != nil {
		h.Logger.Error("DeleteExpense: repository error", "error", err, "expense_id", id)
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, Categories)
}

// CategoryReport and OwnerReport serve the aggregated totals views.
func (h *Handler) CategoryReport(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.Repo.TotalsByCategory())
}

func (h *Handler) OwnerReport(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.Repo.TotalsByOwner())
}
