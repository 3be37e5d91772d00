package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/brandpilot/brandpilot/application/port/inbound"
	"github.com/brandpilot/brandpilot/domain/entity"
	"github.com/brandpilot/brandpilot/infrastructure/http/response"
	"github.com/brandpilot/brandpilot/infrastructure/http/validator"
)

// AuditHandler serves the ledger and the budget state of a domain
type AuditHandler struct {
	audit  inbound.AuditLedger
	budget inbound.BudgetGovernor
}

func NewAuditHandler(audit inbound.AuditLedger, budget inbound.BudgetGovernor) *AuditHandler {
	return &AuditHandler{audit: audit, budget: budget}
}

func (h *AuditHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/domains/{domain}/audit", h.Read).Methods(http.MethodGet)
	router.HandleFunc("/domains/{domain}/budget", h.Budget).Methods(http.MethodGet)
	router.HandleFunc("/audit/{id}", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/audit/{id}/corrections", h.Correct).Methods(http.MethodPost)
}

func (h *AuditHandler) Read(w http.ResponseWriter, r *http.Request) {
	limit, err := validator.Limit(r, 100, 1000)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	entries, err := h.audit.Read(r.Context(), mux.Vars(r)["domain"], limit)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Audit entries retrieved", entries)
}

func (h *AuditHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.audit.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Audit entry retrieved", entry)
}

// Correct appends a correction that points at the original entry
func (h *AuditHandler) Correct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Outcome entity.Outcome `json:"outcome"`
		Notes   string         `json:"notes"`
	}
	if err := validator.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}
	if err := validator.Required("notes", req.Notes); err != nil {
		response.FromError(w, r, err)
		return
	}

	id, err := h.audit.Correct(r.Context(), mux.Vars(r)["id"], entity.InitiatorOperator, req.Outcome, req.Notes)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, "Correction recorded", map[string]string{"entry_id": id})
}

func (h *AuditHandler) Budget(w http.ResponseWriter, r *http.Request) {
	check, err := h.budget.Check(r.Context(), mux.Vars(r)["domain"])
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Budget checked", check)
}
