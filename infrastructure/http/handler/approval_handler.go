package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/brandpilot/brandpilot/application/port/inbound"
	"github.com/brandpilot/brandpilot/domain/entity"
	"github.com/brandpilot/brandpilot/infrastructure/http/response"
	"github.com/brandpilot/brandpilot/infrastructure/http/validator"
)

type ApprovalHandler struct {
	gate        inbound.ApprovalGate
	coordinator inbound.ActionCoordinator
}

func NewApprovalHandler(gate inbound.ApprovalGate, coordinator inbound.ActionCoordinator) *ApprovalHandler {
	return &ApprovalHandler{gate: gate, coordinator: coordinator}
}

func (h *ApprovalHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/domains/{domain}/approvals", h.List).Methods(http.MethodGet)
	router.HandleFunc("/domains/{domain}/approvals", h.Propose).Methods(http.MethodPost)
	router.HandleFunc("/domains/{domain}/approvals/bulk-approve", h.BulkApprove).Methods(http.MethodPost)
	router.HandleFunc("/approvals/{id}", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/approvals/{id}/approve", h.Approve).Methods(http.MethodPost)
	router.HandleFunc("/approvals/{id}/decline", h.Decline).Methods(http.MethodPost)
}

func (h *ApprovalHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *entity.ApprovalStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := entity.ApprovalStatus(raw)
		status = &s
	}

	approvals, err := h.gate.List(r.Context(), mux.Vars(r)["domain"], status)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Approvals retrieved", approvals)
}

func (h *ApprovalHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var action inbound.ProposedAction
	if err := validator.DecodeJSON(r, &action); err != nil {
		response.FromError(w, r, err)
		return
	}
	action.DomainID = mux.Vars(r)["domain"]

	approval, err := h.coordinator.Propose(r.Context(), action)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, "Approval created", approval)
}

func (h *ApprovalHandler) Get(w http.ResponseWriter, r *http.Request) {
	approval, err := h.gate.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Approval retrieved", approval)
}

// Approve decides and executes the approval as the calling operator
func (h *ApprovalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	result, err := h.coordinator.Execute(r.Context(), mux.Vars(r)["id"], operatorID(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	writeExecution(w, result)
}

func (h *ApprovalHandler) Decline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := validator.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}

	approval, err := h.coordinator.Decline(r.Context(), mux.Vars(r)["id"], operatorID(r), req.Reason)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Approval declined", approval)
}

// BulkApprove executes every pending approval of the given type, so
// publishable items are deployed exactly as a single approve would do
func (h *ApprovalHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ApprovalType entity.ApprovalType `json:"approval_type"`
	}
	if err := validator.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}
	if err := validator.Required("approval_type", string(req.ApprovalType)); err != nil {
		response.FromError(w, r, err)
		return
	}

	result, err := h.coordinator.BulkExecute(r.Context(), mux.Vars(r)["domain"], req.ApprovalType, operatorID(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Approvals executed", result)
}
