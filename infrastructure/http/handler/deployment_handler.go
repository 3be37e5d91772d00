package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/brandpilot/brandpilot/application/port/inbound"
	"github.com/brandpilot/brandpilot/domain/entity"
	"github.com/brandpilot/brandpilot/infrastructure/http/response"
	"github.com/brandpilot/brandpilot/infrastructure/http/validator"
)

type DeploymentHandler struct {
	deployments inbound.DeploymentManager
	coordinator inbound.ActionCoordinator
}

func NewDeploymentHandler(deployments inbound.DeploymentManager, coordinator inbound.ActionCoordinator) *DeploymentHandler {
	return &DeploymentHandler{deployments: deployments, coordinator: coordinator}
}

func (h *DeploymentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/domains/{domain}/deployments", h.List).Methods(http.MethodGet)
	router.HandleFunc("/deployments/{id}", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/deployments/{id}/rollback", h.Rollback).Methods(http.MethodPost)
	router.HandleFunc("/deployments/{id}/score-delta", h.RecordScoreDelta).Methods(http.MethodPost)
}

func (h *DeploymentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := validator.Limit(r, 100, 500)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	filter := entity.DeploymentFilter{DomainID: mux.Vars(r)["domain"], Limit: limit}
	if raw := r.URL.Query().Get("rollback_status"); raw != "" {
		s := entity.RollbackStatus(raw)
		filter.RollbackStatus = &s
	}

	deployments, err := h.deployments.List(r.Context(), filter)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Deployments retrieved", deployments)
}

func (h *DeploymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	deployment, err := h.deployments.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Deployment retrieved", deployment)
}

func (h *DeploymentHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	result, err := h.coordinator.Rollback(r.Context(), mux.Vars(r)["id"], entity.InitiatorOperator)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Deployment rolled back", result)
}

func (h *DeploymentHandler) RecordScoreDelta(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta *float64 `json:"delta"`
	}
	if err := validator.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}
	if req.Delta == nil {
		response.BadRequest(w, "delta is required")
		return
	}

	if err := h.deployments.RecordScoreDelta(r.Context(), mux.Vars(r)["id"], *req.Delta); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Score delta recorded", nil)
}
