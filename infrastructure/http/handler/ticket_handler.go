package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/brandpilot/brandpilot/application/port/inbound"
	"github.com/brandpilot/brandpilot/domain/entity"
	"github.com/brandpilot/brandpilot/infrastructure/http/response"
	"github.com/brandpilot/brandpilot/infrastructure/http/validator"
)

type TicketHandler struct {
	tickets     inbound.TicketTracker
	coordinator inbound.ActionCoordinator
}

func NewTicketHandler(tickets inbound.TicketTracker, coordinator inbound.ActionCoordinator) *TicketHandler {
	return &TicketHandler{tickets: tickets, coordinator: coordinator}
}

func (h *TicketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/domains/{domain}/tickets", h.Open).Methods(http.MethodPost)
	router.HandleFunc("/domains/{domain}/tickets", h.List).Methods(http.MethodGet)
	router.HandleFunc("/tickets/{id}", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/tickets/{id}/advance", h.Advance).Methods(http.MethodPost)
	router.HandleFunc("/tickets/{id}/brief", h.GenerateBrief).Methods(http.MethodPost)
	router.HandleFunc("/tickets/{id}/verify", h.Verify).Methods(http.MethodPost)
}

func (h *TicketHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req inbound.OpenTicketRequest
	if err := validator.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}
	req.DomainID = mux.Vars(r)["domain"]

	ticket, err := h.tickets.Open(r.Context(), req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, "Ticket opened", ticket)
}

func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *entity.TicketStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := entity.TicketStatus(raw)
		status = &s
	}

	tickets, err := h.tickets.List(r.Context(), mux.Vars(r)["domain"], status)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Tickets retrieved", tickets)
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.tickets.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Ticket retrieved", ticket)
}

func (h *TicketHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status   entity.TicketStatus `json:"status"`
		Evidence string              `json:"evidence"`
	}
	if err := validator.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}
	if err := validator.Required("status", string(req.Status)); err != nil {
		response.FromError(w, r, err)
		return
	}

	ticket, err := h.tickets.Advance(r.Context(), mux.Vars(r)["id"], req.Status, req.Evidence)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Ticket advanced", ticket)
}

func (h *TicketHandler) GenerateBrief(w http.ResponseWriter, r *http.Request) {
	var req inbound.GenerateBriefRequest
	if err := validator.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}

	ticket, err := h.tickets.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	req.TicketID = ticket.ID
	req.DomainID = ticket.DomainID

	result, err := h.coordinator.GenerateBrief(r.Context(), req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	writeExecution(w, result)
}

func (h *TicketHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Evidence string `json:"evidence"`
	}
	if err := validator.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, err)
		return
	}

	ticket, err := h.coordinator.Verify(r.Context(), mux.Vars(r)["id"], req.Evidence)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Ticket verified", ticket)
}
