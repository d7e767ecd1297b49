package handlers

import (
	"net/http"

	"auction-core/internal/services"
	"auction-core/pkg/logger"

	"github.com/gorilla/mux"
)

type CountersHandler struct {
	projector *services.EventProjector
	log       logger.Logger
}

func NewCountersHandler(projector *services.EventProjector, log logger.Logger) *CountersHandler {
	return &CountersHandler{projector: projector, log: log}
}

func (h *CountersHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/auctions/{id}/counters", h.GetCounters).Methods(http.MethodGet)
}

func (h *CountersHandler) GetCounters(w http.ResponseWriter, r *http.Request) {
	counters, err := h.projector.Counters(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.log.Error("Failed to read counters", "error", err)
		status, body := errorResponse(err)
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, counters)
}
