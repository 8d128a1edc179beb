package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"payment-reconciliation/internal/models"
	"payment-reconciliation/internal/repositories"
)

type RunHandler struct {
	runs repositories.RunRepository
}

func NewRunHandler(runs repositories.RunRepository) *RunHandler {
	return &RunHandler{runs: runs}
}

func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	runID := vars["run_id"]

	if runID == "" {
		respondWithError(w, http.StatusBadRequest, "Run ID is required")
		return
	}

	run, err := h.runs.GetRun(r.Context(), runID)
	if err != nil {
		if models.IsNotFound(err) {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, run)
}
