package restserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chrissnell/gwrecharge/internal/managers"
	"github.com/chrissnell/gwrecharge/internal/mrc"
	"github.com/chrissnell/gwrecharge/internal/recharge"
	"github.com/chrissnell/gwrecharge/pkg/responseformat"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 64 << 20

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// FitMRC handles POST /api/v1/mrc
func (h *Handlers) FitMRC(w http.ResponseWriter, req *http.Request) {
	var body MRCRequest
	if err := h.decodeBody(w, req, &body); err != nil {
		h.sendError(w, req, http.StatusBadRequest, "invalid request body", err)
		return
	}
	obs, err := body.Observed.series()
	if err != nil {
		h.sendError(w, req, http.StatusBadRequest, "invalid observed series", err)
		return
	}
	if body.Mode == "" {
		body.Mode = mrc.ModeExponential
	}

	fit, err := mrc.NewFitter(h.controller.logger).Fit(obs.T, obs.V, body.Periods, body.Mode)
	resp := MRCResponse{
		Parameters: fit.Parameters,
		T:          make([]float64, len(fit.Index)),
		Simulated:  fit.Simulated,
		Breaks:     fit.Breaks,
	}
	for k, i := range fit.Index {
		resp.T[k] = obs.T[i]
	}

	switch {
	case err == nil:
		h.send(w, req, http.StatusOK, resp)
	case errors.Is(err, mrc.ErrNoPeriods), errors.Is(err, mrc.ErrNoConvergence):
		// the NaN parameters are part of the answer
		h.send(w, req, http.StatusUnprocessableEntity, resp)
	default:
		h.sendError(w, req, http.StatusBadRequest, "recession fit rejected", err)
	}
}

// SubmitRun handles POST /api/v1/runs
func (h *Handlers) SubmitRun(w http.ResponseWriter, req *http.Request) {
	body := RunRequest{Config: h.controller.defaultConfig()}
	if err := h.decodeBody(w, req, &body); err != nil {
		h.sendError(w, req, http.StatusBadRequest, "invalid request body", err)
		return
	}
	obs, err := body.Observed.series()
	if err != nil {
		h.sendError(w, req, http.StatusBadRequest, "invalid observed series", err)
		return
	}
	if len(body.Weather.PET) == 0 && body.Latitude != nil {
		if err := body.Weather.FillPET(*body.Latitude); err != nil {
			h.sendError(w, req, http.StatusUnprocessableEntity, "could not derive PET", err)
			return
		}
	}
	if err := body.Weather.Validate(); err != nil {
		h.sendError(w, req, http.StatusUnprocessableEntity, "invalid weather record", err)
		return
	}
	params := body.MRC.parameters()
	if !params.Recession().Valid() {
		h.sendError(w, req, http.StatusUnprocessableEntity, "a master recession curve is required", recharge.ErrPrerequisiteMissing)
		return
	}

	info, err := h.controller.runs.Submit(recharge.Inputs{
		Observed: obs,
		Weather:  body.Weather,
		MRC:      params,
	}, body.Config)
	if errors.Is(err, managers.ErrShuttingDown) {
		h.sendError(w, req, http.StatusServiceUnavailable, "server is shutting down", err)
		return
	}
	if err != nil {
		h.sendError(w, req, http.StatusUnprocessableEntity, "invalid run configuration", err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/runs/%s", info.ID))
	h.send(w, req, http.StatusAccepted, info)
}

// ListRuns handles GET /api/v1/runs
func (h *Handlers) ListRuns(w http.ResponseWriter, req *http.Request) {
	infos, err := h.controller.runs.List(req.Context())
	if err != nil {
		h.sendError(w, req, http.StatusInternalServerError, "could not list runs", err)
		return
	}
	h.send(w, req, http.StatusOK, infos)
}

// GetRun handles GET /api/v1/runs/{id}
func (h *Handlers) GetRun(w http.ResponseWriter, req *http.Request) {
	info, err := h.controller.runs.Get(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		h.sendRunError(w, req, err)
		return
	}
	h.send(w, req, http.StatusOK, info)
}

// GetRunResult handles GET /api/v1/runs/{id}/result
func (h *Handlers) GetRunResult(w http.ResponseWriter, req *http.Request) {
	res, info, err := h.controller.runs.Result(req.Context(), mux.Vars(req)["id"])
	if errors.Is(err, managers.ErrNoResult) {
		h.sendError(w, req, http.StatusConflict, fmt.Sprintf("run is %s", info.Status), err)
		return
	}
	if err != nil {
		h.sendRunError(w, req, err)
		return
	}
	h.send(w, req, http.StatusOK, res)
}

// CancelRun handles DELETE /api/v1/runs/{id}
func (h *Handlers) CancelRun(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if err := h.controller.runs.Cancel(req.Context(), id); err != nil {
		h.sendRunError(w, req, err)
		return
	}
	info, err := h.controller.runs.Get(req.Context(), id)
	if err != nil {
		h.sendRunError(w, req, err)
		return
	}
	h.send(w, req, http.StatusAccepted, info)
}

// Health handles GET /healthz
func (h *Handlers) Health(w http.ResponseWriter, req *http.Request) {
	resp := HealthResponse{Status: "ok", Storage: "disabled"}
	if hc := h.controller.health; hc != nil {
		resp.Storage = "ok"
		if err := hc.CheckHealth(req.Context()); err != nil {
			resp.Status, resp.Storage, resp.Error = "degraded", "unreachable", err.Error()
			h.send(w, req, http.StatusServiceUnavailable, resp)
			return
		}
	}
	h.send(w, req, http.StatusOK, resp)
}

func (h *Handlers) decodeBody(w http.ResponseWriter, req *http.Request, v any) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// send writes data in the requested format
func (h *Handlers) send(w http.ResponseWriter, req *http.Request, status int, data any) {
	if err := h.formatter.WriteResponse(w, req, status, data); err != nil {
		h.controller.logger.Errorf("error writing %s response: %v", req.URL.Path, err)
	}
}

// sendRunError maps run manager errors to status codes
func (h *Handlers) sendRunError(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Is(err, managers.ErrRunNotFound):
		h.sendError(w, req, http.StatusNotFound, "run not found", err)
	case errors.Is(err, managers.ErrRunFinished):
		h.sendError(w, req, http.StatusConflict, "run already finished", err)
	default:
		h.sendError(w, req, http.StatusInternalServerError, "run lookup failed", err)
	}
}

// sendError sends an error response in JSON format
func (h *Handlers) sendError(w http.ResponseWriter, req *http.Request, statusCode int, message string, err error) {
	errorResponse := map[string]any{
		"error":     message,
		"status":    statusCode,
		"timestamp": time.Now().Unix(),
	}
	if err != nil {
		errorResponse["details"] = err.Error()
	}
	if statusCode >= http.StatusInternalServerError {
		h.controller.logger.Errorf("%s %s: %s: %v", req.Method, req.URL.Path, message, err)
	}
	h.send(w, req, statusCode, errorResponse)
}
