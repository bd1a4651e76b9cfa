package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"pb-analyzer/internal/analysis"
)

// MaxBodyBytes bounds an analyze request; definitions of large models run
// to a few megabytes.
const MaxBodyBytes = 64 << 20

type analyzeRequest struct {
	ReportID    string          `json:"report_id"`
	ReportName  string          `json:"report_name"`
	Schema      json.RawMessage `json:"schema"`
	Exploration json.RawMessage `json:"exploration"`
}

type analyzeHandler struct {
	logger   *slog.Logger
	analyzer *analysis.Analyzer
}

func (h *analyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid request body: "+err.Error())
		return
	}
	if len(req.Schema) == 0 || string(req.Schema) == "null" {
		writeError(w, http.StatusBadRequest, "", "schema is required")
		return
	}

	res, err := h.analyzer.AnalyzeJSON(req.ReportID, req.ReportName, req.Schema, req.Exploration)
	if err != nil {
		var failure *analysis.AnalysisFailure
		if errors.As(err, &failure) && errors.Is(err, analysis.ErrSchemaParse) {
			writeError(w, http.StatusUnprocessableEntity, failure.Kind.String(), err.Error())
			return
		}
		h.logger.Error("analysis failed", slog.String("report_id", req.ReportID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "", "analysis failed")
		return
	}

	h.logger.Info("report analyzed",
		slog.String("report_id", res.ReportID),
		slog.Int("columns", len(res.AllColumns)),
		slog.Int("unused", len(res.UnusedColumns)))
	writeJSON(w, http.StatusOK, res)
}
