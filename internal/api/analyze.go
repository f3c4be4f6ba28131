package api

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/zapuscina/internal/assist"
)

// DefaultMaxAnalyzeBody is the largest accepted /api/analyze body.
const DefaultMaxAnalyzeBody = 4_718_592

// Analyzer runs the generative model. *gemini.Model implements it.
type Analyzer interface {
	Tags(ctx context.Context, image []byte, tc assist.TagContext) (string, error)
	Identify(ctx context.Context, image []byte) (string, []assist.SearchLink, error)
}

// AnalyzeHandler proxies image analysis to the model so that the model
// credential never leaves the server.
type AnalyzeHandler struct {
	Analyzer Analyzer
	MaxBody  int64
}

// Error messages understood by the assist client.
const (
	msgMissingKey   = "Server API Key configuration missing."
	msgMissingImage = "No image data provided. Image might be too large."
	msgInvalidMode  = "Invalid mode specified."
)

// Analyze handles POST /api/analyze.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if h.Analyzer == nil {
		analyzeRequests.WithLabelValues("", "unconfigured").Inc()
		slog.Error("analyze requested without a model API key")
		jsonError(w, http.StatusInternalServerError, msgMissingKey)
		return
	}

	max := h.MaxBody
	if max <= 0 {
		max = DefaultMaxAnalyzeBody
	}
	r.Body = http.MaxBytesReader(w, r.Body, max)

	var req assist.Request
	if err := decodeJSON(r, &req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonError(w, http.StatusBadRequest, msgMissingImage)
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode := modeLabel(req.Mode)
	if req.Image == "" {
		analyzeRequests.WithLabelValues(mode, "rejected").Inc()
		jsonError(w, http.StatusBadRequest, msgMissingImage)
		return
	}
	image, err := decodeImage(req.Image)
	if err != nil {
		analyzeRequests.WithLabelValues(mode, "rejected").Inc()
		jsonError(w, http.StatusBadRequest, "image must be base64 encoded")
		return
	}

	var resp assist.Response
	switch req.Mode {
	case assist.ModeTags:
		tc := assist.TagContext{}
		if req.Context != nil {
			tc = *req.Context
		}
		resp.Text, err = h.Analyzer.Tags(r.Context(), image, tc)
	case assist.ModeIdentify:
		resp.Text, resp.SearchLinks, err = h.Analyzer.Identify(r.Context(), image)
	default:
		analyzeRequests.WithLabelValues("invalid", "rejected").Inc()
		jsonError(w, http.StatusBadRequest, msgInvalidMode)
		return
	}

	if err != nil {
		analyzeRequests.WithLabelValues(mode, "error").Inc()
		slog.Error("model request failed", "mode", req.Mode, "error", err, "request_id", GetRequestID(r.Context()))
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	analyzeRequests.WithLabelValues(mode, "ok").Inc()
	jsonResponse(w, http.StatusOK, resp)
}

// modeLabel keeps caller input out of metric labels.
func modeLabel(mode string) string {
	switch mode {
	case assist.ModeTags, assist.ModeIdentify:
		return mode
	}
	return "invalid"
}

// decodeImage accepts raw base64 or a data URL.
func decodeImage(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(s)
}
