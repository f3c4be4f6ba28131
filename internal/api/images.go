package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/zapuscina/internal/imaging"
)

// MaxUploadSize caps a single image upload before compression.
const MaxUploadSize = 20 << 20

// ImagesHandler compresses uploaded photos into storable data URLs.
type ImagesHandler struct {
	Compressor *imaging.Compressor
}

type imageResponse struct {
	URL       string `json:"url"`
	MIME      string `json:"mime"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Dimension int    `json:"dimension"`
	Quality   int    `json:"quality"`
	Size      int    `json:"size"`
}

// Upload handles POST /api/images with a multipart "image" field.
func (h *ImagesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	result, err := h.Compressor.Compress(header.Filename, file)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, imaging.ErrLoad):
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("compressing image", "error", err, "file", header.Filename)
		jsonError(w, http.StatusInternalServerError, "failed to process image")
		return
	}

	url := result.DataURL()
	jsonResponse(w, http.StatusOK, imageResponse{
		URL:       url,
		MIME:      result.MIME,
		Width:     result.Width,
		Height:    result.Height,
		Dimension: result.Dimension,
		Quality:   result.Quality,
		Size:      len(url),
	})
}
