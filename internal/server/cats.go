package server

import (
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"strings"

	"github.com/Sternrassler/catproxy/pkg/catapi"
	"github.com/Sternrassler/catproxy/pkg/pagination"
	"github.com/rs/zerolog"
)

// User-facing messages.
const (
	DefaultErrorMessage = "<p>Error fetching your cat :(</p>"
	MissingLimitMessage = "<p>limit query parameter is required</p>"
	InvalidLimitMessage = "<p>limit is not an integer</p>"
	CatAddedMessage     = "Cat added"
)

// imageJSON is the JSON rendering of one image.
type imageJSON struct {
	URL string `json:"url"`
}

func (s *Server) createCat(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusCreated, CatAddedMessage)
}

func (s *Server) getCatImage(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	image, err := s.images.RandomImage(r.Context())
	if err != nil {
		logger.Warn().Err(err).Msg("Random image fetch failed")
		writeHTML(w, http.StatusBadGateway, DefaultErrorMessage)
		return
	}

	writeHTML(w, http.StatusOK, renderImage(image))
}

func (s *Server) getManyImages(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	rawLimit := r.URL.Query().Get("limit")

	images, err := s.batch.FetchLimit(r.Context(), rawLimit)
	switch {
	case errors.Is(err, pagination.ErrMissingLimit):
		writeHTML(w, http.StatusBadRequest, MissingLimitMessage)
		return
	case errors.Is(err, pagination.ErrInvalidLimit):
		logger.Debug().Str("limit", rawLimit).Msg("Rejected non-integer limit")
		writeHTML(w, http.StatusBadRequest, InvalidLimitMessage)
		return
	case err != nil:
		logger.Warn().Err(err).Str("limit", rawLimit).Msg("Batch fetch failed")
		writeHTML(w, http.StatusBadGateway, DefaultErrorMessage)
		return
	}

	if wantsJSON(r) {
		out := make([]imageJSON, 0, len(images))
		for _, img := range images {
			out = append(out, imageJSON{URL: img.URL})
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(out); err != nil {
			logger.Warn().Err(err).Msg("Failed to write response")
		}
		return
	}

	writeHTML(w, http.StatusOK, renderImages(images))
}

// renderImage renders one image as an inline img tag.
func renderImage(img catapi.Image) string {
	return `<img src="` + html.EscapeString(img.URL) + `"/>`
}

// renderImages renders images as img tags separated by <br>.
func renderImages(images []catapi.Image) string {
	tags := make([]string, 0, len(images))
	for _, img := range images {
		tags = append(tags, renderImage(img))
	}
	return strings.Join(tags, "<br>")
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
