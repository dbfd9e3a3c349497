package http

import (
	"net/http"

	"pocketbook/internal/core"
)

// Fallbacks for a fresh install with no stored settings.
const (
	defaultTheme    = "light"
	defaultCurrency = "USD"
	defaultLocale   = "en-US"
)

var validThemes = map[string]bool{"light": true, "dark": true}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.Settings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withDefaults(settings))
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req core.Settings
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Theme != "" && !validThemes[req.Theme] {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "unknown theme"})
		return
	}

	settings := withDefaults(req)
	if err := s.store.SaveSettings(r.Context(), settings); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func withDefaults(s core.Settings) core.Settings {
	if s.Theme == "" {
		s.Theme = defaultTheme
	}
	if s.Currency == "" {
		s.Currency = defaultCurrency
	}
	if s.Locale == "" {
		s.Locale = defaultLocale
	}
	return s
}
