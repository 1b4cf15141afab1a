package rest

import (
	"encoding/json"
	"net/http"

	"github.com/pbinitiative/zenlistener/internal/log"
)

const (
	ErrorTypeBadRequest = "BAD_REQUEST"
	ErrorTypeNotFound   = "NOT_FOUND"
	ErrorTypeError      = "ERROR"
)

type ApiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, resp ApiError) {
	if status >= http.StatusInternalServerError {
		log.Errorf(r.Context(), "%s %s failed: %s", r.Method, r.URL.Path, resp.Message)
	}
	writeJson(w, status, resp)
}

func writeJson(w http.ResponseWriter, status int, resp any) {
	body, err := json.Marshal(resp)
	if err != nil {
		log.Error("Server error: %s", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
