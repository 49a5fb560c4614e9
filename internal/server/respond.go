package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"shopadmin/internal/store"
)

const maxJSONBody = 1 << 20

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// writeStoreError maps store errors onto statuses. dup is the message for ErrDuplicate.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error, dup string) {
	var nf store.NotFoundError
	switch {
	case errors.As(err, &nf):
		writeMessage(w, http.StatusNotFound, capitalize(nf.Kind)+" not found")
	case errors.Is(err, store.ErrDuplicate):
		writeMessage(w, http.StatusConflict, dup)
	case errors.Is(err, store.ErrInUse):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("store failure", "method", r.Method, "path", r.URL.Path, "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}
