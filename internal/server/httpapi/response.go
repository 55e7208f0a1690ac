package httpapi

import (
	"encoding/json"
	"net/http"
)

// envelope is the body of every response.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, code int, message string, data any) {
	if message == "" {
		message = "success"
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Code: code, Message: message, Data: data})
}
