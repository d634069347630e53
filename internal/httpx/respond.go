package httpx

import (
	"encoding/json"
	"net/http"
)

// Error kinds surfaced to callers. The frontend and the E2E suite branch on
// these strings, so they are part of the wire contract.
const (
	KindInsufficientStock = "InsufficientStock"
	KindNegativeStock     = "NegativeStock"
	KindInvalidTransition = "InvalidTransition"
	KindInvalidState      = "InvalidState"
	KindNotFound          = "NotFound"
	KindValidation        = "Validation"
	KindInternal          = "Internal"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, code int, kind, message string) {
	WriteJSON(w, code, map[string]errorBody{"error": {Kind: kind, Message: message}})
}
