package respond

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorBody is the error shape every handler returns; clients read message.
type ErrorBody struct {
	Message string `json:"message"`
}

// JSON writes payload as the response body.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("respond: encode payload failed: %v", err)
	}
}

// Error writes an error response with a message field.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Message: message})
}

// NoContent writes an empty success.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
