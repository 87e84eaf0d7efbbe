// Package envelope writes the JSON response shapes shared by every handler.
package envelope

import (
	"encoding/json"
	"net/http"
)

const contentTypeJSON = "application/json"

// Failure is the fixed error shape: {"success":false,"error":"..."}.
type Failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// JSON encodes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return err
	}
	return Raw(w, status, body)
}

// Raw writes already encoded JSON unchanged.
func Raw(w http.ResponseWriter, status int, body []byte) error {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}

// Fail writes a Failure envelope.
func Fail(w http.ResponseWriter, status int, msg string) error {
	return JSON(w, status, Failure{Success: false, Error: msg})
}
