package httpx

import (
	"encoding/json"
	"net/http"
)

// DecodeJSON strictly decodes the request body into dst. Unknown fields are
// rejected so a typoed property in a submission fails loudly instead of
// silently defaulting. Returns false after writing the 400 response.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}
	return true
}

// WriteJSON marshals v and writes it with the given status code. Marshaling
// happens before the status line so an encode failure can still become a
// clean 500.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// Write failures mean the client went away; nothing left to do.
	_, _ = w.Write(body)
}

// ErrorParams groups parameters for WriteError to keep parameter count ≤3.
type ErrorParams struct {
	Code    int    // HTTP status
	ErrCode string // machine-readable error code
	Err     error  // detail surfaced in the message field
}

// WriteError writes the error body every handler shares, a machine-readable
// code plus the human-readable detail.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}
