package handle

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// decodeBody reads a JSON body of at most MaxBodyBytes. An empty body
// decodes as the zero value. On failure it returns the status and the
// message for the caller.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) (int, string) {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	err := json.NewDecoder(body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return http.StatusOK, ""
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge, "Request body too large."
	}
	return http.StatusBadRequest, "Invalid request body."
}
