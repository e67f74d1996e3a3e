package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"adviser-allocation/internal/allocator"
	"adviser-allocation/internal/repository"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBodyJSON(r *http.Request, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return io.EOF
	}
	return json.Unmarshal(body, out)
}

// errorBody is the error envelope: the kind plus a caller-safe detail.
// Backend errors and stack traces never leak here.
type errorBody struct {
	Error  string            `json:"error"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeAllocationError maps an allocator error to its HTTP status.
func writeAllocationError(w http.ResponseWriter, err error) {
	kind := allocator.KindOf(err)
	writeJSON(w, kind.HTTPStatus(), errorBody{
		Error:  kind.String(),
		Detail: allocator.DetailOf(err),
	})
}

// writeValidationError returns 400 with a field-keyed reason map.
func writeValidationError(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:  "InvalidInput",
		Detail: "validation failed",
		Fields: fields,
	})
}

// writeStoreError maps a repository failure to its HTTP status.
func writeStoreError(w http.ResponseWriter, err error) {
	switch repository.KindOf(err) {
	case repository.KindNotFound:
		writeJSON(w, http.StatusNotFound, errorBody{Error: "NotFound", Detail: "record not found"})
	case repository.KindInvalidArgument:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "InvalidInput", Detail: "invalid argument"})
	case repository.KindConflict:
		writeJSON(w, http.StatusConflict, errorBody{Error: "Conflict", Detail: "conflicting write"})
	default:
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "StoreUnavailable", Detail: "datastore unavailable"})
	}
}
