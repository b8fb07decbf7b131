/*
Package req provides helpers for decoding HTTP request bodies.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"flipside/internal/pkg/errs"
)

// MaxJSONBodySize caps the size of a JSON request body (1 MB).
const MaxJSONBodySize int64 = 1 << 20

// BindJSON decodes the request body into dst. It requires an application/json
// Content-Type, rejects unknown fields and rejects trailing content.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBodySize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
