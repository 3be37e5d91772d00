package validator

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperr "github.com/brandpilot/brandpilot/domain/error"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.InvalidRequest("invalid request body: " + err.Error())
	}
	return nil
}

// Required fails with a MissingField error when value is blank
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.MissingField(field)
	}
	return nil
}

// Limit parses an optional positive limit query parameter capped at max
func Limit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperr.InvalidRequest("limit must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}
