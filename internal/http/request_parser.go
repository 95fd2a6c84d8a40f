// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for decoding JSON bodies and multipart
// uploads with size limits.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"conto/internal/core"
	"conto/internal/importer"
)

var (
	errBadRequest = errors.New("bad request")
	errTooLarge   = errors.New("request body too large")
)

// maxJSONBody bounds non-upload request bodies.
const maxJSONBody = 1 << 20

// DecodeJSON reads a single JSON object into dst, rejecting unknown fields.
// An empty body leaves dst untouched when allowEmpty is set.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF) && allowEmpty:
			return nil
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errBadRequest)
		case errors.As(err, &maxErr):
			return errTooLarge
		default:
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// ParseImportForm reads a multipart upload of statement files. Form fields:
// files (repeated), paid_by, card. The returned close func releases the
// temporary files multipart parsing may create.
func ParseImportForm(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]importer.File, importer.Options, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, importer.Options{}, noop, errTooLarge
		}
		return nil, importer.Options{}, noop, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	paidBy, err := core.ParseParty(formValue(r, "paid_by"))
	if err != nil {
		cleanup()
		return nil, importer.Options{}, noop, err
	}
	opts := importer.Options{PaidBy: paidBy, Card: sanitizeInput(formValue(r, "card"))}

	var files []importer.File
	var openErr error
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			openErr = err
			break
		}
		files = append(files, importer.File{Name: fh.Filename, Reader: f})
	}
	closeAll := func() {
		for _, f := range files {
			if c, ok := f.Reader.(io.Closer); ok {
				_ = c.Close()
			}
		}
		cleanup()
	}
	if openErr != nil {
		closeAll()
		return nil, importer.Options{}, noop, fmt.Errorf("open upload: %w", openErr)
	}
	return files, opts, closeAll, nil
}

func formValue(r *http.Request, key string) string {
	if r.MultipartForm != nil {
		if v := r.MultipartForm.Value[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
	}
	return strings.TrimSpace(r.FormValue(key))
}

// ParseBoolParam reads a boolean query parameter; absent or invalid is false.
func ParseBoolParam(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return err == nil && v
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, then trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
