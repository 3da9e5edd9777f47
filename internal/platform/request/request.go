// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package requestutil decodes auth form payloads.
package requestutil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/taibuivan/giftlist/internal/platform/validate"
)

// maxBodyBytes caps JSON bodies. Auth forms carry a handful of short strings.
const maxBodyBytes = 16 << 10

/*
DecodeJSON decodes exactly one JSON value from the request body into target.

Description: An empty body, an oversized body, malformed JSON and trailing
data after the value all yield the same validation error.

Parameters:
  - writer: http.ResponseWriter (lets MaxBytesReader close oversized requests)
  - request: *http.Request
  - target: any (pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON or nil
*/
func DecodeJSON(writer http.ResponseWriter, request *http.Request, target any) error {
	if request.Body == nil {
		return validate.ErrInvalidJSON
	}

	decoder := json.NewDecoder(http.MaxBytesReader(writer, request.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return validate.ErrInvalidJSON
	}

	return nil
}
