package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"vehicle-registration-visualizer/pkg/aggregate"
)

const protobufContentType = "application/x-protobuf"

// errWriteBody marks a failure after the status line went out; the caller
// can only log it.
var errWriteBody = errors.New("write response body")

// writeResponse encodes v as JSON, or as a google.protobuf.Value when the
// request asks for format=proto. The body is encoded in full before anything
// is written, so an encoding error still leaves room for writeError.
func writeResponse(w http.ResponseWriter, r *http.Request, v any) error {
	var (
		b           []byte
		err         error
		contentType string
	)
	switch r.URL.Query().Get("format") {
	case "", "json":
		contentType = "application/json"
		b, err = json.Marshal(v)
		b = append(b, '\n')
	case "proto", "protobuf":
		contentType = protobufContentType
		b, err = marshalProto(v)
	default:
		return fmt.Errorf("%w: unknown format %q", aggregate.ErrInvalidArgument, r.URL.Query().Get("format"))
	}
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("%w: %v", errWriteBody, err)
	}
	return nil
}

// marshalProto goes through JSON so the protobuf value carries the same
// field names as the JSON response.
func marshalProto(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	pv, err := structpb.NewValue(generic)
	if err != nil {
		return nil, fmt.Errorf("protobuf value: %w", err)
	}
	return proto.Marshal(pv)
}

type errorResponse struct {
	Error string `json:"error"`
}

var errNotLoaded = errors.New("dataset not loaded yet")

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, aggregate.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, errNotLoaded):
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}
