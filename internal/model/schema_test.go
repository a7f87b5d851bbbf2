package model

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeCreateTaskRequest(t *testing.T) {
	req, err := DecodeCreateTaskRequest([]byte(`{"title":"buy milk","extra":1}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Title != "buy milk" {
		t.Fatalf("title=%q", req.Title)
	}

	// Missing title decodes fine; Validate reports it.
	req, err = DecodeCreateTaskRequest([]byte(`{}`))
	if err != nil {
		t.Fatalf("decode empty object: %v", err)
	}
	if err := req.Validate(); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
}

func TestDecodeCreateTaskRequestRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "not json", body: `title=buy`},
		{name: "array", body: `["buy milk"]`},
		{name: "two documents", body: `{"title":"a"}{"title":"b"}`},
		{name: "numeric title", body: `{"title":42}`, field: "title"},
		{name: "null title", body: `{"title":null}`, field: "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCreateTaskRequest([]byte(tt.body))
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Fatalf("field=%q want=%q (msg=%q)", ve.Field, tt.field, ve.Message)
			}
		})
	}
}

func TestDecodeUpdateTaskRequest(t *testing.T) {
	req, err := DecodeUpdateTaskRequest([]byte(`{"completed":true,"id":"x","createdAt":"2020-01-01T00:00:00Z"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Completed == nil || !*req.Completed {
		t.Fatalf("expected completed=true")
	}
	if req.Title != nil {
		t.Fatalf("expected title to be untouched")
	}

	_, err = DecodeUpdateTaskRequest([]byte(`{"completed":"yes"}`))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.HasPrefix(ve.Message, "completed:") {
		t.Fatalf("message=%q", ve.Message)
	}
}
