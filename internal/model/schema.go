package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const createTaskSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"title": {"type": "string"}
	}
}`

const updateTaskSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"title": {"type": "string"},
		"completed": {"type": "boolean"}
	}
}`

var (
	createSchema = jsonschema.MustCompileString("create_task.json", createTaskSchema)
	updateSchema = jsonschema.MustCompileString("update_task.json", updateTaskSchema)
)

// ErrInvalidBody is returned when a request body is not a JSON document.
var ErrInvalidBody = &ValidationError{Message: "invalid request body"}

// DecodeCreateTaskRequest checks data against the create payload schema and decodes it.
// The title itself is not validated here; call Validate for that.
func DecodeCreateTaskRequest(data []byte) (*CreateTaskRequest, error) {
	if err := validatePayload(createSchema, data); err != nil {
		return nil, err
	}
	var req CreateTaskRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, ErrInvalidBody
	}
	return &req, nil
}

// DecodeUpdateTaskRequest checks data against the update payload schema and decodes it.
// Fields outside the schema, such as id or createdAt, are ignored.
func DecodeUpdateTaskRequest(data []byte) (*UpdateTaskRequest, error) {
	if err := validatePayload(updateSchema, data); err != nil {
		return nil, err
	}
	var req UpdateTaskRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, ErrInvalidBody
	}
	return &req, nil
}

func validatePayload(schema *jsonschema.Schema, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return ErrInvalidBody
	}
	if dec.More() {
		return ErrInvalidBody
	}

	if err := schema.Validate(doc); err != nil {
		return schemaError(err)
	}
	return nil
}

// schemaError converts the first leaf of a jsonschema error tree into a ValidationError.
func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &ValidationError{Message: err.Error()}
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}

	field := strings.TrimPrefix(ve.InstanceLocation, "/")
	msg := ve.Message
	if field != "" {
		msg = field + ": " + msg
	}
	return &ValidationError{Field: field, Message: msg}
}
