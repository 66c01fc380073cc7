package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/example/todosync/internal/api"
)

const clientMessageSchemaURL = "todosync://realtime/client-message.json"

const clientMessageSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "data"],
  "properties": {
    "type": {"enum": ["join-user-room", "join-team-room", "leave-team-room"]},
    "data": {"type": "object"}
  },
  "allOf": [
    {
      "if": {"properties": {"type": {"const": "join-user-room"}}},
      "then": {"properties": {"data": {
        "required": ["userId"],
        "properties": {"userId": {"type": "string", "minLength": 1, "maxLength": 128}}
      }}}
    },
    {
      "if": {"properties": {"type": {"enum": ["join-team-room", "leave-team-room"]}}},
      "then": {"properties": {"data": {
        "required": ["teamId"],
        "properties": {"teamId": {"type": "string", "minLength": 1, "maxLength": 128}}
      }}}
    }
  ]
}`

// messageValidator checks inbound frames before they are dispatched.
type messageValidator struct {
	schema *jsonschema.Schema
}

func newMessageValidator() (*messageValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(clientMessageSchemaURL, strings.NewReader(clientMessageSchema)); err != nil {
		return nil, fmt.Errorf("add client message schema: %w", err)
	}
	schema, err := compiler.Compile(clientMessageSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile client message schema: %w", err)
	}
	return &messageValidator{schema: schema}, nil
}

// decode validates raw and returns the frame.
func (v *messageValidator) decode(raw []byte) (api.Message, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return api.Message{}, fmt.Errorf("message is not valid JSON")
	}
	if err := v.schema.Validate(doc); err != nil {
		return api.Message{}, schemaError(err)
	}
	var msg api.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return api.Message{}, fmt.Errorf("message is not valid JSON")
	}
	return msg, nil
}

// schemaError reduces a validation tree to its first leaf.
func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	location := strings.TrimPrefix(ve.InstanceLocation, "/")
	if location == "" {
		return fmt.Errorf("invalid message: %s", ve.Message)
	}
	return fmt.Errorf("invalid message at %s: %s", strings.ReplaceAll(location, "/", "."), ve.Message)
}
