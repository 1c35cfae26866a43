package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ashita-ai/misp/codec"
)

// Required fields per record kind. Everything else decodes to its zero value
// when absent.
var (
	eventSchema            = mustCompileShape("event", "id")
	fullEventSchema        = mustCompileShape("event-full", "id", "uuid")
	attributeSchema        = mustCompileShape("attribute", "id")
	fullAttributeSchema    = mustCompileShape("attribute-full", "id", "uuid")
	objectSchema           = mustCompileShape("object", "id")
	fullObjectSchema       = mustCompileShape("object-full", "id", "uuid")
	organizationSchema     = mustCompileShape("organization", "id", "name")
	fullOrganizationSchema = mustCompileShape("organization-full", "id", "name", "uuid")
	serverInfoSchema       = mustCompileShape("server-info", "version")
)

// shape pairs a compiled schema with the record name used in errors.
type shape struct {
	name   string
	schema *jsonschema.Schema
}

func mustCompileShape(name string, required ...string) shape {
	req := make([]any, len(required))
	for i, f := range required {
		req[i] = f
	}
	doc := map[string]any{
		"type":     "object",
		"required": req,
	}

	url := "misp://schema/" + name
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		panic(fmt.Sprintf("model: add schema %s: %v", name, err))
	}
	compiled, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("model: compile schema %s: %v", name, err))
	}
	return shape{name: name, schema: compiled}
}

// decodeRecord checks data against s and then decodes it into dst. Any
// failure is reported as a *codec.MalformedValueError; dst is only written
// by json.Unmarshal, callers copy it into the record after success.
func decodeRecord(data []byte, dst any, s shape) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return malformedRecord(data, s.name, err)
	}
	if err := s.schema.Validate(inst); err != nil {
		return malformedRecord(data, s.name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		if codec.IsMalformed(err) {
			return fmt.Errorf("model: decode %s: %w", s.name, err)
		}
		return malformedRecord(data, s.name, err)
	}
	return nil
}

const maxErrorText = 96

func malformedRecord(data []byte, name string, err error) error {
	text := string(data)
	if len(text) > maxErrorText {
		cut := maxErrorText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return &codec.MalformedValueError{Text: text, Expected: name + " record", Err: err}
}
