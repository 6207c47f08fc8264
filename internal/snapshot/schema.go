package snapshot

import (
	"bytes"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// documentSchema structurally validates a snapshot before it is accepted:
// the required top-level containers must be present with the expected
// shapes. Field-level content is checked by the typed unmarshal afterwards.
const documentSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["version", "timestamp", "chats", "messages", "contacts"],
	"properties": {
		"version": {"type": "integer", "minimum": 1},
		"timestamp": {"type": "integer"},
		"chats": {
			"type": "array",
			"items": {"type": "array", "minItems": 2, "maxItems": 2}
		},
		"messages": {
			"type": "object",
			"additionalProperties": {
				"type": "array",
				"items": {"type": "array", "minItems": 2, "maxItems": 2}
			}
		},
		"contacts": {
			"type": "array",
			"items": {"type": "array", "minItems": 2, "maxItems": 2}
		},
		"groupMetadata": {
			"type": "array",
			"items": {"type": "array", "minItems": 2, "maxItems": 2}
		},
		"stats": {"type": "object"}
	}
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchema))
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("snapshot.schema.json", doc); err != nil {
		panic(err)
	}
	return c.MustCompile("snapshot.schema.json")
}

func validateDocument(data []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return compiledSchema.Validate(inst)
}
