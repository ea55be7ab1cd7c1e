package state

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const stateSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["rubric_hash", "model", "chapters"],
  "properties": {
    "rubric_hash": {"type": "string"},
    "model": {"type": "string"},
    "created_at": {"type": ["string", "null"]},
    "updated_at": {"type": ["string", "null"]},
    "chapters": {
      "type": "object",
      "additionalProperties": {"$ref": "#/definitions/chapter"}
    }
  },
  "definitions": {
    "chapter": {
      "type": "object",
      "required": ["chapter_id", "status", "sections"],
      "properties": {
        "chapter_id": {"type": "string"},
        "status": {"enum": ["pending", "in_progress", "completed", "partial", "failed"]},
        "sections": {
          "type": "object",
          "additionalProperties": {"$ref": "#/definitions/section"}
        },
        "started_at": {"type": ["string", "null"]},
        "completed_at": {"type": ["string", "null"]}
      }
    },
    "section": {
      "type": "object",
      "required": ["section_id", "status"],
      "properties": {
        "section_id": {"type": "string"},
        "status": {"enum": ["pending", "in_progress", "completed", "failed"]},
        "retry_count": {"type": "integer", "minimum": 0},
        "last_error": {"type": ["string", "null"]},
        "generated_content": {"type": ["string", "null"]},
        "started_at": {"type": ["string", "null"]},
        "completed_at": {"type": ["string", "null"]},
        "token_count": {"type": ["integer", "null"], "minimum": 0}
      }
    }
  }
}`

var stateSchema = jsonschema.MustCompileString("state.schema.json", stateSchemaJSON)

// decode validates data against the state schema and unmarshals it.
func decode(data []byte) (*BookState, error) {
	var doc any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := stateSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var st BookState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	if st.Chapters == nil {
		st.Chapters = map[string]*ChapterState{}
	}
	for id, ch := range st.Chapters {
		if ch.Sections == nil {
			ch.Sections = map[string]*SectionState{}
		}
		if ch.ChapterID == "" {
			ch.ChapterID = id
		}
	}
	return &st, nil
}
