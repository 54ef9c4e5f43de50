package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const helloSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type", "protocol_version", "game_id", "player"],
  "properties": {
    "type": {"const": "HELLO"},
    "protocol_version": {"type": "string"},
    "game_id": {"type": "string", "minLength": 1},
    "player": {"type": "integer", "minimum": 0},
    "config": {
      "type": "object",
      "properties": {
        "size": {"type": "integer", "minimum": 1},
        "episode_steps": {"type": "integer", "minimum": 1},
        "spawn_cost": {"type": "number", "minimum": 0}
      }
    },
    "replay": {"type": "boolean"}
  }
}`

const obsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type", "protocol_version", "step", "player", "halite"],
  "properties": {
    "type": {"const": "OBS"},
    "protocol_version": {"type": "string"},
    "step": {"type": "integer", "minimum": 0},
    "player": {
      "type": "object",
      "required": ["halite", "shipyards", "ships"],
      "properties": {
        "halite": {"type": "number", "minimum": 0},
        "shipyards": {
          "type": "object",
          "additionalProperties": {"type": "integer"}
        },
        "ships": {
          "type": "object",
          "additionalProperties": {
            "type": "array",
            "minItems": 2,
            "maxItems": 2,
            "items": {"type": "number"}
          }
        }
      }
    },
    "halite": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "number", "minimum": 0}
    }
  }
}`

const resultSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type", "protocol_version", "game_id", "rewards"],
  "properties": {
    "type": {"const": "RESULT"},
    "protocol_version": {"type": "string"},
    "game_id": {"type": "string", "minLength": 1},
    "rewards": {
      "type": "array",
      "minItems": 1,
      "items": {"type": ["number", "null"]}
    }
  }
}`

// Validator checks inbound engine messages against their JSON schemas before
// they are decoded into Go structs.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	v := &Validator{schemas: map[string]*jsonschema.Schema{}}
	for typ, src := range map[string]string{
		TypeHello:  helloSchema,
		TypeObs:    obsSchema,
		TypeResult: resultSchema,
	} {
		url := "mem://" + strings.ToLower(typ) + ".schema.json"
		c := jsonschema.NewCompiler()
		if err := c.AddResource(url, strings.NewReader(src)); err != nil {
			return nil, fmt.Errorf("%s schema: %w", typ, err)
		}
		s, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("%s schema: %w", typ, err)
		}
		v.schemas[typ] = s
	}
	return v, nil
}

// Validate checks raw against the schema for typ. Types without a schema pass.
func (v *Validator) Validate(typ string, raw []byte) error {
	s, ok := v.schemas[typ]
	if !ok {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return s.Validate(doc)
}
