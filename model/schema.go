package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidPayload marks a request body that does not match the property schema
var ErrInvalidPayload = errors.New("invalid property payload")

var (
	createSchema = mustCompile("property-create.json", propertySchema(true))
	updateSchema = mustCompile("property-update.json", propertySchema(false))
)

// DecodeCreatePayload validates raw against the property schema and decodes it.
// Unknown fields at any level are rejected.
func DecodeCreatePayload(raw []byte) (*PropertyInput, error) {
	return decodePayload(createSchema, raw)
}

// DecodeUpdatePayload is DecodeCreatePayload with an optional buildings list
func DecodeUpdatePayload(raw []byte) (*PropertyInput, error) {
	return decodePayload(updateSchema, raw)
}

func decodePayload(schema *jsonschema.Schema, raw []byte) (*PropertyInput, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var in PropertyInput
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	for i := range in.Buildings {
		if in.Buildings[i].Units == nil {
			in.Buildings[i].Units = []UnitInput{}
		}
	}
	return &in, nil
}

func propertySchema(requireBuildings bool) map[string]any {
	unit := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"unitNumber":       nonEmptyString(),
			"unitType":         map[string]any{"type": "string", "enum": UnitTypes},
			"floor":            map[string]any{"type": "string"},
			"entrance":         map[string]any{"type": []string{"string", "null"}},
			"sizeM2":           map[string]any{"type": "number", "minimum": 0},
			"coOwnershipShare": map[string]any{"type": "string"},
			"constructionYear": map[string]any{"type": []string{"integer", "null"}},
			"roomCount":        map[string]any{"type": "number", "minimum": 0},
		},
		"required": []string{"unitNumber", "unitType", "floor", "sizeM2", "coOwnershipShare", "roomCount"},
	}

	building := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":        nonEmptyString(),
			"street":      map[string]any{"type": "string"},
			"houseNumber": map[string]any{"type": "string"},
			"zipCode":     map[string]any{"type": "string"},
			"city":        map[string]any{"type": "string"},
			"units":       map[string]any{"type": "array", "items": unit},
		},
		"required": []string{"name", "street", "houseNumber", "zipCode", "city"},
	}

	required := []string{"name", "propertyNumber", "managementType", "propertyManager", "accountant"}
	if requireBuildings {
		required = append(required, "buildings")
	}

	return map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":            nonEmptyString(),
			"propertyNumber":  nonEmptyString(),
			"managementType":  map[string]any{"type": "string", "enum": ManagementTypes},
			"propertyManager": map[string]any{"type": "string"},
			"accountant":      map[string]any{"type": "string"},
			"sourceDocument":  map[string]any{"type": []string{"string", "null"}},
			"buildings":       map[string]any{"type": "array", "items": building},
		},
		"required": required,
	}
}

func nonEmptyString() map[string]any {
	return map[string]any{"type": "string", "minLength": 1}
}

func mustCompile(url string, schema map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("marshal schema %s: %v", url, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", url, err))
	}
	return compiler.MustCompile(url)
}
