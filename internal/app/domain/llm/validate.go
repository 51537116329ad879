package llm

import (
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// ValidateStructured checks a model response against the response schema at
// the boundary: required keys present, enum membership, and primitive types.
// The model side already enforces the schema, so this is a drift tripwire,
// not a full JSON-Schema engine.
func ValidateStructured(raw []byte, schema *genai.Schema) error {
	if schema == nil {
		return nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}
	return validateValue(value, schema, "$")
}

func validateValue(value any, schema *genai.Schema, path string) error {
	if value == nil {
		if schema.Nullable != nil && *schema.Nullable {
			return nil
		}
		return fmt.Errorf("%s: null where %s expected", path, schema.Type)
	}

	switch schema.Type {
	case genai.TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object, got %T", path, value)
		}
		for _, req := range schema.Required {
			if _, present := obj[req]; !present {
				return fmt.Errorf("%s: missing required key %q", path, req)
			}
		}
		for key, sub := range schema.Properties {
			v, present := obj[key]
			if !present {
				continue
			}
			if err := validateValue(v, sub, path+"."+key); err != nil {
				return err
			}
		}

	case genai.TypeArray:
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array, got %T", path, value)
		}
		if schema.Items != nil {
			for i, item := range arr {
				if err := validateValue(item, schema.Items, fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
		}

	case genai.TypeString:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: expected string, got %T", path, value)
		}
		if len(schema.Enum) > 0 && !contains(schema.Enum, s) {
			return fmt.Errorf("%s: %q not in enum %v", path, s, schema.Enum)
		}

	case genai.TypeNumber, genai.TypeInteger:
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("%s: expected number, got %T", path, value)
		}

	case genai.TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s: expected boolean, got %T", path, value)
		}
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
