package ocr

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// resultSchema only pins the containers extraction walks. Everything else the
// engine reports is accepted as-is.
const resultSchema = `{
  "type": "object",
  "required": ["analyzeResult"],
  "properties": {
    "status": {"type": "string"},
    "analyzeResult": {
      "type": "object",
      "properties": {
        "pages": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "lines": {
                "type": "array",
                "items": {
                  "type": "object",
                  "properties": {"content": {"type": "string"}}
                }
              }
            }
          }
        },
        "keyValuePairs": {"type": "array", "items": {"type": "object"}},
        "documents": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {"fields": {"type": "object"}}
          }
        }
      }
    }
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("result.json", strings.NewReader(resultSchema)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("result.json")
	})
	return compiledSchema, compileErr
}

func validateShape(doc any) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
