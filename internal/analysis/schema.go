package analysis

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed receipt.schema.json
var receiptSchema []byte

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("receipt.schema.json", bytes.NewReader(receiptSchema)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("receipt.schema.json")
	})
	return compiledSchema, compileErr
}

// CheckShape compares payload with the expected receipt layout and lists
// the differences. Problems are advisory: Validate recovers from all of
// them.
func CheckShape(payload []byte) []string {
	s, err := schema()
	if err != nil {
		return []string{err.Error()}
	}

	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return []string{fmt.Sprintf("unmarshal data: %v", err)}
	}

	err = s.Validate(v)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}

	var problems []string
	for _, e := range ve.BasicOutput().Errors {
		// The root entry only wraps its causes.
		if e.KeywordLocation == "" || e.Error == "" {
			continue
		}
		problems = append(problems, fmt.Sprintf("%s: %s", location(e.InstanceLocation), e.Error))
	}
	if len(problems) == 0 {
		problems = append(problems, ve.Error())
	}
	return problems
}

func location(ptr string) string {
	if ptr == "" {
		return "/"
	}
	return ptr
}
