package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/labsync/internal/doc"
)

// LoadError describes an entity file that could not be read.
type LoadError struct {
	Code    string
	Path    string
	Index   int // -1 when the whole file is at fault
	Message string
}

func (e *LoadError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: [%d]: %s: %s", e.Path, e.Index, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
}

// LoadEntities reads a YAML or JSON list of documents. Every document
// needs a non-empty "id". JSON is valid YAML, so one decoder serves both.
func LoadEntities(path string) ([]doc.Entity, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Index: -1, Message: "file not found"}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Path: path, Index: -1, Message: err.Error()}
	}

	var raw []map[string]any
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Code: ErrCodeInput, Path: path, Index: -1, Message: err.Error()}
	}

	entities := make([]doc.Entity, 0, len(raw))
	for i, m := range raw {
		id, _ := m[doc.FieldID].(string)
		if id == "" {
			return nil, &LoadError{Code: ErrCodeInput, Path: path, Index: i, Message: "id is required"}
		}
		fields, err := doc.ObjectFromAny(m)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeInput, Path: path, Index: i, Message: err.Error()}
		}
		entities = append(entities, doc.NewEntity(id, fields))
	}
	return entities, nil
}

// parseAssignments turns key=value arguments into a partial. Values that
// parse as JSON keep their type (10, true, null, "x"); anything else is a
// string.
func parseAssignments(args []string) (doc.Object, error) {
	out := make(doc.Object, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}

		var v any
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil || dec.More() {
			out[key] = doc.String(raw)
			continue
		}
		if n, isNum := v.(json.Number); isNum {
			i, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("%s: %q is not an integer", key, raw)
			}
			out[key] = doc.Int(i)
			continue
		}
		val, err := doc.FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = val
	}
	return out, nil
}
