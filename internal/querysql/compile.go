// Package querysql compiles subscription filters into parameterized SQL over
// the JSON document bodies kept by internal/store.
package querysql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/remote"
)

// DocumentsTable is the table holding every collection's documents.
const DocumentsTable = "documents"

// fieldPattern restricts filter field names; they are spliced into a JSON
// path and must never carry quotes or path syntax.
var fieldPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Compile converts a filter on one collection into a SELECT returning
// (id, body) rows.
//
// MANDATORY: every query ends with ORDER BY position, id COLLATE BINARY so
// deliveries are deterministic.
// MANDATORY: values are always parameterized, never interpolated.
func Compile(collection string, filter remote.Filter) (string, []any, error) {
	if collection == "" {
		return "", nil, fmt.Errorf("compile filter: empty collection")
	}

	where := []string{"collection = ?"}
	params := []any{collection}

	for _, field := range filter.Fields() {
		pred, args, err := compileEquals(field, filter[field])
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where = append(where, pred)
		params = append(params, args...)
	}

	sql := fmt.Sprintf("SELECT id, body FROM %s WHERE %s ORDER BY %s",
		DocumentsTable,
		strings.Join(where, " AND "),
		StableOrder)
	return sql, params, nil
}

// StableOrder is the ORDER BY clause shared by every document query.
// COLLATE BINARY keeps text ordering identical across SQLite versions.
const StableOrder = "position ASC, id ASC COLLATE BINARY"

// compileEquals compiles one equality predicate.
func compileEquals(field string, v doc.Value) (string, []any, error) {
	if !fieldPattern.MatchString(field) {
		return "", nil, fmt.Errorf("invalid filter field %q", field)
	}

	column := fmt.Sprintf("json_extract(body, '$.%s')", field)
	if field == doc.FieldID {
		column = "id"
	}

	if _, ok := v.(doc.Null); ok {
		return column + " IS NULL", nil, nil
	}

	param, err := valueToParam(v)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", field, err)
	}
	return column + " = ?", []any{param}, nil
}

// valueToParam converts a scalar doc.Value into a SQL parameter.
// Arrays and objects cannot be compared by equality in a filter.
func valueToParam(v doc.Value) (any, error) {
	switch val := v.(type) {
	case doc.String:
		return string(val), nil
	case doc.Int:
		return int64(val), nil
	case doc.Bool:
		// json_extract yields 1/0 for JSON booleans.
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case doc.Array:
		return nil, fmt.Errorf("array cannot be used as a filter value")
	case doc.Object:
		return nil, fmt.Errorf("object cannot be used as a filter value")
	default:
		return nil, fmt.Errorf("unsupported filter value type: %T", v)
	}
}
