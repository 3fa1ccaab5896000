package store

import (
	"fmt"

	"github.com/roach88/labsync/internal/doc"
)

// marshalBody converts document fields to canonical JSON TEXT for storage.
// The "id" key is never stored in the body; the id column is authoritative.
func marshalBody(fields doc.Object) (string, error) {
	body := fields.Clone()
	if body == nil {
		body = doc.Object{}
	}
	delete(body, doc.FieldID)

	data, err := doc.MarshalCanonical(body)
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}
	return string(data), nil
}

// unmarshalBody parses a stored body back into an entity.
// Integers beyond 2^53 survive because doc.Object decodes via json.Number.
func unmarshalBody(id, data string) (doc.Entity, error) {
	if data == "" || data == "{}" {
		return doc.NewEntity(id, nil), nil
	}
	obj, err := doc.UnmarshalObject([]byte(data))
	if err != nil {
		return doc.Entity{}, fmt.Errorf("unmarshal body of %q: %w", id, err)
	}
	return doc.NewEntity(id, obj), nil
}

// marshalPayload encodes a mutation log payload.
func marshalPayload(payload doc.Object) (string, error) {
	if payload == nil {
		payload = doc.Object{}
	}
	data, err := doc.MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}
