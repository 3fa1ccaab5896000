package doc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainEntity   = "labsync/entity/v1"
	DomainMutation = "labsync/mutation/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash computes a stable hash of an entity's id and fields.
func ContentHash(e Entity) (string, error) {
	obj := e.Fields.Clone()
	if obj == nil {
		obj = Object{}
	}
	obj[FieldID] = String(e.ID)

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ContentHash: %w", err)
	}
	return hashWithDomain(DomainEntity, canonical), nil
}

// MutationID computes the content-addressed id of a mutation log record.
// seq makes otherwise identical mutations distinct.
func MutationID(collection, op, docID string, payload Object, seq int64) (string, error) {
	if payload == nil {
		payload = Object{}
	}
	obj := Object{
		"collection": String(collection),
		"op":         String(op),
		"doc_id":     String(docID),
		"payload":    payload,
		"seq":        Int(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("MutationID: %w", err)
	}
	return hashWithDomain(DomainMutation, canonical), nil
}

// IDGenerator assigns identifiers to newly created entities.
// Implemented by UUIDv7Generator (production) and SequenceGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns prefix-1, prefix-2, ... for deterministic tests.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator producing "<prefix>-<n>".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next identifier.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
