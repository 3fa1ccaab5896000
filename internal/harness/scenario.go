package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/labsync/internal/syncstore"
)

// Scenario is one harness test: a seeded collection, a sequence of steps
// with expectations, and assertions over the final trace and database.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Collection is the collection under test.
	Collection string `yaml:"collection"`

	// LabID scopes the sync store. Empty runs without a lab assigned.
	LabID string `yaml:"lab_id"`

	// Validate checks mutations against the lab schemas.
	Validate bool `yaml:"validate"`

	// Seed documents are written before the sync store subscribes. Each
	// must carry an id.
	Seed []map[string]any `yaml:"seed"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation.
type Step struct {
	Op     string         `yaml:"op"`
	ID     string         `yaml:"id,omitempty"`
	Fields map[string]any `yaml:"fields,omitempty"`
	Status string         `yaml:"status,omitempty"`
	IDs    []string       `yaml:"ids,omitempty"`

	// Fail rejects every remote write of this step.
	Fail bool `yaml:"fail,omitempty"`
	// FailIDs rejects remote writes to these ids only.
	FailIDs []string `yaml:"fail_ids,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is checked right after a step returns.
type Expect struct {
	// Error is the expected error code; empty means success.
	Error string `yaml:"error,omitempty"`
	// Overall is the expected aggregate status.
	Overall string `yaml:"overall,omitempty"`
	// Status maps ids to their expected status.
	Status map[string]string `yaml:"status,omitempty"`
	// View lists merged-view entities, each matched by id on the fields given.
	View []map[string]any `yaml:"view,omitempty"`
	// Absent lists ids that must not be in the merged view.
	Absent []string `yaml:"absent,omitempty"`
	// Notifications are the messages raised by this step, in order.
	Notifications []string `yaml:"notifications,omitempty"`
}

// Assertion is checked after all steps.
type Assertion struct {
	Type   string         `yaml:"type"`
	ID     string         `yaml:"id,omitempty"`
	Kind   string         `yaml:"kind,omitempty"`
	Kinds  []string       `yaml:"kinds,omitempty"`
	Count  int            `yaml:"count,omitempty"`
	Expect []string       `yaml:"expect,omitempty"`
	Fields map[string]any `yaml:"fields,omitempty"`
}

// Step operations.
const (
	OpUpdate  = syncstore.OpUpdate
	OpDelete  = syncstore.OpDelete
	OpMove    = syncstore.OpMove
	OpReorder = syncstore.OpReorder
	OpCreate  = syncstore.OpCreate
	OpDeliver = "deliver"
)

// Assertion types.
const (
	AssertTransitions = "transitions"
	AssertTraceCount  = "trace_count"
	AssertTraceOrder  = "trace_order"
	AssertRemoteState = "remote_state"
	AssertAbsent      = "absent"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i, e := range s.Seed {
		if id, _ := e["id"].(string); id == "" {
			return fmt.Errorf("seed[%d]: id is required", i)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step) error {
	switch step.Op {
	case OpUpdate, OpDeliver:
		if step.ID == "" || len(step.Fields) == 0 {
			return fmt.Errorf("steps[%d]: %s requires id and fields", index, step.Op)
		}
	case OpDelete:
		if step.ID == "" {
			return fmt.Errorf("steps[%d]: delete requires id", index)
		}
	case OpMove:
		if step.ID == "" || step.Status == "" {
			return fmt.Errorf("steps[%d]: move requires id and status", index)
		}
	case OpReorder:
		if len(step.IDs) == 0 {
			return fmt.Errorf("steps[%d]: reorder requires ids", index)
		}
	case OpCreate:
		if len(step.Fields) == 0 {
			return fmt.Errorf("steps[%d]: create requires fields", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}
	if step.Op == OpDeliver && (step.Fail || len(step.FailIDs) > 0) {
		return fmt.Errorf("steps[%d]: deliver cannot fail", index)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertTransitions:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for transitions", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for trace_order", index)
		}
	case AssertRemoteState:
		if a.ID == "" || len(a.Fields) == 0 {
			return fmt.Errorf("assertions[%d]: id and fields are required for remote_state", index)
		}
	case AssertAbsent:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for absent", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
