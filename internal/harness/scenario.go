// Package harness runs declarative YAML scenarios against an in-memory
// engine session. Scenarios exercise the full write and query paths and
// compare their traces against golden files.
package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance scenario: schemas to load, documents to
// seed, steps to execute, and assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario; it is also the golden file
	// name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schemas lists paths to CUE schema files, relative to the scenario
	// file location.
	Schemas []string `yaml:"schemas"`

	// Seed contains raw documents written directly to the store before the
	// steps run, bypassing constraint validation. Each needs an _id.
	Seed []map[string]any `yaml:"seed,omitempty"`

	// Steps is the main flow. Each step's outcome must match its expect
	// clause (default "ok").
	Steps []Step `yaml:"steps"`

	// Assertions validate the final store state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one engine operation.
type Step struct {
	// Op is one of "insert", "update", "bulk_insert", "query".
	Op string `yaml:"op"`

	// Schema is the declared schema name the operation targets.
	Schema string `yaml:"schema"`

	// ID is the local id of the document to update.
	ID string `yaml:"id,omitempty"`

	// Fields carries the write's field values (insert, update).
	Fields map[string]any `yaml:"fields,omitempty"`

	// Items carries the documents of a bulk_insert.
	Items []map[string]any `yaml:"items,omitempty"`

	// Returning lists fields echoed back from a write.
	Returning []string `yaml:"returning,omitempty"`

	// Where filters a query. Bare values mean equality; operator maps
	// ($gt, $lt, $gte, $lte, $ne, $in) compare, matching the predicate
	// language.
	Where map[string]any `yaml:"where,omitempty"`

	// Select lists the projected fields of a query. Empty means all
	// declared schema fields.
	Select []string `yaml:"select,omitempty"`

	// Order sorts query results.
	Order []OrderSpec `yaml:"order,omitempty"`

	Limit int `yaml:"limit,omitempty"`
	Skip  int `yaml:"skip,omitempty"`

	// Expect is the expected outcome status: "ok" (default),
	// "constraint_violation", "not_found", "conflict", "validation_error",
	// or "configuration_error".
	Expect string `yaml:"expect,omitempty"`
}

// OrderSpec is one sort key.
type OrderSpec struct {
	Field      string `yaml:"field"`
	Descending bool   `yaml:"descending,omitempty"`
}

// Assertion validates final store state after all steps ran.
type Assertion struct {
	// Type is one of "count", "document", "absent".
	Type string `yaml:"type"`

	// Schema is the schema the assertion queries.
	Schema string `yaml:"schema"`

	// ID is the local document id (document, absent).
	ID string `yaml:"id,omitempty"`

	// Where filters the counted documents (count). Empty counts the whole
	// namespace.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect is the expected count (count).
	Expect int `yaml:"expect,omitempty"`

	// Values are expected field values, subset-matched (document).
	Values map[string]any `yaml:"values,omitempty"`
}

// Assertion type constants.
const (
	AssertCount    = "count"
	AssertDocument = "document"
	AssertAbsent   = "absent"
)

// Step outcome statuses.
const (
	StatusOK                  = "ok"
	StatusConstraintViolation = "constraint_violation"
	StatusNotFound            = "not_found"
	StatusConflict            = "conflict"
	StatusValidationError     = "validation_error"
	StatusConfigurationError  = "configuration_error"
)

// LoadScenario reads and parses a scenario YAML file. Schema paths resolve
// relative to the scenario file's directory. Unknown YAML fields are
// rejected so typos fail loudly instead of silently skipping validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, schemaPath := range scenario.Schemas {
		if !filepath.IsAbs(schemaPath) {
			scenario.Schemas[i] = filepath.Join(base, schemaPath)
		}
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
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Schemas) == 0 {
		return fmt.Errorf("schemas list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, schemaPath := range s.Schemas {
		if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", schemaPath)
		}
	}

	for i, doc := range s.Seed {
		if id, _ := doc["_id"].(string); id == "" {
			return fmt.Errorf("seed[%d]: _id is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	if step.Schema == "" {
		return fmt.Errorf("steps[%d]: schema is required", index)
	}
	switch step.Op {
	case "insert", "update":
		if step.Fields == nil {
			return fmt.Errorf("steps[%d]: fields is required for %s", index, step.Op)
		}
		if step.Op == "update" && step.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for update", index)
		}
	case "bulk_insert":
		if len(step.Items) == 0 {
			return fmt.Errorf("steps[%d]: items is required for bulk_insert", index)
		}
	case "query":
		// All query fields are optional.
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	switch step.Expect {
	case "", StatusOK, StatusConstraintViolation, StatusNotFound,
		StatusConflict, StatusValidationError, StatusConfigurationError:
	default:
		return fmt.Errorf("steps[%d]: unknown expect status %q", index, step.Expect)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Schema == "" {
		return fmt.Errorf("assertions[%d]: schema is required", index)
	}
	switch a.Type {
	case AssertCount:
		if a.Expect < 0 {
			return fmt.Errorf("assertions[%d]: expect must be non-negative for count", index)
		}
	case AssertDocument:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for document", index)
		}
		if len(a.Values) == 0 {
			return fmt.Errorf("assertions[%d]: values is required for document", index)
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
