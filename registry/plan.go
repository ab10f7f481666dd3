package registry

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed plan.schema.json
var planSchemaData []byte

var (
	planSchema  *jsonschema.Schema
	compileOnce sync.Once
	compileErr  error
)

// Plan describes which registered contexts to run and how
type Plan struct {
	Name               string        `yaml:"name"`
	Contexts           []string      `yaml:"contexts"`              // Glob patterns over root context names, in run order
	FailOnNoAssertions *bool         `yaml:"fail_on_no_assertions"` // Unset keeps the engine default
	AssertionKind      string        `yaml:"assertion_kind"`
	TestTimeout        time.Duration `yaml:"test_timeout"`
}

func compilePlanSchema() error {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(planSchemaData))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal plan schema: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("plan.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("add plan schema resource: %w", err)
			return
		}

		planSchema, err = compiler.Compile("plan.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile plan schema: %w", err)
			return
		}
	})
	return compileErr
}

// LoadPlan reads and validates a YAML plan file
func LoadPlan(path string) (*Plan, error) {
	log.Debug("Reading plan file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	plan, err := ParsePlan(data)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return plan, nil
}

// ParsePlan validates data against the plan schema and decodes it
func ParsePlan(data []byte) (*Plan, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := ValidatePlan(doc); err != nil {
		return nil, err
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	return &plan, nil
}

// ValidatePlan checks a decoded YAML document against the plan schema
func ValidatePlan(doc any) error {
	if err := compilePlanSchema(); err != nil {
		return err
	}

	// Round trip through JSON so the validator sees JSON types only
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("plan is not representable as JSON: %w", err)
	}
	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := planSchema.Validate(v); err != nil {
		return fmt.Errorf("plan validation failed: %w", err)
	}
	return nil
}
