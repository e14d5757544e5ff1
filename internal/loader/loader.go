package loader

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/provisor/provisor/internal/errors"
	"github.com/provisor/provisor/internal/model"
	"github.com/provisor/provisor/internal/schema"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed deployment.schema.yaml
var deploymentSchemaYAML []byte

var (
	schemaOnce       sync.Once
	deploymentSchema *jsonschema.Schema
	schemaErr        error
)

// documentSchema compiles the embedded deployment document schema once.
// The schema is authored in YAML and converted to JSON for the compiler.
func documentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var schemaData interface{}
		if err := yaml.Unmarshal(deploymentSchemaYAML, &schemaData); err != nil {
			schemaErr = fmt.Errorf("failed to parse embedded schema: %w", err)
			return
		}

		jsonData, err := json.Marshal(schemaData)
		if err != nil {
			schemaErr = fmt.Errorf("failed to marshal embedded schema: %w", err)
			return
		}

		deploymentSchema, schemaErr = jsonschema.CompileString("deployment.schema.json", string(jsonData))
	})
	return deploymentSchema, schemaErr
}

// LoadDeployment reads, shape-checks, and decodes a deployment YAML file.
// The JSON Schema pass catches structural mistakes (wrong kinds, unknown
// top-level keys) before decoding; option values are validated later by the
// per-kind option schemas.
func LoadDeployment(path string) (*model.Deployment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("failed to read deployment file", err).
			WithContext("path", path)
	}
	return ParseDeployment(data, path)
}

// ParseDeployment validates and decodes deployment document bytes.
func ParseDeployment(data []byte, path string) (*model.Deployment, error) {
	docSchema, err := documentSchema()
	if err != nil {
		return nil, errors.NewInternalError("deployment schema unavailable", err)
	}

	// Decode generically first so the schema sees the raw document. The
	// JSON round trip gives the validator the value shapes it expects.
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewIOError("failed to parse deployment YAML", err).
			WithContext("path", path)
	}
	jsonData, err := json.Marshal(normalizeForSchema(doc))
	if err != nil {
		return nil, errors.NewInternalError("failed to marshal deployment document", err)
	}
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, errors.NewInternalError("failed to round-trip deployment document", err)
	}

	if err := docSchema.Validate(doc); err != nil {
		return nil, errors.NewConstraintViolationError("deployment document failed schema validation", err).
			WithContext("path", path)
	}

	var deployment model.Deployment
	if err := yaml.Unmarshal(data, &deployment); err != nil {
		return nil, errors.NewIOError("failed to decode deployment", err).
			WithContext("path", path)
	}

	applyProbeDefaults(&deployment)
	return &deployment, nil
}

// normalizeForSchema converts yaml-decoded values into the shapes the
// jsonschema validator expects (string-keyed maps all the way down).
func normalizeForSchema(v interface{}) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(value))
		for k, item := range value {
			out[k] = normalizeForSchema(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(value))
		for k, item := range value {
			out[fmt.Sprintf("%v", k)] = normalizeForSchema(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, item := range value {
			out[i] = normalizeForSchema(item)
		}
		return out
	default:
		return v
	}
}

// ApplyEnvironmentOverrides layers each service's per-environment override
// values onto its options. Overrides resolve in a single pass; calling this
// for an environment no service declares is a no-op. The overrides map is
// cleared afterwards so the resolution cannot be applied twice.
func ApplyEnvironmentOverrides(deployment *model.Deployment, env string) {
	for i := range deployment.Services {
		service := &deployment.Services[i]
		if overrides, ok := service.Overrides[env]; ok {
			service.Options = schema.Resolve(service.Options, overrides)
		}
		service.Overrides = nil
	}
}

// applyProbeDefaults fills each probe's target with its owning service name
// when the document leaves it out.
func applyProbeDefaults(deployment *model.Deployment) {
	for i := range deployment.Services {
		service := &deployment.Services[i]
		for j := range service.Probes {
			if service.Probes[j].Target == "" {
				service.Probes[j].Target = service.Name
			}
		}
	}
}
