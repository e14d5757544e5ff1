package model

// Deployment is the top-level declarative document describing a set of
// services to bring up on one machine.
type Deployment struct {
	APIVersion string        `yaml:"apiVersion" json:"apiVersion"`
	Kind       string        `yaml:"kind" json:"kind"`
	Metadata   Metadata      `yaml:"metadata" json:"metadata"`
	Services   []ServiceSpec `yaml:"services" json:"services"`
}

// Metadata holds standard object metadata.
type Metadata struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Environment string `yaml:"environment" json:"environment"`
}

// ServiceKind identifies which wrapped daemon a ServiceSpec configures.
type ServiceKind string

const (
	KindProxy   ServiceKind = "proxy"   // HAProxy load balancer
	KindIDS     ServiceKind = "ids"     // CrowdSec detection engine
	KindBouncer ServiceKind = "bouncer" // firewall bouncer enforcing LAPI decisions
	KindQueue   ServiceKind = "queue"   // RabbitMQ broker
	KindBackend ServiceKind = "backend" // WSGI application backend
)

// ServiceKinds lists the supported kinds in a stable order.
func ServiceKinds() []ServiceKind {
	return []ServiceKind{KindProxy, KindIDS, KindBouncer, KindQueue, KindBackend}
}

// ServiceSpec is one declared service instance: a unique name, a kind, raw
// option values to validate against the kind's schema, the services it must
// start after, and the ports it exposes.
type ServiceSpec struct {
	Name      string                 `yaml:"name" json:"name"`
	Kind      ServiceKind            `yaml:"kind" json:"kind"`
	Options   map[string]interface{} `yaml:"options" json:"options"`
	DependsOn []string               `yaml:"dependsOn" json:"dependsOn"`
	Ports     []int                  `yaml:"ports" json:"ports"`
	Unit      string                 `yaml:"unit,omitempty" json:"unit,omitempty"`
	Probes    []ProbeSpec            `yaml:"probes,omitempty" json:"probes,omitempty"`

	// Overrides maps an environment name to option values layered on top
	// of Options when deploying to that environment.
	Overrides map[string]map[string]interface{} `yaml:"overrides,omitempty" json:"overrides,omitempty"`
}

// UnitName returns the service-manager unit the applier starts and stops.
// Defaults to the service name when not declared explicitly.
func (s ServiceSpec) UnitName() string {
	if s.Unit != "" {
		return s.Unit
	}
	return s.Name + ".service"
}

// RenderedConfig is an immutable rendered configuration blob for one
// ServiceSpec. A render pass produces it once; a redeploy replaces the
// whole blob at Path, never patches it in place.
type RenderedConfig struct {
	Service string
	Kind    ServiceKind
	Path    string
	Content []byte
}
