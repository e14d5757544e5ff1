package model

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ProbeKind identifies how a readiness check is performed.
type ProbeKind string

const (
	ProbeKindPort    ProbeKind = "port" // bounded-timeout TCP connect
	ProbeKindHTTP    ProbeKind = "http" // GET, status in an allowed set
	ProbeKindProcess ProbeKind = "process"
	ProbeKindUnit    ProbeKind = "unit" // service manager reports active
)

// ProbeSpec declares a single readiness check for a service.
type ProbeSpec struct {
	Target string    `yaml:"target" json:"target"` // service name being checked
	Kind   ProbeKind `yaml:"kind" json:"kind"`

	// Port check.
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
	Port    int    `yaml:"port,omitempty" json:"port,omitempty"`

	// HTTP check. AllowedStatus empty means any 2xx.
	URL           string `yaml:"url,omitempty" json:"url,omitempty"`
	AllowedStatus []int  `yaml:"allowedStatus,omitempty" json:"allowedStatus,omitempty"`

	// Process check.
	Process string `yaml:"process,omitempty" json:"process,omitempty"`

	// Unit check.
	Unit string `yaml:"unit,omitempty" json:"unit,omitempty"`

	Timeout      time.Duration `yaml:"-" json:"timeout,omitempty"`
	PollInterval time.Duration `yaml:"-" json:"pollInterval,omitempty"`
}

// probeSpecDoc mirrors ProbeSpec with durations as strings, since yaml.v3
// has no native time.Duration decoding.
type probeSpecDoc struct {
	Target        string    `yaml:"target"`
	Kind          ProbeKind `yaml:"kind"`
	Address       string    `yaml:"address"`
	Port          int       `yaml:"port"`
	URL           string    `yaml:"url"`
	AllowedStatus []int     `yaml:"allowedStatus"`
	Process       string    `yaml:"process"`
	Unit          string    `yaml:"unit"`
	Timeout       string    `yaml:"timeout"`
	PollInterval  string    `yaml:"pollInterval"`
}

// UnmarshalYAML decodes a probe spec, parsing timeout and pollInterval from
// Go duration strings ("2s", "500ms").
func (p *ProbeSpec) UnmarshalYAML(node *yaml.Node) error {
	var doc probeSpecDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}

	*p = ProbeSpec{
		Target:        doc.Target,
		Kind:          doc.Kind,
		Address:       doc.Address,
		Port:          doc.Port,
		URL:           doc.URL,
		AllowedStatus: doc.AllowedStatus,
		Process:       doc.Process,
		Unit:          doc.Unit,
	}

	var err error
	if doc.Timeout != "" {
		if p.Timeout, err = time.ParseDuration(doc.Timeout); err != nil {
			return fmt.Errorf("invalid probe timeout %q: %w", doc.Timeout, err)
		}
	}
	if doc.PollInterval != "" {
		if p.PollInterval, err = time.ParseDuration(doc.PollInterval); err != nil {
			return fmt.Errorf("invalid probe pollInterval %q: %w", doc.PollInterval, err)
		}
	}
	return nil
}

// ProbeStatus is the lifecycle state of one probe.
type ProbeStatus string

const (
	ProbeStatusPending ProbeStatus = "pending"
	ProbeStatusOK      ProbeStatus = "ok"
	ProbeStatusFailed  ProbeStatus = "failed"
	ProbeStatusTimeout ProbeStatus = "timeout"
)

// Terminal reports whether the status is final. Terminal states are never
// re-entered.
func (s ProbeStatus) Terminal() bool {
	return s == ProbeStatusOK || s == ProbeStatusFailed || s == ProbeStatusTimeout
}

// ProbeResult is the finalized outcome of one readiness check.
type ProbeResult struct {
	Target   string        `json:"target"`
	Kind     ProbeKind     `json:"kind"`
	Status   ProbeStatus   `json:"status"`
	Elapsed  time.Duration `json:"elapsed"`
	Attempts int           `json:"attempts"`
	Message  string        `json:"message,omitempty"`
}

// OK reports whether the probe succeeded.
func (r ProbeResult) OK() bool {
	return r.Status == ProbeStatusOK
}
