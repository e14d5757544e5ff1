package model

import "time"

// ServiceOutcome describes what happened to one service during a pass.
type ServiceOutcome struct {
	Service string        `json:"service"`
	Kind    ServiceKind   `json:"kind"`
	Applied bool          `json:"applied"`
	Config  string        `json:"config,omitempty"` // rendered config path
	Probes  []ProbeResult `json:"probes,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Ready reports whether every probe for the service resolved ok.
func (o ServiceOutcome) Ready() bool {
	if o.Error != "" {
		return false
	}
	for _, p := range o.Probes {
		if !p.OK() {
			return false
		}
	}
	return true
}

// Report is the structured result of one deploy, verify, or teardown pass.
// Probe failures are collected here rather than aborting the pass, so an
// operator can see exactly which services came up.
type Report struct {
	RunID       string           `json:"runId"`
	Operation   string           `json:"operation"`
	Deployment  string           `json:"deployment"`
	Environment string           `json:"environment,omitempty"`
	StartedAt   time.Time        `json:"startedAt"`
	Elapsed     time.Duration    `json:"elapsed"`
	Order       []string         `json:"order"`
	Services    []ServiceOutcome `json:"services"`
}

// OK reports whether every service applied cleanly and all probes passed.
func (r Report) OK() bool {
	for _, s := range r.Services {
		if !s.Ready() {
			return false
		}
	}
	return true
}

// FailedServices lists the names of services that did not come up ready.
func (r Report) FailedServices() []string {
	var failed []string
	for _, s := range r.Services {
		if !s.Ready() {
			failed = append(failed, s.Service)
		}
	}
	return failed
}
