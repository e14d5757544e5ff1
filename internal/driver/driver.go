package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/provisor/provisor/internal/graph"
	"github.com/provisor/provisor/internal/logging"
	"github.com/provisor/provisor/internal/model"
	"github.com/provisor/provisor/internal/probe"
	"github.com/provisor/provisor/internal/render"
	"github.com/provisor/provisor/internal/schema"
)

// Driver sequences Validator -> Renderer -> Orderer -> apply -> Prober.
// Validation and ordering errors abort before any external mutation; probe
// failures are collected into the report so the operator sees exactly
// which services came up.
type Driver struct {
	registry *schema.Registry
	renderer *render.Renderer
	prober   *probe.Prober
	applier  Applier
	logger   logging.Logger

	// WorkDir is where rendered configs land.
	WorkDir string
}

// New creates a driver.
func New(registry *schema.Registry, renderer *render.Renderer, prober *probe.Prober, applier Applier, logger logging.Logger, workDir string) *Driver {
	return &Driver{
		registry: registry,
		renderer: renderer,
		prober:   prober,
		applier:  applier,
		logger:   logger,
		WorkDir:  workDir,
	}
}

// PlannedService pairs a spec with its validated options and rendered
// config. Produced before any apply step runs.
type PlannedService struct {
	Spec     model.ServiceSpec
	Options  schema.Options
	Rendered model.RenderedConfig
}

// Plan validates every service, renders every config, and computes the
// bring-up order. Pure with respect to the machine: nothing is written or
// started. The returned slice is in bring-up order.
func (d *Driver) Plan(deployment *model.Deployment) ([]PlannedService, error) {
	serviceGraph, err := graph.New(deployment.Services)
	if err != nil {
		return nil, err
	}

	ordered, err := serviceGraph.Order()
	if err != nil {
		return nil, err
	}

	planned := make([]PlannedService, 0, len(ordered))
	for _, spec := range ordered {
		opts, err := d.registry.Validate(spec.Kind, spec.Options)
		if err != nil {
			return nil, wrapServiceError(spec.Name, err)
		}

		rendered, err := d.renderer.Render(spec, opts)
		if err != nil {
			return nil, wrapServiceError(spec.Name, err)
		}

		planned = append(planned, PlannedService{Spec: spec, Options: opts, Rendered: rendered})
	}

	return planned, nil
}

// WriteRendered writes one planned service's rendered config under the
// driver's working directory and returns the final path.
func (d *Driver) WriteRendered(p PlannedService) (string, error) {
	path, err := d.renderer.WriteConfig(d.WorkDir, p.Rendered)
	if err != nil {
		return "", wrapServiceError(p.Spec.Name, err)
	}
	return path, nil
}

// Order returns the bring-up order of service names without touching the
// machine. Used by the plan command.
func (d *Driver) Order(deployment *model.Deployment) ([]string, error) {
	planned, err := d.Plan(deployment)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(planned))
	for i, p := range planned {
		names[i] = p.Spec.Name
	}
	return names, nil
}

// Deploy runs the full pass: plan, write configs, start services in
// dependency order, then probe readiness. The apply step is strictly
// sequential; parallelizing across dependency edges is unsafe even though
// probing is pooled.
func (d *Driver) Deploy(ctx context.Context, deployment *model.Deployment) (*model.Report, error) {
	report := d.newReport("deploy", deployment)
	start := time.Now()

	planned, err := d.Plan(deployment)
	if err != nil {
		return nil, err
	}

	for _, p := range planned {
		report.Order = append(report.Order, p.Spec.Name)
	}

	outcomes := make(map[string]*model.ServiceOutcome, len(planned))
	var applyErr error
	for _, p := range planned {
		outcome := &model.ServiceOutcome{Service: p.Spec.Name, Kind: p.Spec.Kind}
		outcomes[p.Spec.Name] = outcome

		if applyErr != nil {
			outcome.Error = "not applied: earlier service failed"
			continue
		}

		path, err := d.renderer.WriteConfig(d.WorkDir, p.Rendered)
		if err != nil {
			outcome.Error = err.Error()
			applyErr = wrapServiceError(p.Spec.Name, err)
			continue
		}
		outcome.Config = path

		d.logger.Infof("starting service %s (kind: %s)", p.Spec.Name, p.Spec.Kind)
		if err := d.applier.Start(ctx, p.Spec); err != nil {
			outcome.Error = err.Error()
			applyErr = wrapServiceError(p.Spec.Name, err)
			continue
		}
		outcome.Applied = true
	}

	if applyErr == nil {
		d.runProbes(ctx, planned, outcomes)
	}

	for _, p := range planned {
		report.Services = append(report.Services, *outcomes[p.Spec.Name])
	}
	report.Elapsed = time.Since(start)
	return report, applyErr
}

// Verify probes every declared readiness check without applying anything.
func (d *Driver) Verify(ctx context.Context, deployment *model.Deployment) (*model.Report, error) {
	report := d.newReport("verify", deployment)
	start := time.Now()

	planned, err := d.Plan(deployment)
	if err != nil {
		return nil, err
	}

	outcomes := make(map[string]*model.ServiceOutcome, len(planned))
	for _, p := range planned {
		report.Order = append(report.Order, p.Spec.Name)
		outcomes[p.Spec.Name] = &model.ServiceOutcome{
			Service: p.Spec.Name,
			Kind:    p.Spec.Kind,
			Applied: false,
		}
	}

	d.runProbes(ctx, planned, outcomes)

	for _, p := range planned {
		report.Services = append(report.Services, *outcomes[p.Spec.Name])
	}
	report.Elapsed = time.Since(start)
	return report, nil
}

// Teardown stops services in the exact reverse of bring-up order, so
// dependents stop before their dependencies. Probes are not run.
func (d *Driver) Teardown(ctx context.Context, deployment *model.Deployment) (*model.Report, error) {
	report := d.newReport("teardown", deployment)
	start := time.Now()

	planned, err := d.Plan(deployment)
	if err != nil {
		return nil, err
	}

	specs := make([]model.ServiceSpec, len(planned))
	for i, p := range planned {
		specs[i] = p.Spec
	}
	reversed := graph.Reverse(specs)

	var teardownErr error
	for _, spec := range reversed {
		report.Order = append(report.Order, spec.Name)
		outcome := model.ServiceOutcome{Service: spec.Name, Kind: spec.Kind}

		d.logger.Infof("stopping service %s (kind: %s)", spec.Name, spec.Kind)
		if err := d.applier.Stop(ctx, spec); err != nil {
			// Keep tearing the rest down; report the first failure.
			outcome.Error = err.Error()
			if teardownErr == nil {
				teardownErr = wrapServiceError(spec.Name, err)
			}
		} else {
			outcome.Applied = true
		}
		report.Services = append(report.Services, outcome)
	}

	report.Elapsed = time.Since(start)
	return report, teardownErr
}

// runProbes collects every declared probe across the planned services,
// runs them through the bounded pool, and attaches results to outcomes by
// target name.
func (d *Driver) runProbes(ctx context.Context, planned []PlannedService, outcomes map[string]*model.ServiceOutcome) {
	var specs []model.ProbeSpec
	for _, p := range planned {
		specs = append(specs, p.Spec.Probes...)
	}
	if len(specs) == 0 {
		return
	}

	d.logger.Infof("probing readiness of %d targets", len(specs))
	results := d.prober.ProbeAll(ctx, specs)

	for _, result := range results {
		if outcome, ok := outcomes[result.Target]; ok {
			outcome.Probes = append(outcome.Probes, result)
		}
	}
}

func (d *Driver) newReport(operation string, deployment *model.Deployment) *model.Report {
	return &model.Report{
		RunID:       uuid.NewString(),
		Operation:   operation,
		Deployment:  deployment.Metadata.Name,
		Environment: deployment.Metadata.Environment,
		StartedAt:   time.Now(),
	}
}

func wrapServiceError(service string, err error) error {
	return fmt.Errorf("service %s: %w", service, err)
}
