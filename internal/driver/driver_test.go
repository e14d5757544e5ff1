package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/provisor/provisor/internal/errors"
	"github.com/provisor/provisor/internal/logging"
	"github.com/provisor/provisor/internal/model"
	"github.com/provisor/provisor/internal/probe"
	"github.com/provisor/provisor/internal/render"
	"github.com/provisor/provisor/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeApplier records start/stop order instead of touching systemd.
type fakeApplier struct {
	started []string
	stopped []string
	failOn  string
}

func (f *fakeApplier) Start(ctx context.Context, spec model.ServiceSpec) error {
	if spec.Name == f.failOn {
		return fmt.Errorf("start %s failed", spec.Name)
	}
	f.started = append(f.started, spec.Name)
	return nil
}

func (f *fakeApplier) Stop(ctx context.Context, spec model.ServiceSpec) error {
	if spec.Name == f.failOn {
		return fmt.Errorf("stop %s failed", spec.Name)
	}
	f.stopped = append(f.stopped, spec.Name)
	return nil
}

func testDeployment() *model.Deployment {
	return &model.Deployment{
		APIVersion: "provisor.dev/v1",
		Kind:       "Deployment",
		Metadata:   model.Metadata{Name: "research-stack", Environment: "staging"},
		Services: []model.ServiceSpec{
			{
				Name: "lb",
				Kind: model.KindProxy,
				Options: map[string]interface{}{
					"frontend.port":   80,
					"backend.servers": []interface{}{"web 127.0.0.1:8000"},
				},
				DependsOn: []string{"web"},
				Probes: []model.ProbeSpec{
					{Target: "lb", Kind: model.ProbeKindUnit, Unit: "haproxy.service", Timeout: time.Second, PollInterval: 10 * time.Millisecond},
				},
			},
			{
				Name: "web",
				Kind: model.KindBackend,
				Options: map[string]interface{}{
					"app.module": "project.wsgi:application",
					"bind.port":  8000,
					"workingDir": "/srv/app",
				},
				Probes: []model.ProbeSpec{
					{Target: "web", Kind: model.ProbeKindUnit, Unit: "web.service", Timeout: time.Second, PollInterval: 10 * time.Millisecond},
				},
			},
		},
	}
}

func newTestDriver(t *testing.T, applier Applier, unitCheck func(context.Context, string) error) *Driver {
	t.Helper()
	logger := logging.NewNopLogger()
	registry := schema.NewRegistry()
	renderer := render.NewRenderer(registry)

	prober := probe.NewProber(logger)
	if unitCheck != nil {
		prober.UnitCheck = unitCheck
	}

	return New(registry, renderer, prober, applier, logger, t.TempDir())
}

func TestDeploy(t *testing.T) {
	applier := &fakeApplier{}
	d := newTestDriver(t, applier, func(ctx context.Context, unit string) error {
		return nil
	})

	report, err := d.Deploy(context.Background(), testDeployment())
	require.NoError(t, err)

	// Dependencies start before dependents.
	assert.Equal(t, []string{"web", "lb"}, applier.started)
	assert.Equal(t, []string{"web", "lb"}, report.Order)

	assert.True(t, report.OK())
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "deploy", report.Operation)
	assert.Equal(t, "staging", report.Environment)

	require.Len(t, report.Services, 2)
	for _, outcome := range report.Services {
		assert.True(t, outcome.Applied)
		assert.NotEmpty(t, outcome.Config)
		require.Len(t, outcome.Probes, 1)
		assert.Equal(t, model.ProbeStatusOK, outcome.Probes[0].Status)

		// Rendered config landed on disk.
		_, statErr := os.Stat(outcome.Config)
		assert.NoError(t, statErr)
	}
}

func TestDeployValidationAbortsBeforeApply(t *testing.T) {
	applier := &fakeApplier{}
	d := newTestDriver(t, applier, nil)

	deployment := testDeployment()
	// Drop the required backend.servers option.
	deployment.Services[0].Options = map[string]interface{}{"frontend.port": 80}

	report, err := d.Deploy(context.Background(), deployment)
	require.Error(t, err)
	assert.True(t, errors.IsMissingRequiredOptionError(err))
	assert.Contains(t, err.Error(), "service lb")
	assert.Nil(t, report)

	// Nothing was applied and nothing was written.
	assert.Empty(t, applier.started)
	entries, readErr := os.ReadDir(d.WorkDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestDeployCycleAbortsBeforeApply(t *testing.T) {
	applier := &fakeApplier{}
	d := newTestDriver(t, applier, nil)

	deployment := testDeployment()
	deployment.Services[1].DependsOn = []string{"lb"}

	_, err := d.Deploy(context.Background(), deployment)
	require.Error(t, err)
	assert.True(t, errors.IsCycleError(err))
	assert.Empty(t, applier.started)
}

func TestDeployApplyFailureSkipsRemaining(t *testing.T) {
	applier := &fakeApplier{failOn: "web"}
	d := newTestDriver(t, applier, nil)

	report, err := d.Deploy(context.Background(), testDeployment())
	require.Error(t, err)
	require.NotNil(t, report)

	assert.Empty(t, applier.started, "web failed, lb must not be started")
	require.Len(t, report.Services, 2)
	assert.Contains(t, report.Services[0].Error, "start web failed")
	assert.Contains(t, report.Services[1].Error, "not applied")
	assert.False(t, report.OK())
}

func TestDeployCollectsProbeFailures(t *testing.T) {
	applier := &fakeApplier{}
	d := newTestDriver(t, applier, func(ctx context.Context, unit string) error {
		if unit == "haproxy.service" {
			return fmt.Errorf("unit %s is not active", unit)
		}
		return nil
	})

	deployment := testDeployment()
	for i := range deployment.Services {
		for j := range deployment.Services[i].Probes {
			deployment.Services[i].Probes[j].Timeout = 50 * time.Millisecond
			deployment.Services[i].Probes[j].PollInterval = 10 * time.Millisecond
		}
	}

	report, err := d.Deploy(context.Background(), deployment)
	require.NoError(t, err, "probe failures are reported, not fatal to the driver")

	assert.False(t, report.OK())
	assert.Equal(t, []string{"lb"}, report.FailedServices())

	// The healthy service's result is still surfaced.
	for _, outcome := range report.Services {
		if outcome.Service == "web" {
			require.Len(t, outcome.Probes, 1)
			assert.Equal(t, model.ProbeStatusOK, outcome.Probes[0].Status)
		}
	}
}

func TestVerifyDoesNotApply(t *testing.T) {
	applier := &fakeApplier{}
	d := newTestDriver(t, applier, func(ctx context.Context, unit string) error {
		return nil
	})

	report, err := d.Verify(context.Background(), testDeployment())
	require.NoError(t, err)

	assert.Empty(t, applier.started)
	assert.Empty(t, applier.stopped)
	assert.True(t, report.OK())
	assert.Equal(t, "verify", report.Operation)
}

func TestTeardownReversesBringUp(t *testing.T) {
	applier := &fakeApplier{}
	d := newTestDriver(t, applier, nil)

	report, err := d.Teardown(context.Background(), testDeployment())
	require.NoError(t, err)

	assert.Equal(t, []string{"lb", "web"}, applier.stopped)
	assert.Equal(t, []string{"lb", "web"}, report.Order)
	assert.Equal(t, "teardown", report.Operation)
}

func TestTeardownContinuesPastFailures(t *testing.T) {
	applier := &fakeApplier{failOn: "lb"}
	d := newTestDriver(t, applier, nil)

	report, err := d.Teardown(context.Background(), testDeployment())
	require.Error(t, err)

	// The failing dependent does not strand its dependency.
	assert.Equal(t, []string{"web"}, applier.stopped)
	require.Len(t, report.Services, 2)
	assert.Contains(t, report.Services[0].Error, "stop lb failed")
}

func TestWriteRendered(t *testing.T) {
	d := newTestDriver(t, &fakeApplier{}, nil)

	planned, err := d.Plan(testDeployment())
	require.NoError(t, err)
	require.Len(t, planned, 2)

	path, err := d.WriteRendered(planned[0])
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(d.WorkDir, planned[0].Rendered.Path), path)
}
