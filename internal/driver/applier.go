package driver

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/provisor/provisor/internal/errors"
	"github.com/provisor/provisor/internal/logging"
	"github.com/provisor/provisor/internal/model"
)

// Applier starts and stops the external services a deployment describes.
// provisor does not supervise processes itself; the real implementation
// delegates to the system service manager.
type Applier interface {
	Start(ctx context.Context, spec model.ServiceSpec) error
	Stop(ctx context.Context, spec model.ServiceSpec) error
}

// SystemdApplier shells out to systemctl.
type SystemdApplier struct {
	logger logging.Logger
}

// NewSystemdApplier creates the default applier.
func NewSystemdApplier(logger logging.Logger) *SystemdApplier {
	return &SystemdApplier{logger: logger}
}

func (a *SystemdApplier) Start(ctx context.Context, spec model.ServiceSpec) error {
	return a.systemctl(ctx, "start", spec)
}

func (a *SystemdApplier) Stop(ctx context.Context, spec model.ServiceSpec) error {
	return a.systemctl(ctx, "stop", spec)
}

func (a *SystemdApplier) systemctl(ctx context.Context, verb string, spec model.ServiceSpec) error {
	unit := spec.UnitName()
	a.logger.Infof("systemctl %s %s (service: %s)", verb, unit, spec.Name)

	out, err := exec.CommandContext(ctx, "systemctl", verb, unit).CombinedOutput()
	if err != nil {
		return errors.NewIOError(
			fmt.Sprintf("systemctl %s %s failed: %s", verb, unit, strings.TrimSpace(string(out))), err,
		).WithContext("service", spec.Name).WithContext("unit", unit)
	}
	return nil
}

// DryRunApplier prints what would happen instead of touching the service
// manager.
type DryRunApplier struct {
	Out io.Writer
}

func (a *DryRunApplier) Start(ctx context.Context, spec model.ServiceSpec) error {
	fmt.Fprintf(a.Out, "would start %s (service: %s)\n", spec.UnitName(), spec.Name)
	return nil
}

func (a *DryRunApplier) Stop(ctx context.Context, spec model.ServiceSpec) error {
	fmt.Fprintf(a.Out, "would stop %s (service: %s)\n", spec.UnitName(), spec.Name)
	return nil
}
