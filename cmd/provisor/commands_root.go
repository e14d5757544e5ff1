package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/provisor/provisor/internal/driver"
	"github.com/provisor/provisor/internal/errors"
	"github.com/provisor/provisor/internal/loader"
	"github.com/provisor/provisor/internal/logging"
	"github.com/provisor/provisor/internal/model"
	"github.com/provisor/provisor/internal/probe"
	"github.com/provisor/provisor/internal/render"
	"github.com/provisor/provisor/internal/schema"
	"github.com/spf13/cobra"
)

var (
	deploymentFile string
	workDir        string
	environment    string
	logLevel       string
	dryRun         bool
	reportFile     string
)

var rootCmd = &cobra.Command{
	Use:   "provisor",
	Short: "Declarative service-configuration renderer and deployment driver",
	Long: "provisor validates a typed service configuration, renders native config files\n" +
		"(HAProxy, CrowdSec, firewall bouncer, RabbitMQ, systemd units), orders services by\n" +
		"their declared dependencies, and probes readiness after bring-up.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&deploymentFile, "deployment", "d", "deployment.yaml", "Deployment file path")
	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "w", ".", "Working directory for rendered configs")
	rootCmd.PersistentFlags().StringVarP(&environment, "env", "e", "", "Target environment: selects per-service overrides, recorded in reports (overrides metadata)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug/info/warn/error)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Print service manager actions instead of executing them")

	registerDeployCommand(rootCmd)
	registerVerifyCommand(rootCmd)
	registerTeardownCommand(rootCmd)
	registerValidateCommand(rootCmd)
	registerRenderCommand(rootCmd)
	registerPlanCommand(rootCmd)
	registerKindsCommand(rootCmd)
}

// newLogger builds the zap-backed logger from the --log-level flag.
func newLogger() (logging.Logger, error) {
	adapter, err := logging.NewZapAdapter(logLevel)
	if err != nil {
		return nil, err
	}
	return adapter, nil
}

// newDriver wires the full pipeline the way every stateful command needs
// it: registry, renderer, prober, and the applier selected by --dry-run.
func newDriver(logger logging.Logger) *driver.Driver {
	registry := schema.NewRegistry()
	renderer := render.NewRenderer(registry)
	prober := probe.NewProber(logger)

	var applier driver.Applier
	if dryRun {
		applier = &driver.DryRunApplier{Out: os.Stdout}
	} else {
		applier = driver.NewSystemdApplier(logger)
	}

	return driver.New(registry, renderer, prober, applier, logger, workDir)
}

// loadDeployment reads the deployment file, resolves the target
// environment (--env wins over metadata), and layers that environment's
// per-service option overrides onto the base options.
func loadDeployment() (*model.Deployment, error) {
	deployment, err := loader.LoadDeployment(deploymentFile)
	if err != nil {
		return nil, err
	}
	if environment != "" {
		deployment.Metadata.Environment = environment
	}
	loader.ApplyEnvironmentOverrides(deployment, deployment.Metadata.Environment)
	return deployment, nil
}

// finishReport prints the per-service summary, optionally writes the JSON
// report, and converts probe failures into a taxonomy error so the exit
// code reflects them.
func finishReport(report *model.Report) error {
	printReport(report)

	if reportFile != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return errors.NewInternalError("failed to marshal report", err)
		}
		if err := os.WriteFile(reportFile, data, 0o644); err != nil {
			return errors.NewIOError("failed to write report file", err).
				WithContext("path", reportFile)
		}
		fmt.Printf("report written to %s\n", reportFile)
	}

	if !report.OK() {
		failed := report.FailedServices()
		return errors.NewProbeFailureError(
			fmt.Sprintf("%d of %d services not ready: %v", len(failed), len(report.Services), failed), nil)
	}
	return nil
}

func printReport(report *model.Report) {
	fmt.Printf("%s %s (run %s)\n", report.Operation, report.Deployment, report.RunID)
	for _, s := range report.Services {
		status := "ok"
		switch {
		case s.Error != "":
			status = "error: " + s.Error
		case !s.Ready():
			status = "not ready"
		}
		fmt.Printf("  %-12s %-8s %s\n", s.Service, s.Kind, status)
		for _, p := range s.Probes {
			fmt.Printf("    probe %-8s %-8s %v", p.Kind, p.Status, p.Elapsed.Round(ms))
			if p.Message != "" {
				fmt.Printf("  %s", p.Message)
			}
			fmt.Println()
		}
	}
	fmt.Printf("elapsed: %v\n", report.Elapsed.Round(ms))
}
