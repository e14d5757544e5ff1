package main

import "github.com/spf13/cobra"

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Render configs, start services in dependency order, probe readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}

		deployment, err := loadDeployment()
		if err != nil {
			return err
		}

		report, err := newDriver(logger).Deploy(cmd.Context(), deployment)
		if report != nil {
			if reportErr := finishReport(report); err == nil {
				err = reportErr
			}
		}
		return err
	},
}

func registerDeployCommand(root *cobra.Command) {
	root.AddCommand(deployCmd)
	deployCmd.Flags().StringVarP(&reportFile, "report", "o", "", "Write JSON report to this path")
}
