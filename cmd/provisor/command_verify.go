package main

import "github.com/spf13/cobra"

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Probe readiness of an already-deployed set of services",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}

		deployment, err := loadDeployment()
		if err != nil {
			return err
		}

		report, err := newDriver(logger).Verify(cmd.Context(), deployment)
		if err != nil {
			return err
		}
		return finishReport(report)
	},
}

func registerVerifyCommand(root *cobra.Command) {
	root.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVarP(&reportFile, "report", "o", "", "Write JSON report to this path")
}
