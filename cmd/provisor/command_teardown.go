package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Stop services in reverse dependency order",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}

		deployment, err := loadDeployment()
		if err != nil {
			return err
		}

		report, err := newDriver(logger).Teardown(cmd.Context(), deployment)
		if report != nil {
			printReport(report)
		}
		if err != nil {
			return err
		}
		fmt.Println("teardown complete")
		return nil
	},
}

func registerTeardownCommand(root *cobra.Command) {
	root.AddCommand(teardownCmd)
}
