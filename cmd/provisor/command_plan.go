package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the bring-up and teardown order without touching anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}

		deployment, err := loadDeployment()
		if err != nil {
			return err
		}

		order, err := newDriver(logger).Order(deployment)
		if err != nil {
			return err
		}

		fmt.Printf("deployment %s: %d services\n", deployment.Metadata.Name, len(order))
		fmt.Printf("  bring-up: %s\n", strings.Join(order, " -> "))

		reversed := make([]string, len(order))
		for i, name := range order {
			reversed[len(order)-1-i] = name
		}
		fmt.Printf("  teardown: %s\n", strings.Join(reversed, " -> "))
		return nil
	},
}

func registerPlanCommand(root *cobra.Command) {
	root.AddCommand(planCmd)
}
