package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render all service configs into the working directory without applying",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}

		deployment, err := loadDeployment()
		if err != nil {
			return err
		}

		d := newDriver(logger)
		planned, err := d.Plan(deployment)
		if err != nil {
			return err
		}

		for _, p := range planned {
			path, err := d.WriteRendered(p)
			if err != nil {
				return err
			}
			fmt.Printf("  %-12s %-8s -> %s\n", p.Spec.Name, p.Spec.Kind, path)
		}

		fmt.Printf("rendered %d configs\n", len(planned))
		return nil
	},
}

func registerRenderCommand(root *cobra.Command) {
	root.AddCommand(renderCmd)
}
