package main

import (
	"fmt"

	"github.com/provisor/provisor/internal/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the deployment document and every service's options",
	RunE: func(cmd *cobra.Command, args []string) error {
		deployment, err := loadDeployment()
		if err != nil {
			return err
		}
		fmt.Println("deployment document is valid")

		registry := schema.NewRegistry()
		for _, service := range deployment.Services {
			s, err := registry.Get(service.Kind)
			if err != nil {
				return err
			}
			opts, err := s.Validate(service.Options)
			if err != nil {
				return fmt.Errorf("service %s: %w", service.Name, err)
			}
			fmt.Printf("  %-12s %-8s %d options resolved\n", service.Name, service.Kind, len(opts.Paths(s)))
		}

		fmt.Println("all validation passed")
		return nil
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)
}
