package main

import (
	"fmt"

	"github.com/provisor/provisor/internal/schema"
	"github.com/spf13/cobra"
)

var kindsLong bool

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List supported service kinds and their options",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := schema.NewRegistry()

		for _, kind := range registry.Kinds() {
			s, err := registry.Get(kind)
			if err != nil {
				return err
			}

			fmt.Printf("%s (%d options)\n", kind, len(s.Fields))
			if !kindsLong {
				continue
			}
			for _, f := range s.Fields {
				line := fmt.Sprintf("  %-22s %s", f.Path, f.Type)
				if f.Required {
					line += "  (required)"
				} else if f.Default != nil {
					line += fmt.Sprintf("  (default: %v)", f.Default)
				}
				fmt.Println(line)
				if f.Doc != "" {
					fmt.Printf("      %s\n", f.Doc)
				}
			}
			for _, c := range s.Constraints {
				fmt.Printf("  constraint %s: %s\n", c.Name, c.Message)
			}
		}
		return nil
	},
}

func registerKindsCommand(root *cobra.Command) {
	root.AddCommand(kindsCmd)
	kindsCmd.Flags().BoolVarP(&kindsLong, "long", "l", false, "Show options and constraints per kind")
}
