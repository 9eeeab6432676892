package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/intentflow/handler"
)

func typesCmd() *cobra.Command {
	var handlersFile, fixtures string
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List the intent types that have a handler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadHandlers(handlersFile, fixtures)
			if err != nil {
				return err
			}
			reg, err := handler.NewRegistry(cfg)
			if err != nil {
				return err
			}
			for _, t := range reg.Types() {
				kind := "static"
				if _, ok := cfg.Webhooks[t]; ok {
					kind = "webhook " + cfg.Webhooks[t].URL
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", t, kind)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&handlersFile, "handlers", "", "YAML file with a handlers section")
	cmd.Flags().StringVar(&fixtures, "fixtures", "", "YAML file of static handler outcomes")
	return cmd
}
