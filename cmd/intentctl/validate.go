package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/intentflow/dag"
)

func validateCmd() *cobra.Command {
	var maxNodes int
	cmd := &cobra.Command{
		Use:   "validate <plan>",
		Short: "Check a plan and print its execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := dag.LoadDraftFile(args[0])
			if err != nil {
				return err
			}
			g, err := dag.NewBuilder(maxNodes).Build(draft)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, id := range g.Order() {
				n, _ := g.Node(id)
				fmt.Fprintf(out, "%2d. %s (%s)\n", i+1, id, n.Type)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxNodes, "max-nodes", dag.DefaultMaxNodes, "Reject plans with more nodes")
	return cmd
}
