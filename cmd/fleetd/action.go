package main

import "github.com/spf13/cobra"

func newActionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "action", Short: "Inspect actions"}
	var target, status string
	list := &cobra.Command{
		Use: "list",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/actions"
			if target != "" || status != "" {
				path += "?"
				if target != "" {
					path += "target=" + target
				}
				if status != "" {
					if target != "" {
						path += "&"
					}
					path += "status=" + status
				}
			}
			return listResource(cmd, path)
		},
	}
	list.Flags().StringVar(&target, "target", "", "Filter by target cluster/node id")
	list.Flags().StringVar(&status, "status", "", "Filter by status")

	cmd.AddCommand(list,
		&cobra.Command{
			Use:  "get [id]",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error { return getResource(cmd, "/actions/"+args[0]) },
		},
	)
	return cmd
}
