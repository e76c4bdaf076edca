package main

import "github.com/spf13/cobra"

func newNodeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "node", Short: "Manage nodes"}
	var clusterID, status string
	list := &cobra.Command{
		Use: "list",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/nodes"
			if clusterID != "" || status != "" {
				path += "?"
				if clusterID != "" {
					path += "cluster_id=" + clusterID
				}
				if status != "" {
					if clusterID != "" {
						path += "&"
					}
					path += "status=" + status
				}
			}
			return listResource(cmd, path)
		},
	}
	list.Flags().StringVar(&clusterID, "cluster", "", "Filter by cluster id")
	list.Flags().StringVar(&status, "status", "", "Filter by status")

	var name, profileID, role string
	create := &cobra.Command{
		Use: "create",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := newAPIClient(cmd).do("POST", "/nodes", map[string]any{
				"node": map[string]any{"name": name, "profile_id": profileID, "role": role},
			})
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "Node name")
	create.Flags().StringVar(&profileID, "profile", "", "Profile id")
	create.Flags().StringVar(&role, "role", "", "Node role")

	cmd.AddCommand(list, create,
		&cobra.Command{
			Use:  "get [id]",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error { return getResource(cmd, "/nodes/"+args[0]) },
		},
		&cobra.Command{
			Use:  "delete [id]",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error { return deleteResource(cmd, "/nodes/"+args[0]) },
		},
	)
	return cmd
}
