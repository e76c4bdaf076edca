package main

import "github.com/spf13/cobra"

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "policy", Short: "Manage policies"}

	var name, typ string
	var cooldown int
	create := &cobra.Command{
		Use: "create",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := newAPIClient(cmd).do("POST", "/policies", map[string]any{
				"policy": map[string]any{"name": name, "type": typ, "cooldown": cooldown},
			})
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "Policy name")
	create.Flags().StringVar(&typ, "type", "", "Policy type, e.g. scaling_out, placement_zone, load_balance, health")
	create.Flags().IntVar(&cooldown, "cooldown", 0, "Cooldown window in seconds")

	var clusterID, priority string
	attach := &cobra.Command{
		Use:  "attach [policy-id]",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := newAPIClient(cmd).do("POST", "/clusters/"+clusterID+"/actions", map[string]any{
				"policy_attach": map[string]any{"policy_id": args[0], "priority": priority},
			})
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	attach.Flags().StringVar(&clusterID, "cluster", "", "Cluster id")
	attach.Flags().StringVar(&priority, "priority", "0", "Binding priority")

	cmd.AddCommand(create, attach,
		&cobra.Command{
			Use:  "list",
			RunE: func(cmd *cobra.Command, args []string) error { return listResource(cmd, "/policies") },
		},
		&cobra.Command{
			Use:  "get [id]",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error { return getResource(cmd, "/policies/"+args[0]) },
		},
		&cobra.Command{
			Use:  "delete [id]",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error { return deleteResource(cmd, "/policies/"+args[0]) },
		},
	)
	return cmd
}
