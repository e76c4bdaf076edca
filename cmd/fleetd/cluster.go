package main

import (
	"github.com/spf13/cobra"
)

func newClusterCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cluster", Short: "Manage clusters"}
	cmd.AddCommand(
		&cobra.Command{
			Use:  "list",
			RunE: func(cmd *cobra.Command, args []string) error { return listResource(cmd, "/clusters") },
		},
		&cobra.Command{
			Use:  "get [id]",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error { return getResource(cmd, "/clusters/"+args[0]) },
		},
		&cobra.Command{
			Use:  "delete [id]",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error { return deleteResource(cmd, "/clusters/"+args[0]) },
		},
	)
	cmd.AddCommand(newClusterCreateCmd())
	cmd.AddCommand(newClusterResizeCmd())
	return cmd
}

func newClusterCreateCmd() *cobra.Command {
	var name, profileID string
	var minSize, maxSize, desired int
	c := &cobra.Command{
		Use:  "create",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := newAPIClient(cmd).do("POST", "/clusters", map[string]any{
				"cluster": map[string]any{
					"name":             name,
					"profile_id":       profileID,
					"min_size":         minSize,
					"max_size":         maxSize,
					"desired_capacity": desired,
				},
			})
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	c.Flags().StringVar(&name, "name", "", "Cluster name")
	c.Flags().StringVar(&profileID, "profile", "", "Profile id")
	c.Flags().IntVar(&minSize, "min-size", 0, "Minimum size")
	c.Flags().IntVar(&maxSize, "max-size", -1, "Maximum size, -1 for unbounded")
	c.Flags().IntVar(&desired, "desired-capacity", 0, "Desired capacity")
	return c
}

func newClusterResizeCmd() *cobra.Command {
	var adjustmentType string
	var number int
	c := &cobra.Command{
		Use:  "resize [id]",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := newAPIClient(cmd).do("POST", "/clusters/"+args[0]+"/actions", map[string]any{
				"resize": map[string]any{
					"adjustment_type": adjustmentType,
					"number":          number,
				},
			})
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	c.Flags().StringVar(&adjustmentType, "type", "EXACT_CAPACITY", "EXACT_CAPACITY|CHANGE_IN_CAPACITY|CHANGE_IN_PERCENTAGE")
	c.Flags().IntVar(&number, "number", 0, "Adjustment amount")
	return c
}
