package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "profile", Short: "Manage profiles"}

	var name, typ, specFile string
	create := &cobra.Command{
		Use: "create",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := map[string]any{}
			if specFile != "" {
				data, err := os.ReadFile(specFile)
				if err != nil {
					return err
				}
				if err := yaml.Unmarshal(data, &spec); err != nil {
					return err
				}
			}
			out, err := newAPIClient(cmd).do("POST", "/profiles", map[string]any{
				"profile": map[string]any{"name": name, "type": typ, "spec": spec},
			})
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "Profile name")
	create.Flags().StringVar(&typ, "type", "", "Profile type, e.g. container")
	create.Flags().StringVar(&specFile, "spec", "", "Path to a YAML spec body")

	cmd.AddCommand(create,
		&cobra.Command{
			Use:  "list",
			RunE: func(cmd *cobra.Command, args []string) error { return listResource(cmd, "/profiles") },
		},
		&cobra.Command{
			Use:  "get [id]",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error { return getResource(cmd, "/profiles/"+args[0]) },
		},
		&cobra.Command{
			Use:  "delete [id]",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error { return deleteResource(cmd, "/profiles/"+args[0]) },
		},
	)
	return cmd
}
