package main

import "github.com/spf13/cobra"

func listResource(cmd *cobra.Command, path string) error {
	out, err := newAPIClient(cmd).do("GET", path, nil)
	if err != nil {
		return err
	}
	printJSON(out)
	return nil
}

func getResource(cmd *cobra.Command, path string) error {
	out, err := newAPIClient(cmd).do("GET", path, nil)
	if err != nil {
		return err
	}
	printJSON(out)
	return nil
}

func deleteResource(cmd *cobra.Command, path string) error {
	_, err := newAPIClient(cmd).do("DELETE", path, nil)
	return err
}
