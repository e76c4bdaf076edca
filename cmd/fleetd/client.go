package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/cuemby/fleetd/pkg/config"
)

// apiClient is the thin REST v1 client shared by every resource
// subcommand, grounded on the teacher's pkg/client/client.go request/
// response JSON-over-HTTP idiom.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(cmd *cobra.Command) *apiClient {
	c := config.FromFlags(cmd.Root())
	return &apiClient{baseURL: "http://" + c.APIAddr, http: &http.Client{}}
}

func (c *apiClient) do(method, path string, body any) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s: %v", method, path, out["error"])
	}
	return out, nil
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
