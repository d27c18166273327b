package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

var (
	basicSurvey  = filepath.Join("testdata", "surveys", "basic.yaml")
	brokenSurvey = filepath.Join("testdata", "surveys", "broken.yaml")
)

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decodeJSON parses a CLIResponse and returns its data as a map.
func decodeJSON(t *testing.T, out string) (CLIResponse, map[string]any) {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	data, _ := resp.Data.(map[string]any)
	return resp, data
}

func jsonOpts() *RootOptions { return &RootOptions{Format: "json"} }

func textOpts() *RootOptions { return &RootOptions{Format: "text"} }
