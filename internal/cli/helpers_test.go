package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	sumOfImage     = filepath.Join("..", "..", "testdata", "programs", "sum_of_image.yaml")
	noDemandConfig = filepath.Join("..", "..", "testdata", "configs", "no_demand.cue")
	normalConfig   = filepath.Join("..", "..", "testdata", "configs", "normal.cue")
)

// sumOfImageOutput is what sum_of_image.yaml prints under every
// implementation choice.
var sumOfImageOutput = []string{"2", "0", "7", "3", "0"}

// execute runs the root command with args and returns what it wrote to
// stdout. Diagnostics go to a separate buffer.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decodeResponse decodes a JSON CLIResponse whose data has type T.
func decodeResponse[T any](t *testing.T, out string) (CLIResponse, T) {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	var data T
	if len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, &data), out)
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}, data
}

// writeFile writes content to name in a fresh temp dir.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
