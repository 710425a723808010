package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/incoq/internal/incast"
)

const invalidProgram = `
relations: [S, S]
counted: [T]
decls: []
`

const dialectProgram = `
relations: [S]
decls:
  - kind: fun
    name: main
    body:
      - kind: expr
        value: {kind: attribute, value: o, attr: f}
`

func TestCompileProgram(t *testing.T) {
	out, err := execute(t, "compile", sumOfImage)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled")
	assert.Contains(t, out, "2 query(ies)")
	assert.Contains(t, out, "Q1: inc")
	assert.Contains(t, out, "→ R_Q1")
	assert.Contains(t, out, "Q2: inc params=[a] demand=[a] → A_Q2")
	assert.Contains(t, out, "Output hash: ")
	assert.NotContains(t, out, "Recorded run")
}

func TestCompileConfigs(t *testing.T) {
	tests := []struct {
		name   string
		config string
		want   []string
	}{
		{
			name:   "without demand",
			config: noDemandConfig,
			want:   []string{"Q1: inc params=[a] → R_Q1", "Q2: inc params=[a] → A_Q2"},
		},
		{
			name:   "from scratch",
			config: normalConfig,
			want:   []string{"Q1: normal", "Q2: normal"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "compile", sumOfImage, "--config", tt.config)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestCompileJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "compile", sumOfImage, "--config", noDemandConfig)
	require.NoError(t, err)

	resp, result := decodeResponse[CompilationResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, sumOfImage, result.Program)
	assert.NotEmpty(t, result.InputHash)
	assert.NotEmpty(t, result.OutputHash)
	assert.NotEqual(t, result.InputHash, result.OutputHash)

	require.Len(t, result.Queries, 2)
	assert.Equal(t, QuerySummary{
		Name:         "Q1",
		Impl:         "inc",
		Params:       []string{"a"},
		DemandParams: []string{"a"},
		Result:       "R_Q1",
	}, result.Queries[0])
	assert.Equal(t, "Q2", result.Queries[1].Name)
	assert.Equal(t, "A_Q2", result.Queries[1].Result)
	assert.Empty(t, result.Compiled)
	assert.Empty(t, result.Diff)
}

func TestCompileIsDeterministic(t *testing.T) {
	first, err := execute(t, "--format", "json", "compile", sumOfImage)
	require.NoError(t, err)
	second, err := execute(t, "--format", "json", "compile", sumOfImage)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.yaml")

	out, err := execute(t, "--format", "json", "compile", sumOfImage, "--output", outputFile)
	require.NoError(t, err)
	_, result := decodeResponse[CompilationResult](t, out)

	compiled, err := LoadProgram(outputFile)
	require.NoError(t, err)
	assert.Contains(t, compiled.Relations, "R_Q1")
	assert.Contains(t, compiled.Maps, "A_Q2")

	hash, err := incast.FingerprintProgram(compiled)
	require.NoError(t, err)
	assert.Equal(t, result.OutputHash, hash, "written program must reload to the compiled program")
}

func TestCompilePrintAndDiff(t *testing.T) {
	out, err := execute(t, "compile", sumOfImage, "--config", noDemandConfig, "--print", "--diff")
	require.NoError(t, err)

	assert.Contains(t, out, "def main():")
	assert.Contains(t, out, "--- "+sumOfImage)
	assert.Contains(t, out, "+++ "+sumOfImage+" (compiled)")
	assert.Contains(t, out, "@@")

	var added []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
			added = append(added, line)
		}
	}
	assert.NotEmpty(t, added)
	assert.Contains(t, strings.Join(added, "\n"), "A_Q2")
}

func TestCompileRecordsRuns(t *testing.T) {
	db := filepath.Join(t.TempDir(), "incoq.db")

	out, err := execute(t, "compile", sumOfImage, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded run")
	assert.Contains(t, out, "deterministic: 0 earlier run(s)")

	out, err = execute(t, "--format", "json", "compile", sumOfImage, "--db", db)
	require.NoError(t, err)
	_, result := decodeResponse[CompilationResult](t, out)
	assert.NotEmpty(t, result.RunID)
	assert.Contains(t, result.Determinism, "deterministic: 1 earlier run(s)")
}

func TestCompileLoadErrors(t *testing.T) {
	badConfig := writeFile(t, "bad.cue", "options: {")

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing program", []string{"compile", "does-not-exist.yaml"}, ErrCodeNotFound},
		{"missing config", []string{"compile", sumOfImage, "--config", "does-not-exist.cue"}, ErrCodeNotFound},
		{"not a program", []string{"compile", writeFile(t, "list.yaml", "[1, 2]")}, ErrCodeParseFailed},
		{"bad config", []string{"compile", sumOfImage, "--config", badConfig}, ErrCodeConfigFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp, _ := decodeResponse[any](t, out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestCompileValidationErrors(t *testing.T) {
	path := writeFile(t, "invalid.yaml", invalidProgram)

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "compile", path)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "✗ Compilation failed")
		assert.Contains(t, out, `E100: relations[1]: relation "S" declared twice`)
		assert.Contains(t, out, `E110: counted[0]: counted relation "T" is not declared`)
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "--format", "json", "compile", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2 error(s)")

		resp, errs := decodeResponse[[]CLIError](t, out)
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, "E200", resp.Error.Code)
		require.Len(t, errs, 2)
		assert.Equal(t, "E100", errs[0].Code)
		assert.Equal(t, "E110", errs[1].Code)
	})
}

func TestCompileDialectError(t *testing.T) {
	path := writeFile(t, "dialect.yaml", dialectProgram)

	out, err := execute(t, "--format", "json", "compile", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp, _ := decodeResponse[any](t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E201", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "attribute access is not supported")
	assert.Equal(t, map[string]any{"phase": "preprocess"}, resp.Error.Details)
}

func TestDescribeQuery(t *testing.T) {
	tests := []struct {
		q    QuerySummary
		want string
	}{
		{QuerySummary{Name: "Q1", Impl: "normal", Params: []string{}}, "Q1: normal params=[]"},
		{QuerySummary{Name: "Q1", Impl: "inc", Params: []string{"a", "b"}, Result: "R_Q1"}, "Q1: inc params=[a, b] → R_Q1"},
		{
			QuerySummary{Name: "Q2", Impl: "inc", Params: []string{"a"}, DemandParams: []string{"a"}, UsesDemand: true, Result: "A_Q2"},
			"Q2: inc params=[a] demand=[a] → A_Q2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, describeQuery(tt.q))
		})
	}
}
