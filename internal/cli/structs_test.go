package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructsText(t *testing.T) {
	out, err := execute(t, "structs", sumOfImage, "Q1", "--config", noDemandConfig)
	require.NoError(t, err)
	assert.Equal(t,
		"Tag(0, Q1_T_a, a, for (a, b) in S)\n"+
			"    {(a,) for (a, b) in S}\n"+
			"Tag(0, Q1_T_b, b, for (a, b) in S)\n"+
			"    {(b,) for (a, b) in S}\n"+
			"filtered: {(b,) for (a, b) in S}\n",
		out)
}

func TestStructsJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "structs", sumOfImage, "Q1", "--config", noDemandConfig)
	require.NoError(t, err)

	resp, result := decodeResponse[StructsResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Q1", result.Query)
	require.Len(t, result.Structures, 2)
	assert.Equal(t, StructureInfo{
		Kind:   "tag",
		Index:  0,
		Name:   "Q1_T_a",
		Var:    "a",
		Clause: "for (a, b) in S",

		Definition: "{(a,) for (a, b) in S}",
	}, result.Structures[0])
	assert.Equal(t, "{(b,) for (a, b) in S}", result.Filtered)
}

func TestStructsAggregateQuery(t *testing.T) {
	out, err := execute(t, "structs", sumOfImage, "Q2")
	require.NoError(t, err)
	assert.Equal(t, "Q2 has no structures: it is not an incrementalized comprehension\n", out)
}

func TestStructsUnknownQuery(t *testing.T) {
	out, err := execute(t, "--format", "json", "structs", sumOfImage, "Q9")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp, _ := decodeResponse[any](t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnknownQuery, resp.Error.Code)
	assert.Equal(t, []any{"Q1", "Q2"}, resp.Error.Details)
}
