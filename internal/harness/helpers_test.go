package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/testutil"
)

const (
	scenariosDir = "../../testdata/scenarios"
	sumOfImage   = "../../testdata/programs/sum_of_image.yaml"
	noDemand     = "../../testdata/configs/no_demand.cue"
)

var sumOfImageOutput = []string{"2", "0", "7", "3", "0"}

const contractSource = `
relations: [S]
decls:
  - kind: fun
    name: main
    body:
      - {kind: setupdate, target: S, op: remove, value: 1}
`

// fillAndClear adds 1, 2 and 3 to S, removes 2, prints S, clears it and
// prints its size.
func fillAndClear() *incast.Program {
	return testutil.Program([]string{"S"}, testutil.Main(
		testutil.Each("x", testutil.Nums(1, 2, 3), testutil.Add("S", incast.NewName("x"))),
		testutil.Remove("S", incast.NewNum(2)),
		testutil.Print(incast.NewName("S")),
		testutil.Clear("S"),
		testutil.Print(incast.NewCall("len", incast.NewName("S"))),
	))
}

var fillAndClearOutput = []string{"{1, 3}", "0"}

const fillAndClearGolden = `# relations: S

def main():
    for x in [1, 2, 3]:
        S.reladd(x)
    _v1 = 2
    S.relremove(_v1)
    print(S)
    S.relclear()
    print(len(S))
`

func fillScenario(output ...string) *Scenario {
	return &Scenario{
		Name:        "fill",
		Description: "fill and clear S",
		Prog:        fillAndClear(),
		Expect:      Expect{Output: output},
	}
}

// writeScenario writes content to name in dir and returns the path.
func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
