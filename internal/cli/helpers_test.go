package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const tickScenario = `name: tick
budget: 2s
timers:
  - label: tick
    after: 1s
assertions:
  - type: trace_contains
    label: tick
`

const doubleTickScenario = `name: double_tick
budget: 2s
timers:
  - label: tick
    after: 1s
assertions:
  - type: trace_count
    label: tick
    count: 2
`

const unnamedScenario = `timers:
  - label: tick
    after: 1s
assertions:
  - type: trace_contains
    label: tick
`

// tickGolden is the canonical snapshot of tickScenario.
const tickGolden = `{"final_clock_ms":2000,"scenario_name":"tick","trace":[` +
	`{"at_ms":0,"due_ms":1000,"label":"tick","seq":1,"type":"scheduled"},` +
	`{"at_ms":1000,"due_ms":1000,"label":"tick","seq":2,"type":"fired"}]}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout and
// stderr.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
