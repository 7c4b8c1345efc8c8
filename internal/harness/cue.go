package harness

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// scenarioSchema constrains CUE scenario files. Definitions are closed, so
// misspelled fields are rejected the same way KnownFields rejects them in
// YAML.
const scenarioSchema = `
#Duration: =~"^(0|([0-9]+d)?([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))*)$"

#Timer: {
	label:         string & !=""
	after:         #Duration
	cancel_after?: #Duration
	then?: [...#Timer]
}

#Assertion: {
	type:    "trace_contains" | "trace_order" | "trace_count" | "final_clock"
	label?:  string
	labels?: [...string]
	count?:  int & >=0
	at?:     #Duration
}

#Scenario: {
	name:         string & !=""
	description?: string
	budget?:      #Duration
	timers: [...#Timer]
	advance?: [...#Duration]
	assertions: [...#Assertion]
}
`

// ParseCUEScenario evaluates a CUE scenario document, unifies it with the
// scenario schema and decodes the result. filename is used in error
// positions only.
func ParseCUEScenario(filename string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(scenarioSchema, cue.Filename("scenario_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile scenario schema: %w", err)
	}

	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %s", cueDetails(err))
	}

	value := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(doc)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid scenario: %s", cueDetails(err))
	}

	var scenario Scenario
	if err := value.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode CUE scenario: %w", err)
	}

	if err := ValidateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// cueDetails flattens a CUE error list into one message with positions.
func cueDetails(err error) string {
	return cueerrors.Details(err, nil)
}
