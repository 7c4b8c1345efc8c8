package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// Body is a test body. It returns a value for the registry to resolve:
// usually an effect.Effect, but any value is accepted. A resolved error
// value fails the test.
type Body func(t *testing.T) any

type testCase struct {
	name string
	body Body
}

// Suite collects named tests and runs them as subtests, resolving each
// body's return value through a Registry.
type Suite struct {
	registry *Registry
	tests    []testCase
}

// NewSuite creates an empty suite bound to registry.
func NewSuite(registry *Registry) *Suite {
	return &Suite{registry: registry}
}

// Test registers a test.
func (s *Suite) Test(name string, body Body) {
	s.tests = append(s.tests, testCase{name: name, body: body})
}

// Group registers every test build adds under "name/". The group is built
// on its own list and appended to the suite once build returns.
func (s *Suite) Group(name string, build func(g *Group)) {
	s.tests = append(s.tests, buildGroup(name, build)...)
}

// Names returns the registered test names in order.
func (s *Suite) Names() []string {
	names := make([]string, len(s.tests))
	for i, tc := range s.tests {
		names[i] = tc.name
	}
	return names
}

// Run runs each test as a subtest of t. Every outcome is awaited for at
// most the registry's configured timeout.
func (s *Suite) Run(t *testing.T) {
	t.Helper()
	timeout := s.registry.Config().timeout()

	for _, tc := range s.tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			value, err := s.registry.Resolve(ctx, tc.body(t)).Wait(ctx)
			require.NoError(t, err, "test %q failed", tc.name)
			if failure, ok := value.(error); ok {
				require.NoError(t, failure, "test %q returned an error", tc.name)
			}
		})
	}
}

// Group is the registration scope handed to Suite.Group.
type Group struct {
	tests []testCase
}

// Test registers a test in the group.
func (g *Group) Test(name string, body Body) {
	g.tests = append(g.tests, testCase{name: name, body: body})
}

// Group registers a nested group.
func (g *Group) Group(name string, build func(g *Group)) {
	g.tests = append(g.tests, buildGroup(name, build)...)
}

func buildGroup(name string, build func(g *Group)) []testCase {
	g := &Group{}
	build(g)

	renamed := make([]testCase, len(g.tests))
	for i, tc := range g.tests {
		renamed[i] = testCase{name: name + "/" + tc.name, body: tc.body}
	}
	return renamed
}
