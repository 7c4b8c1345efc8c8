package harness

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashWithDomain_Separation(t *testing.T) {
	// Moving bytes across the domain/data boundary must change the hash.
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))

	sum := sha256.Sum256([]byte("d\x00data"))
	assert.Equal(t, hex.EncodeToString(sum[:]), hashWithDomain("d", []byte("data")))
}

func TestTraceDigest_StableAcrossRuns(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/heartbeat_cancel.yaml")
	require.NoError(t, err)

	first, err := TraceDigest(runScenario(t, s))
	require.NoError(t, err)
	assert.Len(t, first, 64)

	for i := 0; i < 10; i++ {
		again, err := TraceDigest(runScenario(t, s))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTraceDigest_MatchesSnapshot(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/reminder.yaml")
	require.NoError(t, err)
	result := runScenario(t, s)

	snapshot, err := MarshalSnapshot(result)
	require.NoError(t, err)
	digest, err := TraceDigest(result)
	require.NoError(t, err)

	assert.Equal(t, hashWithDomain(DomainTrace, snapshot), digest)
}

func TestTraceDigest_ChangesWithTrace(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/reminder.yaml")
	require.NoError(t, err)
	base := runScenario(t, s)

	s.Timers[0].After = Duration(36 * time.Hour)
	moved := runScenario(t, s)

	a, err := TraceDigest(base)
	require.NoError(t, err)
	b, err := TraceDigest(moved)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
