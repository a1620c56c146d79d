package posw

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typedcode/internal/chain"
	"typedcode/internal/proof"
)

// testParams keeps test work tiny: 1000 iterations represent one
// second.
func testParams() Params {
	return Params{
		IterationsPerSecond: 1000,
		MinIterations:       10,
		MaxIterations:       100_000,
	}
}

func intp(v int) *int { return &v }

func makeSealedLog(t *testing.T, n int, stepMs int64) proof.EventLog {
	t.Helper()
	log := make(proof.EventLog, 0, n)
	for i := 0; i < n; i++ {
		log = append(log, proof.Event{
			Type:        proof.EventChange,
			Timestamp:   int64(i) * stepMs,
			Data:        proof.EventData{Text: "x"},
			RangeOffset: intp(i),
			RangeLength: intp(0),
		})
	}
	chain.Seal(log)
	return log
}

func TestComputeVerify_RoundTrip(t *testing.T) {
	var input [32]byte
	copy(input[:], "posw round trip input material..")

	output := Compute(input, 500)
	assert.True(t, Verify(input, 500, output))
	assert.False(t, Verify(input, 499, output))

	output[0] ^= 0x01
	assert.False(t, Verify(input, 500, output))
}

func TestChainInput_Distinct(t *testing.T) {
	var a, b [32]byte
	b[0] = 1

	assert.NotEqual(t, ChainInput(a, a, 0), ChainInput(a, a, 1))
	assert.NotEqual(t, ChainInput(a, a, 0), ChainInput(b, a, 0))
	assert.NotEqual(t, ChainInput(a, a, 0), ChainInput(a, b, 0))
}

func TestCheckLog_ValidClaims(t *testing.T) {
	log := makeSealedLog(t, 5, 100)
	require.NoError(t, Attach(log, testParams()))

	stats, violations := CheckLog(log, testParams())
	assert.Empty(t, violations)
	assert.Equal(t, 5, stats.Count)
	assert.NotZero(t, stats.Iterations)
	assert.InDelta(t, 80.0, stats.AvgTimeMs, 0.001) // (0+100*4)/5
}

func TestCheckLog_NoClaimsIsClean(t *testing.T) {
	log := makeSealedLog(t, 5, 100)

	stats, violations := CheckLog(log, testParams())
	assert.Empty(t, violations)
	assert.Zero(t, stats.Count)
}

func TestCheckLog_DetectsUnderworkedClaim(t *testing.T) {
	log := makeSealedLog(t, 3, 1000) // 1s between events => needs >= 500 iterations
	require.NoError(t, Attach(log, testParams()))

	// Re-mine event 2's claim with far too little work: the output
	// recomputes, but the iterations cannot cover the claimed second.
	eventHash, err := log[2].HashBytes()
	require.NoError(t, err)
	prevHash, err := log[1].HashBytes()
	require.NoError(t, err)

	input := ChainInput(eventHash, prevHash, 2)
	cheap := Compute(input, 20)
	log[2].PoSW = &proof.PoSWClaim{
		Iterations: 20,
		Output:     hex.EncodeToString(cheap[:]),
		TimeMs:     1000,
	}

	_, violations := CheckLog(log, testParams())
	require.Len(t, violations, 1)

	var te *proof.TimingIntegrityError
	require.ErrorAs(t, violations[0], &te)
	assert.Equal(t, 2, te.Index)
	assert.Equal(t, uint64(20), te.Iterations)
	assert.Equal(t, int64(1000), te.ElapsedMs)
}

func TestCheckLog_DetectsForgedOutput(t *testing.T) {
	log := makeSealedLog(t, 3, 100)
	require.NoError(t, Attach(log, testParams()))

	log[1].PoSW.Output = log[2].PoSW.Output

	_, violations := CheckLog(log, testParams())
	require.NotEmpty(t, violations)
	assert.Contains(t, violations[0].Error(), "does not recompute")
}

func TestCheckLog_RejectsOversizedClaim(t *testing.T) {
	log := makeSealedLog(t, 2, 100)
	require.NoError(t, Attach(log, testParams()))

	log[1].PoSW.Iterations = testParams().MaxIterations + 1

	_, violations := CheckLog(log, testParams())
	require.NotEmpty(t, violations)

	var te *proof.TimingIntegrityError
	assert.ErrorAs(t, violations[0], &te)
}

func TestCalibrate(t *testing.T) {
	if testing.Short() {
		t.Skip("calibration measures wall time")
	}

	params, err := Calibrate(150 * time.Millisecond)
	require.NoError(t, err)
	assert.NotZero(t, params.IterationsPerSecond)
	assert.Less(t, params.MinIterations, params.MaxIterations)
}

func TestCalibrate_RejectsTooShort(t *testing.T) {
	_, err := Calibrate(time.Millisecond)
	assert.Error(t, err)
}
