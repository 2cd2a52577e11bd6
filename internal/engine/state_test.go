package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []PairState
		ok   bool
	}{
		{name: "happy path", path: []PairState{PairEligible, PairComputed, PairCommitted}, ok: true},
		{name: "skip before compute", path: []PairState{PairSkipped}, ok: true},
		{name: "compute failure", path: []PairState{PairEligible, PairFailed}, ok: true},
		{name: "persist failure", path: []PairState{PairEligible, PairComputed, PairFailed}, ok: true},
		{name: "commit without compute", path: []PairState{PairEligible, PairCommitted}, ok: false},
		{name: "compute without eligibility", path: []PairState{PairComputed}, ok: false},
		{name: "skip after eligibility", path: []PairState{PairEligible, PairSkipped}, ok: false},
		{name: "resurrect committed pair", path: []PairState{PairEligible, PairComputed, PairCommitted, PairEligible}, ok: false},
		{name: "resurrect failed pair", path: []PairState{PairEligible, PairFailed, PairEligible}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPair("scene", "glacier")
			var err error
			for _, next := range tt.path {
				if err = p.To(next); err != nil {
					break
				}
			}
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestPairTerminalStates(t *testing.T) {
	assert.False(t, PairUnprocessed.Terminal())
	assert.False(t, PairEligible.Terminal())
	assert.False(t, PairComputed.Terminal())
	assert.True(t, PairSkipped.Terminal())
	assert.True(t, PairCommitted.Terminal())
	assert.True(t, PairFailed.Terminal())
}

func TestPairStartsUnprocessed(t *testing.T) {
	p := NewPair("scene", "glacier")
	require.Equal(t, PairUnprocessed, p.State())
	require.NoError(t, p.To(PairEligible))
	assert.Equal(t, PairEligible, p.State())
}
