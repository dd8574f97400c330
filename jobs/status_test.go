package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/jobtrail/errors"
)

func TestParseStatus(t *testing.T) {
	for _, in := range []string{"applied", "APPLIED", " Applied "} {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, StatusApplied, got)
	}

	_, err := ParseStatus("ghosted")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Contains(t, errors.FlattenHints(err), "Withdrawn")
}

func TestTransitions(t *testing.T) {
	legal := map[[2]Status]bool{
		{StatusSaved, StatusApplied}:          true,
		{StatusSaved, StatusWithdrawn}:        true,
		{StatusApplied, StatusInterviewing}:   true,
		{StatusApplied, StatusWithdrawn}:      true,
		{StatusInterviewing, StatusOffer}:     true,
		{StatusInterviewing, StatusRejected}:  true,
		{StatusInterviewing, StatusWithdrawn}: true,
		{StatusOffer, StatusHired}:            true,
		{StatusOffer, StatusRejected}:         true,
		{StatusOffer, StatusWithdrawn}:        true,
	}

	checked := 0
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := legal[[2]Status{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)

			err := checkTransition("7b1d0e22", from, to)
			if want {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.True(t, errors.Is(err, errors.ErrInvalidTransition), "%s -> %s: %v", from, to, err)
			}
			checked++
		}
	}
	assert.Equal(t, len(AllStatuses)*len(AllStatuses), checked)
	assert.Len(t, AllStatuses, 7)

	for _, s := range []Status{StatusSaved, StatusApplied, StatusInterviewing, StatusOffer} {
		assert.True(t, s.IsActive())
	}
	assert.False(t, CanTransition(Status("Ghosted"), StatusApplied))
	assert.False(t, CanTransition(StatusSaved, Status("Ghosted")))
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range AllStatuses {
		terminal := s == StatusHired || s == StatusRejected || s == StatusWithdrawn
		assert.Equal(t, terminal, s.IsTerminal(), s)
		assert.Equal(t, terminal, len(AllowedTargets(s)) == 0, s)
	}
	assert.False(t, Status("Ghosted").Valid())
	assert.False(t, Status("Ghosted").IsTerminal())
}

func TestAllowedTargetsIsACopy(t *testing.T) {
	targets := AllowedTargets(StatusSaved)
	targets[0] = StatusHired
	assert.Equal(t, StatusApplied, AllowedTargets(StatusSaved)[0])
}
