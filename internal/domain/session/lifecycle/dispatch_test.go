package lifecycle

import (
	"testing"

	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_HappyPath(t *testing.T) {
	s := model.NewSession("sess-1", "fp-1", "127.0.0.1", 20)
	require.Equal(t, model.SessionCreating, s.State)

	_, err := Dispatch(s, EvCreated)
	require.NoError(t, err)
	assert.Equal(t, model.SessionBootstrapping, s.State)

	_, err = Dispatch(s, EvSeedResolved)
	require.NoError(t, err)
	assert.Equal(t, model.SessionPlaying, s.State)

	_, err = Dispatch(s, EvTransitionStarted)
	require.NoError(t, err)
	assert.Equal(t, model.SessionTransitioning, s.State)

	_, err = Dispatch(s, EvTransitionDone)
	require.NoError(t, err)
	assert.Equal(t, model.SessionPlaying, s.State)
}

func TestDispatch_RejectsIllegalTransition(t *testing.T) {
	s := model.NewSession("sess-2", "fp-2", "127.0.0.1", 20)
	_, err := Dispatch(s, EvSeedResolved)
	require.Error(t, err)
	assert.Equal(t, model.SessionCreating, s.State)
}

func TestDispatch_ShutdownFromAnyLiveState(t *testing.T) {
	for _, start := range []model.SessionState{
		model.SessionCreating,
		model.SessionBootstrapping,
		model.SessionPlaying,
		model.SessionTransitioning,
	} {
		s := model.NewSession("sess", "fp", "127.0.0.1", 20)
		s.State = start
		_, err := Dispatch(s, EvShutdown)
		require.NoError(t, err)
		assert.Equal(t, model.SessionDestroyed, s.State)
	}
}
