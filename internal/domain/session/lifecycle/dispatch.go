package lifecycle

import (
	"fmt"

	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/metrics"
)

// Dispatch applies ev to the session's current state, returning the new
// state. It is the single place session state mutates; engine code must
// never assign Session.State directly.
func Dispatch(s *model.Session, ev EventKind) (model.SessionState, error) {
	tr, ok := TransitionFor(s.State, ev)
	if !ok {
		return s.State, fmt.Errorf("lifecycle: no transition for state=%s event=%s", s.State, ev)
	}
	metrics.RecordSessionTransition(string(tr.From), string(tr.To))
	s.State = tr.To
	return tr.To, nil
}
