package session

import (
	"context"

	"github.com/johndosdos/friendlychat/internal/model"
	"github.com/johndosdos/friendlychat/internal/profile"
)

// State is the sign-in state of a session.
type State int

const (
	SignedOut State = iota
	SignedIn
)

func (s *Session) State() State {
	if s.user == nil {
		return SignedOut
	}
	return SignedIn
}

// observe applies an auth-state notification. A nil user signs the page
// out. Repeating a notification re-renders the same values.
func (s *Session) observe(ctx context.Context, user *model.SessionUser) {
	if user == nil {
		s.user = nil
		s.counter.Reset()
		s.emit(ctx, Update{Kind: UpdateIdentity})
		s.emitSendButton(ctx)
		return
	}

	shown := *user
	shown.PhotoURL = profile.Decorate(profile.OrPlaceholder(user.PhotoURL))

	s.user = user
	s.emit(ctx, Update{Kind: UpdateIdentity, User: &shown})
	s.emit(ctx, Update{Kind: UpdatePushToken})
	s.refreshCount(ctx)
}
