package session

import (
	"github.com/johndosdos/friendlychat/internal/apperror"
	"github.com/johndosdos/friendlychat/internal/feed"
	"github.com/johndosdos/friendlychat/internal/model"
)

// UpdateKind names the part of the page an Update changes.
type UpdateKind int

const (
	UpdateFeed UpdateKind = iota
	UpdateIdentity
	UpdateSendButton
	UpdateCharCounter
	UpdateNotice
	UpdateClearDraft
	UpdatePushToken
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateFeed:
		return "feed"
	case UpdateIdentity:
		return "identity"
	case UpdateSendButton:
		return "send_button"
	case UpdateCharCounter:
		return "char_counter"
	case UpdateNotice:
		return "notice"
	case UpdateClearDraft:
		return "clear_draft"
	case UpdatePushToken:
		return "push_token"
	default:
		return "unknown"
	}
}

// Update is one change the page must apply. Only the fields relevant to
// Kind are set.
type Update struct {
	Kind    UpdateKind
	Feed    feed.Patch
	User    *model.SessionUser // UpdateIdentity; nil hides the identity UI
	CanSend bool               // UpdateSendButton
	Length  int                // UpdateCharCounter
	Notice  *apperror.Notice   // UpdateNotice
}
