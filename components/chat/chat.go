// Package chat renders the chat page and the fragments the live session
// swaps into it.
package chat

import (
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/johndosdos/friendlychat/internal/feed"
	"github.com/johndosdos/friendlychat/internal/model"
	"github.com/johndosdos/friendlychat/internal/profile"
)

const (
	MessagesID    = "messages"
	MessageFormID = "message-form"
	DraftID       = "message"
	SubmitID      = "submit"
	CounterID     = "char-counter"
	ImageFormID   = "image-form"
	UserID        = "user-container"
	SnackbarID    = "snackbar"
	PushTokenID   = "push-token"
)

// NodeID is the element id of a rendered message.
func NodeID(messageID string) string {
	return "msg-" + messageID
}

func swapTarget(before string) string {
	if before == "" {
		return "beforeend:#" + MessagesID
	}
	return "beforebegin:#" + NodeID(before)
}

func counterClass(length, limit int) string {
	if length >= limit {
		return "char-counter full"
	}
	return "char-counter"
}

// safeSrc swaps URLs with a disallowed scheme, such as javascript:, for
// templ's failed-sanitization URL.
func safeSrc(u string) string {
	return string(templ.URL(u))
}

func messagePic(n feed.Node) string {
	pic := profile.Decorate(n.PicURL)
	if pic == "" {
		return ""
	}
	return safeSrc(pic)
}

func userPic(u *model.SessionUser) string {
	return safeSrc(profile.Decorate(profile.OrPlaceholder(u.PhotoURL)))
}

func imageSrc(u string) string {
	return safeSrc(cacheBust(u))
}

func cacheBust(u string) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + strconv.FormatInt(time.Now().UnixMilli(), 10)
}
