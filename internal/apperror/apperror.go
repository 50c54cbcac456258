// Package apperror classifies failures that are shown to the user as a
// notice instead of being reported to diagnostics.
package apperror

import "errors"

var (
	ErrNotSignedIn = errors.New("not signed in")
	ErrRateLimited = errors.New("message limit reached")
	ErrNotImage    = errors.New("not an image")
)

// Notice is a precondition or input failure with the text the page shows.
type Notice struct {
	Err     error
	Message string
	Timeout int // milliseconds the snackbar stays visible
}

func (n *Notice) Error() string {
	return n.Message
}

func (n *Notice) Unwrap() error {
	return n.Err
}

func NotSignedIn() *Notice {
	return &Notice{Err: ErrNotSignedIn, Message: "You must sign-in first", Timeout: 2000}
}

func RateLimited(limit int) *Notice {
	return &Notice{Err: ErrRateLimited, Message: rateLimitMessage(limit), Timeout: 2500}
}

func NotImage() *Notice {
	return &Notice{Err: ErrNotImage, Message: "You can only share images", Timeout: 2000}
}

// AsNotice unwraps err into a *Notice if it is one.
func AsNotice(err error) (*Notice, bool) {
	var n *Notice
	if errors.As(err, &n) {
		return n, true
	}
	return nil, false
}
