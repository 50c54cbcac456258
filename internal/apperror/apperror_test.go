package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotices(t *testing.T) {
	tests := []struct {
		name    string
		notice  *Notice
		wantErr error
		wantMsg string
	}{
		{"not_signed_in", NotSignedIn(), ErrNotSignedIn, "You must sign-in first"},
		{"rate_limited", RateLimited(10), ErrRateLimited, "You can only send 10 messages"},
		{"not_image", NotImage(), ErrNotImage, "You can only share images"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.notice, tt.wantErr)
			assert.Equal(t, tt.wantMsg, tt.notice.Error())
			assert.Positive(t, tt.notice.Timeout)
		})
	}
}

func TestAsNotice(t *testing.T) {
	wrapped := fmt.Errorf("submission: %w", NotSignedIn())

	n, ok := AsNotice(wrapped)
	require.True(t, ok)
	assert.Equal(t, "You must sign-in first", n.Message)

	_, ok = AsNotice(errors.New("boom"))
	assert.False(t, ok)
}
