package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecorate(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"google_no_query", "https://lh3.googleusercontent.com/x", "https://lh3.googleusercontent.com/x?sz=150"},
		{"google_with_query", "https://lh3.googleusercontent.com/x?sz=64", "https://lh3.googleusercontent.com/x?sz=64"},
		{"other_host", "https://example.com/me.png", "https://example.com/me.png"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decorate(tt.url))
		})
	}
}

func TestOrPlaceholder(t *testing.T) {
	assert.Equal(t, Placeholder, OrPlaceholder(""))
	assert.Equal(t, "https://example.com/me.png", OrPlaceholder("https://example.com/me.png"))
}
