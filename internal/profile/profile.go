// Package profile formats profile pictures for display.
package profile

import "strings"

const (
	// Placeholder is shown when the signed-in user has no picture.
	Placeholder = "/static/images/profile_placeholder.png"

	googleHost = "googleusercontent.com"
	sizeSuffix = "?sz=150"
)

// Decorate asks Google-hosted pictures for a 150px rendition. URLs that
// already carry a query string, or come from any other host, are returned
// unchanged.
func Decorate(url string) string {
	if strings.Contains(url, googleHost) && !strings.Contains(url, "?") {
		return url + sizeSuffix
	}
	return url
}

// OrPlaceholder returns url, or Placeholder when url is empty.
func OrPlaceholder(url string) string {
	if url == "" {
		return Placeholder
	}
	return url
}
