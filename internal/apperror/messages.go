package apperror

import "fmt"

func rateLimitMessage(limit int) string {
	return fmt.Sprintf("You can only send %d messages", limit)
}
