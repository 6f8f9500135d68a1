package channel

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	MethodSendMessage    = "sendMessage"
	MethodDeleteMessage  = "deleteMessage"
	MethodForwardMessage = "forwardMessage"
)

// DeliveryError is a structured failure reported by the messaging platform.
type DeliveryError struct {
	Method      string
	Code        int
	Description string
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code == 0 {
		return fmt.Sprintf("call to %s failed: %s", e.Method, e.Description)
	}

	return fmt.Sprintf("call to %s failed (%d: %s)", e.Method, e.Code, e.Description)
}

// Blocked reports whether the recipient has blocked the bot or can no longer be messaged.
func (e *DeliveryError) Blocked() bool {
	if e == nil || e.Code != http.StatusForbidden {
		return false
	}

	description := strings.ToLower(e.Description)
	return strings.Contains(description, "blocked by the user") ||
		strings.Contains(description, "user is deactivated")
}
