package channel

import (
	"errors"
	"fmt"
	"testing"
)

func TestDeliveryErrorBlocked(t *testing.T) {
	tests := []struct {
		name string
		err  *DeliveryError
		want bool
	}{
		{name: "blocked", err: &DeliveryError{Method: MethodSendMessage, Code: 403, Description: "Forbidden: bot was blocked by the user"}, want: true},
		{name: "deactivated", err: &DeliveryError{Method: MethodSendMessage, Code: 403, Description: "Forbidden: user is deactivated"}, want: true},
		{name: "kicked from group", err: &DeliveryError{Method: MethodSendMessage, Code: 403, Description: "Forbidden: bot was kicked from the group chat"}, want: false},
		{name: "bad request", err: &DeliveryError{Method: MethodSendMessage, Code: 400, Description: "Bad Request: message is too long"}, want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Blocked(); got != tt.want {
				t.Fatalf("Blocked() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeliveryErrorMessage(t *testing.T) {
	err := &DeliveryError{Method: MethodDeleteMessage, Code: 400, Description: "Bad Request: message to delete not found"}
	if got := err.Error(); got != "call to deleteMessage failed (400: Bad Request: message to delete not found)" {
		t.Fatalf("Error() = %q", got)
	}

	noCode := &DeliveryError{Method: MethodSendMessage, Description: "connection reset"}
	if got := noCode.Error(); got != "call to sendMessage failed: connection reset" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestDeliveryErrorUnwrapsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("send reply: %w", &DeliveryError{Method: MethodSendMessage, Code: 403, Description: "Forbidden: bot was blocked by the user"})

	var deliveryErr *DeliveryError
	if !errors.As(wrapped, &deliveryErr) {
		t.Fatal("expected errors.As to find DeliveryError")
	}
	if !deliveryErr.Blocked() {
		t.Fatal("expected blocked delivery error")
	}
}
