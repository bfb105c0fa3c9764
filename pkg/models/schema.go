package models

import (
	"errors"
	"fmt"
)

var ErrNilTransportMessage = errors.New("transport message is nil")

// MissingFieldError names a transport field a queue adapter left empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("transport message field %q is required", e.Field)
}

// ValidateTransportMessage checks the fields every queue adapter must fill.
// Body is not checked; an empty body fails decoding instead.
func ValidateTransportMessage(msg *TransportMessage) error {
	if msg == nil {
		return ErrNilTransportMessage
	}

	switch {
	case msg.ID == "":
		return &MissingFieldError{Field: "id"}
	case msg.ReceiptToken == "":
		return &MissingFieldError{Field: "receipt_token"}
	case msg.DeliveryCount < 0:
		return fmt.Errorf("transport message %s has negative delivery count %d", msg.ID, msg.DeliveryCount)
	}
	return nil
}
