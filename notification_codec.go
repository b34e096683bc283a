package uasub

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// NotificationCodec encodes notification messages for storage in the
// retransmission queue and decodes them again on republish.
type NotificationCodec interface {
	// Encode serializes a notification message.
	Encode(msg *NotificationMessage) ([]byte, error)

	// Decode deserializes a notification message.
	Decode(data []byte) (*NotificationMessage, error)
}

// CBORNotificationCodec encodes notification messages as CBOR.
type CBORNotificationCodec struct {
	encMode cbor.EncMode
	decMode cbor.DecMode
}

// NewCBORNotificationCodec creates a CBOR notification codec.
func NewCBORNotificationCodec() *CBORNotificationCodec {
	encMode, _ := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	decMode, _ := cbor.DecOptions{}.DecMode()
	return &CBORNotificationCodec{
		encMode: encMode,
		decMode: decMode,
	}
}

// Encode serializes a notification message as CBOR.
func (c *CBORNotificationCodec) Encode(msg *NotificationMessage) ([]byte, error) {
	data, err := c.encMode.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification message: %w", err)
	}
	return data, nil
}

// Decode deserializes a CBOR notification message.
func (c *CBORNotificationCodec) Decode(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := c.decMode.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode notification message: %w", err)
	}
	return &msg, nil
}
