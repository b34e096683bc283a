package uasub

import (
	"time"
)

// DataValue is a sampled value with its quality and timestamps.
// OPC UA spec: Part 4, Section 7.7
type DataValue struct {
	Value           any        `cbor:"1,keyasint,omitempty"`
	Status          StatusCode `cbor:"2,keyasint,omitempty"`
	SourceTimestamp time.Time  `cbor:"3,keyasint,omitempty"`
	ServerTimestamp time.Time  `cbor:"4,keyasint,omitempty"`
}

// QueuedValue is a value waiting in a monitored item queue together with
// the client handle it will be reported under.
type QueuedValue struct {
	ClientHandle uint32
	Value        DataValue
}

// MonitoredItemNotification reports one value change for one client handle.
// OPC UA spec: Part 4, Section 7.20.2
type MonitoredItemNotification struct {
	ClientHandle uint32    `cbor:"1,keyasint"`
	Value        DataValue `cbor:"2,keyasint"`
}

// DataChangeNotification carries the value changes of one publish cycle.
// OPC UA spec: Part 4, Section 7.20.2
type DataChangeNotification struct {
	MonitoredItems []MonitoredItemNotification `cbor:"1,keyasint"`
}

// NotificationMessage is a single batched delivery with a sequence number,
// a publish time and zero or one data change notification.
// OPC UA spec: Part 4, Section 7.21
type NotificationMessage struct {
	SequenceNumber   uint32                    `cbor:"1,keyasint"`
	PublishTime      time.Time                 `cbor:"2,keyasint"`
	NotificationData []*DataChangeNotification `cbor:"3,keyasint,omitempty"`
}

// NotificationCount returns the number of monitored item notifications
// embedded in the message.
func (m *NotificationMessage) NotificationCount() int {
	count := 0
	for _, dcn := range m.NotificationData {
		count += len(dcn.MonitoredItems)
	}
	return count
}

// ResponseHeader is the common header of every service response.
type ResponseHeader struct {
	Timestamp     time.Time
	ServiceResult StatusCode
}

// DiagnosticInfo carries vendor diagnostic data for a service result.
// It is left zeroed on the publish path.
type DiagnosticInfo struct {
	AdditionalInfo string
}

// PublishResponse is the body sent back for a queued publish request.
// OPC UA spec: Part 4, Section 5.13.5
type PublishResponse struct {
	ResponseHeader           ResponseHeader
	SubscriptionID           uint32
	AvailableSequenceNumbers []uint32
	MoreNotifications        bool
	NotificationMessage      NotificationMessage
	Results                  []StatusCode
	DiagnosticInfos          []DiagnosticInfo
}

// PublishResponseEntry pairs a pre-allocated response shell with the
// request id of the publish request it answers. The session layer queues
// one entry per received publish request; the publish tick consumes them
// one at a time.
type PublishResponseEntry struct {
	RequestID uint32
	Response  *PublishResponse
}

// SubscriptionAcknowledgement acknowledges one notification message of
// one subscription so its retransmission entry can be released.
// OPC UA spec: Part 4, Section 5.13.5
type SubscriptionAcknowledgement struct {
	SubscriptionID uint32
	SequenceNumber uint32
}

// MessageType identifies the secure channel message type of a payload.
type MessageType byte

const (
	// MessageTypeMsg is a regular symmetric service message.
	MessageTypeMsg MessageType = 0
	// MessageTypeClose is a channel close message.
	MessageTypeClose MessageType = 1
)

// String returns the wire name of the message type.
func (t MessageType) String() string {
	switch t {
	case MessageTypeMsg:
		return "MSG"
	case MessageTypeClose:
		return "CLO"
	default:
		return "UNKNOWN"
	}
}
