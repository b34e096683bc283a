package uasub

import (
	"sync"
)

// SecureChannel is the transport seam the engine sends responses through.
// Encoding and symmetric encryption live behind this interface; the
// engine treats the send as fire-and-forget and ignores the returned
// status for its own state transitions.
type SecureChannel interface {
	// SendSymmetricMessage sends a service response over the channel,
	// correlated to the request it answers.
	SendSymmetricMessage(requestID uint32, messageType MessageType, response *PublishResponse) StatusCode
}

// SentMessage is one response captured by a RecordingChannel.
type SentMessage struct {
	RequestID   uint32
	MessageType MessageType
	Response    *PublishResponse
}

// RecordingChannel is a SecureChannel that captures every sent response.
// It backs tests and local diagnostics.
type RecordingChannel struct {
	mu     sync.Mutex
	sent   []SentMessage
	result StatusCode
}

// NewRecordingChannel creates a recording channel whose sends report
// Good until SetSendResult changes the result.
func NewRecordingChannel() *RecordingChannel {
	return &RecordingChannel{result: Good}
}

// SetSendResult sets the status returned by subsequent sends.
func (c *RecordingChannel) SetSendResult(result StatusCode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.result = result
}

// SendSymmetricMessage records the response. The response shell is copied
// so later reuse of the shell does not alter the record.
func (c *RecordingChannel) SendSymmetricMessage(requestID uint32, messageType MessageType, response *PublishResponse) StatusCode {
	c.mu.Lock()
	defer c.mu.Unlock()

	captured := *response
	c.sent = append(c.sent, SentMessage{
		RequestID:   requestID,
		MessageType: messageType,
		Response:    &captured,
	})
	return c.result
}

// Sent returns the captured responses in send order.
func (c *RecordingChannel) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	sent := make([]SentMessage, len(c.sent))
	copy(sent, c.sent)
	return sent
}

// Len returns the number of captured responses.
func (c *RecordingChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.sent)
}
