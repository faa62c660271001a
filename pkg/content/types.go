// Package content defines the shared content messages (chat and file
// metadata) exchanged between participants of a loft session, together with
// the codec that turns them into wire payloads and back.
package content

import (
	"fmt"
	"unicode/utf8"
)

// NoReplyThread marks a message that does not belong to a reply thread.
const NoReplyThread = -1

// Message is a single piece of shared content travelling between participants.
// A message is decoded once, delivered once and then discarded: nothing in
// loft keeps message history.
type Message struct {
	Data          string       `json:"data"`            // Chat text, or the file name for file messages
	Type          MessageType  `json:"type"`            // Chat or File
	Event         MessageEvent `json:"event"`           // What happened to the content
	MessageID     int          `json:"message_id"`      // Sender-assigned identifier, 0 when unassigned
	SenderID      int          `json:"sender_id"`       // Participant that produced the message
	ReceiverIDs   []int        `json:"receiver_ids"`    // Empty means every participant
	Starred       bool         `json:"starred"`         // Whether the message is starred
	ReplyThreadID int          `json:"reply_thread_id"` // NoReplyThread when not a reply
	FileData      *FileData    `json:"file_data,omitempty"`
	SentAtMs      int64        `json:"sent_at_ms"` // Unix milliseconds at the sender
}

// FileData is the metadata describing a shared file. File bytes are moved
// by a separate transfer path and never travel inside a Message.
type FileData struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// MessageType identifies which kind of content a message carries.
type MessageType string

const (
	// MessageTypeChat is a text chat message
	MessageTypeChat MessageType = "chat"

	// MessageTypeFile announces a shared file; FileData must be present
	MessageTypeFile MessageType = "file"
)

// MessageEvent identifies the operation a message performs on shared content.
type MessageEvent string

const (
	MessageEventNew      MessageEvent = "new"
	MessageEventEdit     MessageEvent = "edit"
	MessageEventDelete   MessageEvent = "delete"
	MessageEventStar     MessageEvent = "star"
	MessageEventDownload MessageEvent = "download"
)

// Validate checks if the MessageType is a valid enum value.
func (mt MessageType) Validate() error {
	switch mt {
	case MessageTypeChat, MessageTypeFile:
		return nil
	default:
		return fmt.Errorf("unknown message type: %q", mt)
	}
}

// Validate checks if the MessageEvent is a valid enum value.
func (me MessageEvent) Validate() error {
	switch me {
	case MessageEventNew, MessageEventEdit, MessageEventDelete,
		MessageEventStar, MessageEventDownload:
		return nil
	default:
		return fmt.Errorf("unknown message event: %q", me)
	}
}

// Validate checks if the Message has valid field values.
func (m *Message) Validate() error {
	if err := m.Type.Validate(); err != nil {
		return fmt.Errorf("invalid type: %w", err)
	}

	if err := m.Event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	if m.SenderID < 0 {
		return fmt.Errorf("invalid sender ID: must be >= 0, got %d", m.SenderID)
	}

	if m.ReplyThreadID < NoReplyThread {
		return fmt.Errorf("invalid reply thread ID: must be >= %d, got %d", NoReplyThread, m.ReplyThreadID)
	}

	// Invalid UTF-8 would be rewritten to U+FFFD on the wire
	if !utf8.ValidString(m.Data) {
		return fmt.Errorf("data is not valid UTF-8")
	}

	for i, id := range m.ReceiverIDs {
		if id < 0 {
			return fmt.Errorf("invalid receiver ID at index %d: %d", i, id)
		}
	}

	switch m.Type {
	case MessageTypeFile:
		if m.FileData == nil {
			return fmt.Errorf("file message requires file data")
		}
		if m.FileData.Name == "" {
			return fmt.Errorf("file data name cannot be empty")
		}
		if !utf8.ValidString(m.FileData.Name) {
			return fmt.Errorf("file data name is not valid UTF-8")
		}
		if m.FileData.Size < 0 {
			return fmt.Errorf("invalid file size: %d", m.FileData.Size)
		}
	case MessageTypeChat:
		if m.FileData != nil {
			return fmt.Errorf("chat message cannot carry file data")
		}
	}

	return nil
}

// IsBroadcast reports whether the message is addressed to every participant.
func (m *Message) IsBroadcast() bool {
	return len(m.ReceiverIDs) == 0
}

// Clone returns a deep copy so each subscriber can own its message.
func (m *Message) Clone() *Message {
	c := *m
	c.ReceiverIDs = append([]int{}, m.ReceiverIDs...)
	if m.FileData != nil {
		fd := *m.FileData
		c.FileData = &fd
	}
	return &c
}
