package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageTypeValidate(t *testing.T) {
	assert.NoError(t, MessageTypeChat.Validate())
	assert.NoError(t, MessageTypeFile.Validate())
	assert.Error(t, MessageType("").Validate())
	assert.Error(t, MessageType("Chat").Validate())
}

func TestMessageEventValidate(t *testing.T) {
	for _, ev := range []MessageEvent{
		MessageEventNew, MessageEventEdit, MessageEventDelete,
		MessageEventStar, MessageEventDownload,
	} {
		assert.NoError(t, ev.Validate(), "event %q", ev)
	}
	assert.Error(t, MessageEvent("update").Validate())
}

func TestMessageValidate(t *testing.T) {
	t.Run("valid chat", func(t *testing.T) {
		assert.NoError(t, chatMessage("hi").Validate())
	})

	t.Run("negative sender", func(t *testing.T) {
		msg := chatMessage("hi")
		msg.SenderID = -4
		assert.Error(t, msg.Validate())
	})

	t.Run("reply thread below sentinel", func(t *testing.T) {
		msg := chatMessage("hi")
		msg.ReplyThreadID = -2
		assert.Error(t, msg.Validate())
	})

	t.Run("negative receiver", func(t *testing.T) {
		msg := chatMessage("hi")
		msg.ReceiverIDs = []int{1, -1}
		assert.Error(t, msg.Validate())
	})

	t.Run("chat with file data", func(t *testing.T) {
		msg := chatMessage("hi")
		msg.FileData = &FileData{Name: "x"}
		assert.Error(t, msg.Validate())
	})

	t.Run("multibyte text", func(t *testing.T) {
		assert.NoError(t, chatMessage("café ☕").Validate())
	})

	t.Run("file with empty name", func(t *testing.T) {
		msg := chatMessage("")
		msg.Type = MessageTypeFile
		msg.FileData = &FileData{}
		assert.Error(t, msg.Validate())
	})
}

func TestClone(t *testing.T) {
	msg := &Message{
		Data:          "a.pdf",
		Type:          MessageTypeFile,
		Event:         MessageEventNew,
		ReceiverIDs:   []int{1, 2},
		ReplyThreadID: NoReplyThread,
		FileData:      &FileData{Name: "a.pdf", Size: 10},
	}

	c := msg.Clone()
	assert.Equal(t, msg, c)

	c.ReceiverIDs[0] = 99
	c.FileData.Size = 11
	assert.Equal(t, 1, msg.ReceiverIDs[0])
	assert.Equal(t, int64(10), msg.FileData.Size)
}

func TestChannels(t *testing.T) {
	assert.Equal(t, "loft:room-1:content_inbound", InboundChannel("room-1"))
	assert.Equal(t, "loft:room-1:content_events", BroadcastChannel("room-1"))
	assert.Equal(t, "loft:room-1:participant:7:events", ParticipantChannel("room-1", 7))
}
