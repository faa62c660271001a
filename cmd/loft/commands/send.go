package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/loft/internal/printer"
	"github.com/dyluth/loft/internal/transport"
	"github.com/dyluth/loft/pkg/content"
	"github.com/spf13/cobra"
)

var (
	sendSender    int
	sendTo        string
	sendReplyTo   int
	sendMessageID int
	sendEvent     string
	sendStarred   bool
	sendFileName  string
	sendFileSize  int64
)

var sendCmd = &cobra.Command{
	Use:   "send [TEXT]",
	Short: "Submit a chat or file message to a running instance",
	Long: `Submit a content message to a running loft instance through Redis.

The server decodes the message, delivers it to its local subscribers and
relays it to every connected participant, exactly as if a participant had
sent it over its WebSocket.

With --file-name the message announces a shared file and TEXT is ignored;
otherwise TEXT is the chat text.

Examples:
  # Chat to everyone as participant 3
  loft send --sender 3 "standup in five"

  # Reply privately to participants 1 and 4
  loft send --sender 3 --to 1,4 --reply-to 12 "on it"

  # Announce a file
  loft send --sender 3 --file-name design.pdf --file-size 482133`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().IntVar(&sendSender, "sender", 0, "Sending participant ID")
	sendCmd.Flags().StringVar(&sendTo, "to", "", "Comma-separated receiver IDs (empty sends to everyone)")
	sendCmd.Flags().IntVar(&sendReplyTo, "reply-to", content.NoReplyThread, "Reply thread ID")
	sendCmd.Flags().IntVar(&sendMessageID, "message-id", 0, "Message ID")
	sendCmd.Flags().StringVar(&sendEvent, "event", string(content.MessageEventNew), "Event: new, edit, delete, star or download")
	sendCmd.Flags().BoolVar(&sendStarred, "star", false, "Mark the message as starred")
	sendCmd.Flags().StringVar(&sendFileName, "file-name", "", "Announce a shared file with this name")
	sendCmd.Flags().Int64Var(&sendFileSize, "file-size", 0, "Size of the shared file in bytes")
	rootCmd.AddCommand(sendCmd)
}

// parseReceivers parses a comma-separated list of participant IDs.
func parseReceivers(list string) ([]int, error) {
	ids := []int{}
	if strings.TrimSpace(list) == "" {
		return ids, nil
	}
	for _, field := range strings.Split(list, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("invalid receiver ID %q", field)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// buildMessage assembles the message described by the send flags.
func buildMessage(args []string, now time.Time) (*content.Message, error) {
	receivers, err := parseReceivers(sendTo)
	if err != nil {
		return nil, err
	}

	msg := &content.Message{
		Type:          content.MessageTypeChat,
		Event:         content.MessageEvent(sendEvent),
		MessageID:     sendMessageID,
		SenderID:      sendSender,
		ReceiverIDs:   receivers,
		Starred:       sendStarred,
		ReplyThreadID: sendReplyTo,
		SentAtMs:      now.UnixMilli(),
	}

	if sendFileName != "" {
		msg.Type = content.MessageTypeFile
		msg.Data = sendFileName
		msg.FileData = &content.FileData{Name: sendFileName, Size: sendFileSize}
	} else {
		if len(args) == 0 {
			return nil, fmt.Errorf("chat messages need TEXT")
		}
		msg.Data = args[0]
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	msg, err := buildMessage(args, time.Now())
	if err != nil {
		return printer.Error(
			"invalid message",
			err.Error(),
			[]string{"See usage:\n  loft send --help"},
		)
	}

	payload, err := content.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	redisOpts, err := clientRedisOptions(cfg)
	if err != nil {
		return err
	}

	comm, err := transport.NewCommunicator(redisOpts, cfg.Instance)
	if err != nil {
		return err
	}
	defer comm.Close()

	if err := comm.Submit(ctx, payload); err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not submit to instance '%s': %v", cfg.Instance, err),
			map[string]string{"Redis": redisOpts.Addr},
			[]string{"Check that the loft server's Redis is reachable"},
		)
	}

	printer.Success("Submitted %s message #%d to instance '%s'\n", msg.Type, msg.MessageID, cfg.Instance)
	return nil
}
