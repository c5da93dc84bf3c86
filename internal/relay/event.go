package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/blackmichael/scrutiny-graph/internal/scrutiny"
)

// Relay-to-client frame types.
const (
	msgEvent  = "EVENT"
	msgEOSE   = "EOSE"
	msgNotice = "NOTICE"
	msgClosed = "CLOSED"
)

// textNoteKind is the event kind of the posts we subscribe to.
const textNoteKind = 1

// relayMessage is a parsed relay frame.
type relayMessage struct {
	Type           string
	SubscriptionID string
	Event          *relayEvent
	Message        string
}

// relayEvent is the raw JSON structure of a relay event.
type relayEvent struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

func (e *relayEvent) rawPost() scrutiny.RawPost {
	return scrutiny.RawPost{
		ID:        e.ID,
		Author:    e.PubKey,
		CreatedAt: e.CreatedAt,
		Content:   e.Content,
		Tags:      e.Tags,
	}
}

// filter is the subscription filter sent with REQ.
type filter struct {
	Kinds  []int    `json:"kinds"`
	Topics []string `json:"#t"`
	Since  int64    `json:"since,omitempty"`
}

var errShortFrame = errors.New("short frame")

func parseMessage(data []byte) (*relayMessage, error) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	if len(frame) == 0 {
		return nil, errShortFrame
	}

	msg := &relayMessage{}
	if err := json.Unmarshal(frame[0], &msg.Type); err != nil {
		return nil, fmt.Errorf("unmarshal frame type: %w", err)
	}

	switch msg.Type {
	case msgEvent:
		if len(frame) < 3 {
			return nil, fmt.Errorf("%s: %w", msg.Type, errShortFrame)
		}
		if err := json.Unmarshal(frame[1], &msg.SubscriptionID); err != nil {
			return nil, fmt.Errorf("unmarshal subscription id: %w", err)
		}
		var event relayEvent
		if err := json.Unmarshal(frame[2], &event); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		msg.Event = &event

	case msgEOSE, msgClosed:
		if len(frame) < 2 {
			return nil, fmt.Errorf("%s: %w", msg.Type, errShortFrame)
		}
		if err := json.Unmarshal(frame[1], &msg.SubscriptionID); err != nil {
			return nil, fmt.Errorf("unmarshal subscription id: %w", err)
		}
		if len(frame) > 2 {
			_ = json.Unmarshal(frame[2], &msg.Message)
		}

	case msgNotice:
		if len(frame) > 1 {
			_ = json.Unmarshal(frame[1], &msg.Message)
		}
	}

	return msg, nil
}
