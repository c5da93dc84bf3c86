package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/blackmichael/scrutiny-graph/internal/domain"
	"github.com/blackmichael/scrutiny-graph/internal/scrutiny"
)

const (
	cursorSaveInterval    = 5 * time.Second
	statsLogInterval      = 30 * time.Second
	defaultReconnectDelay = 5 * time.Second
)

// Sink receives posts and stores the per-relay cursor.
type Sink interface {
	IngestPost(ctx context.Context, incoming *domain.IncomingPost) (bool, error)
	GetCursor(ctx context.Context, service string) (int64, error)
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}

// Subscriber holds one subscription to a relay and feeds every SCRUTINY post
// it receives into a Sink.
type Subscriber struct {
	url            string
	sink           Sink
	logger         *slog.Logger
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
}

// NewSubscriber creates a new relay subscriber.
func NewSubscriber(relayURL string, sink Sink, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:            relayURL,
		sink:           sink,
		logger:         logger.With("relay", relayURL),
		dialer:         websocket.DefaultDialer,
		reconnectDelay: defaultReconnectDelay,
	}
}

// Start connects to the relay and processes events until the context is
// cancelled. It automatically reconnects on transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("relay connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.reconnectDelay):
					// backoff before reconnecting
				}
			}
		}
	}
}

// cursorService is the cursor key for this relay.
func (s *Subscriber) cursorService() string {
	return "relay:" + s.url
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	cursor, err := s.sink.GetCursor(ctx, s.cursorService())
	if err != nil {
		s.logger.Warn("failed to load cursor, requesting full history", "error", err)
	}

	s.logger.Info("connecting to relay", "since", cursor)
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	subID := uuid.NewString()
	req := []any{"REQ", subID, filter{
		Kinds:  []int{textNoteKind},
		Topics: scrutiny.TopicFilter(),
		Since:  cursor,
	}}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send subscription: %w", err)
	}
	s.logger.Info("subscribed to relay", "subscription", subID)

	latestCursor, savedCursor := cursor, cursor
	saveCursor := func() {
		if latestCursor <= savedCursor {
			return
		}
		if err := s.sink.UpdateCursor(ctx, s.cursorService(), latestCursor); err != nil {
			s.logger.Error("failed to save cursor", "error", err)
			return
		}
		savedCursor = latestCursor
	}

	lastCursorSave := time.Now()
	var eventsReceived, postsStored, duplicates int64
	lastStatsLog := time.Now()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		msg, err := parseMessage(message)
		if err != nil {
			s.logger.Error("failed to parse relay message", "error", err)
			continue
		}
		if msg.SubscriptionID != "" && msg.SubscriptionID != subID {
			continue
		}

		switch msg.Type {
		case msgEvent:
			if msg.Event.Kind != textNoteKind {
				continue
			}
			eventsReceived++
			inserted, err := s.handleEvent(ctx, msg.Event)
			if err != nil {
				s.logger.Error("failed to handle event", "id", msg.Event.ID, "error", err)
				continue
			}
			if inserted {
				postsStored++
			} else {
				duplicates++
			}
			// created_at is author-chosen; never let it move the cursor past now.
			latestCursor = max(latestCursor, min(msg.Event.CreatedAt, time.Now().Unix()))

		case msgEOSE:
			s.logger.Info("caught up with stored events",
				"events_received", eventsReceived,
				"posts_stored", postsStored,
			)
			saveCursor()
			lastCursorSave = time.Now()

		case msgNotice:
			s.logger.Warn("relay notice", "message", msg.Message)

		case msgClosed:
			saveCursor()
			return fmt.Errorf("subscription closed by relay: %s", msg.Message)
		}

		if time.Since(lastStatsLog) >= statsLogInterval {
			s.logger.Info("relay stats",
				"events_received", eventsReceived,
				"posts_stored", postsStored,
				"duplicates", duplicates,
			)
			lastStatsLog = time.Now()
		}

		if time.Since(lastCursorSave) >= cursorSaveInterval {
			saveCursor()
			lastCursorSave = time.Now()
		}
	}
}

func (s *Subscriber) handleEvent(ctx context.Context, event *relayEvent) (bool, error) {
	incoming := &domain.IncomingPost{
		Post:  event.rawPost(),
		Relay: s.url,
	}
	inserted, err := s.sink.IngestPost(ctx, incoming)
	if err != nil {
		return false, err
	}

	if inserted {
		s.logger.Debug("stored post",
			"id", event.ID,
			"kind", scrutiny.Classify(event.Tags),
			"text_preview", scrutiny.Truncate(event.Content, 100),
		)
	}
	return inserted, nil
}
