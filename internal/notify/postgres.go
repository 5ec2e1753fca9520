package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"truthscan/internal/database"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Publisher announces scan events locally and, on PostgreSQL, to every
// other process listening on Channel.
type Publisher struct {
	db     *gorm.DB
	hub    *Hub
	logger zerolog.Logger
}

// NewPublisher creates a Publisher. db may be nil for local-only delivery.
func NewPublisher(db *gorm.DB, hub *Hub, logger zerolog.Logger) *Publisher {
	return &Publisher{db: db, hub: hub, logger: logger}
}

// Publish delivers ev. Remote delivery failures are logged, not returned.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	p.hub.Publish(ev)

	if p.db == nil || !database.IsPostgres(p.db) {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := p.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", Channel, string(payload)).Error; err != nil {
		p.logger.Warn().Err(err).Str("scan_id", ev.ScanID).Msg("pg_notify failed")
	}
}

// Bridge forwards PostgreSQL notifications on Channel into a Hub.
type Bridge struct {
	dsn    string
	hub    *Hub
	logger zerolog.Logger
}

// NewBridge creates a Bridge for the database at dsn.
func NewBridge(dsn string, hub *Hub, logger zerolog.Logger) *Bridge {
	return &Bridge{dsn: dsn, hub: hub, logger: logger}
}

// Run listens until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	listener := pq.NewListener(b.dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			b.logger.Warn().Err(err).Msg("notification listener event")
		}
	})
	defer listener.Close()

	if err := listener.Listen(Channel); err != nil {
		return fmt.Errorf("listen %s: %w", Channel, err)
	}
	b.logger.Info().Str("channel", Channel).Msg("✅ Listening for scan notifications")

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; events sent while disconnected are lost
			// and waiters fall back to polling.
			if n == nil {
				continue
			}
			b.forward(n.Extra)
		case <-ping.C:
			if err := listener.Ping(); err != nil {
				b.logger.Warn().Err(err).Msg("notification listener ping failed")
			}
		}
	}
}

func (b *Bridge) forward(payload string) {
	ev, err := ParseEvent(payload)
	if err != nil {
		b.logger.Warn().Err(err).Msg("ignoring malformed scan notification")
		return
	}
	b.hub.Publish(ev)
}

// ParseEvent decodes a notification payload.
func ParseEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("decode scan event: %w", err)
	}
	if ev.ScanID == "" {
		return Event{}, fmt.Errorf("decode scan event: missing scan_id")
	}
	return ev, nil
}
