package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
)

// Notifier publishes urgent-escalation events over Postgres LISTEN/NOTIFY so
// the nurse dashboard can react between polls.  It satisfies engine.Alerter.
type Notifier struct {
	ConnStr string
	Channel string
	store   *Store
}

// NewNotifier constructs a notifier on the given channel.  The connection
// string is needed separately because pq.Listener manages its own
// connection.
func NewNotifier(store *Store, connStr, channel string) *Notifier {
	return &Notifier{ConnStr: connStr, Channel: channel, store: store}
}

// UrgentAlert notifies listeners that the session escalated.
func (n *Notifier) UrgentAlert(ctx context.Context, sessionID string) error {
	_, err := n.store.DB.ExecContext(ctx,
		fmt.Sprintf("NOTIFY %s, %s", pq.QuoteIdentifier(n.Channel), pq.QuoteLiteral(sessionID)))
	return err
}

// Listen yields escalated session IDs until the context is cancelled.
func (n *Notifier) Listen(ctx context.Context) (<-chan string, error) {
	listener := pq.NewListener(n.ConnStr, time.Second, time.Minute, func(_ pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("notifier: %v", err)
		}
	})
	if err := listener.Listen(n.Channel); err != nil {
		listener.Close()
		return nil, err
	}
	ch := make(chan string)
	go func() {
		defer func() {
			listener.Close()
			close(ch)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case notice := <-listener.Notify:
				if notice == nil {
					continue
				}
				select {
				case ch <- notice.Extra:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
