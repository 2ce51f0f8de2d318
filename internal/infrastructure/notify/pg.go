// Package notify fans committed inventory events out to every running instance
// through PostgreSQL LISTEN/NOTIFY.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"restopos/internal/core/events"
	"restopos/pkg/logger"
)

// Channel is the NOTIFY channel carrying event envelopes.
const Channel = "restopos_inventory"

// maxPayload stays under the 8000 byte NOTIFY limit.
const maxPayload = 7900

var _ events.Notifier = (*PGNotifier)(nil)

// PGNotifier publishes events with pg_notify. Failures are logged, never returned.
type PGNotifier struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPGNotifier(pool *pgxpool.Pool) *PGNotifier {
	return &PGNotifier{pool: pool, now: time.Now}
}

func (n *PGNotifier) Notify(ctx context.Context, event events.Event) {
	payload, err := events.Encode(event, n.now())
	if err != nil {
		logger.Warn(ctx, "encode notification", "type", event.Type, "error", err)
		return
	}
	if len(payload) > maxPayload {
		logger.Warn(ctx, "notification too large, dropped", "type", event.Type, "bytes", len(payload))
		return
	}
	if _, err := n.pool.Exec(ctx, "SELECT pg_notify($1, $2)", Channel, string(payload)); err != nil {
		logger.Warn(ctx, "pg_notify failed", "type", event.Type, "error", err)
	}
}

// Handler receives the raw envelope of each notification.
type Handler func(payload []byte)

// Listener holds a dedicated connection LISTENing on Channel and
// forwards every notification to the registered handlers.
type Listener struct {
	pool *pgxpool.Pool

	handlers   []Handler
	handlersMu sync.RWMutex

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

func NewListener(pool *pgxpool.Pool) *Listener {
	return &Listener{pool: pool}
}

// OnNotification registers a handler. Register before Start.
func (l *Listener) OnNotification(h Handler) {
	l.handlersMu.Lock()
	l.handlers = append(l.handlers, h)
	l.handlersMu.Unlock()
}

// Start begins listening in the background.
func (l *Listener) Start(ctx context.Context) {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.started {
		return
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.started = true

	l.wg.Add(1)
	go l.listenLoop()
	logger.Info(ctx, "inventory listener started", "channel", Channel)
}

// Stop cancels listening and waits for the loop to exit.
func (l *Listener) Stop() {
	l.lifecycleMu.Lock()
	if !l.started {
		l.lifecycleMu.Unlock()
		return
	}
	cancel := l.cancel
	l.started = false
	l.cancel = nil
	l.lifecycleMu.Unlock()

	cancel()
	l.wg.Wait()
	logger.Info(context.Background(), "inventory listener stopped")
}

func (l *Listener) listenLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.ctx.Done():
			return
		default:
		}

		conn, err := l.pool.Acquire(l.ctx)
		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			logger.Error(l.ctx, "failed to acquire connection for LISTEN", "error", err)
			l.sleep(time.Second)
			continue
		}

		if _, err := conn.Exec(l.ctx, "LISTEN "+Channel); err != nil {
			logger.Error(l.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			l.sleep(time.Second)
			continue
		}

		l.waitForNotifications(conn)
		// The session still has LISTEN active; drop it instead of returning it to the pool.
		_ = conn.Hijack().Close(context.Background())
	}
}

func (l *Listener) waitForNotifications(conn *pgxpool.Conn) {
	for {
		notification, err := conn.Conn().WaitForNotification(l.ctx)
		if err != nil {
			if l.ctx.Err() == nil {
				logger.Warn(l.ctx, "listen connection lost", "error", err)
			}
			return
		}
		l.dispatch([]byte(notification.Payload))
	}
}

func (l *Listener) dispatch(payload []byte) {
	l.handlersMu.RLock()
	defer l.handlersMu.RUnlock()
	for _, h := range l.handlers {
		func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error(l.ctx, "notification handler panic recovered", "panic", r)
				}
			}()
			h(payload)
		}(h)
	}
}

func (l *Listener) sleep(d time.Duration) {
	select {
	case <-l.ctx.Done():
	case <-time.After(d):
	}
}
