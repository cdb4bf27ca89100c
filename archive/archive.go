// Package archive copies committed chain events into PostgreSQL for
// off-chain analytics and audit.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	_ "github.com/lib/pq"
	"github.com/tolelom/triviachain/events"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const queueSize = 1024

// Archive is a PostgreSQL-backed event sink. Events are queued by the
// emitter callback and written by a background worker, so a slow database
// never stalls transaction execution.
type Archive struct {
	conn   *sql.DB
	queue  chan events.Event
	logger *zap.Logger
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Connect opens and pings the database at dsn.
func Connect(dsn string, logger *zap.Logger) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	a := &Archive{conn: conn, queue: make(chan events.Event, queueSize), logger: logger.Named("archive")}
	a.logger.Info("connected to PostgreSQL")
	return a, nil
}

// Migrate applies the embedded schema migrations in name order.
func (a *Archive) Migrate() error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations dir: %w", err)
	}
	for _, entry := range entries {
		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		if _, err := a.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", entry.Name(), err)
		}
		a.logger.Info("applied migration", zap.String("name", entry.Name()))
	}
	return nil
}

// Attach subscribes the archive to emitter and starts the writer. The
// writer stops when ctx is cancelled or Close is called.
func (a *Archive) Attach(ctx context.Context, emitter *events.Emitter) {
	emitter.SubscribeAll(a.enqueue)
	a.wg.Add(1)
	go a.run(ctx)
}

func (a *Archive) enqueue(ev events.Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- ev:
	default:
		a.logger.Warn("queue full, dropping event", zap.String("id", ev.ID), zap.String("type", string(ev.Type)))
	}
}

func (a *Archive) run(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.queue:
			if !ok {
				return
			}
			if err := a.Insert(ctx, ev); err != nil {
				a.logger.Error("insert event", zap.String("id", ev.ID), zap.Error(err))
			}
		}
	}
}

// Insert writes one event. Re-inserting an id is a no-op.
func (a *Archive) Insert(ctx context.Context, ev events.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	_, err = a.conn.ExecContext(ctx, `
		INSERT INTO chain_events (id, type, tx_id, height, chain_time, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, string(ev.Type), ev.TxID, int64(ev.Height), ev.Time, data)
	return err
}

// EventsByGame returns the archived events of gameID in chain order.
func (a *Archive) EventsByGame(ctx context.Context, gameID uint64) ([]events.Event, error) {
	rows, err := a.conn.QueryContext(ctx, `
		SELECT id, type, tx_id, height, chain_time, data
		FROM chain_events
		WHERE data->>'game_id' = $1
		ORDER BY height, created_at`, strconv.FormatUint(gameID, 10))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			ev     events.Event
			typ    string
			height int64
			data   []byte
		)
		if err := rows.Scan(&ev.ID, &typ, &ev.TxID, &height, &ev.Time, &data); err != nil {
			return nil, err
		}
		ev.Type = events.EventType(typ)
		ev.Height = uint64(height)
		if err := json.Unmarshal(data, &ev.Data); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", ev.ID, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close stops the writer after draining queued events and closes the
// database.
func (a *Archive) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	a.wg.Wait()
	return a.conn.Close()
}
