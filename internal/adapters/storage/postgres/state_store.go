// Package postgres provides a StateStorage backed by the client_state table.
// Writes notify other client contexts through LISTEN/NOTIFY.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/AI-Team-Dev/jobportal/internal/errors"
	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

// DefaultNamespace scopes rows and names the notification channel.
const DefaultNamespace = "jobportal"

var nonIdent = regexp.MustCompile(`[^a-z0-9_]+`)

type change struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

// Options configures StateStore.
type Options struct {
	DB        *sql.DB
	Namespace string
	Logger    *slog.Logger
}

// StateStore is safe for concurrent use.
type StateStore struct {
	db        *sql.DB
	namespace string
	channel   string
	origin    string
	logger    *slog.Logger
}

// NewStateStore constructs a StateStore. The schema must already exist; see
// migrate.Run.
func NewStateStore(opts Options) (*StateStore, error) {
	if opts.DB == nil {
		return nil, errors.New("database is required")
	}
	ns := strings.TrimSpace(opts.Namespace)
	if ns == "" {
		ns = DefaultNamespace
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StateStore{
		db:        opts.DB,
		namespace: ns,
		channel:   ChannelName(ns),
		origin:    uuid.NewString(),
		logger:    logger.With("component", "postgres_storage", "namespace", ns),
	}, nil
}

// ChannelName derives the NOTIFY channel from a namespace.
func ChannelName(namespace string) string {
	ident := nonIdent.ReplaceAllString(strings.ToLower(namespace), "_")
	return strings.Trim(ident, "_") + "_state_changes"
}

// Get implements ports.StateStorage.
func (s *StateStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM client_state WHERE namespace = $1 AND key = $2`,
		s.namespace, key,
	).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, apperrors.MapStorageError(err)
	}
	return v, true, nil
}

// Set upserts the row and notifies in the same transaction so listeners only
// hear about committed values.
func (s *StateStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return apperrors.Validation("key cannot be empty")
	}
	err := withSQLTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO client_state (namespace, key, value, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (namespace, key) DO UPDATE
			SET value = EXCLUDED.value, updated_at = now()`,
			s.namespace, key, value,
		); err != nil {
			return err
		}
		return s.notify(ctx, tx, key)
	})
	return apperrors.MapStorageError(err)
}

// Delete implements ports.StateStorage.
func (s *StateStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := withSQLTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, k := range keys {
			res, err := tx.ExecContext(ctx,
				`DELETE FROM client_state WHERE namespace = $1 AND key = $2`, s.namespace, k)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				continue
			}
			if err := s.notify(ctx, tx, k); err != nil {
				return err
			}
		}
		return nil
	})
	return apperrors.MapStorageError(err)
}

func (s *StateStore) notify(ctx context.Context, tx *sql.Tx, key string) error {
	payload, err := json.Marshal(change{Origin: s.origin, Key: key})
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, s.channel, string(payload))
	return err
}

// Watch LISTENs on a dedicated connection until stop is called or ctx ends.
func (s *StateStore) Watch(ctx context.Context, onChange func(key string)) (func(), error) {
	watchCtx, cancel := context.WithCancel(ctx)
	ready := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		listening := false
		err := withPgxConn(watchCtx, s.db, func(conn *pgx.Conn) error {
			if _, err := conn.Exec(watchCtx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
				return err
			}
			listening = true
			ready <- nil
			return s.listen(watchCtx, conn, onChange)
		})
		if !listening {
			ready <- err
			return
		}
		if err != nil && watchCtx.Err() == nil {
			s.logger.WarnContext(ctx, "state listener stopped", "error", err)
		}
	}()

	if err := <-ready; err != nil {
		cancel()
		wg.Wait()
		return nil, apperrors.MapStorageError(err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}, nil
}

func (s *StateStore) listen(ctx context.Context, conn *pgx.Conn, onChange func(string)) error {
	defer func() {
		// The connection goes back to the pool; drop the subscription first.
		_, _ = conn.Exec(context.WithoutCancel(ctx), "UNLISTEN *")
	}()
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var c change
		if err := json.Unmarshal([]byte(n.Payload), &c); err != nil {
			onChange("")
			continue
		}
		if c.Origin == s.origin {
			continue
		}
		onChange(c.Key)
	}
}

var _ ports.StateStorage = (*StateStore)(nil)
