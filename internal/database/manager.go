package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	// ARCHITECTURAL DISCOVERY: Import SQLite driver but only reference in connection string
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	dbconfig "freshershub/pkg/database"
	"freshershub/pkg/interfaces"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

// tokenKey is the kv entry holding the cached bearer token
const tokenKey = "auth_token"

// Manager is the sqlite store behind the client token cache and the
// server's room chat history
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	log          logger.Logger
	writeChannel chan writeOperation // TECHNICAL: Single-writer pattern for SQLite
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies embedded migrations and starts
// the writer goroutine
func NewManager(config *dbconfig.Config, log logger.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}

	db, err := sql.Open("sqlite3", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	migrations := dbconfig.NewMigrationManager(db, dbconfig.Migrations())
	if err := migrations.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrations.ValidateSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		log:          log,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	// ARCHITECTURAL DISCOVERY: Single-writer goroutine prevents SQLite write contention
	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			// FUNCTIONAL DISCOVERY: one retry after RetryDelay
			err := op.operation(m.db)
			if err != nil {
				m.log.Warn("database write failed, retrying", zap.Duration("delay", m.config.RetryDelay), zap.Error(err))
				time.Sleep(m.config.RetryDelay)
				err = op.operation(m.db)
				if err != nil {
					m.log.Error("database write failed after retry", zap.Error(err))
				}
			}
			op.result <- err

		case <-m.shutdown:
			m.log.Debug("database write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion
func (m *Manager) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-time.After(30 * time.Second):
		return ErrWriteTimeout
	case <-m.shutdown:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-m.shutdown:
		return ErrShuttingDown
	}
}

// Get returns the value stored under key, or interfaces.ErrNotFound
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := m.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", interfaces.ErrNotFound
		}
		return "", fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value
func (m *Manager) Set(ctx context.Context, key, value string) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, value, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to write key %s: %w", key, err)
		}
		return nil
	})
}

// Delete removes key; missing keys are not an error
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", key, err)
		}
		return nil
	})
}

// Token implements interfaces.CredentialStore
func (m *Manager) Token(ctx context.Context) (string, error) {
	return m.Get(ctx, tokenKey)
}

func (m *Manager) SetToken(ctx context.Context, token string) error {
	return m.Set(ctx, tokenKey, token)
}

func (m *Manager) ClearToken(ctx context.Context) error {
	return m.Delete(ctx, tokenKey)
}

// StoreMessage persists a routed chat message
func (m *Manager) StoreMessage(ctx context.Context, msg *types.ChatMessage) error {
	senderID, senderName := "", ""
	if msg.Sender != nil {
		senderID, senderName = msg.Sender.ID, msg.Sender.Name
	}
	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO chat_messages (id, room_id, sender_id, sender_name, message, message_type, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, msg.ID, msg.RoomID, senderID, senderName, msg.Message, msg.MessageType, msg.Timestamp.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return nil
	})
}

// RoomHistory returns the latest limit messages of a room, oldest first
func (m *Manager) RoomHistory(ctx context.Context, roomID string, limit int) ([]types.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, room_id, sender_id, sender_name, message, message_type, timestamp
		FROM (
			SELECT rowid AS seq, * FROM chat_messages WHERE room_id = ?
			ORDER BY timestamp DESC, seq DESC LIMIT ?
		)
		ORDER BY timestamp ASC, seq ASC
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query room history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []types.ChatMessage
	for rows.Next() {
		var msg types.ChatMessage
		var sender types.Identity
		if err := rows.Scan(&msg.ID, &msg.RoomID, &sender.ID, &sender.Name, &msg.Message, &msg.MessageType, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if sender.ID != "" {
			msg.Sender = &sender
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return messages, nil
}

// HealthCheck validates database connectivity
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var n int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close shuts down the database manager
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
