package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql
)

//go:embed migrations
var migrationsFS embed.FS

// Postgres persists turns in a single append-only table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool, applies pending migrations, and
// returns a ready store. dsn is a pgx-compatible connection string.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Postgres{db: db}, nil
}

// runMigrations applies pending migrations from the embedded filesystem.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Close only the source driver. m.Close() would also close the shared
	// *sql.DB handed to postgres.WithInstance.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}
	return nil
}

func (p *Postgres) SaveTurn(ctx context.Context, conversationID, userMsg, agentMsg, activeAgentAfter string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO turns (conversation_id, user_message, agent_message, active_agent_after)
		 VALUES ($1, $2, $3, $4)`,
		conversationID, userMsg, agentMsg, activeAgentAfter)
	if err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}
	return nil
}

func (p *Postgres) LastActiveAgent(ctx context.Context, conversationID string) (string, bool, error) {
	var name string
	err := p.db.QueryRowContext(ctx,
		`SELECT active_agent_after FROM turns
		 WHERE conversation_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		conversationID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query last active agent: %w", err)
	}
	return name, name != "", nil
}

func (p *Postgres) History(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	query := `SELECT id, conversation_id, user_message, agent_message, active_agent_after, created_at
		 FROM (
			SELECT * FROM turns WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC LIMIT $2
		 ) recent
		 ORDER BY created_at ASC, id ASC`
	var lim any = limit
	if limit <= 0 {
		lim = nil // LIMIT NULL means no limit
	}

	rows, err := p.db.QueryContext(ctx, query, conversationID, lim)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.UserMessage, &t.AgentMessage, &t.ActiveAgentAfter, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}
	return turns, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
