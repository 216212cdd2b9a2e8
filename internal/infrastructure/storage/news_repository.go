package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"DigestHarvester/internal/domain"
	"DigestHarvester/internal/logging"
	"DigestHarvester/internal/ports"
)

const (
	newsTable        = "tbl_news"
	newsStatusActive = 1
	newsContentType  = "Post"
	newsInitialViews = 11
	pingTimeout      = 5 * time.Second
)

// ErrSessionClosed is returned by Store after Close.
var ErrSessionClosed = errors.New("record session is closed")

// PostgresRepository persists digests as news rows.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.RecordStore = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = logging.Discard()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// OpenPostgres opens a lib/pq pool for dsn; no connection is made yet.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// Open acquires the single connection a run will use.
func (r *PostgresRepository) Open(ctx context.Context) (ports.RecordSession, error) {
	if r.db == nil {
		return nil, fmt.Errorf("postgres repository misconfigured")
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &Session{db: r.db, conn: conn, logger: r.logger}, nil
}

// Session is a connection handle owned by one run. It checks the
// connection before every insert and swaps it for a fresh one when broken.
type Session struct {
	db     *sql.DB
	conn   *sql.Conn
	closed bool
	logger *slog.Logger
}

var _ ports.RecordSession = (*Session)(nil)

// Store inserts the news row and returns its id. The insert itself is not retried.
func (s *Session) Store(ctx context.Context, record domain.NewsRecord) (int64, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return 0, err
	}

	query, args, err := insertNewsQuery(record)
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert news: %w", err)
	}
	return id, nil
}

// Close returns the connection to the pool. Safe to call more than once.
func (s *Session) Close() error {
	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}

func (s *Session) ensureConnected(ctx context.Context) error {
	if s.closed || s.db == nil {
		return ErrSessionClosed
	}

	if s.conn != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := s.conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		s.logger.Warn("database connection lost, reconnecting", "error", err)
		_ = s.conn.Close()
		s.conn = nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("reconnect: %w", err)
	}
	s.conn = conn
	return nil
}

func insertNewsQuery(record domain.NewsRecord) (string, []any, error) {
	return sq.Insert(newsTable).
		Columns(
			"cat_id", "news_title", "news_date", "news_description", "news_image",
			"news_status", "video_url", "video_id", "content_type", "size",
			"view_count", "last_update",
		).
		Values(
			record.CategoryID, record.Title, record.PublishedAt, record.Body, record.ImageRef,
			newsStatusActive, "", "", newsContentType, "",
			newsInitialViews, record.PublishedAt,
		).
		Suffix("RETURNING news_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
}
