package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var receiptColumns = []string{"receipt_id", "date", "vendor", "total", "items", "source_path", "processed_timestamp"}

// pgConn is the subset of pgxpool.Pool used by PostgresDB
type pgConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresDB implements the Table interface on a Postgres table.
// Items are stored as a jsonb array.
type PostgresDB struct {
	conn  pgConn
	table string
}

// NewPostgresDB connects to Postgres and creates the table if it is missing
func NewPostgresDB(ctx context.Context, dsn, table string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := newPostgresDBWithConn(pool, table)
	if _, err := pool.Exec(ctx, db.schema()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	slog.Info("Postgres table ready", "table", table)
	return db, nil
}

func newPostgresDBWithConn(conn pgConn, table string) *PostgresDB {
	return &PostgresDB{
		conn:  conn,
		table: pgx.Identifier{table}.Sanitize(),
	}
}

func (p *PostgresDB) schema() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	receipt_id text PRIMARY KEY,
	date text NOT NULL,
	vendor text NOT NULL,
	total text NOT NULL,
	items jsonb NOT NULL DEFAULT '[]'::jsonb,
	source_path text NOT NULL,
	processed_timestamp text NOT NULL
)`, p.table)
}

func (p *PostgresDB) insertQuery(receipt *Receipt) (string, []any, error) {
	items, err := json.Marshal(receipt.Items)
	if err != nil {
		return "", nil, fmt.Errorf("marshaling items: %w", err)
	}

	return squirrel.Insert(p.table).
		Columns(receiptColumns...).
		Values(receipt.ID, receipt.Date, receipt.Vendor, receipt.Total, string(items), receipt.SourcePath, receipt.ProcessedTimestamp).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

func (p *PostgresDB) scanQuery() (string, []any, error) {
	return squirrel.Select(receiptColumns...).
		From(p.table).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

// Put inserts a receipt row
func (p *PostgresDB) Put(ctx context.Context, receipt *Receipt) error {
	sql, args, err := p.insertQuery(receipt)
	if err != nil {
		return err
	}
	if _, err := p.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("inserting receipt: %w", err)
	}
	return nil
}

// Scan returns every row of the table
func (p *PostgresDB) Scan(ctx context.Context) ([]*Receipt, error) {
	sql, args, err := p.scanQuery()
	if err != nil {
		return nil, err
	}

	rows, err := p.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]*Receipt, 0)
	for rows.Next() {
		var (
			r     Receipt
			items []byte
		)
		if err := rows.Scan(&r.ID, &r.Date, &r.Vendor, &r.Total, &items, &r.SourcePath, &r.ProcessedTimestamp); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal(items, &r.Items); err != nil {
			return nil, fmt.Errorf("unmarshaling items for %s: %w", r.ID, err)
		}
		receipts = append(receipts, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	return receipts, nil
}

// Close closes the connection pool
func (p *PostgresDB) Close() error {
	p.conn.Close()
	return nil
}
