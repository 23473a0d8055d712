package dataset

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/config"
)

// Source loads sales records from somewhere other than a CSV file.
type Source interface {
	Load(table string) (*Dataset, error)
	ListTables() ([]string, error)
	Close() error
}

// PostgresSource implements Source for PostgreSQL.
type PostgresSource struct {
	db *sql.DB
}

// ConnectPostgres opens and pings a Postgres connection from config. A
// non-empty DSN wins over the individual fields.
func ConnectPostgres(cfg config.PostgresConfig) (*PostgresSource, error) {
	connStr := cfg.DSN
	if connStr == "" {
		connStr = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresSource{db: db}, nil
}

func (p *PostgresSource) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// ListTables returns the public tables, for source validation.
func (p *PostgresSource) ListTables() ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name;
	`
	rows, err := p.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Load reads an entire table into a snapshot. The table name is validated
// against ListTables before being interpolated.
func (p *PostgresSource) Load(table string) (*Dataset, error) {
	tables, err := p.ListTables()
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	known := false
	for _, t := range tables {
		if t == table {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("table %q not found", table)
	}

	rows, err := p.db.Query(fmt.Sprintf("SELECT * FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var raw [][]string
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		strRow := make([]string, len(columns))
		for i, val := range values {
			strRow[i] = stringify(val)
		}
		raw = append(raw, strRow)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	records, skipped, err := ParseRows(columns, raw)
	if err != nil {
		return nil, err
	}

	ds := New(records)
	ds.meta.SkippedRows = skipped
	return ds, nil
}

// stringify funnels driver values through the same parsing path as CSV
// cells.
func stringify(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
