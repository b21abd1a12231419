package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"

	"github.com/jackc/pgx/v5"
	_ "modernc.org/sqlite"

	"vehicle-registration-visualizer/pkg/aggregate"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// selectRecordsQuery casts every column to text so both drivers scan into
// plain strings, NULLs included.
func selectRecordsQuery(table string) (string, error) {
	if !tableNamePattern.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return fmt.Sprintf(`SELECT
	COALESCE(CAST(zip_code AS TEXT), ''),
	COALESCE(CAST(make AS TEXT), ''),
	COALESCE(CAST(model_year AS TEXT), ''),
	COALESCE(CAST(fuel AS TEXT), ''),
	COALESCE(CAST(duty AS TEXT), ''),
	COALESCE(CAST("date" AS TEXT), ''),
	COALESCE(CAST(lat AS TEXT), ''),
	COALESCE(CAST(lon AS TEXT), ''),
	COALESCE(CAST(vehicles AS TEXT), '')
FROM %s`, table), nil
}

// SqliteRecordSource reads records from a SQLite table, opening the
// database for each fetch.
type SqliteRecordSource struct {
	path  string
	table string
}

func NewSqliteRecordSource(path, table string) *SqliteRecordSource {
	return &SqliteRecordSource{path: path, table: table}
}

func (s *SqliteRecordSource) Fetch(ctx context.Context) ([]aggregate.Record, error) {
	query, err := selectRecordsQuery(s.table)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.path); err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sqlite: %w", err)
	}
	defer rows.Close()

	var records []aggregate.Record
	for rows.Next() {
		var r aggregate.Record
		if err := rows.Scan(&r.ZipCode, &r.Make, &r.ModelYear, &r.Fuel, &r.Duty, &r.Date, &r.Lat, &r.Lon, &r.Vehicles); err != nil {
			return nil, fmt.Errorf("scan sqlite: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sqlite: %w", err)
	}
	return records, nil
}

// PostgresRecordSource reads records from a PostgreSQL table over one
// short-lived connection per fetch.
type PostgresRecordSource struct {
	dsn   string
	table string
}

func NewPostgresRecordSource(dsn, table string) *PostgresRecordSource {
	return &PostgresRecordSource{dsn: dsn, table: table}
}

func (s *PostgresRecordSource) Fetch(ctx context.Context) ([]aggregate.Record, error) {
	query, err := selectRecordsQuery(s.table)
	if err != nil {
		return nil, err
	}
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close(context.Background())

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query postgres: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (aggregate.Record, error) {
		var r aggregate.Record
		err := row.Scan(&r.ZipCode, &r.Make, &r.ModelYear, &r.Fuel, &r.Duty, &r.Date, &r.Lat, &r.Lon, &r.Vehicles)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan postgres: %w", err)
	}
	return records, nil
}
