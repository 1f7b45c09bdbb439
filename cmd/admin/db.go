package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type queryOpts struct {
	Limit     int
	Machine   uint32
	SinceTick uint64
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	factoryID := fs.String("factory", "", "factory id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	machine := fs.Uint("machine", 0, "machine id filter (ops, audits, warnings)")
	sinceTick := fs.Uint64("since_tick", 0, "only rows at or after this tick")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*factoryID) == "" {
			fmt.Fprintln(os.Stderr, "missing -factory or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "factories", *factoryID, "index", "factory.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(os.Stdout, db, q, queryOpts{Limit: *limit, Machine: uint32(*machine), SinceTick: *sinceTick}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-factory ID|-db PATH] [-machine N] [-since_tick T] snapshots|ticks|ops|audits|warnings|catalogs")
		os.Exit(2)
	}
}

// runQuery writes one JSON object per row.
func runQuery(w io.Writer, db *sql.DB, q string, o queryOpts) error {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	since, machine := int64(o.SinceTick), int64(o.Machine)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	switch q {
	case "snapshots":
		return scanRows(db, enc, func(rows *sql.Rows) (any, error) {
			var r struct {
				Tick      int64  `json:"tick"`
				Path      string `json:"path"`
				FactoryID string `json:"factory_id"`
				Machines  int    `json:"machines"`
				NextID    int64  `json:"next_id"`
			}
			err := rows.Scan(&r.Tick, &r.Path, &r.FactoryID, &r.Machines, &r.NextID)
			return r, err
		}, `SELECT tick,path,factory_id,machines,next_id FROM snapshots WHERE tick>=? ORDER BY tick DESC LIMIT ?`, since, o.Limit)

	case "ticks":
		return scanRows(db, enc, func(rows *sql.Rows) (any, error) {
			var r struct {
				Tick      int64   `json:"tick"`
				Digest    string  `json:"digest"`
				DT        float64 `json:"dt"`
				Ops       int     `json:"ops"`
				Transfers int     `json:"transfers"`
				Warnings  int     `json:"warnings"`
			}
			err := rows.Scan(&r.Tick, &r.Digest, &r.DT, &r.Ops, &r.Transfers, &r.Warnings)
			return r, err
		}, `SELECT tick,digest,dt,ops,transfers,warnings FROM ticks WHERE tick>=? ORDER BY tick DESC LIMIT ?`, since, o.Limit)

	case "ops":
		query := `SELECT raw_json FROM ops WHERE tick>=? ORDER BY tick DESC, seq DESC LIMIT ?`
		args := []any{since, o.Limit}
		if o.Machine != 0 {
			query = `SELECT raw_json FROM ops WHERE tick>=? AND (machine=? OR target=?) ORDER BY tick DESC, seq DESC LIMIT ?`
			args = []any{since, machine, machine, o.Limit}
		}
		return scanRows(db, enc, scanRaw, query, args...)

	case "audits", "warnings":
		query := `SELECT raw_json FROM audits WHERE tick>=?`
		args := []any{since}
		if q == "warnings" {
			query += ` AND action='WARN'`
		}
		if o.Machine != 0 {
			query += ` AND machine=?`
			args = append(args, machine)
		}
		query += ` ORDER BY tick DESC, seq DESC LIMIT ?`
		args = append(args, o.Limit)
		return scanRows(db, enc, scanRaw, query, args...)

	case "catalogs":
		return scanRows(db, enc, func(rows *sql.Rows) (any, error) {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt)
			return r, err
		}, `SELECT name,digest,updated_at FROM catalogs ORDER BY name LIMIT ?`, o.Limit)

	default:
		return fmt.Errorf("unknown query: %s", q)
	}
}

func scanRaw(rows *sql.Rows) (any, error) {
	var raw string
	if err := rows.Scan(&raw); err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

func scanRows(db *sql.DB, enc *json.Encoder, scan func(*sql.Rows) (any, error), query string, args ...any) error {
	rows, err := db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return rows.Err()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
