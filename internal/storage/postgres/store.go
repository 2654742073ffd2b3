package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/scrypster/bbstats/internal/storage"
	"github.com/scrypster/bbstats/pkg/types"
)

// scanChunkSize is the LIMIT of each keyset page when streaming posts.
const scanChunkSize = 5000

// Store implements the storage interfaces over PostgreSQL. Each worker
// opens its own Store so connections are never shared across partitions.
type Store struct {
	db *sql.DB
}

var (
	_ storage.PostSource     = (*Store)(nil)
	_ storage.FactFlusher    = (*Store)(nil)
	_ storage.UniverseLoader = (*Store)(nil)
)

// NewStore opens a connection pool for the given DSN and verifies it.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Setup applies the schema. Safe to run repeatedly.
func (s *Store) Setup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: failed to apply schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying pool for components that run their own SQL,
// such as the bakers.
func (s *Store) DB() *sql.DB {
	return s.db
}

// PostIDs returns every known post ID.
func (s *Store) PostIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pid FROM posts`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load post IDs: %w", err)
	}
	defer rows.Close()

	var pids []int64
	for rows.Next() {
		var pid int64
		if err := rows.Scan(&pid); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan post ID: %w", err)
		}
		pids = append(pids, pid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: post ID scan failed: %w", err)
	}
	return pids, nil
}

// ScanPosts streams posts with lo <= pid <= hi to fn in ascending pid
// order, paging with keyset chunks so no single result set holds a whole
// partition in memory.
func (s *Store) ScanPosts(ctx context.Context, lo, hi int64, fn func(*types.Post) error) error {
	next := lo
	for next <= hi {
		lastPID, n, err := s.scanChunk(ctx, next, hi, fn)
		if err != nil {
			return err
		}
		if n < scanChunkSize {
			return nil
		}
		next = lastPID + 1
	}
	return nil
}

func (s *Store) scanChunk(ctx context.Context, lo, hi int64, fn func(*types.Post) error) (lastPID int64, n int, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pid, tid, poster_uid, timestamp, edit_count, title, content
		FROM posts
		WHERE pid >= $1 AND pid <= $2
		ORDER BY pid
		LIMIT $3`, lo, hi, scanChunkSize)
	if err != nil {
		return 0, 0, fmt.Errorf("postgres: failed to query posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p types.Post
		if err := rows.Scan(&p.PID, &p.TID, &p.PosterUID, &p.Timestamp, &p.EditCount, &p.Title, &p.Content); err != nil {
			return 0, 0, fmt.Errorf("postgres: failed to scan post: %w", err)
		}
		if err := fn(&p); err != nil {
			return 0, 0, err
		}
		lastPID = p.PID
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("postgres: post scan failed: %w", err)
	}
	return lastPID, n, nil
}

// FlushQuotes upserts a batch of quote edges. Counts add on conflict so
// replaying a post accumulates instead of overwriting.
func (s *Store) FlushQuotes(ctx context.Context, edges []types.QuoteEdge) error {
	edges = aggregateQuotes(edges)
	if len(edges) == 0 {
		return nil
	}

	var (
		sb   strings.Builder
		args = make([]interface{}, 0, len(edges)*3)
	)
	sb.WriteString(`INSERT INTO post_quotes (pid, quoted_pid, count) VALUES `)
	for i, e := range edges {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3)
		args = append(args, e.PID, e.QuotedPID, e.Count)
	}
	sb.WriteString(` ON CONFLICT (pid, quoted_pid) DO UPDATE SET count = post_quotes.count + EXCLUDED.count`)

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("postgres: failed to flush %d quote edges: %w", len(edges), err)
	}
	return nil
}

// FlushLinks upserts a batch of link records with the same additive
// conflict handling as FlushQuotes.
func (s *Store) FlushLinks(ctx context.Context, links []types.LinkRecord) error {
	links = aggregateLinks(links)
	if len(links) == 0 {
		return nil
	}

	var (
		sb   strings.Builder
		args = make([]interface{}, 0, len(links)*5)
	)
	sb.WriteString(`INSERT INTO post_links (pid, url, type, domain, count) VALUES `)
	for i, l := range links {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d)", i*5+1, i*5+2, i*5+3, i*5+4, i*5+5)
		args = append(args, l.PID, l.URL, string(l.Type), l.Domain, l.Count)
	}
	sb.WriteString(` ON CONFLICT (pid, url, type) DO UPDATE SET count = post_links.count + EXCLUDED.count`)

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("postgres: failed to flush %d link records: %w", len(links), err)
	}
	return nil
}

// aggregateQuotes folds duplicate (pid, quoted_pid) keys within one batch.
// A multi-row upsert may not touch the same row twice, so intra-batch
// duplicates have to collapse before the statement runs.
func aggregateQuotes(edges []types.QuoteEdge) []types.QuoteEdge {
	type key struct{ pid, quotedPID int64 }
	counts := make(map[key]int64, len(edges))
	order := make([]key, 0, len(edges))
	for _, e := range edges {
		k := key{e.PID, e.QuotedPID}
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}
		counts[k] += e.Count
	}

	out := make([]types.QuoteEdge, 0, len(order))
	for _, k := range order {
		out = append(out, types.QuoteEdge{PID: k.pid, QuotedPID: k.quotedPID, Count: counts[k]})
	}
	return out
}

// aggregateLinks folds duplicate (pid, url, type) keys within one batch.
func aggregateLinks(links []types.LinkRecord) []types.LinkRecord {
	type key struct {
		pid int64
		url string
		typ types.LinkType
	}
	counts := make(map[key]int64, len(links))
	domains := make(map[key]string, len(links))
	order := make([]key, 0, len(links))
	for _, l := range links {
		k := key{l.PID, l.URL, l.Type}
		if _, seen := counts[k]; !seen {
			order = append(order, k)
			domains[k] = l.Domain
		}
		counts[k] += l.Count
	}

	out := make([]types.LinkRecord, 0, len(order))
	for _, k := range order {
		out = append(out, types.LinkRecord{
			PID:    k.pid,
			URL:    k.url,
			Type:   k.typ,
			Domain: domains[k],
			Count:  counts[k],
		})
	}
	return out
}
