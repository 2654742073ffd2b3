package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/scrypster/bbstats/pkg/types"
)

// BakerConfig holds the cutoffs of the aggregation bakers.
type BakerConfig struct {
	// MinQuoteRelationCount drops social-graph edges below this count.
	MinQuoteRelationCount int64

	// MinLinkRelationCount drops user/domain pairs below this count.
	MinLinkRelationCount int64

	// TopThreadCount is how many threads the daily ranking keeps.
	TopThreadCount int
}

// Baker recomputes the derived tables from the raw facts. Every bake is a
// transactional delete-then-insert, so running a baker twice with no new
// raw data yields identical table contents.
type Baker struct {
	db  *sql.DB
	cfg BakerConfig
}

// NewBaker creates a Baker over an open pool.
func NewBaker(db *sql.DB, cfg BakerConfig) *Baker {
	if cfg.MinQuoteRelationCount < 1 {
		cfg.MinQuoteRelationCount = 5
	}
	if cfg.MinLinkRelationCount < 1 {
		cfg.MinLinkRelationCount = 10
	}
	if cfg.TopThreadCount < 1 {
		cfg.TopThreadCount = 5
	}
	return &Baker{db: db, cfg: cfg}
}

// BakeAll runs every baker in sequence, logging per-stage durations.
func (b *Baker) BakeAll(ctx context.Context) error {
	for _, stage := range []struct {
		name string
		fn   func(context.Context) error
	}{
		{"poster stats", b.BakePosterStats},
		{"daily stats", b.BakeDailyStats},
		{"quote relations", b.BakeQuoteRelations},
		{"link relations", b.BakeLinkRelations},
	} {
		start := time.Now()
		if err := stage.fn(ctx); err != nil {
			return err
		}
		log.Printf("baker: %s baked in %.1fs", stage.name, time.Since(start).Seconds())
	}
	return nil
}

// BakePosterStats recomputes baked_poster_stats: per (year, board, user)
// post and edit counts, average post length, threads created (the user
// authored the thread's first post), and both directions of the quote
// counts.
func (b *Baker) BakePosterStats(ctx context.Context) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin poster stats bake: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM baked_poster_stats`); err != nil {
		return fmt.Errorf("postgres: failed to clear baked_poster_stats: %w", err)
	}

	const insert = `
		WITH post_stats AS (
			SELECT EXTRACT(YEAR FROM p.timestamp)::int AS year, t.bid, p.poster_uid AS uid,
			       COUNT(*) AS post_count,
			       SUM(p.edit_count) AS edit_count,
			       AVG(LENGTH(p.content)) AS avg_post_length
			FROM posts p
			JOIN threads t ON t.tid = p.tid
			GROUP BY 1, 2, 3
		), thread_starts AS (
			SELECT EXTRACT(YEAR FROM p.timestamp)::int AS year, t.bid, p.poster_uid AS uid,
			       COUNT(*) AS threads_created
			FROM threads t
			JOIN posts p ON p.pid = t.first_pid
			GROUP BY 1, 2, 3
		), quoted AS (
			SELECT EXTRACT(YEAR FROM citing.timestamp)::int AS year, t.bid,
			       cited.poster_uid AS uid, SUM(q.count) AS quoted_count
			FROM post_quotes q
			JOIN posts citing ON citing.pid = q.pid
			JOIN threads t ON t.tid = citing.tid
			JOIN posts cited ON cited.pid = q.quoted_pid
			GROUP BY 1, 2, 3
		), quoting AS (
			SELECT EXTRACT(YEAR FROM citing.timestamp)::int AS year, t.bid,
			       citing.poster_uid AS uid, SUM(q.count) AS quotes_count
			FROM post_quotes q
			JOIN posts citing ON citing.pid = q.pid
			JOIN threads t ON t.tid = citing.tid
			GROUP BY 1, 2, 3
		)
		INSERT INTO baked_poster_stats
			(year, bid, uid, post_count, edit_count, avg_post_length,
			 threads_created, quoted_count, quotes_count)
		SELECT ps.year, ps.bid, ps.uid,
		       ps.post_count,
		       COALESCE(ps.edit_count, 0),
		       COALESCE(ps.avg_post_length, 0),
		       COALESCE(ts.threads_created, 0),
		       COALESCE(qd.quoted_count, 0),
		       COALESCE(qg.quotes_count, 0)
		FROM post_stats ps
		LEFT JOIN thread_starts ts USING (year, bid, uid)
		LEFT JOIN quoted qd USING (year, bid, uid)
		LEFT JOIN quoting qg USING (year, bid, uid)`
	if _, err := tx.ExecContext(ctx, insert); err != nil {
		return fmt.Errorf("postgres: failed to bake poster stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: failed to commit poster stats bake: %w", err)
	}
	return nil
}

// dayKey addresses one board-day.
type dayKey struct {
	year int
	day  int
	bid  int64
}

// BakeDailyStats recomputes baked_daily_stats. The grouped counts come
// straight from SQL; the active-user bitmap and the top-thread ranking are
// assembled here because neither has a natural SQL representation.
func (b *Baker) BakeDailyStats(ctx context.Context) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin daily stats bake: %w", err)
	}
	defer tx.Rollback()

	days := make(map[dayKey]*types.DailyStats)
	day := func(k dayKey) *types.DailyStats {
		d, ok := days[k]
		if !ok {
			d = &types.DailyStats{Year: k.year, DayOfYear: k.day, BID: k.bid}
			days[k] = d
		}
		return d
	}

	err = queryRows(ctx, tx, `
		SELECT EXTRACT(YEAR FROM p.timestamp)::int, EXTRACT(DOY FROM p.timestamp)::int, t.bid,
		       COUNT(*), COALESCE(SUM(p.edit_count), 0), COALESCE(SUM(LENGTH(p.content)), 0)
		FROM posts p
		JOIN threads t ON t.tid = p.tid
		GROUP BY 1, 2, 3`,
		func(rows *sql.Rows) error {
			var k dayKey
			var posts, edits, length int64
			if err := rows.Scan(&k.year, &k.day, &k.bid, &posts, &edits, &length); err != nil {
				return err
			}
			d := day(k)
			d.PostCount, d.EditCount, d.PostsLength = posts, edits, length
			return nil
		})
	if err != nil {
		return fmt.Errorf("postgres: failed to aggregate daily post counts: %w", err)
	}

	err = queryRows(ctx, tx, `
		SELECT EXTRACT(YEAR FROM p.timestamp)::int, EXTRACT(DOY FROM p.timestamp)::int, t.bid, COUNT(*)
		FROM threads t
		JOIN posts p ON p.pid = t.first_pid
		GROUP BY 1, 2, 3`,
		func(rows *sql.Rows) error {
			var k dayKey
			var created int64
			if err := rows.Scan(&k.year, &k.day, &k.bid, &created); err != nil {
				return err
			}
			day(k).ThreadsCreated = created
			return nil
		})
	if err != nil {
		return fmt.Errorf("postgres: failed to aggregate daily thread counts: %w", err)
	}

	activeUsers := make(map[dayKey][]int64)
	err = queryRows(ctx, tx, `
		SELECT DISTINCT EXTRACT(YEAR FROM p.timestamp)::int, EXTRACT(DOY FROM p.timestamp)::int, t.bid, p.poster_uid
		FROM posts p
		JOIN threads t ON t.tid = p.tid`,
		func(rows *sql.Rows) error {
			var k dayKey
			var uid int64
			if err := rows.Scan(&k.year, &k.day, &k.bid, &uid); err != nil {
				return err
			}
			activeUsers[k] = append(activeUsers[k], uid)
			return nil
		})
	if err != nil {
		return fmt.Errorf("postgres: failed to collect daily active users: %w", err)
	}

	threadActivity := make(map[dayKey][]types.ThreadActivity)
	err = queryRows(ctx, tx, `
		SELECT EXTRACT(YEAR FROM p.timestamp)::int, EXTRACT(DOY FROM p.timestamp)::int, t.bid, p.tid, COUNT(*)
		FROM posts p
		JOIN threads t ON t.tid = p.tid
		GROUP BY 1, 2, 3, 4`,
		func(rows *sql.Rows) error {
			var k dayKey
			var ta types.ThreadActivity
			if err := rows.Scan(&k.year, &k.day, &k.bid, &ta.TID, &ta.PostCount); err != nil {
				return err
			}
			threadActivity[k] = append(threadActivity[k], ta)
			return nil
		})
	if err != nil {
		return fmt.Errorf("postgres: failed to collect daily thread activity: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM baked_daily_stats`); err != nil {
		return fmt.Errorf("postgres: failed to clear baked_daily_stats: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO baked_daily_stats
			(year, day_of_year, bid, post_count, edit_count, posts_length,
			 threads_created, active_users, top_threads)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return fmt.Errorf("postgres: failed to prepare daily stats insert: %w", err)
	}
	defer stmt.Close()

	for k, d := range days {
		users, err := serializeActiveUsers(activeUsers[k])
		if err != nil {
			return fmt.Errorf("postgres: day %d/%d board %d: %w", k.year, k.day, k.bid, err)
		}
		top, err := json.Marshal(rankThreads(threadActivity[k], b.cfg.TopThreadCount))
		if err != nil {
			return fmt.Errorf("postgres: failed to encode top threads: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, d.Year, d.DayOfYear, d.BID,
			d.PostCount, d.EditCount, d.PostsLength, d.ThreadsCreated, users, top); err != nil {
			return fmt.Errorf("postgres: failed to insert daily stats row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: failed to commit daily stats bake: %w", err)
	}
	return nil
}

// BakeQuoteRelations recomputes the social graph: summed quote counts per
// (year, board, quoter, quotee), dropping pairs under the cutoff. Intensity
// is never stored; QuoteRelations derives it per query.
func (b *Baker) BakeQuoteRelations(ctx context.Context) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin quote relation bake: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM baked_quote_stats`); err != nil {
		return fmt.Errorf("postgres: failed to clear baked_quote_stats: %w", err)
	}

	const insert = `
		INSERT INTO baked_quote_stats (year, bid, quoter_uid, quoted_uid, count)
		SELECT EXTRACT(YEAR FROM citing.timestamp)::int, t.bid,
		       citing.poster_uid, cited.poster_uid, SUM(q.count)
		FROM post_quotes q
		JOIN posts citing ON citing.pid = q.pid
		JOIN posts cited ON cited.pid = q.quoted_pid
		JOIN threads t ON t.tid = citing.tid
		GROUP BY 1, 2, 3, 4
		HAVING SUM(q.count) >= $1`
	if _, err := tx.ExecContext(ctx, insert, b.cfg.MinQuoteRelationCount); err != nil {
		return fmt.Errorf("postgres: failed to bake quote relations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: failed to commit quote relation bake: %w", err)
	}
	return nil
}

// BakeLinkRelations recomputes link_relation: summed link counts per
// (user, domain, year, type) over the cutoff. Records without a domain
// (relative links, unparseable URLs) are left out.
func (b *Baker) BakeLinkRelations(ctx context.Context) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin link relation bake: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM link_relation`); err != nil {
		return fmt.Errorf("postgres: failed to clear link_relation: %w", err)
	}

	const insert = `
		INSERT INTO link_relation (uid, domain, year, type, count)
		SELECT p.poster_uid, l.domain, EXTRACT(YEAR FROM p.timestamp)::int, l.type, SUM(l.count)
		FROM post_links l
		JOIN posts p ON p.pid = l.pid
		WHERE l.domain <> ''
		GROUP BY 1, 2, 3, 4
		HAVING SUM(l.count) >= $1`
	if _, err := tx.ExecContext(ctx, insert, b.cfg.MinLinkRelationCount); err != nil {
		return fmt.Errorf("postgres: failed to bake link relations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: failed to commit link relation bake: %w", err)
	}
	return nil
}

// QuoteRelations returns the baked social graph, optionally filtered by
// year and board (zero means no filter). Intensity is each edge's count
// relative to the maximum count within this result set, computed by a
// window function at query time.
func (b *Baker) QuoteRelations(ctx context.Context, year int, bid int64) ([]types.QuoteRelation, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT year, bid, quoter_uid, quoted_uid, count,
		       count::double precision / MAX(count) OVER () AS intensity
		FROM baked_quote_stats
		WHERE ($1 = 0 OR year = $1)
		  AND ($2 = 0 OR bid = $2)
		ORDER BY count DESC, quoter_uid, quoted_uid`, year, bid)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query quote relations: %w", err)
	}
	defer rows.Close()

	var rels []types.QuoteRelation
	for rows.Next() {
		var r types.QuoteRelation
		if err := rows.Scan(&r.Year, &r.BID, &r.QuoterUID, &r.QuotedUID, &r.Count, &r.Intensity); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan quote relation: %w", err)
		}
		rels = append(rels, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: quote relation scan failed: %w", err)
	}
	return rels, nil
}

// queryRows runs a query inside the bake transaction and feeds each row to
// scan, keeping the row-loop boilerplate in one place.
func queryRows(ctx context.Context, tx *sql.Tx, query string, scan func(*sql.Rows) error) error {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// serializeActiveUsers packs distinct user IDs into a roaring bitmap. User
// IDs share the post-ID constraint of fitting the 32-bit domain.
func serializeActiveUsers(uids []int64) ([]byte, error) {
	bm := roaring.New()
	for _, uid := range uids {
		if uid < 0 || uid > math.MaxUint32 {
			return nil, fmt.Errorf("user ID %d outside the 32-bit ID domain", uid)
		}
		bm.Add(uint32(uid))
	}
	data, err := bm.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize active user bitmap: %w", err)
	}
	return data, nil
}

// rankThreads orders a day's thread activity by post count descending with
// thread ID ascending as the tie-break, keeping the top n.
func rankThreads(threads []types.ThreadActivity, n int) []types.ThreadActivity {
	ranked := make([]types.ThreadActivity, len(threads))
	copy(ranked, threads)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].PostCount != ranked[j].PostCount {
			return ranked[i].PostCount > ranked[j].PostCount
		}
		return ranked[i].TID < ranked[j].TID
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
