// Package postgres provides the PostgreSQL post source, fact flusher and
// aggregation bakers.
package postgres

// Schema contains the SQL statements to create the database schema. All
// statements are idempotent (IF NOT EXISTS) so setup can run repeatedly.
//
// The raw fact tables (post_quotes, post_links) carry additive counts keyed
// by their natural key; the baked_* tables are derived wholesale by the
// bakers and hold no state of their own.
const Schema = `
-- Users table: forum accounts referenced by posts
CREATE TABLE IF NOT EXISTS users (
    uid  BIGINT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT ''
);

-- Boards table: top-level forum sections
CREATE TABLE IF NOT EXISTS boards (
    bid  BIGINT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT ''
);

-- Threads table: first_pid identifies the opening post for
-- threads-created statistics
CREATE TABLE IF NOT EXISTS threads (
    tid       BIGINT PRIMARY KEY,
    bid       BIGINT NOT NULL REFERENCES boards(bid),
    title     TEXT NOT NULL DEFAULT '',
    first_pid BIGINT
);

-- Posts table: the raw input of the analysis pass
CREATE TABLE IF NOT EXISTS posts (
    pid        BIGINT PRIMARY KEY,
    tid        BIGINT NOT NULL REFERENCES threads(tid),
    poster_uid BIGINT NOT NULL REFERENCES users(uid),
    timestamp  TIMESTAMP NOT NULL,
    edit_count INTEGER NOT NULL DEFAULT 0,
    title      TEXT NOT NULL DEFAULT '',
    content    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_posts_tid ON posts(tid);
CREATE INDEX IF NOT EXISTS idx_posts_poster_uid ON posts(poster_uid);
CREATE INDEX IF NOT EXISTS idx_posts_timestamp ON posts(timestamp);

-- Raw quote facts: how often one post cites another
CREATE TABLE IF NOT EXISTS post_quotes (
    pid        BIGINT NOT NULL REFERENCES posts(pid),
    quoted_pid BIGINT NOT NULL,
    count      BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (pid, quoted_pid)
);

CREATE INDEX IF NOT EXISTS idx_post_quotes_quoted ON post_quotes(quoted_pid);

-- Raw link facts: outbound URLs per post
CREATE TABLE IF NOT EXISTS post_links (
    pid    BIGINT NOT NULL REFERENCES posts(pid),
    url    TEXT NOT NULL,
    type   TEXT NOT NULL,
    domain TEXT NOT NULL DEFAULT '',
    count  BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (pid, url, type)
);

CREATE INDEX IF NOT EXISTS idx_post_links_domain ON post_links(domain);

-- Baked per-poster statistics
CREATE TABLE IF NOT EXISTS baked_poster_stats (
    year            INTEGER NOT NULL,
    bid             BIGINT NOT NULL,
    uid             BIGINT NOT NULL,
    post_count      BIGINT NOT NULL DEFAULT 0,
    edit_count      BIGINT NOT NULL DEFAULT 0,
    avg_post_length DOUBLE PRECISION NOT NULL DEFAULT 0,
    threads_created BIGINT NOT NULL DEFAULT 0,
    quoted_count    BIGINT NOT NULL DEFAULT 0,
    quotes_count    BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (year, bid, uid)
);

-- Baked per-day statistics. active_users holds a serialized roaring bitmap
-- of the user IDs who posted that day; top_threads the day's most active
-- threads as JSON.
CREATE TABLE IF NOT EXISTS baked_daily_stats (
    year            INTEGER NOT NULL,
    day_of_year     INTEGER NOT NULL,
    bid             BIGINT NOT NULL,
    post_count      BIGINT NOT NULL DEFAULT 0,
    edit_count      BIGINT NOT NULL DEFAULT 0,
    posts_length    BIGINT NOT NULL DEFAULT 0,
    threads_created BIGINT NOT NULL DEFAULT 0,
    active_users    BYTEA,
    top_threads     JSONB,
    PRIMARY KEY (year, day_of_year, bid)
);

-- Baked social graph: quote relations between users
CREATE TABLE IF NOT EXISTS baked_quote_stats (
    year       INTEGER NOT NULL,
    bid        BIGINT NOT NULL,
    quoter_uid BIGINT NOT NULL,
    quoted_uid BIGINT NOT NULL,
    count      BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (year, bid, quoter_uid, quoted_uid)
);

-- Baked link relation: domains per user, year and link type
CREATE TABLE IF NOT EXISTS link_relation (
    uid    BIGINT NOT NULL,
    domain TEXT NOT NULL,
    year   INTEGER NOT NULL,
    type   TEXT NOT NULL,
    count  BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (uid, domain, year, type)
);
`
