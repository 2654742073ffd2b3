package types

import "time"

// Post is one forum post as the analysis pass sees it. Posts are owned by
// the ingestion layer; the pipeline treats them as immutable input for the
// duration of one run.
type Post struct {
	// PID is the globally unique post ID assigned by the forum software.
	PID int64

	// TID is the containing thread.
	TID int64

	// PosterUID is the author's user ID.
	PosterUID int64

	// Timestamp is the post creation time.
	Timestamp time.Time

	// EditCount is the number of times the post was edited.
	EditCount int

	// Title is the post title (often empty).
	Title string

	// Content is the raw BBCode markup body. May be empty.
	Content string
}
