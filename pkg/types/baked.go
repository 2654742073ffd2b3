package types

// Baked aggregate rows. All of these are fully recomputable from the raw
// tables; the bakers replace table contents wholesale on every run, so none
// of these carry identity beyond their natural key.

// PosterStats summarizes one user's activity on one board in one year.
type PosterStats struct {
	Year int
	BID  int64
	UID  int64

	PostCount      int64
	EditCount      int64
	AvgPostLength  float64
	ThreadsCreated int64

	// QuotedCount is how often this user's posts were cited by others.
	QuotedCount int64

	// QuotesCount is how often this user cited other posts.
	QuotesCount int64
}

// ThreadActivity is one entry of a day's top-thread ranking.
type ThreadActivity struct {
	TID       int64 `json:"tid"`
	PostCount int64 `json:"post_count"`
}

// DailyStats summarizes one board-day. ActiveUsers is a serialized roaring
// bitmap of the user IDs who posted that day; TopThreads is the day's most
// active threads ranked by post count descending, ties broken by thread ID
// ascending.
type DailyStats struct {
	Year      int
	DayOfYear int
	BID       int64

	PostCount      int64
	EditCount      int64
	PostsLength    int64
	ThreadsCreated int64

	ActiveUsers []byte
	TopThreads  []ThreadActivity
}

// QuoteRelation is one social-graph edge: how often one user quoted another
// on a board in a year. Intensity is the edge count relative to the maximum
// count in the queried result set; it is computed at query time and never
// persisted.
type QuoteRelation struct {
	Year      int
	BID       int64
	QuoterUID int64
	QuotedUID int64
	Count     int64
	Intensity float64
}

// LinkRelation aggregates link records per user, domain, year and type.
type LinkRelation struct {
	UID    int64
	Domain string
	Year   int
	Type   LinkType
	Count  int64
}
