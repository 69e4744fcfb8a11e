package store

// Run is one scrape pass. Times are unix milliseconds; FinishedAt is 0
// while the pass is running.
type Run struct {
	ID         string
	StartedAt  int64
	FinishedAt int64
	Filter     string
	Candidates int
	Persisted  int
	Empty      int
	Failed     int
}

// Visit is one chat visited during a run.
type Visit struct {
	ID           int64
	RunID        string
	ChatName     string
	IsGroup      bool
	UnreadCount  int
	Outcome      string // persisted, empty, failed
	ErrorKind    string
	ErrorMessage string
	MessageCount int
	VisitedAt    int64
}
