package models

import "time"

// SessionKind distinguishes the two asynchronous pipelines.
type SessionKind string

const (
	SessionKindImport  SessionKind = "import"
	SessionKindExecute SessionKind = "execute"
)

// SessionStatus is the lifecycle state of an import session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusFailed     SessionStatus = "failed"
)

// IsTerminal reports whether no further transitions can happen.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// Bucket names the outcome class of a transaction within an import session.
type Bucket string

const (
	BucketMatched   Bucket = "matched"
	BucketUncertain Bucket = "uncertain"
	BucketFailed    Bucket = "failed"
	BucketSkipped   Bucket = "skipped"
)

// BucketItem is one transaction placed in a bucket.
type BucketItem struct {
	Index       int            `json:"index"`
	Transaction RawTransaction `json:"transaction"`
	Match       *MatchResult   `json:"match,omitempty"`
	Confidence  float64        `json:"confidence,omitempty"`
	Error       string         `json:"error,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

// ImportResult is the bucketed outcome of an import session.
type ImportResult struct {
	Matched   []BucketItem `json:"matched"`
	Uncertain []BucketItem `json:"uncertain"`
	Failed    []BucketItem `json:"failed"`
	Skipped   []BucketItem `json:"skipped"`
}

// NewImportResult returns a result with empty, non-nil buckets.
func NewImportResult() *ImportResult {
	return &ImportResult{
		Matched:   []BucketItem{},
		Uncertain: []BucketItem{},
		Failed:    []BucketItem{},
		Skipped:   []BucketItem{},
	}
}

// Len returns the number of transactions placed in any bucket.
func (r *ImportResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Matched) + len(r.Uncertain) + len(r.Failed) + len(r.Skipped)
}

// Add appends item to the named bucket.
func (r *ImportResult) Add(bucket Bucket, item BucketItem) {
	switch bucket {
	case BucketMatched:
		r.Matched = append(r.Matched, item)
	case BucketUncertain:
		r.Uncertain = append(r.Uncertain, item)
	case BucketFailed:
		r.Failed = append(r.Failed, item)
	default:
		r.Skipped = append(r.Skipped, item)
	}
}

// Clone returns a deep copy of the bucket slices.
func (r *ImportResult) Clone() *ImportResult {
	if r == nil {
		return nil
	}
	return &ImportResult{
		Matched:   cloneItems(r.Matched),
		Uncertain: cloneItems(r.Uncertain),
		Failed:    cloneItems(r.Failed),
		Skipped:   cloneItems(r.Skipped),
	}
}

func cloneItems(items []BucketItem) []BucketItem {
	out := make([]BucketItem, len(items))
	for i, item := range items {
		if item.Match != nil {
			m := *item.Match
			item.Match = &m
		}
		out[i] = item
	}
	return out
}

// view returns a copy whose slices are capped at their current length. The
// buckets are append-only, so the view stays stable while r keeps growing.
func (r *ImportResult) view() *ImportResult {
	if r == nil {
		return nil
	}
	return &ImportResult{
		Matched:   r.Matched[:len(r.Matched):len(r.Matched)],
		Uncertain: r.Uncertain[:len(r.Uncertain):len(r.Uncertain)],
		Failed:    r.Failed[:len(r.Failed):len(r.Failed)],
		Skipped:   r.Skipped[:len(r.Skipped):len(r.Skipped)],
	}
}

// ExecuteFailure records one confirmed transaction that could not be committed.
type ExecuteFailure struct {
	Item  ConfirmedTransaction `json:"item"`
	Error string               `json:"error"`
}

// ExecuteResult is the outcome of an execute session.
type ExecuteResult struct {
	Imported int                    `json:"imported"`
	Failed   []ExecuteFailure       `json:"failed"`
	Skipped  []ConfirmedTransaction `json:"skipped"`
}

// NewExecuteResult returns a result with empty, non-nil lists.
func NewExecuteResult() *ExecuteResult {
	return &ExecuteResult{
		Failed:  []ExecuteFailure{},
		Skipped: []ConfirmedTransaction{},
	}
}

// Clone returns a deep copy of r.
func (r *ExecuteResult) Clone() *ExecuteResult {
	if r == nil {
		return nil
	}
	out := &ExecuteResult{
		Imported: r.Imported,
		Failed:   make([]ExecuteFailure, len(r.Failed)),
		Skipped:  make([]ConfirmedTransaction, len(r.Skipped)),
	}
	copy(out.Failed, r.Failed)
	copy(out.Skipped, r.Skipped)
	return out
}

func (r *ExecuteResult) view() *ExecuteResult {
	if r == nil {
		return nil
	}
	return &ExecuteResult{
		Imported: r.Imported,
		Failed:   r.Failed[:len(r.Failed):len(r.Failed)],
		Skipped:  r.Skipped[:len(r.Skipped):len(r.Skipped)],
	}
}

// ItemError is a per-transaction error reported alongside the result.
type ItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// ImportSession tracks one asynchronous run of the import or execute pipeline.
type ImportSession struct {
	SessionID      string         `json:"sessionId"`
	Kind           SessionKind    `json:"kind"`
	Status         SessionStatus  `json:"status"`
	Account        string         `json:"account,omitempty"`
	Total          int            `json:"total"`
	ProcessedCount int            `json:"processedCount"`
	Result         *ImportResult  `json:"result,omitempty"`
	ExecuteResult  *ExecuteResult `json:"executeResult,omitempty"`
	Errors         []ItemError    `json:"errors,omitempty"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
}

// Clone returns a deep copy safe to hand to pollers.
func (s *ImportSession) Clone() *ImportSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Result = s.Result.Clone()
	out.ExecuteResult = s.ExecuteResult.Clone()
	if s.Errors != nil {
		out.Errors = make([]ItemError, len(s.Errors))
		copy(out.Errors, s.Errors)
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// View returns a read-only copy of s that shares the already-written
// prefix of every bucket instead of copying it. Only the owner of s may
// keep appending to it; holders of the view must Clone before modifying.
func (s *ImportSession) View() *ImportSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Result = s.Result.view()
	out.ExecuteResult = s.ExecuteResult.view()
	out.Errors = s.Errors[:len(s.Errors):len(s.Errors)]
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
