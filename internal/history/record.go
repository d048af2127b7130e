package history

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Record is one completed swap. The three URL fields are data URLs.
// Timestamp is milliseconds since the Unix epoch.
type Record struct {
	ID        string `json:"id"`
	SourceURL string `json:"sourceUrl"`
	TargetURL string `json:"targetUrl"`
	ResultURL string `json:"resultUrl"`
	Timestamp int64  `json:"timestamp"`
}

// NewRecord creates a record stamped with now. IDs sort by creation time.
func NewRecord(source, target, result string, now time.Time) Record {
	return Record{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		SourceURL: source,
		TargetURL: target,
		ResultURL: result,
		Timestamp: now.UnixMilli(),
	}
}

// CreatedAt returns Timestamp as a time.Time.
func (r Record) CreatedAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}
