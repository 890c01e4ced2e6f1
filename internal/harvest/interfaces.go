package harvest

import (
	"context"
	"io"
	"iter"
	"time"
)

// Fetcher issues one HTTP request. A non-2xx status is a normal response;
// the error return is reserved for network failures.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Discoverer produces the record sources for one upstream endpoint shape.
// The returned sequence is finite and may only be iterated once.
type Discoverer interface {
	Name() string
	Discover(ctx context.Context) iter.Seq2[RecordSource, error]
}

// Extractor turns a fetched page into a record. It returns false when no
// field could be identified.
type Extractor interface {
	Extract(page Page) (RawRecord, bool)
}

// Normalizer builds the final dataset from the collected records.
type Normalizer interface {
	Normalize(mode Mode, records []RawRecord) Dataset
}

// Queue provides enqueue/dequeue semantics for discovered jobs.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (Job, error)
}

// Sink receives extracted records. Implementations must serialize appends.
type Sink interface {
	Add(index int, record RawRecord)
}

// RetryPolicy decides whether a failed detail fetch is attempted again.
// Attempts are counted from 1.
type RetryPolicy interface {
	ShouldRetry(err error, statusCode int, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Limiter paces outbound requests per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Pauser sleeps for a politeness or backoff delay, returning early when
// the context ends.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// BlobStore writes the output artifact and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes artifact digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
