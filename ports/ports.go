// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/luminote/luminote/domain/kgraph"
	"github.com/luminote/luminote/domain/ledger"
	"github.com/luminote/luminote/domain/llm"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher provides password hashing for the user CLI and the (external)
// auth layer.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// User is a learner account. Auth mechanics live outside this service;
// the fields here are what the pipeline and the profile job need.
type User struct {
	ID             string
	Username       string
	PasswordHash   []byte
	Profile        string // model-maintained learner portrait
	ProfilePicture string
	TokenBalance   int
	Status         string // "active", "suspended"
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserStore persists user accounts.
type UserStore interface {
	// Get retrieves a user by ID.
	Get(ctx context.Context, id string) (User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (User, error)

	// Create stores a new user.
	Create(ctx context.Context, u User) error

	// UpdateProfile replaces the model-maintained learner portrait.
	UpdateProfile(ctx context.Context, id, profile string) error

	// UpdateProfilePicture replaces the hosted picture URL.
	UpdateProfilePicture(ctx context.Context, id, pictureURL string) error

	// ListActive returns all active users (profile summarization job).
	ListActive(ctx context.Context) ([]User, error)
}

// LedgerStore persists the per-day usage records and the user balance.
// RecordSpend applies both mutations in one transaction: today's record
// grows by the spend and the balance shrinks by it, together or not at
// all. Failures surface as *ledger.CommitError.
type LedgerStore interface {
	// RecordSpend charges a confirmed spend against day.
	RecordSpend(ctx context.Context, spend ledger.Spend, day time.Time) error

	// Balance returns the user's current token balance.
	Balance(ctx context.Context, userID string) (int, error)

	// UsageBetween returns the usage records in [start, end).
	UsageBetween(ctx context.Context, userID string, start, end time.Time) ([]ledger.UsageRecord, error)
}

// ChatMessage is one persisted turn of a conversation.
type ChatMessage struct {
	ID             string
	ConversationID string
	UserID         string
	Role           llm.Role
	Content        string
	ImageURL       string // set when the turn carried an image
	ImageDescribe  string // vision model's reading of the image
	CreatedAt      time.Time
}

// ChatStore persists conversation turns. The surrounding CRUD layer
// owns conversation lifecycle; the pipeline only appends and the
// profile job only reads.
type ChatStore interface {
	// Append stores messages in order.
	Append(ctx context.Context, msgs []ChatMessage) error

	// RecentByUser returns a user's messages created at or after since.
	RecentByUser(ctx context.Context, userID string, since time.Time) ([]ChatMessage, error)
}

// Note is one study note inside a chapter.
type Note struct {
	ID            string
	UserID        string
	ChapterID     string
	Content       string
	ImageDescribe string
	AudioDescribe string
	CreatedAt     time.Time
}

// NoteStore reads study notes for summarization and graph extraction.
type NoteStore interface {
	// ListByChapter returns a chapter's notes in creation order.
	ListByChapter(ctx context.Context, chapterID string) ([]Note, error)

	// RecentByUser returns a user's notes created at or after since.
	RecentByUser(ctx context.Context, userID string, since time.Time) ([]Note, error)
}

// Question is a mistaken question under review.
type Question struct {
	ID              string
	UserID          string
	Content         string
	ImageDescribe   string
	Answer          string
	SimilarQuestion string
	SimilarAnswer   string
	CreatedAt       time.Time
}

// QuestionStore persists mistaken questions and their generated
// answers.
type QuestionStore interface {
	// Get retrieves a question by ID.
	Get(ctx context.Context, id string) (Question, error)

	// UpdateAnswer stores the generated answer.
	UpdateAnswer(ctx context.Context, id, answer string) error

	// UpdateSimilar stores a generated drill question.
	UpdateSimilar(ctx context.Context, id, question string) error

	// UpdateSimilarAnswer stores the drill question's answer.
	UpdateSimilarAnswer(ctx context.Context, id, answer string) error
}

// GraphStore persists extracted knowledge graphs. Replace soft-deletes
// any previous graph for the chapter and writes the new one in a single
// transaction.
type GraphStore interface {
	// Replace stores g as the chapter's current graph.
	Replace(ctx context.Context, chapterID string, g kgraph.Graph) (graphID string, err error)

	// GetByChapter returns the chapter's current graph.
	GetByChapter(ctx context.Context, chapterID string) (kgraph.Graph, error)
}

// -----------------------------------------------------------------------------
// Cache Ports
// -----------------------------------------------------------------------------

// Cache is a TTL key-value store for derived results. It fails open:
// when the backing store is unreachable Get misses, Set and Delete are
// no-ops. Values are JSON-serialized by callers; keys are
// colon-namespaced ("user:advice:<id>").
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// RateLimiter is a fixed-window request counter. It fails open: when
// the backing store is unreachable every request is allowed.
type RateLimiter interface {
	// Allow reports whether the request under key fits the window.
	Allow(ctx context.Context, key string, window time.Duration, maxRequests int) bool
}

// -----------------------------------------------------------------------------
// Provider Ports
// -----------------------------------------------------------------------------

// TextProvider is one upstream text-generation backend. Stream performs
// exactly one outbound call and yields raw provider chunks; retrying is
// the caller's job because partial streams cannot be resumed.
type TextProvider interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// Strategy tells the normalizer how this provider's chunks map to
	// delta events.
	Strategy() llm.Strategy

	// Stream starts a streaming generation call.
	Stream(ctx context.Context, messages []llm.Message) (llm.ChunkStream, error)

	// Complete performs a non-streaming generation call.
	Complete(ctx context.Context, messages []llm.Message) (llm.Completion, error)
}

// VisionProvider reads text out of an already-hosted image. Upload is
// not this service's job.
type VisionProvider interface {
	Describe(ctx context.Context, imageURL string) (string, error)
}

// AudioProvider transcribes an already-hosted audio clip.
type AudioProvider interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}
