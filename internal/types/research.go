package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ResearchMessageReference is one citation attached to a ResearchMessage.
// Source distinguishes where the cited evidence came from (spec.md §4.K
// RETURN contract): "local" is a retrieved Chunk, "web" is a live web
// search result, "url" is a caller-supplied page fetched directly.
type ResearchMessageReference struct {
	Source     string    `json:"source"` // local|web|url
	DocumentID uuid.UUID `json:"document_id,omitempty"`
	ChunkID    uuid.UUID `json:"chunk_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Snippet    string    `json:"snippet"`
}

// ResearchMessage is one turn of a Deep Research conversation: spec.md:51
// requires each message record its role, text, references, confidence,
// elapsed time, whether a web search was attempted, and any follow-up
// questions it generated. The session accumulates a bounded list of these
// across repeated DeepResearchAgent.Ask calls, so a conversation can
// reference earlier turns' context rather than answering each question in
// isolation.
type ResearchMessage struct {
	Role         string                     `json:"role"` // user|assistant
	Text         string                     `json:"text"`
	References   []ResearchMessageReference `json:"references,omitempty"`
	Confidence   float64                    `json:"confidence,omitempty"`
	ElapsedMS    int64                      `json:"elapsed_ms,omitempty"`
	WebAttempted bool                       `json:"web_attempted,omitempty"`
	Followups    []string                   `json:"followups,omitempty"`
	CreatedAt    time.Time                  `json:"created_at"`
}

// MaxResearchMessages bounds the message history kept per session, matching
// spec.md:51's "bounded messages[] list" language: old turns age out rather
// than growing the row without limit.
const MaxResearchMessages = 50

// ResearchSession is one Deep Research conversation (spec.md §4.K). Each
// call to DeepResearchAgent.Ask appends a ResearchMessage pair (the user's
// message, then the assistant's); the whole State is also mirrored to Cache
// for fast resume.
type ResearchSession struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_research_tenant" json:"user_id"`
	SpaceID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_research_tenant" json:"space_id"`
	Question   string         `gorm:"column:question;not null" json:"question"` // the opening question, kept for display/search
	State      string         `gorm:"column:state;not null;default:'plan'" json:"state"` // plan|local_retrieve|coverage_eval|rewrite|web_search|missing_concepts|synthesis|done
	Iteration  int            `gorm:"column:iteration;not null;default:0" json:"iteration"`
	Confidence float64        `gorm:"column:confidence" json:"confidence,omitempty"`
	UsedWeb    bool           `gorm:"column:used_web" json:"used_web"`
	Answer     string         `gorm:"column:answer" json:"answer,omitempty"` // most recent assistant turn's text, for quick access
	Messages   datatypes.JSON `gorm:"column:messages;type:jsonb" json:"messages,omitempty"`
	TimedOut   bool           `gorm:"column:timed_out" json:"timed_out"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ResearchSession) TableName() string { return "research_session" }

// Activity is an append-only audit/progress log entry, written by the
// Ingestor and DeepResearchAgent as they move through their pipelines, and
// mirrored onto the Redis activity bus for any live listener (supplemental
// feature recovered from the original's session/progress tracking; not an
// HTTP-facing concern per spec.md's Non-goals, but useful ops visibility).
type Activity struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_activity_tenant" json:"user_id"`
	SpaceID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_activity_tenant" json:"space_id"`
	Kind      string         `gorm:"column:kind;not null" json:"kind"` // ingest.started|ingest.chunked|ingest.indexed|ingest.failed|research.step|...
	SubjectID uuid.UUID      `gorm:"type:uuid;index" json:"subject_id,omitempty"`
	Detail    datatypes.JSON `gorm:"column:detail;type:jsonb" json:"detail,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (Activity) TableName() string { return "activity" }
