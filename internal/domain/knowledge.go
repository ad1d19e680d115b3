package domain

import "time"

// KnowledgeStatus is the processing state of an ingested knowledge file.
type KnowledgeStatus string

const (
	KnowledgeStatusPending    KnowledgeStatus = "pending"
	KnowledgeStatusProcessing KnowledgeStatus = "processing"
	KnowledgeStatusCompleted  KnowledgeStatus = "completed"
	KnowledgeStatusFailed     KnowledgeStatus = "failed"
)

// IsTerminal returns true if no further processing will happen without a reprocess.
func (s KnowledgeStatus) IsTerminal() bool {
	return s == KnowledgeStatusCompleted || s == KnowledgeStatusFailed
}

// CanTransitionTo reports whether the status machine allows moving to next.
func (s KnowledgeStatus) CanTransitionTo(next KnowledgeStatus) bool {
	switch s {
	case KnowledgeStatusPending:
		return next == KnowledgeStatusProcessing || next == KnowledgeStatusFailed
	case KnowledgeStatusProcessing:
		return next == KnowledgeStatusCompleted || next == KnowledgeStatusFailed
	case KnowledgeStatusFailed:
		return next == KnowledgeStatusPending
	default:
		return false
	}
}

// KnowledgeSource says where the file content came from.
type KnowledgeSource string

const (
	KnowledgeSourceUpload KnowledgeSource = "upload"
	KnowledgeSourceURL    KnowledgeSource = "url"
)

// KnowledgeFile is an uploaded document or URL queued for ingestion.
type KnowledgeFile struct {
	ID         string
	AgentID    string
	OwnerID    string
	Source     KnowledgeSource
	FileName   string
	MimeType   string
	SourceURL  *string
	Content    []byte
	Status     KnowledgeStatus
	Error      *string
	ChunkCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// KnowledgeChunk is a substring of ingested document text stored for retrieval.
type KnowledgeChunk struct {
	ID         string
	FileID     string
	AgentID    string
	ChunkIndex int
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}
