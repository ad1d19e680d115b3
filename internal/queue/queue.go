// Package queue runs knowledge ingestion jobs, on asynq when Redis is configured and
// on an in-process worker pool otherwise.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// TypeKnowledgeProcess is the task type for knowledge file ingestion.
const TypeKnowledgeProcess = "knowledge:process"

// KnowledgePayload is the body of a knowledge:process task.
type KnowledgePayload struct {
	FileID string `json:"file_id"`
}

// Processor handles one knowledge file. lastAttempt tells it whether a failure is final.
type Processor interface {
	Process(ctx context.Context, fileID string, lastAttempt bool) error
}

// Enqueuer schedules knowledge files for processing.
type Enqueuer interface {
	EnqueueKnowledge(ctx context.Context, fileID string) error
	Close() error
}

func encodeKnowledgePayload(fileID string) ([]byte, error) {
	if fileID == "" {
		return nil, fmt.Errorf("queue: file id is required")
	}
	return json.Marshal(KnowledgePayload{FileID: fileID})
}

func decodeKnowledgePayload(data []byte) (KnowledgePayload, error) {
	var p KnowledgePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode knowledge payload: %w", err)
	}
	if p.FileID == "" {
		return p, fmt.Errorf("decode knowledge payload: missing file_id")
	}
	return p, nil
}
