package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/suite"
)

type AsynqClientTestSuite struct {
	suite.Suite
	client    *AsynqClient
	inspector *asynq.Inspector
}

func (s *AsynqClientTestSuite) SetupTest() {
	mr := miniredis.RunT(s.T())
	redisURL := "redis://" + mr.Addr()

	client, err := NewAsynqClient(redisURL)
	s.Require().NoError(err)
	s.client = client

	opt, err := asynq.ParseRedisURI(redisURL)
	s.Require().NoError(err)
	s.inspector = asynq.NewInspector(opt)
}

func (s *AsynqClientTestSuite) TearDownTest() {
	_ = s.client.Close()
	_ = s.inspector.Close()
}

func TestAsynqClientSuite(t *testing.T) {
	suite.Run(t, new(AsynqClientTestSuite))
}

func (s *AsynqClientTestSuite) pending() int {
	tasks, err := s.inspector.ListPendingTasks(queueName)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return 0
	}
	s.Require().NoError(err)
	return len(tasks)
}

func (s *AsynqClientTestSuite) TestEnqueue_DeduplicatesPendingTask() {
	ctx := context.Background()

	s.Require().NoError(s.client.EnqueueKnowledge(ctx, "file-1"))
	s.Require().NoError(s.client.EnqueueKnowledge(ctx, "file-1"))
	s.Require().NoError(s.client.EnqueueKnowledge(ctx, "file-2"))

	s.Equal(2, s.pending())
}

func (s *AsynqClientTestSuite) TestEnqueue_RequeuesArchivedTask() {
	ctx := context.Background()

	s.Require().NoError(s.client.EnqueueKnowledge(ctx, "file-1"))
	// A job that failed for good ends up archived under the same ID.
	s.Require().NoError(s.inspector.ArchiveTask(queueName, knowledgeTaskID("file-1")))
	s.Require().Equal(0, s.pending())

	s.Require().NoError(s.client.EnqueueKnowledge(ctx, "file-1"))

	s.Equal(1, s.pending())
	archived, err := s.inspector.ListArchivedTasks(queueName)
	s.Require().NoError(err)
	s.Empty(archived)

	info, err := s.inspector.GetTaskInfo(queueName, knowledgeTaskID("file-1"))
	s.Require().NoError(err)
	s.Equal(asynq.TaskStatePending, info.State)
}

func (s *AsynqClientTestSuite) TestEnqueue_RejectsEmptyFileID() {
	s.Error(s.client.EnqueueKnowledge(context.Background(), ""))
	s.Equal(0, s.pending())
}
