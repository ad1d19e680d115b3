package service_test

import (
	"strings"
	"testing"
	"time"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestPlanLimits(t *testing.T) {
	free := &domain.SubscriptionPlan{Code: "free", MaxAgents: 1, MaxMessagesPerMonth: 100, MaxKnowledgeFiles: 3}
	unlimited := &domain.SubscriptionPlan{Code: "business"}

	assert.NoError(t, service.CheckAgentLimit(free, 0))
	assert.ErrorIs(t, service.CheckAgentLimit(free, 1), domain.ErrPlanLimitReached)
	assert.NoError(t, service.CheckAgentLimit(unlimited, 1000))

	assert.NoError(t, service.CheckMessageLimit(free, 99))
	assert.ErrorIs(t, service.CheckMessageLimit(free, 100), domain.ErrPlanLimitReached)
	assert.NoError(t, service.CheckMessageLimit(unlimited, 1_000_000))

	assert.NoError(t, service.CheckKnowledgeLimit(free, 2))
	assert.ErrorIs(t, service.CheckKnowledgeLimit(free, 3), domain.ErrPlanLimitReached)
}

func TestMonthStart(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	got := service.MonthStart(time.Date(2025, 3, 1, 1, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestBuildPrompt(t *testing.T) {
	chunks := []*domain.KnowledgeChunk{{Content: "alpha"}, {Content: "beta"}}
	history := []*domain.Message{
		{Role: domain.MessageRoleSystem, Content: "ignored"},
		{Role: domain.MessageRoleUser, Content: "hi"},
		{Role: domain.MessageRoleAssistant, Content: "hello"},
	}

	prompt := service.BuildPrompt("Be brief.", chunks, history)
	assert.Len(t, prompt, 3)
	assert.Equal(t, domain.MessageRoleSystem, prompt[0].Role)
	assert.Contains(t, prompt[0].Content, "Be brief.")
	assert.Contains(t, prompt[0].Content, "[1] alpha")
	assert.Contains(t, prompt[0].Content, "[2] beta")
	assert.Equal(t, "hi", prompt[1].Content)

	bare := service.BuildPrompt("Be brief.", nil, nil)
	assert.Len(t, bare, 1)
	assert.Equal(t, "Be brief.", bare[0].Content)
}

func TestConversationTitle(t *testing.T) {
	assert.Equal(t, "hello world", service.ConversationTitle("  hello \n world "))
	long := service.ConversationTitle(strings.Repeat("é", 100))
	assert.Len(t, []rune(long), 60)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, service.EstimateTokens(""))
	assert.Equal(t, 1, service.EstimateTokens("abcd"))
	assert.Equal(t, 2, service.EstimateTokens("abcde"))
}

func TestUsagePeriodStart(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	start, err := service.UsagePeriodWeek.PeriodStart(now)
	assert.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -7), start)

	start, err = service.UsagePeriodAll.PeriodStart(now)
	assert.NoError(t, err)
	assert.True(t, start.IsZero())

	_, err = service.UsagePeriod("year").PeriodStart(now)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
