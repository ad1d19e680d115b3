package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/repository"
)

// UsagePeriod is a reporting window name.
type UsagePeriod string

const (
	UsagePeriodDay   UsagePeriod = "day"
	UsagePeriodWeek  UsagePeriod = "week"
	UsagePeriodMonth UsagePeriod = "month"
	UsagePeriodAll   UsagePeriod = "all"
)

// PeriodStart returns the beginning of the window ending at now.
func (p UsagePeriod) PeriodStart(now time.Time) (time.Time, error) {
	switch p {
	case UsagePeriodDay:
		return now.AddDate(0, 0, -1), nil
	case UsagePeriodWeek:
		return now.AddDate(0, 0, -7), nil
	case UsagePeriodMonth:
		return now.AddDate(0, -1, 0), nil
	case UsagePeriodAll:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("%w: invalid period, must be: day, week, month, all", domain.ErrValidation)
	}
}

// UsageReport is the usage summary of one user.
type UsageReport struct {
	Period             UsagePeriod
	PeriodStart        time.Time
	PeriodEnd          time.Time
	Agents             []repository.AgentUsageResult
	TotalConversations int
	TotalUserMessages  int
	TotalReplies       int
	MessagesThisMonth  int
	KnowledgeByStatus  map[string]int
	Entitlement        *domain.Entitlement
	KnowledgeFileCount int
}

// UsageService aggregates usage counters.
type UsageService struct {
	usage        *repository.UsageRepository
	messages     *repository.MessageRepository
	entitlements *Entitlements
	now          func() time.Time
}

// NewUsageService creates a new UsageService.
func NewUsageService(usage *repository.UsageRepository, messages *repository.MessageRepository, entitlements *Entitlements) *UsageService {
	return &UsageService{usage: usage, messages: messages, entitlements: entitlements, now: time.Now}
}

// Report builds the usage report for userID.
func (s *UsageService) Report(ctx context.Context, userID string, period UsagePeriod, agentID *string) (*UsageReport, error) {
	if period == "" {
		period = UsagePeriodWeek
	}
	now := s.now()
	start, err := period.PeriodStart(now)
	if err != nil {
		return nil, err
	}

	agents, err := s.usage.GetAgentUsage(ctx, repository.UsageFilters{
		UserID:      userID,
		PeriodStart: start,
		PeriodEnd:   now,
		AgentID:     agentID,
	})
	if err != nil {
		return nil, err
	}

	byStatus, err := s.usage.KnowledgeStatusCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	monthly, err := s.messages.CountUserMessagesSince(ctx, userID, MonthStart(now))
	if err != nil {
		return nil, err
	}

	ent, err := s.entitlements.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &UsageReport{
		Period:            period,
		PeriodStart:       start,
		PeriodEnd:         now,
		Agents:            agents,
		MessagesThisMonth: monthly,
		KnowledgeByStatus: byStatus,
		Entitlement:       ent,
	}
	for _, a := range agents {
		report.TotalConversations += a.Conversations
		report.TotalUserMessages += a.UserMessages
		report.TotalReplies += a.AssistantMessages
	}
	for _, n := range byStatus {
		report.KnowledgeFileCount += n
	}
	return report, nil
}
