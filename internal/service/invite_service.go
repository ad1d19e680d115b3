package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/agentdesk/internal/database"
	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/mtlprog/agentdesk/internal/mailer"
	"github.com/mtlprog/agentdesk/internal/repository"
)

const maxEmailBodyLength = 50000

// Mailer sends a single email and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, e mailer.Email) (string, error)
}

// EmailInput is a transactional email requested by a user.
type EmailInput struct {
	To      string
	Subject string
	Body    string
}

// InviteService creates and accepts invitations and sends user email.
type InviteService struct {
	pool    *pgxpool.Pool
	invites *repository.InviteRepository
	agents  *repository.AgentRepository
	mailer  Mailer
	appURL  string
	ttl     time.Duration
	now     func() time.Time
}

// NewInviteService creates a new InviteService. mailer may be nil; invites are then
// created without sending email.
func NewInviteService(
	pool *pgxpool.Pool,
	invites *repository.InviteRepository,
	agents *repository.AgentRepository,
	m Mailer,
	appURL string,
	ttl time.Duration,
) *InviteService {
	return &InviteService{
		pool:    pool,
		invites: invites,
		agents:  agents,
		mailer:  m,
		appURL:  strings.TrimRight(appURL, "/"),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create issues an invite for email and emails the acceptance link.
func (s *InviteService) Create(ctx context.Context, inviter *domain.User, email string, agentID *string) (*domain.Invite, error) {
	addr, err := mailer.ValidateAddress(email)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(addr, inviter.Email) {
		return nil, fmt.Errorf("%w: cannot invite yourself", domain.ErrValidation)
	}

	var agentName string
	if agentID != nil {
		agent, err := s.agents.GetByID(ctx, *agentID)
		if err != nil {
			return nil, err
		}
		if !agent.IsOwnedBy(inviter.ID) {
			return nil, fmt.Errorf("%w: agent %s", domain.ErrNotAgentOwner, *agentID)
		}
		agentName = agent.Name
	}

	invite := &domain.Invite{
		InviterID: inviter.ID,
		Email:     addr,
		AgentID:   agentID,
		Token:     uuid.NewString(),
		Status:    domain.InviteStatusPending,
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	}
	if err := s.invites.Create(ctx, invite); err != nil {
		return nil, err
	}

	if s.mailer != nil {
		link := s.appURL + "/invites/" + invite.Token
		if _, err := s.mailer.Send(ctx, mailer.InviteEmail(addr, inviter.Name, agentName, link)); err != nil {
			slog.Warn("invite email failed", "invite_id", invite.ID, "error", err)
			return invite, err
		}
	}

	slog.Info("invite created", "invite_id", invite.ID, "inviter_id", inviter.ID)
	return invite, nil
}

// MailerConfigured reports whether invite emails are delivered.
func (s *InviteService) MailerConfigured() bool {
	return s.mailer != nil
}

// List returns the invites sent by the user.
func (s *InviteService) List(ctx context.Context, inviterID string) ([]*domain.Invite, error) {
	return s.invites.ListByInviter(ctx, inviterID)
}

// Accept marks a pending, unexpired invite as accepted by userID.
func (s *InviteService) Accept(ctx context.Context, userID, token string) (*domain.Invite, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, domain.ErrInviteNotFound
	}

	var invite *domain.Invite
	err := database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		invite, err = s.invites.GetByTokenForUpdate(ctx, tx, token)
		if err != nil {
			return err
		}
		if invite.InviterID == userID {
			return fmt.Errorf("%w: cannot accept your own invite", domain.ErrValidation)
		}
		if !invite.IsAcceptable(s.now()) {
			return fmt.Errorf("%w: invite is %s", domain.ErrInviteNotAcceptable, invite.Status)
		}
		return s.invites.MarkAccepted(ctx, tx, invite.ID, userID)
	})
	if err != nil {
		return nil, err
	}

	invite.Status = domain.InviteStatusAccepted
	invite.AcceptedBy = &userID

	slog.Info("invite accepted", "invite_id", invite.ID, "user_id", userID)
	return invite, nil
}

// SendEmail sends a plain email to the caller's own address or to someone they invited.
func (s *InviteService) SendEmail(ctx context.Context, sender *domain.User, in EmailInput) (string, error) {
	if s.mailer == nil {
		return "", domain.ErrMailerNotConfigured
	}

	to, err := mailer.ValidateAddress(in.To)
	if err != nil {
		return "", err
	}
	subject := strings.TrimSpace(in.Subject)
	if subject == "" || strings.ContainsAny(subject, "\r\n") {
		return "", fmt.Errorf("%w: subject is required and must be a single line", domain.ErrValidation)
	}
	if strings.TrimSpace(in.Body) == "" || len(in.Body) > maxEmailBodyLength {
		return "", fmt.Errorf("%w: body is required and limited to %d bytes", domain.ErrValidation, maxEmailBodyLength)
	}

	if !strings.EqualFold(to, sender.Email) {
		invited, err := s.invites.HasInvited(ctx, sender.ID, to)
		if err != nil {
			return "", err
		}
		if !invited {
			return "", fmt.Errorf("%w: recipient must be you or someone you invited", domain.ErrValidation)
		}
	}

	return s.mailer.Send(ctx, mailer.Email{To: to, Subject: subject, Text: in.Body})
}
