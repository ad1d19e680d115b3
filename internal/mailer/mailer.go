// Package mailer sends transactional email through Amazon SES.
package mailer

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/mtlprog/agentdesk/internal/domain"
)

const charset = "UTF-8"

// Email is a single outgoing message. HTML is optional.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// SESAPI is the part of the SES client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SES sends mail from a fixed verified address.
type SES struct {
	client SESAPI
	from   string
	logger *slog.Logger
}

// NewSES loads the default AWS credential chain for region.
func NewSES(ctx context.Context, region, from string) (*SES, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSESWithClient(ses.NewFromConfig(cfg), from), nil
}

// NewSESWithClient wraps an existing client.
func NewSESWithClient(client SESAPI, from string) *SES {
	return &SES{
		client: client,
		from:   from,
		logger: slog.Default().With("component", "mailer"),
	}
}

// ValidateAddress checks an RFC 5322 address and returns the bare address.
func ValidateAddress(addr string) (string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(addr))
	if err != nil {
		return "", fmt.Errorf("%w: invalid email address", domain.ErrValidation)
	}
	return strings.ToLower(parsed.Address), nil
}

// Send delivers the message and returns the SES message id.
func (s *SES) Send(ctx context.Context, e Email) (string, error) {
	to, err := ValidateAddress(e.To)
	if err != nil {
		return "", err
	}

	body := &types.Body{
		Text: &types.Content{Data: aws.String(e.Text), Charset: aws.String(charset)},
	}
	if e.HTML != "" {
		body.Html = &types.Content{Data: aws.String(e.HTML), Charset: aws.String(charset)}
	}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(e.Subject), Charset: aws.String(charset)},
			Body:    body,
		},
		Source: aws.String(s.from),
	})
	if err != nil {
		return "", fmt.Errorf("%w: ses send: %v", domain.ErrUpstreamFailed, err)
	}

	id := aws.ToString(out.MessageId)
	s.logger.Info("email sent", "to", to, "message_id", id)
	return id, nil
}

// InviteEmail renders the invitation message.
func InviteEmail(to, inviterName, agentName, acceptURL string) Email {
	subject := fmt.Sprintf("%s invited you to agentdesk", inviterName)
	target := "their workspace"
	if agentName != "" {
		target = fmt.Sprintf("the agent %q", agentName)
	}

	text := fmt.Sprintf("%s invited you to %s.\n\nAccept the invitation: %s\n\nThe link expires in 7 days.\n",
		inviterName, target, acceptURL)
	htmlBody := fmt.Sprintf(`<p>%s invited you to %s.</p><p><a href="%s">Accept the invitation</a></p><p>The link expires in 7 days.</p>`,
		html.EscapeString(inviterName), html.EscapeString(target), html.EscapeString(acceptURL))

	return Email{To: to, Subject: subject, Text: text, HTML: htmlBody}
}
