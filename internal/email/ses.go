package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESClient is the slice of the SES v2 API the sender needs.
type SESClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Sender delivers notification mail through Amazon SES.
type Sender struct {
	client    SESClient
	fromEmail string
	fromName  string
}

// Option configures a Sender.
type Option func(*Sender)

// WithClient replaces the SES client, mainly for tests.
func WithClient(c SESClient) Option {
	return func(s *Sender) {
		s.client = c
	}
}

// New builds a Sender. When fromEmail is empty the sender is disabled and
// every Send is a no-op.
func New(ctx context.Context, region, fromEmail, fromName string, opts ...Option) (*Sender, error) {
	s := &Sender{fromEmail: fromEmail, fromName: fromName}
	for _, opt := range opts {
		opt(s)
	}
	if fromEmail == "" || s.client != nil {
		return s, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	s.client = sesv2.NewFromConfig(cfg)
	return s, nil
}

// Configured reports whether Send will actually deliver mail.
func (s *Sender) Configured() bool {
	return s != nil && s.fromEmail != "" && s.client != nil
}

func (s *Sender) fromAddress() string {
	if s.fromName == "" {
		return s.fromEmail
	}
	return fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
}

// Send delivers one message with text and HTML bodies.
func (s *Sender) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	if !s.Configured() {
		return nil
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("send email: empty recipient")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.fromAddress()),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
