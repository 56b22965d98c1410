package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/cancelkit/cancelkit/internal/config"
)

// SESMailer sends through AWS SES v2
type SESMailer struct {
	client   *sesv2.Client
	from     string
	fromName string
}

// NewSESMailer creates an SES mailer. Empty credentials fall back to
// the default AWS credential chain.
func NewSESMailer(ctx context.Context, cfg appconfig.SESConfig, mail appconfig.MailConfig) (*SESMailer, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESMailer{
		client:   sesv2.NewFromConfig(awsCfg),
		from:     mail.FromAddress,
		fromName: mail.FromName,
	}, nil
}

// fromHeader is the RFC 5322 From value
func (m *SESMailer) fromHeader() string {
	if m.fromName == "" {
		return m.from
	}
	return fmt.Sprintf("%s <%s>", m.fromName, m.from)
}

// Send delivers one message. Plain text messages go out as simple
// content; anything with attachments or an HTML body is sent raw.
func (m *SESMailer) Send(ctx context.Context, msg *Message) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.fromHeader()),
		Destination: &types.Destination{
			ToAddresses: msg.To,
			CcAddresses: msg.Cc,
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}

	if len(msg.Attachments) == 0 && msg.HTMLBody == "" {
		input.Content = &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.TextBody)},
				},
			},
		}
	} else {
		raw, err := buildMIME(m.fromHeader(), msg)
		if err != nil {
			return fmt.Errorf("building MIME message: %w", err)
		}
		input.Content = &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		}
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
