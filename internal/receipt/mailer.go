package receipt

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/zombor/receipt-pipeline/internal/logger"
)

// SESAPI is the subset of the SES v2 client used by SESMailer
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer implements the Mailer interface using Amazon SES
type SESMailer struct {
	client SESAPI
}

// NewSESMailer creates an SESMailer from an AWS config
func NewSESMailer(cfg aws.Config) *SESMailer {
	return NewSESMailerWithClient(sesv2.NewFromConfig(cfg))
}

// NewSESMailerWithClient creates an SESMailer with a custom client for testing
func NewSESMailerWithClient(client SESAPI) *SESMailer {
	return &SESMailer{client: client}
}

// Send delivers msg as a simple HTML + text email
func (m *SESMailer) Send(ctx context.Context, msg Message) error {
	_, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: utf8Content(msg.Subject),
				Body: &types.Body{
					Html: utf8Content(msg.HTML),
					Text: utf8Content(msg.Text),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func utf8Content(data string) *types.Content {
	return &types.Content{
		Data:    aws.String(data),
		Charset: aws.String("UTF-8"),
	}
}

// LogMailer writes messages to the log instead of sending them. Useful when
// running locally without SES access.
type LogMailer struct{}

// Send logs the text body of msg
func (LogMailer) Send(ctx context.Context, msg Message) error {
	logger.FromContext(ctx).Info("Email",
		"from", msg.From,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
