package esp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/flowdose/invite-dispatcher/internal/domain"
)

// ErrSESNotConfigured is returned by Send when no SES client could be built.
var ErrSESNotConfigured = errors.New("SES client not initialized - check credentials")

// SESAPI is the subset of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends emails via AWS SES using the SDK v2.
type SESSender struct {
	client SESAPI
	region string
}

// NewSESSender creates an SES sender. The AWS client is only built when both
// keys are provided; otherwise Send reports ErrSESNotConfigured.
func NewSESSender(ctx context.Context, accessKey, secretKey, region string) (*SESSender, error) {
	if region == "" {
		region = "us-east-1"
	}
	sender := &SESSender{region: region}
	if accessKey == "" || secretKey == "" {
		return sender, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	sender.client = sesv2.NewFromConfig(cfg)
	return sender, nil
}

// NewSESSenderWithClient wraps an existing SES API client.
func NewSESSenderWithClient(client SESAPI, region string) *SESSender {
	return &SESSender{client: client, region: region}
}

// Send delivers a single email through AWS SES.
func (s *SESSender) Send(ctx context.Context, msg *domain.NotificationRequest) (*domain.SendResult, error) {
	if s.client == nil {
		return nil, ErrSESNotConfigured
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.BodyHTML), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	for name, value := range msg.Tags {
		input.EmailTags = append(input.EmailTags, types.MessageTag{Name: aws.String(name), Value: aws.String(value)})
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("ses send email: %w", err)
	}

	return &domain.SendResult{
		MessageID: aws.ToString(out.MessageId),
		ESPType:   domain.ESPSES,
		SentAt:    time.Now(),
	}, nil
}
