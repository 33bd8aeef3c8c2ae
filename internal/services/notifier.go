package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/landmark/internal/models"
	pkglogger "github.com/BradenHooton/landmark/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// InquiryNotifier tells staff about a new lead.
type InquiryNotifier interface {
	NotifyNewInquiry(ctx context.Context, inq *models.Inquiry) error
}

// SESAPI is the slice of the SES client the notifier uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier emails new inquiries to a staff distribution list.
type SESNotifier struct {
	client      SESAPI
	fromAddress string
	recipients  []string
	logger      *slog.Logger
}

// NewSESNotifier loads the default AWS credential chain for region.
func NewSESNotifier(ctx context.Context, region, fromAddress string, recipients []string, logger *slog.Logger) (*SESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, recipients, logger), nil
}

func NewSESNotifierWithClient(client SESAPI, fromAddress string, recipients []string, logger *slog.Logger) *SESNotifier {
	return &SESNotifier{
		client:      client,
		fromAddress: fromAddress,
		recipients:  recipients,
		logger:      logger,
	}
}

func (n *SESNotifier) NotifyNewInquiry(ctx context.Context, inq *models.Inquiry) error {
	if len(n.recipients) == 0 {
		return nil
	}

	var body strings.Builder
	fmt.Fprintf(&body, "New inquiry received\n\n")
	fmt.Fprintf(&body, "Name:     %s\n", inq.Name)
	fmt.Fprintf(&body, "Phone:    %s\n", inq.Phone)
	if inq.Email != nil {
		fmt.Fprintf(&body, "Email:    %s\n", *inq.Email)
	}
	fmt.Fprintf(&body, "Source:   %s\n", inq.Source)
	if inq.Platform != nil {
		fmt.Fprintf(&body, "Platform: %s\n", *inq.Platform)
	}
	if inq.Message != nil {
		fmt.Fprintf(&body, "\n%s\n", *inq.Message)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: n.recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String("New inquiry from " + inq.Name),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body.String()),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := n.client.SendEmail(ctx, input); err != nil {
		n.logger.Error("failed to send inquiry notification",
			slog.String("inquiry_id", inq.ID),
			slog.String("phone", pkglogger.MaskedPhone(inq.Phone)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("inquiry notification sent", slog.String("inquiry_id", inq.ID))
	return nil
}

// NoopNotifier is used when SES is not configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyNewInquiry(ctx context.Context, inq *models.Inquiry) error { return nil }
