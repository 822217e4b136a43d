package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	appconfig "github.com/rateflow/rateflow-backend/config"
	"github.com/rateflow/rateflow-backend/models"
	"github.com/sirupsen/logrus"
)

// EmailService sends transactional confirmation emails through AWS SES.
// It is disabled (all sends become no-ops) when no AWS region is configured,
// so local development works without AWS credentials.
type EmailService struct {
	client      *ses.Client
	fromAddress string
	enabled     bool
}

func NewEmailService(ctx context.Context, cfg *appconfig.Config) *EmailService {
	if cfg.AWSRegion == "" || cfg.EmailFromAddress == "" {
		logrus.Info("Email service disabled, AWS region or from address not configured")
		return &EmailService{enabled: false}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logrus.WithError(err).Warn("Failed to load AWS config, email service disabled")
		return &EmailService{enabled: false}
	}

	return &EmailService{
		client:      ses.NewFromConfig(awsCfg),
		fromAddress: cfg.EmailFromAddress,
		enabled:     true,
	}
}

// SendLeadConfirmation emails the borrower after their inquiry is accepted.
// Best effort: failures are logged and never affect the submission.
func (s *EmailService) SendLeadConfirmation(ctx context.Context, lead *models.Lead) {
	if !s.enabled || lead == nil || lead.Email == "" {
		return
	}

	name := "there"
	if lead.FirstName != nil && *lead.FirstName != "" {
		name = *lead.FirstName
	}

	subject := "We received your mortgage rate inquiry"
	body := fmt.Sprintf(
		"Hi %s,\n\nThanks for your inquiry. A licensed loan officer will reach out shortly with personalized rate quotes for your $%.0f loan in %s.\n\nThe RateFlow Team\n",
		name, lead.LoanAmount, lead.State)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{lead.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"lead_id": lead.ID,
		}).Warn("Failed to send lead confirmation email")
		return
	}

	logrus.WithField("lead_id", lead.ID).Debug("Lead confirmation email sent")
}
