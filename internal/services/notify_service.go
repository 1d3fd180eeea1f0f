package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESNotifyService emails the site operator when an address is locked
// out. Delivery is fire-and-forget: a notification failure never affects
// the login response.
type SESNotifyService struct {
	sesClient   *ses.Client
	fromAddress string
	adminEmail  string
	logger      *slog.Logger
}

// NewSESNotifyService creates a new SES-backed lockout notifier. Returns
// nil (notifications disabled) when no from/admin address is configured.
func NewSESNotifyService(region, fromAddress, adminEmail string, logger *slog.Logger) (*SESNotifyService, error) {
	if fromAddress == "" || adminEmail == "" {
		return nil, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESNotifyService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		adminEmail:  adminEmail,
		logger:      logger,
	}, nil
}

// NotifyLockout sends the lockout email
func (s *SESNotifyService) NotifyLockout(ctx context.Context, address string, minutes int) {
	subject := fmt.Sprintf("Login lockout: %s", address)
	body := fmt.Sprintf(
		"The address %s exceeded the failed-login limit at %s and has been locked out for %d minutes.\n\n"+
			"No action is needed; the lock expires on its own. A successful login from the address after expiry clears its history.\n",
		address, time.Now().UTC().Format(time.RFC3339), minutes,
	)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{s.adminEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if _, err := s.sesClient.SendEmail(sendCtx, input); err != nil {
		s.logger.Warn("failed to send lockout notification",
			slog.String("address", address),
			slog.Any("error", err))
		return
	}

	s.logger.Info("lockout notification sent", slog.String("address", address))
}
