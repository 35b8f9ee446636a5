package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
)

// SNSAPI is the part of the SNS client the notifier uses.
type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient publishes alert notifications to a topic.
type SNSClient struct {
	svc      SNSAPI
	topicArn string
}

func NewSNSClient(cfg aws.Config, topicArn string) *SNSClient {
	return NewSNSClientWith(sns.NewFromConfig(cfg), topicArn)
}

func NewSNSClientWith(svc SNSAPI, topicArn string) *SNSClient {
	return &SNSClient{svc: svc, topicArn: topicArn}
}

func (c *SNSClient) SendAlert(ctx context.Context, subject, message string) error {
	out, err := c.svc.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(c.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	log.Info().Str("messageId", aws.ToString(out.MessageId)).Msg("alert sent")
	return nil
}

// SendCriticalAlerts sends one notification listing the critical alerts of
// an analysis run. Nothing is sent when there are none.
func (c *SNSClient) SendCriticalAlerts(ctx context.Context, unit domain.Unit, alerts []domain.AnalysisAlert) error {
	var b strings.Builder
	n := 0
	for _, a := range alerts {
		if a.Severity != domain.SeverityCritical {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s %s: %.2f -> %.2f (+%.2f%%) on %s\n",
			n, a.Equipment, a.Parameter, a.PreviousValue, a.CurrentValue, a.IncreasePercent, a.Date)
	}
	if n == 0 {
		return nil
	}

	subject := fmt.Sprintf("Vibration Alert: %d critical increases in %s", n, unit)
	message := "Critical vibration increases detected:\n\n" + b.String() +
		"\nStop the affected equipment and inspect it immediately."
	return c.SendAlert(ctx, subject, message)
}
