// Package alert formats and publishes critical operational notifications.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Publisher delivers a subject/message pair with string attributes to a
// notification topic.
type Publisher interface {
	Publish(ctx context.Context, subject, message string, attrs map[string]string) error
}

// Critical describes one critical alert.
type Critical struct {
	ErrorType        string
	Message          string
	Code             string
	ExecutionID      string
	AffectedProducts int
	Details          map[string]string
}

// Gateway formats critical alerts and hands them to a Publisher. A nil
// publisher means no destination is configured and sends become explicit
// no-ops.
type Gateway struct {
	publisher Publisher
	region    string
	now       func() time.Time
}

// NewGateway builds a gateway. publisher may be nil.
func NewGateway(publisher Publisher, region string) *Gateway {
	return &Gateway{publisher: publisher, region: region, now: time.Now}
}

// SendCriticalAlert formats and publishes a critical alert. It never
// returns an error: a broken alert channel must not abort or mask the sync
// outcome. It returns false both when no destination is configured and when
// delivery fails; the two cases are distinguished in logs only.
func (g *Gateway) SendCriticalAlert(ctx context.Context, subject string, a Critical) bool {
	if g == nil || g.publisher == nil {
		slog.Warn("alert destination not configured, dropping alert",
			slog.String("subject", subject),
			slog.String("error_type", a.ErrorType),
		)
		return false
	}

	message := g.formatMessage(a)
	attrs := map[string]string{
		"ErrorType": a.ErrorType,
		"Severity":  "CRITICAL",
	}

	if err := g.publisher.Publish(ctx, subject, message, attrs); err != nil {
		slog.Error("alert delivery failed",
			slog.String("subject", subject),
			slog.String("error_type", a.ErrorType),
			slog.Any("error", err),
		)
		return false
	}

	slog.Info("critical alert published",
		slog.String("subject", subject),
		slog.String("error_type", a.ErrorType),
	)
	return true
}

func (g *Gateway) formatMessage(a Critical) string {
	var b strings.Builder
	b.WriteString("=== CRITICAL: Price Sync Alert ===\n\n")
	fmt.Fprintf(&b, "Error Type: %s\n", a.ErrorType)
	fmt.Fprintf(&b, "Message: %s\n", a.Message)
	if a.Code != "" {
		fmt.Fprintf(&b, "Error Code: %s\n", a.Code)
	}
	if a.ExecutionID != "" {
		fmt.Fprintf(&b, "Execution ID: %s\n", a.ExecutionID)
	}
	if a.AffectedProducts > 0 {
		fmt.Fprintf(&b, "Affected Products: %d\n", a.AffectedProducts)
	}

	if len(a.Details) > 0 {
		b.WriteString("\nDetails:\n")
		keys := make([]string, 0, len(a.Details))
		for k := range a.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, a.Details[k])
		}
	}

	b.WriteString("\nAction required: investigate the price sync pipeline.\n\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", g.now().UTC().Format(time.RFC3339))
	if g.region != "" {
		fmt.Fprintf(&b, "Region: %s\n", g.region)
	}
	return b.String()
}
