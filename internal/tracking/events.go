package tracking

import (
	"context"
	"time"

	"github.com/goyoulink/affiliate-tracker/internal/domain"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
)

// ClickEvent is one visit through an affiliate short link.
type ClickEvent struct {
	ID          string    `json:"click_id"`
	AffiliateID string    `json:"affiliate_id"`
	ShortCode   string    `json:"short_code"`
	IPAddress   string    `json:"ip_address"`
	UserAgent   string    `json:"user_agent"`
	Referer     string    `json:"referer,omitempty"`
	LandedURL   string    `json:"landed_url"`
	Timestamp   time.Time `json:"timestamp"`
}

// Click converts the event to the stored form. The event ID becomes the click
// ID so a redelivered event is stored once.
func (e ClickEvent) Click() *domain.Click {
	return &domain.Click{
		ID:          e.ID,
		AffiliateID: e.AffiliateID,
		IPAddress:   e.IPAddress,
		UserAgent:   e.UserAgent,
		Referer:     e.Referer,
		LandedURL:   e.LandedURL,
		CreatedAt:   e.Timestamp,
	}
}

// Sink receives click events. Publish must not fail the redirect, so it
// reports nothing back.
type Sink interface {
	Publish(ctx context.Context, evt ClickEvent)
}

// ClickRecorder stores clicks; *affiliate.Service satisfies it.
type ClickRecorder interface {
	RecordClick(ctx context.Context, affiliateID string, c *domain.Click) error
}

// DirectSink records clicks in-process, for single-binary deployments
// without a queue.
type DirectSink struct {
	recorder ClickRecorder
}

// NewDirectSink returns a Sink writing straight to recorder.
func NewDirectSink(recorder ClickRecorder) *DirectSink {
	return &DirectSink{recorder: recorder}
}

func (s *DirectSink) Publish(ctx context.Context, evt ClickEvent) {
	if err := s.recorder.RecordClick(ctx, evt.AffiliateID, evt.Click()); err != nil {
		logger.Error("record click failed", "affiliate_id", evt.AffiliateID, "short_code", evt.ShortCode, "error", err)
	}
}
