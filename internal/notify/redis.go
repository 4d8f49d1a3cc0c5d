package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmate/careerwatch-service/internal/model"
)

// EventPostingNew is both the event type and the Redis channel.
const EventPostingNew = "EVENT_POSTING_NEW"

// Publisher announces new postings on a Redis channel for other services.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

// NewPublisher publishes on EventPostingNew.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb, channel: EventPostingNew}
}

// PostingEvent is the JSON payload published per posting.
type PostingEvent struct {
	Type         string     `json:"type"`
	Organization string     `json:"organization"`
	ExternalID   string     `json:"externalId"`
	Title        string     `json:"title"`
	Location     string     `json:"location,omitempty"`
	Department   string     `json:"department,omitempty"`
	URL          string     `json:"url"`
	Source       string     `json:"source"`
	PostedAt     *time.Time `json:"postedAt,omitempty"`
	FirstSeenAt  time.Time  `json:"firstSeenAt"`
}

// NewPostingEvent builds the payload for p.
func NewPostingEvent(p model.Posting) PostingEvent {
	return PostingEvent{
		Type:         EventPostingNew,
		Organization: p.Organization,
		ExternalID:   p.ExternalID,
		Title:        p.Title,
		Location:     p.Location,
		Department:   p.Department,
		URL:          p.URL,
		Source:       string(p.Source),
		PostedAt:     p.PostedAt,
		FirstSeenAt:  p.FirstSeenAt,
	}
}

// Send implements Notifier.
func (p *Publisher) Send(ctx context.Context, posting model.Posting) error {
	event, err := json.Marshal(NewPostingEvent(posting))
	if err == nil {
		err = p.rdb.Publish(ctx, p.channel, event).Err()
	}
	if err != nil {
		return &NotificationError{
			Channel:      "redis",
			Organization: posting.Organization,
			ExternalID:   posting.ExternalID,
			Cause:        err,
		}
	}
	return nil
}
