package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"jobmate/careerwatch-service/internal/model"
)

const (
	discordChannel = "discord"
	embedColor     = 0x2E86AB
	maxTitle       = 256
	maxFieldValue  = 1024
)

// Discord posts one embed per posting to a webhook.
type Discord struct {
	webhookURL string
	client     *http.Client
}

// NewDiscord returns a Discord notifier, or nil when webhookURL is empty so
// callers can leave the channel out.
func NewDiscord(webhookURL string, client *http.Client) *Discord {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Discord{webhookURL: webhookURL, client: client}
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title  string         `json:"title"`
	URL    string         `json:"url,omitempty"`
	Color  int            `json:"color"`
	Fields []discordField `json:"fields"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Send implements Notifier. Any non-2xx answer is a *NotificationError.
func (d *Discord) Send(ctx context.Context, p model.Posting) error {
	body, err := json.Marshal(discordPayload{Embeds: []discordEmbed{embedFor(p)}})
	if err != nil {
		return d.fail(p, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return d.fail(p, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return d.fail(p, 0, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return d.fail(p, resp.StatusCode, errors.New("webhook rejected message"))
	}
	return nil
}

func (d *Discord) fail(p model.Posting, status int, cause error) error {
	return &NotificationError{
		Channel:      discordChannel,
		Organization: p.Organization,
		ExternalID:   p.ExternalID,
		StatusCode:   status,
		Cause:        cause,
	}
}

func embedFor(p model.Posting) discordEmbed {
	title := orDefault(p.Title, "Untitled")
	e := discordEmbed{
		Title: truncate(title, maxTitle),
		Color: embedColor,
		Fields: []discordField{
			{Name: "Company", Value: truncate(orDefault(p.Organization, "Unknown"), maxFieldValue), Inline: true},
			{Name: "Location", Value: truncate(orDefault(p.Location, "-"), maxFieldValue), Inline: true},
			{Name: "Apply", Value: truncate(orDefault(p.URL, "-"), maxFieldValue)},
		},
	}
	if strings.HasPrefix(p.URL, "http") {
		e.URL = p.URL
	}
	return e
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
