package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/hubcull/internal/domain"
	"github.com/bnema/hubcull/internal/ports"
)

// accountPager walks the hub's account listing lazily. A flat-array
// body (hubs without pagination) is one complete page; an enveloped
// body is followed through _pagination.next until exhausted. Every
// record is yielded exactly once, in page order.
type accountPager struct {
	client *Client
	first  string
	next   string
	queue  []domain.Account
	pages  int
	items  int
	done   bool
	logged bool
}

var _ ports.AccountSeq = (*accountPager)(nil)

func (p *accountPager) Next(ctx context.Context) (domain.Account, bool, error) {
	for len(p.queue) == 0 {
		if p.done {
			if !p.logged {
				p.logged = true
				p.client.log.Debug().
					Str("url", p.first).
					Int("items", p.items).
					Int("pages", p.pages).
					Msg("account listing complete")
			}
			return domain.Account{}, false, nil
		}
		if err := p.fetchPage(ctx); err != nil {
			p.done = true
			return domain.Account{}, false, err
		}
	}

	account := p.queue[0]
	p.queue = p.queue[1:]
	p.items++
	return account, true, nil
}

func (p *accountPager) fetchPage(ctx context.Context) error {
	status, body, err := p.client.do(ctx, http.MethodGet, p.next, nil, true)
	if err != nil {
		return fmt.Errorf("fetch account page: %w", err)
	}
	if !is2xx(status) {
		return apiError("fetch account page", status, body)
	}
	p.pages++

	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		// Flat response from a hub without pagination support.
		var users []userModel
		if err := json.Unmarshal(trimmed, &users); err != nil {
			return fmt.Errorf("decode account list: %w", err)
		}
		p.enqueue(users)
		p.done = true
		return nil
	}

	var page pageEnvelope
	if err := json.Unmarshal(body, &page); err != nil {
		return fmt.Errorf("decode account page: %w", err)
	}
	p.enqueue(page.Items)

	if page.Pagination.Next != nil && page.Pagination.Next.URL != "" {
		p.client.log.Info().
			Int("page", p.pages+1).
			Str("url", page.Pagination.Next.URL).
			Msg("fetching next account page")
		p.next = page.Pagination.Next.URL
	} else {
		p.done = true
	}
	return nil
}

func (p *accountPager) enqueue(users []userModel) {
	for _, user := range users {
		p.queue = append(p.queue, p.toAccount(user))
	}
}

type pageEnvelope struct {
	Items      []userModel `json:"items"`
	Pagination struct {
		Next *struct {
			URL string `json:"url"`
		} `json:"next"`
	} `json:"_pagination"`
}

type userModel struct {
	Name         string `json:"name"`
	Admin        bool   `json:"admin"`
	Created      string `json:"created"`
	LastActivity string `json:"last_activity"`

	// Servers is a pointer so that a hub omitting the field entirely
	// (legacy single-session models) is distinguishable from an empty
	// map.
	Servers *map[string]serverModel `json:"servers"`

	// Legacy flat fields.
	Server  string `json:"server"`
	Pending string `json:"pending"`
}

type serverModel struct {
	Name         string `json:"name"`
	Pending      string `json:"pending"`
	Ready        *bool  `json:"ready"`
	URL          string `json:"url"`
	Started      string `json:"started"`
	LastActivity string `json:"last_activity"`
}

func (p *accountPager) toAccount(user userModel) domain.Account {
	account := domain.Account{
		Name:         user.Name,
		Admin:        user.Admin,
		Created:      p.parseTimestamp(user.Name, "created", user.Created),
		LastActivity: p.parseTimestamp(user.Name, "last_activity", user.LastActivity),
		ServerURL:    user.Server,
		Pending:      user.Pending,
	}

	if user.Servers != nil {
		sessions := make(map[string]domain.Session, len(*user.Servers))
		for name, server := range *user.Servers {
			sessions[name] = domain.Session{
				Account:      user.Name,
				Name:         server.Name,
				Pending:      server.Pending,
				Ready:        server.Ready,
				URL:          server.URL,
				Started:      p.parseTimestamp(user.Name, "started", server.Started),
				LastActivity: p.parseTimestamp(user.Name, "last_activity", server.LastActivity),
			}
		}
		account.Sessions = sessions
	}

	return account
}

// timestampLayouts accepts the hub's RFC3339 timestamps plus the naive
// form some hubs emit, which is taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// parseTimestamp treats an unparseable timestamp like an absent one so
// that a single malformed record cannot poison a whole listing page;
// the policy then simply has no age or activity to act on.
func (p *accountPager) parseTimestamp(account, field, raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
	}
	p.client.log.Warn().
		Str("account", account).
		Str("field", field).
		Str("value", raw).
		Msg("unparseable timestamp in account record")
	return nil
}
