/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/config"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
)

type Client struct {
	baseURL string
	email   string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.JiraBaseURL, "/"),
		email:   cfg.JiraEmail,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		log:     log,
	}
}

// Issue is one search result with its changelog and comments expanded.
type Issue struct {
	ID        string
	Key       string
	Title     string
	Status    string
	IssueType string
	URL       string
	Created   time.Time
	Updated   time.Time
	Changelog []ChangeGroup
	Comments  []Comment
}

type ChangeGroup struct {
	ID      string
	Author  string
	Created time.Time
	Items   []ChangeItem
}

type ChangeItem struct {
	Field   string
	FieldID string
	From    string
	To      string
}

type Comment struct {
	ID      string
	Author  string
	Body    string
	Created time.Time
}

type Worklog struct {
	ID      string
	Author  string
	Seconds int
	Started time.Time
}

func (c *Client) apiURL(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u = u + "?" + q.Encode()
	}
	return u
}

func (c *Client) doJSON(ctx context.Context, token, u string, out any) error {
	if c.baseURL == "" {
		return errors.New("jira: empty baseURL")
	}
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		if c.email != "" {
			req.SetBasicAuth(c.email, token)
		} else {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			func() {
				defer resp.Body.Close()
				switch {
				case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
					lastErr = fmt.Errorf("jira api status=%d: %w", resp.StatusCode, domain.ErrUpstreamAuth)
				case resp.StatusCode == http.StatusNotFound:
					lastErr = fmt.Errorf("jira api status=404: %w", domain.ErrNotFound)
				case resp.StatusCode >= 300:
					b, _ := io.ReadAll(resp.Body)
					lastErr = fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
				default:
					lastErr = json.NewDecoder(resp.Body).Decode(out)
				}
			}()
			if lastErr == nil {
				return nil
			}
			if resp.StatusCode != 429 && resp.StatusCode < 500 {
				return lastErr
			}
		}
		time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}

// Jira timestamps come in two flavors depending on deployment.
func parseJiraTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type issuePayload struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Created string `json:"created"`
		Updated string `json:"updated"`
		Comment struct {
			Comments []commentPayload `json:"comments"`
		} `json:"comment"`
	} `json:"fields"`
	Changelog struct {
		Histories []historyPayload `json:"histories"`
	} `json:"changelog"`
}

type historyPayload struct {
	ID     string `json:"id"`
	Author struct {
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Created string `json:"created"`
	Items   []struct {
		Field      string `json:"field"`
		FieldID    string `json:"fieldId"`
		FromString string `json:"fromString"`
		ToString   string `json:"toString"`
	} `json:"items"`
}

type commentPayload struct {
	ID     string `json:"id"`
	Author struct {
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Created string          `json:"created"`
	Body    json.RawMessage `json:"body"`
}

func (c *Client) issueFromPayload(p issuePayload) Issue {
	iss := Issue{
		ID:        p.ID,
		Key:       p.Key,
		Title:     p.Fields.Summary,
		Status:    p.Fields.Status.Name,
		IssueType: p.Fields.IssueType.Name,
		URL:       c.baseURL + "/browse/" + p.Key,
	}
	if t, ok := parseJiraTime(p.Fields.Created); ok {
		iss.Created = t
	}
	if t, ok := parseJiraTime(p.Fields.Updated); ok {
		iss.Updated = t
	}
	for _, h := range p.Changelog.Histories {
		g := ChangeGroup{ID: h.ID, Author: h.Author.DisplayName}
		if t, ok := parseJiraTime(h.Created); ok {
			g.Created = t
		}
		for _, it := range h.Items {
			g.Items = append(g.Items, ChangeItem{Field: it.Field, FieldID: it.FieldID, From: it.FromString, To: it.ToString})
		}
		iss.Changelog = append(iss.Changelog, g)
	}
	for _, cm := range p.Fields.Comment.Comments {
		out := Comment{ID: cm.ID, Author: cm.Author.DisplayName, Body: adfText(cm.Body)}
		if t, ok := parseJiraTime(cm.Created); ok {
			out.Created = t
		}
		iss.Comments = append(iss.Comments, out)
	}
	return iss
}

// IssuesUpdatedBetween pages through a JQL search for issues updated in
// [since, until], changelog and comments expanded.
func (c *Client) IssuesUpdatedBetween(ctx context.Context, token string, since, until time.Time) ([]Issue, error) {
	jql := fmt.Sprintf("updated >= '%s' AND updated <= '%s' ORDER BY updated DESC",
		since.Format("2006-01-02"), until.Format("2006-01-02"))
	var out []Issue
	startAt := 0
	for {
		q := url.Values{}
		q.Set("jql", jql)
		q.Set("startAt", fmt.Sprint(startAt))
		q.Set("maxResults", "100")
		q.Set("fields", "summary,status,issuetype,created,updated,comment")
		q.Set("expand", "changelog")
		var page struct {
			Issues []issuePayload `json:"issues"`
			Total  int            `json:"total"`
		}
		if err := c.doJSON(ctx, token, c.apiURL("/rest/api/3/search", q), &page); err != nil {
			return nil, err
		}
		for _, p := range page.Issues {
			out = append(out, c.issueFromPayload(p))
		}
		if len(page.Issues) == 0 || startAt+len(page.Issues) >= page.Total {
			break
		}
		startAt += len(page.Issues)
	}
	return out, nil
}

// Worklogs fetches all worklogs for an issue.
func (c *Client) Worklogs(ctx context.Context, token, key string) ([]Worklog, error) {
	if key == "" {
		return nil, errors.New("jira: empty issue key")
	}
	var page struct {
		Worklogs []struct {
			ID     string `json:"id"`
			Author struct {
				DisplayName string `json:"displayName"`
			} `json:"author"`
			TimeSpentSeconds int    `json:"timeSpentSeconds"`
			Started          string `json:"started"`
		} `json:"worklogs"`
	}
	u := c.apiURL("/rest/api/3/issue/"+url.PathEscape(key)+"/worklog", nil)
	if err := c.doJSON(ctx, token, u, &page); err != nil {
		return nil, err
	}
	out := make([]Worklog, 0, len(page.Worklogs))
	for _, w := range page.Worklogs {
		wl := Worklog{ID: w.ID, Author: w.Author.DisplayName, Seconds: w.TimeSpentSeconds}
		if t, ok := parseJiraTime(w.Started); ok {
			wl.Started = t
		}
		out = append(out, wl)
	}
	return out, nil
}

// adfText flattens an Atlassian Document Format body to plain text. Plain
// string bodies (API v2) pass through unchanged.
func adfText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var node any
	if err := json.Unmarshal(raw, &node); err != nil {
		return ""
	}
	var parts []string
	var walk func(n any)
	walk = func(n any) {
		switch v := n.(type) {
		case map[string]any:
			if v["type"] == "text" {
				if t, _ := v["text"].(string); t != "" {
					parts = append(parts, t)
				}
			}
			if content, ok := v["content"].([]any); ok {
				for _, child := range content {
					walk(child)
				}
			}
		case []any:
			for _, item := range v {
				walk(item)
			}
		}
	}
	walk(node)
	return strings.Join(parts, " ")
}
