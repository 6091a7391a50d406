package github

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
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.GithubBaseURL, "/"),
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		log:     log,
	}
}

type Repo struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	Private  bool   `json:"private"`
}

type Commit struct {
	SHA          string
	Message      string
	AuthorName   string
	AuthorEmail  string
	CommittedAt  time.Time
	URL          string
	Additions    int
	Deletions    int
	FilesChanged int
}

func (c *Client) apiURL(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u = u + "?" + q.Encode()
	}
	return u
}

// doJSON performs an authenticated GET and decodes the response into out.
// Retries up to 3 times on 429/5xx with backoff; 401/403 map to the
// upstream-auth error.
func (c *Client) doJSON(ctx context.Context, token, u string, out any) error {
	if c.baseURL == "" {
		return errors.New("github: empty baseURL")
	}
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			func() {
				defer resp.Body.Close()
				switch {
				case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
					lastErr = fmt.Errorf("github api status=%d: %w", resp.StatusCode, domain.ErrUpstreamAuth)
				case resp.StatusCode == 429 || resp.StatusCode >= 500:
					b, _ := io.ReadAll(resp.Body)
					lastErr = fmt.Errorf("github api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
				case resp.StatusCode == http.StatusNotFound:
					lastErr = fmt.Errorf("github api status=404: %w", domain.ErrNotFound)
				case resp.StatusCode >= 300:
					b, _ := io.ReadAll(resp.Body)
					lastErr = fmt.Errorf("github api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
				default:
					lastErr = json.NewDecoder(resp.Body).Decode(out)
				}
			}()
			if lastErr == nil {
				return nil
			}
			// only 429/5xx and transport errors are retryable
			if errors.Is(lastErr, domain.ErrUpstreamAuth) || errors.Is(lastErr, domain.ErrNotFound) {
				return lastErr
			}
			if resp.StatusCode >= 300 && resp.StatusCode != 429 && resp.StatusCode < 500 {
				return lastErr
			}
		}
		time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}

// Repos lists the user's repositories, private included.
func (c *Client) Repos(ctx context.Context, token string) ([]Repo, error) {
	q := url.Values{}
	q.Set("visibility", "all")
	q.Set("affiliation", "owner,collaborator,organization_member")
	q.Set("sort", "updated")
	q.Set("per_page", "100")
	var out []Repo
	if err := c.doJSON(ctx, token, c.apiURL("/user/repos", q), &out); err != nil {
		return nil, err
	}
	return out, nil
}

type commitPayload struct {
	SHA    string `json:"sha"`
	URL    string `json:"html_url"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Date  string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
		Total     int `json:"total"`
	} `json:"stats"`
}

// Commits lists a repository's commits with committed_at in [since, until].
func (c *Client) Commits(ctx context.Context, token, repoFullName string, since, until time.Time) ([]Commit, error) {
	q := url.Values{}
	q.Set("since", since.Format(time.RFC3339))
	q.Set("until", until.Format(time.RFC3339))
	q.Set("per_page", "100")
	u := c.apiURL("/repos/"+repoFullName+"/commits", q)
	var payload []commitPayload
	if err := c.doJSON(ctx, token, u, &payload); err != nil {
		return nil, err
	}
	out := make([]Commit, 0, len(payload))
	for _, p := range payload {
		committedAt, err := time.Parse(time.RFC3339, p.Commit.Author.Date)
		if err != nil {
			committedAt = time.Now().UTC()
		}
		out = append(out, Commit{
			SHA:          p.SHA,
			Message:      p.Commit.Message,
			AuthorName:   p.Commit.Author.Name,
			AuthorEmail:  p.Commit.Author.Email,
			CommittedAt:  committedAt,
			URL:          p.URL,
			Additions:    p.Stats.Additions,
			Deletions:    p.Stats.Deletions,
			FilesChanged: p.Stats.Total,
		})
	}
	return out, nil
}
