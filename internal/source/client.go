package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ademelnik/jobsieve/internal/model"
)

// Ensure Client implements both source-facing ports.
var (
	_ model.VacancyFetcher   = (*Client)(nil)
	_ model.ExistenceChecker = (*Client)(nil)
)

// apiVacancy represents one vacancy in the source API search response.
type apiVacancy struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Employer    apiEmployer `json:"employer"`
	Area        apiArea     `json:"area"`
	URL         string      `json:"alternate_url"`
	PublishedAt string      `json:"published_at"`
	Snippet     apiSnippet  `json:"snippet"`
	Description string      `json:"description"` // only on the detail endpoint
}

type apiEmployer struct {
	Name string `json:"name"`
}

type apiArea struct {
	Name string `json:"name"`
}

type apiSnippet struct {
	Requirement    string `json:"requirement"`
	Responsibility string `json:"responsibility"`
}

// searchResponse is the top-level search endpoint response.
type searchResponse struct {
	Items []apiVacancy `json:"items"`
}

// Client talks to an HH-style vacancy API: a paged search endpoint plus a
// per-vacancy detail endpoint that doubles as the existence check.
type Client struct {
	baseURL    string
	searchText string
	userAgent  string
	client     *http.Client
}

// NewClient creates a client for the vacancy API at baseURL, searching for
// searchText.
func NewClient(baseURL, searchText, userAgent string, client *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		searchText: searchText,
		userAgent:  userAgent,
		client:     client,
	}
}

// FetchVacancies retrieves the current search results and normalizes them
// into the Vacancy model. Each result also carries the full description when
// the API provides it inline; otherwise the snippet fields are joined.
func (c *Client) FetchVacancies(ctx context.Context) ([]model.Vacancy, error) {
	u := fmt.Sprintf("%s/vacancies?text=%s&order_by=publication_time", c.baseURL, url.QueryEscape(c.searchText))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("vacancy search: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vacancy search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("vacancy search"),
		}
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("vacancy search: decoding response: %w", err)
	}

	vacancies := make([]model.Vacancy, 0, len(sr.Items))
	for _, av := range sr.Items {
		v := model.Vacancy{
			ID:          av.ID,
			Title:       av.Name,
			Employer:    av.Employer.Name,
			Location:    av.Area.Name,
			URL:         av.URL,
			Description: av.Description,
			Status:      model.StatusQueued,
		}
		if v.Description == "" {
			v.Description = joinSnippet(av.Snippet)
		}
		if av.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, av.PublishedAt); err == nil {
				v.PostedAt = t
			}
		}
		vacancies = append(vacancies, v)
	}

	return vacancies, nil
}

// Exists checks the detail endpoint for the vacancy. A 404 means the posting
// was taken down; any other non-200 is a transport error.
func (c *Client) Exists(ctx context.Context, id string) (bool, error) {
	u := fmt.Sprintf("%s/vacancies/%s", c.baseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("vacancy existence check for %s: %w", id, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("vacancy existence check for %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("vacancy existence check for %s", id),
		}
	}
}
