package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Client talks to the procurement feed's JSON API (SAM.gov-style
// opportunity search plus a per-notice description endpoint).
type Client struct {
	HTTP    *http.Client
	BaseURL string
	APIKey  string

	log zerolog.Logger
}

func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: 60 * time.Second},
		BaseURL: baseURL,
		APIKey:  apiKey,
		log:     log,
	}
}

// Notice is one solicitation record from the feed's search endpoint.
type Notice struct {
	NoticeID           string `json:"noticeId"`
	Title              string `json:"title"`
	SolicitationNumber string `json:"solicitationNumber"`
	NAICSCode          string `json:"naicsCode"`
	ClassificationCode string `json:"classificationCode"`
	TypeOfSetAside     string `json:"typeOfSetAside"`
	ResponseDeadLine   string `json:"responseDeadLine"`
	PostedDate         string `json:"postedDate"`
	Description        string `json:"description"`
}

// Detail is the per-notice payload used to enrich a single opportunity
// view. The description arrives as raw HTML.
type Detail struct {
	NoticeID    string `json:"noticeid"`
	Description string `json:"description"`
}

type searchResponse struct {
	TotalRecords      int      `json:"totalRecords"`
	OpportunitiesData []Notice `json:"opportunitiesData"`
}

// DeadlineLayout is the timestamp format the feed uses for response
// deadlines.
const DeadlineLayout = "2006-01-02T15:04:05-07:00"

// Search fetches one page of solicitations posted on or after postedFrom.
func (c *Client) Search(ctx context.Context, postedFrom time.Time, limit, offset int) ([]Notice, int, error) {
	q := url.Values{}
	q.Set("api_key", c.APIKey)
	q.Set("postedFrom", postedFrom.Format("01/02/2006"))
	q.Set("postedTo", time.Now().Format("01/02/2006"))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	endpoint := c.BaseURL + "/opportunities/v2/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Int("offset", offset).Int("limit", limit).Msg("fetching feed page")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, 0, fmt.Errorf("feed returned %d: %s", resp.StatusCode, string(body))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, 0, fmt.Errorf("decoding feed response: %w", err)
	}

	return payload.OpportunitiesData, payload.TotalRecords, nil
}

// GetOpportunityDetails fetches the full description for one notice.
// Callers treat failure as degradation, not a hard error.
func (c *Client) GetOpportunityDetails(ctx context.Context, noticeID string) (*Detail, error) {
	q := url.Values{}
	q.Set("api_key", c.APIKey)
	q.Set("noticeid", noticeID)

	endpoint := c.BaseURL + "/opportunities/v1/noticedesc?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("detail endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var detail Detail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("decoding detail response: %w", err)
	}
	if detail.NoticeID == "" {
		detail.NoticeID = noticeID
	}

	return &detail, nil
}

// ParseDeadline converts the feed's deadline string into a timestamp.
// Empty or unparseable strings come back nil: a missing deadline is a
// valid state, not an error.
func ParseDeadline(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{DeadlineLayout, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
