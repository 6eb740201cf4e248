package jira

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/skridlevsky/interest-dash/internal/interest"
	"golang.org/x/sync/errgroup"
)

// searchFields limits the search payload to what the dashboard reads
var searchFields = []string{"votes", "reporter", "summary"}

// SearchIssue represents an issue from the search API
type SearchIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Votes   *struct {
			Self  string `json:"self"`
			Votes *int   `json:"votes"`
		} `json:"votes"`
		Reporter *User `json:"reporter"`
	} `json:"fields"`
}

// User is a tracker account as embedded in API responses
type User struct {
	DisplayName string `json:"displayName"`
}

type searchResponse struct {
	Issues []SearchIssue `json:"issues"`
	Total  int           `json:"total"`
}

type votersResponse struct {
	Voters []User `json:"voters"`
}

// SearchURL builds the search endpoint URL for a JQL query
func SearchURL(baseURL, jql string, fields []string) string {
	params := url.Values{}
	params.Set("jql", jql)
	if len(fields) > 0 {
		params.Set("fields", strings.Join(fields, ","))
	}
	return NormalizeBaseURL(baseURL) + "rest/api/2/search?" + params.Encode()
}

// Search runs a JQL query against baseURL (the client's own base when empty)
func (c *Client) Search(ctx context.Context, baseURL, jql string) ([]SearchIssue, error) {
	if baseURL == "" {
		baseURL = c.baseURL
	}

	resp, err := c.doRequest(ctx, "GET", SearchURL(baseURL, jql, searchFields))
	if err != nil {
		return nil, err
	}

	if !isSuccess(resp.StatusCode) {
		return nil, readErrorAndClose(resp)
	}

	var result searchResponse
	if err := readAndClose(resp, &result); err != nil {
		return nil, err
	}

	if result.Issues == nil {
		return nil, fmt.Errorf("%w: search response has no issues list", ErrMalformedResponse)
	}

	for _, issue := range result.Issues {
		if issue.Key == "" {
			return nil, fmt.Errorf("%w: issue without key", ErrMalformedResponse)
		}
		if issue.Fields.Votes == nil || issue.Fields.Votes.Self == "" {
			return nil, fmt.Errorf("%w: issue %s has no votes resource", ErrMalformedResponse, issue.Key)
		}
	}

	if result.Total > len(result.Issues) {
		slog.Warn("Search result truncated", "total", result.Total, "returned", len(result.Issues))
	}

	return result.Issues, nil
}

// Voters fetches the display names of everyone who voted via a votes resource URL
func (c *Client) Voters(ctx context.Context, votesURL string) ([]string, error) {
	resp, err := c.doRequest(ctx, "GET", votesURL)
	if err != nil {
		return nil, err
	}

	if !isSuccess(resp.StatusCode) {
		return nil, readErrorAndClose(resp)
	}

	var result votersResponse
	if err := readAndClose(resp, &result); err != nil {
		return nil, err
	}

	if result.Voters == nil {
		return nil, fmt.Errorf("%w: votes response has no voters list", ErrMalformedResponse)
	}

	names := make([]string, 0, len(result.Voters))
	for _, voter := range result.Voters {
		names = append(names, voter.DisplayName)
	}

	return names, nil
}

// Relations runs the query's search and fetches every issue's voters with
// bounded parallelism. Relations are merged in search order. An issue whose
// voters cannot be fetched is skipped; a malformed body fails the whole call.
func (c *Client) Relations(ctx context.Context, q interest.Query) (*interest.FetchResult, error) {
	issues, err := c.Search(ctx, q.BaseURL, q.JQL)
	if err != nil {
		return nil, err
	}

	voters := make([][]string, len(issues))
	failures := make([]error, len(issues))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, issue := range issues {
		i, issue := i, issue
		// The search already says nobody voted
		if count := issue.Fields.Votes.Votes; count != nil && *count == 0 {
			continue
		}

		g.Go(func() error {
			names, err := c.Voters(gctx, issue.Fields.Votes.Self)
			if err != nil {
				if errors.Is(err, ErrMalformedResponse) {
					return fmt.Errorf("voters of %s: %w", issue.Key, err)
				}
				failures[i] = err
				return nil
			}
			voters[i] = names
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &interest.FetchResult{
		Relations: []interest.Relation{},
	}

	for i, issue := range issues {
		subject := interest.Issue{Key: issue.Key, Summary: issue.Fields.Summary}

		if failures[i] != nil {
			slog.Warn("Skipping votes of issue", "issue", issue.Key, "error", failures[i])
			result.Skipped = append(result.Skipped, interest.SkippedIssue{
				Key:    issue.Key,
				Reason: failures[i].Error(),
			})
		}

		for _, name := range voters[i] {
			result.Relations = append(result.Relations, interest.Relation{
				Issue:  subject,
				Person: name,
				Role:   interest.RoleVoted,
			})
		}

		if q.IncludeReporters && issue.Fields.Reporter != nil && issue.Fields.Reporter.DisplayName != "" {
			result.Relations = append(result.Relations, interest.Relation{
				Issue:  subject,
				Person: issue.Fields.Reporter.DisplayName,
				Role:   interest.RoleReported,
			})
		}
	}

	return result, nil
}
