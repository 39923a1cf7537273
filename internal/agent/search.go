package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ultronlabs/ultron/internal/llm"
	"github.com/ultronlabs/ultron/pkg/models"
)

const searchEndpoint = "https://api.duckduckgo.com/"

// Searcher refines a query, fetches results from DuckDuckGo, and summarizes
// them with the model.
type Searcher struct {
	completer llm.Completer
	profiles  *Profiles
	client    *http.Client

	// endpoint is overridable for tests.
	endpoint string
	// now is overridable for tests.
	now func() time.Time
}

// NewSearcher creates a web search agent.
func NewSearcher(completer llm.Completer, profiles *Profiles) *Searcher {
	return &Searcher{
		completer: completer,
		profiles:  profiles,
		client:    &http.Client{Timeout: 15 * time.Second},
		endpoint:  searchEndpoint,
		now:       time.Now,
	}
}

// Search runs the full refine, fetch, summarize pipeline.
func (s *Searcher) Search(ctx context.Context, query string) models.StepResult {
	refined, err := s.RefineQuery(ctx, query)
	if err != nil {
		// A failed refinement is not fatal; search with the raw query.
		refined = query
	}

	snippets, err := s.fetch(ctx, refined)
	if err != nil {
		return failure("web search %q: %v", refined, err)
	}
	if len(snippets) == 0 {
		return models.StepResult{
			Status: models.StepSucceeded,
			Output: fmt.Sprintf("No web results found for %q.", refined),
		}
	}

	summary, err := s.summarize(ctx, refined, snippets)
	if err != nil {
		return failure("summarize search results: %v", err)
	}

	return models.StepResult{
		Status: models.StepSucceeded,
		Output: summary,
	}
}

// newsPreamble is appended to the refiner instructions for news-flavored
// queries so the rewrite anchors to recent sources.
const newsPreamble = "This query is about news or current events. Anchor it to the current date and prefer wording that surfaces recent sources."

var newsWords = []string{"news", "headline", "current events", "happened", "today", "yesterday"}

// RefineQuery rewrites vague recency words into the current year so the
// search hits current material. Very short queries are padded first, and
// news-flavored queries get the news research preamble.
func (s *Searcher) RefineQuery(ctx context.Context, query string) (string, error) {
	query = padShortQuery(strings.TrimSpace(query))

	today := s.now().Format("January 2, 2006")
	system := fmt.Sprintf(s.profiles.Refiner, today)
	if isNewsQuery(query) {
		system += "\n\n" + newsPreamble
	}

	resp, err := s.completer.Complete(ctx, llm.Request{
		System: system,
		Prompt: query,
	})
	if err != nil {
		return "", err
	}

	refined := strings.TrimSpace(resp.Text)
	if refined == "" {
		return query, nil
	}
	// Keep only the first line in case the model added commentary.
	if idx := strings.IndexByte(refined, '\n'); idx != -1 {
		refined = strings.TrimSpace(refined[:idx])
	}
	return refined, nil
}

// padShortQuery expands one or two word queries so the rewrite and the
// search have something to work with.
func padShortQuery(query string) string {
	if query != "" && len(strings.Fields(query)) <= 2 {
		return "detailed information about " + query
	}
	return query
}

func isNewsQuery(query string) bool {
	lowered := strings.ToLower(query)
	for _, w := range newsWords {
		if strings.Contains(lowered, w) {
			return true
		}
	}
	return false
}

// duckResponse is the subset of the DuckDuckGo instant answer payload we read.
type duckResponse struct {
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Answer        string `json:"Answer"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

func (s *Searcher) fetch(ctx context.Context, query string) ([]string, error) {
	u := s.endpoint + "?" + url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var dr duckResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	var snippets []string
	if dr.Answer != "" {
		snippets = append(snippets, dr.Answer)
	}
	if dr.AbstractText != "" {
		snippet := dr.AbstractText
		if dr.AbstractURL != "" {
			snippet += " (" + dr.AbstractURL + ")"
		}
		snippets = append(snippets, snippet)
	}
	for _, topic := range dr.RelatedTopics {
		if topic.Text == "" {
			continue
		}
		snippet := topic.Text
		if topic.FirstURL != "" {
			snippet += " (" + topic.FirstURL + ")"
		}
		snippets = append(snippets, snippet)
		if len(snippets) >= 8 {
			break
		}
	}
	return snippets, nil
}

func (s *Searcher) summarize(ctx context.Context, query string, snippets []string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Search query: %s\n\nResults:\n", query)
	for i, snippet := range snippets {
		fmt.Fprintf(&b, "%d. %s\n", i+1, snippet)
	}

	resp, err := s.completer.Complete(ctx, llm.Request{
		System: s.profiles.Searcher,
		Prompt: b.String(),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}
