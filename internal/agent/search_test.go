package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ultronlabs/ultron/internal/llm"
)

// sequenceCompleter returns responses keyed by which persona is asked.
type sequenceCompleter struct {
	refined string
	summary string
	reqs    []llm.Request
}

func (s *sequenceCompleter) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.reqs = append(s.reqs, req)
	if strings.Contains(req.System, "rewrite web search queries") ||
		strings.Contains(req.System, "Today's date") {
		return llm.Response{Text: s.refined}, nil
	}
	return llm.Response{Text: s.summary}, nil
}

func newTestSearcher(completer llm.Completer, serverURL string) *Searcher {
	s := NewSearcher(completer, DefaultProfiles())
	s.endpoint = serverURL
	s.now = func() time.Time { return time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC) }
	s.client = &http.Client{Timeout: 5 * time.Second}
	return s
}

func TestSearchPipeline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "python 3.13 release notes" {
			t.Errorf("query = %q", got)
		}
		w.Write([]byte(`{
			"AbstractText": "Python 3.13 was released in October 2024.",
			"AbstractURL": "https://docs.python.org/3.13/whatsnew/",
			"RelatedTopics": [{"Text": "Python release schedule", "FirstURL": "https://peps.python.org/pep-0719/"}]
		}`))
	}))
	defer server.Close()

	completer := &sequenceCompleter{
		refined: "python 3.13 release notes",
		summary: "Python 3.13 shipped October 2024; see docs.python.org.",
	}

	s := newTestSearcher(completer, server.URL)
	result := s.Search(context.Background(), "latest python release notes")
	if !result.OK() {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(result.Output, "October 2024") {
		t.Errorf("output = %q", result.Output)
	}

	// The summarizer saw the fetched snippets.
	last := completer.reqs[len(completer.reqs)-1]
	if !strings.Contains(last.Prompt, "docs.python.org") {
		t.Error("summary prompt missing fetched snippet URL")
	}
}

func TestSearchNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"AbstractText": "", "RelatedTopics": []}`))
	}))
	defer server.Close()

	s := newTestSearcher(&sequenceCompleter{refined: "q"}, server.URL)
	result := s.Search(context.Background(), "q")
	if !result.OK() {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(result.Output, "No web results") {
		t.Errorf("output = %q", result.Output)
	}
}

func TestSearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	s := newTestSearcher(&sequenceCompleter{refined: "q"}, server.URL)
	result := s.Search(context.Background(), "q")
	if result.OK() {
		t.Fatal("expected failure for 502 response")
	}
}

func TestRefineQueryCurrentDateInPrompt(t *testing.T) {
	completer := &sequenceCompleter{refined: "go 1.24 generics changes"}
	s := newTestSearcher(completer, "http://unused")

	refined, err := s.RefineQuery(context.Background(), "latest go generics changes")
	if err != nil {
		t.Fatalf("RefineQuery: %v", err)
	}
	if refined != "go 1.24 generics changes" {
		t.Errorf("refined = %q", refined)
	}
	if !strings.Contains(completer.reqs[0].System, "March 14, 2026") {
		t.Errorf("refiner system prompt missing the date: %q", completer.reqs[0].System)
	}
}

func TestRefineQueryPadsShortQuery(t *testing.T) {
	completer := &sequenceCompleter{refined: "detailed information about kubernetes ingress controllers"}
	s := newTestSearcher(completer, "http://unused")

	if _, err := s.RefineQuery(context.Background(), "kubernetes ingress"); err != nil {
		t.Fatalf("RefineQuery: %v", err)
	}
	if got := completer.reqs[0].Prompt; got != "detailed information about kubernetes ingress" {
		t.Errorf("padded prompt = %q", got)
	}
}

func TestRefineQueryLongQueryNotPadded(t *testing.T) {
	completer := &sequenceCompleter{refined: "x"}
	s := newTestSearcher(completer, "http://unused")

	query := "how to configure nginx rate limiting"
	if _, err := s.RefineQuery(context.Background(), query); err != nil {
		t.Fatalf("RefineQuery: %v", err)
	}
	if got := completer.reqs[0].Prompt; got != query {
		t.Errorf("prompt = %q, want unchanged query", got)
	}
}

func TestRefineQueryNewsPreamble(t *testing.T) {
	completer := &sequenceCompleter{refined: "x"}
	s := newTestSearcher(completer, "http://unused")

	if _, err := s.RefineQuery(context.Background(), "latest news about go releases"); err != nil {
		t.Fatalf("RefineQuery: %v", err)
	}
	if !strings.Contains(completer.reqs[0].System, "news or current events") {
		t.Error("news query should carry the news preamble")
	}

	if _, err := s.RefineQuery(context.Background(), "how to configure nginx rate limiting"); err != nil {
		t.Fatalf("RefineQuery: %v", err)
	}
	if strings.Contains(completer.reqs[1].System, "news or current events") {
		t.Error("non-news query should not carry the news preamble")
	}
}

func TestRefineQueryKeepsFirstLineOnly(t *testing.T) {
	completer := &sequenceCompleter{refined: "exact query\nHere is why I chose it..."}
	s := newTestSearcher(completer, "http://unused")

	refined, err := s.RefineQuery(context.Background(), "vague query")
	if err != nil {
		t.Fatalf("RefineQuery: %v", err)
	}
	if refined != "exact query" {
		t.Errorf("refined = %q", refined)
	}
}
