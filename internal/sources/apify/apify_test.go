package apify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/sources"
)

func testProfile(t *testing.T) profile.Canonical {
	t.Helper()
	p, err := profile.Normalize(profile.Extracted{Titles: []string{"Data Scientist"}}, profile.Preferences{Location: "remote"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return p
}

func TestFetchMapsDatasetItems(t *testing.T) {
	t.Parallel()

	var gotInput runInput
	var gotPath, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("token")
		if err := json.NewDecoder(r.Body).Decode(&gotInput); err != nil {
			t.Errorf("decode input: %v", err)
		}
		_, _ = w.Write([]byte(`[
			{"id": "li-1", "title": " Sr. Data Scientist ", "companyName": "Acme", "jobLocation": {"displayName": "Remote"},
			 "postedDate": "2024-05-01", "employmentType": "Full-time", "salary": "$120,000 - $150,000",
			 "summary": "<p>Python and <b>SQL</b></p>", "detailsPageUrl": "https://www.linkedin.com/jobs/view/1", "isRemote": true},
			{"title": "", "companyName": "Broken"},
			{"title": "Analyst", "companyName": "Beta", "jobLocation": {"displayName": "Austin, TX"}, "salary": "Not specified"}
		]`))
	}))
	defer srv.Close()

	src := New("linkedin", "krandiash/linkedin-jobs-scraper", "secret", srv.URL, srv.Client(), nil, zap.NewNop())
	fixed := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return fixed }

	records, err := src.Fetch(context.Background(), testProfile(t), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/v2/acts/krandiash~linkedin-jobs-scraper/run-sync-get-dataset-items" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotToken != "secret" {
		t.Fatalf("expected token to be sent")
	}
	if gotInput.Query != "data scientist" || gotInput.Location != "Remote" || gotInput.Limit != 10 {
		t.Fatalf("unexpected run input: %+v", gotInput)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.SourceID != "linkedin" || first.ExternalID != "li-1" || first.Title != "Sr. Data Scientist" {
		t.Fatalf("unexpected record: %+v", first)
	}
	if first.Description != "Python and SQL" {
		t.Fatalf("expected html to be flattened, got %q", first.Description)
	}
	if first.Salary.String() != "120000-150000 USD" {
		t.Fatalf("unexpected salary %q", first.Salary.String())
	}
	if first.PostedAt == nil || !first.PostedAt.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected posted at %v", first.PostedAt)
	}
	if !first.Remote || !first.FetchedAt.Equal(fixed) {
		t.Fatalf("unexpected remote/fetched: %+v", first)
	}

	second := records[1]
	if second.ExternalID == "" || second.URL != "" || !second.Salary.IsZero() {
		t.Fatalf("unexpected fallback record: %+v", second)
	}
}

func TestFetchTruncatesToLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"1","title":"a"},{"id":"2","title":"b"},{"id":"3","title":"c"}]`))
	}))
	defer srv.Close()

	src := New("indeed", "krandiash/indeed-scraper", "t", srv.URL, srv.Client(), nil, nil)
	records, err := src.Fetch(context.Background(), testProfile(t), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		expect  error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			expect: sources.ErrUnavailable,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			expect: sources.ErrMalformedData,
		},
		{
			name: "every item malformed",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`[{"title": ""}, {"title": {"nested": true}}]`))
			},
			expect: sources.ErrMalformedData,
		},
		{
			name: "gateway timeout",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusGatewayTimeout)
			},
			expect: sources.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			src := New("dice", "mohamedgb00714/dicecom-job-scraper", "t", srv.URL, srv.Client(), nil, nil)
			_, err := src.Fetch(context.Background(), testProfile(t), 5)
			if !errors.Is(err, tt.expect) {
				t.Fatalf("expected %v, got %v", tt.expect, err)
			}
		})
	}
}

func TestFetchHonoursContextDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	src := New("slow", "a/b", "t", srv.URL, srv.Client(), nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := src.Fetch(ctx, testProfile(t), 5)
	if !errors.Is(err, sources.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestFactoryRequiresActor(t *testing.T) {
	t.Parallel()

	_, err := Factory(sources.Config{ID: "x", Options: map[string]any{"token": "t"}}, sources.Deps{})
	if err == nil {
		t.Fatalf("expected missing actor error")
	}

	src, err := Factory(sources.Config{ID: "x", Options: map[string]any{"token": "t", "actor": "a/b"}}, sources.Deps{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.ID() != "x" {
		t.Fatalf("unexpected id %q", src.ID())
	}
}
