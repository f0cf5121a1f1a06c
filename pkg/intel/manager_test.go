package intel

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

const kevPayload = `{
	"vulnerabilities": [
		{"cveID": "CVE-2024-0001"},
		{"cveID": "CVE-2023-9999"},
		{"cveID": ""}
	]
}`

const epssPayload = `{
	"data": [
		{"cve": "CVE-2024-0001", "epss": "0.974"},
		{"cve": "CVE-2022-1234", "epss": "0.031"},
		{"cve": "CVE-2020-0000", "epss": "not-a-number"}
	]
}`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/kev", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, kevPayload)
	})
	mux.HandleFunc("/epss", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, epssPayload)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestManager_UpdateFeeds(t *testing.T) {
	srv := newFeedServer(t)

	manager := NewManager(FeedConfig{
		KEVURL:  srv.URL + "/kev",
		EPSSURL: srv.URL + "/epss",
		Timeout: 5 * time.Second,
	}, quietLogger())

	results := manager.UpdateFeeds(context.Background())
	if len(results) != 2 {
		t.Fatalf("UpdateFeeds() returned %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("feed %s failed: %v", r.Feed, r.Err)
		}
	}

	if got := manager.KnownExploitedCount(); got != 2 {
		t.Errorf("KnownExploitedCount() = %d, want 2 (empty cveID skipped)", got)
	}
}

func TestManager_GetIntelligence(t *testing.T) {
	srv := newFeedServer(t)

	manager := NewManager(FeedConfig{
		KEVURL:  srv.URL + "/kev",
		EPSSURL: srv.URL + "/epss",
	}, quietLogger())
	manager.UpdateFeeds(context.Background())

	tests := []struct {
		name           string
		cveID          string
		wantHasExploit bool
		wantInWild     bool
		wantEPSS       float64
	}{
		{"kev member with epss", "CVE-2024-0001", true, true, 0.974},
		{"epss only", "CVE-2022-1234", false, false, 0.031},
		{"kev member without epss gets default", "CVE-2023-9999", true, true, DefaultEPSS},
		{"unknown cve gets defaults", "CVE-1999-0000", false, false, DefaultEPSS},
		{"malformed epss entry skipped", "CVE-2020-0000", false, false, DefaultEPSS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := manager.GetIntelligence(tt.cveID)
			if got.HasExploit != tt.wantHasExploit {
				t.Errorf("HasExploit = %v, want %v", got.HasExploit, tt.wantHasExploit)
			}
			if got.InWild != tt.wantInWild {
				t.Errorf("InWild = %v, want %v", got.InWild, tt.wantInWild)
			}
			if got.EPSS != tt.wantEPSS {
				t.Errorf("EPSS = %v, want %v", got.EPSS, tt.wantEPSS)
			}
			if got.CVEID != tt.cveID {
				t.Errorf("CVEID = %q, want %q", got.CVEID, tt.cveID)
			}
		})
	}
}

func TestManager_FeedFailureIsReportedNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	manager := NewManager(FeedConfig{KEVURL: srv.URL}, quietLogger())

	results := manager.UpdateFeeds(context.Background())
	if len(results) != 1 {
		t.Fatalf("UpdateFeeds() returned %d results, want 1", len(results))
	}
	if results[0].Err == nil {
		t.Error("feed error not reported in result")
	}

	// Lookups still work with defaults after a failed sync
	got := manager.GetIntelligence("CVE-2024-0001")
	if got.HasExploit || got.EPSS != DefaultEPSS {
		t.Errorf("GetIntelligence after failed sync = %+v, want defaults", got)
	}
}

func TestManager_EmptyURLsSkipped(t *testing.T) {
	manager := NewManager(FeedConfig{}, quietLogger())
	results := manager.UpdateFeeds(context.Background())
	if len(results) != 0 {
		t.Errorf("UpdateFeeds() with no URLs returned %d results, want 0", len(results))
	}
}
