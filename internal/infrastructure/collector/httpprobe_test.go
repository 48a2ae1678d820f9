package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	sharedErrors "github.com/wardenhq/sitewarden/internal/shared/errors"
)

func probeFor(srv *httptest.Server) *HTTPProbe {
	p := NewHTTPProbe()
	p.Transport = srv.Client().Transport
	return p
}

func issueTypes(ev *Evidence) map[string]string {
	types := make(map[string]string, len(ev.Issues))
	for _, is := range ev.Issues {
		types[is.Type] = is.Details
	}
	return types
}

func TestProbePlainHTTPPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form action="http://legacy.example.com/login"></form></body></html>`)
	}))
	defer srv.Close()

	ev, err := probeFor(srv).Collect(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	types := issueTypes(ev)
	if _, ok := types["https_missing"]; !ok {
		t.Error("expected https_missing on a plain http page")
	}
	if _, ok := types["insecure_forms"]; !ok {
		t.Error("expected insecure_forms for http form action")
	}
	if _, ok := types["clickjacking"]; !ok {
		t.Error("expected clickjacking without framing headers")
	}
	if _, ok := types["mixed_content"]; ok {
		t.Error("mixed_content must not fire on an http page")
	}
	if ev.Meta.Protocol != "http:" || ev.Meta.FormCount != 1 {
		t.Errorf("unexpected meta: %+v", ev.Meta)
	}
}

func TestProbeHTTPSPageWithMixedContentAndOldLibraries(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		fmt.Fprint(w, `<html><head>
			<script src="https://code.jquery.com/jquery-3.4.1.min.js"></script>
			<script src="https://cdn.example.com/bootstrap/3.3.7/js/bootstrap.min.js"></script>
			<img src="http://cdn.example.com/logo.png">
		</head><body></body></html>`)
	}))
	defer srv.Close()

	ev, err := probeFor(srv).Collect(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	types := issueTypes(ev)
	if _, ok := types["https_missing"]; ok {
		t.Error("https page must not be flagged as https_missing")
	}
	if _, ok := types["clickjacking"]; ok {
		t.Error("X-Frame-Options page must not be flagged for clickjacking")
	}
	if details, ok := types["mixed_content"]; !ok {
		t.Error("expected mixed_content for the http image")
	} else if details == "" {
		t.Error("mixed_content must carry details")
	}
	if details, ok := types["old_jquery"]; !ok {
		t.Error("expected old_jquery for jQuery 3.4.1")
	} else if details == "" {
		t.Error("old_jquery must carry the detected version")
	}
	if _, ok := types["outdated_library"]; !ok {
		t.Error("expected outdated_library for Bootstrap 3.3.7")
	}
	if ev.Meta.ScriptCount != 2 {
		t.Errorf("expected scriptCount 2, got %d", ev.Meta.ScriptCount)
	}
}

func TestProbeRecentLibrariesNotFlagged(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'self'")
		fmt.Fprint(w, `<html><head>
			<script src="https://code.jquery.com/jquery-3.7.1.min.js"></script>
			<script src="https://cdn.example.com/bootstrap/5.3.0/js/bootstrap.min.js"></script>
		</head><body></body></html>`)
	}))
	defer srv.Close()

	ev, err := probeFor(srv).Collect(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(ev.Issues) != 0 {
		t.Fatalf("expected a clean page, got %+v", ev.Issues)
	}
}

func TestProbeCookieFlags(t *testing.T) {
	tests := []struct {
		name    string
		cookie  string
		flagged bool
	}{
		{"no flags", "session=abc", true},
		{"secure only", "session=abc; Secure", true},
		{"httponly only", "session=abc; HttpOnly", true},
		{"both flags", "session=abc; Secure; HttpOnly", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Frame-Options", "DENY")
				w.Header().Add("Set-Cookie", tt.cookie)
				fmt.Fprint(w, "<html></html>")
			}))
			defer srv.Close()

			ev, err := probeFor(srv).Collect(context.Background(), srv.URL)
			if err != nil {
				t.Fatalf("Collect failed: %v", err)
			}
			_, ok := issueTypes(ev)["cookie_flags"]
			if ok != tt.flagged {
				t.Errorf("cookie %q: flagged = %v, want %v", tt.cookie, ok, tt.flagged)
			}
			if ev.Meta.CookieCount != 1 {
				t.Errorf("expected cookieCount 1, got %d", ev.Meta.CookieCount)
			}
		})
	}
}

func TestProbeThirdPartyScriptThreshold(t *testing.T) {
	page := func(external int) string {
		body := "<html><head>"
		for i := 0; i < external; i++ {
			body += fmt.Sprintf(`<script src="https://cdn%d.example.com/app.js"></script>`, i)
		}
		body += `<script src="/local.js"></script></head><body></body></html>`
		return body
	}

	tests := []struct {
		name     string
		external int
		flagged  bool
	}{
		{"at threshold", DefaultThirdPartyLimit, false},
		{"over threshold", DefaultThirdPartyLimit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Frame-Options", "DENY")
				fmt.Fprint(w, page(tt.external))
			}))
			defer srv.Close()

			ev, err := probeFor(srv).Collect(context.Background(), srv.URL)
			if err != nil {
				t.Fatalf("Collect failed: %v", err)
			}
			if _, ok := issueTypes(ev)["third_party_scripts"]; ok != tt.flagged {
				t.Errorf("%d external scripts: flagged = %v, want %v", tt.external, ok, tt.flagged)
			}
		})
	}
}

func TestProbeUnreachableHostIsAutomationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := NewHTTPProbe().Collect(context.Background(), addr)
	if !sharedErrors.IsAutomation(err) {
		t.Fatalf("expected AutomationError, got %v", err)
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"3.4.1", "3.5.0", -1},
		{"3.5.0", "3.5.0", 0},
		{"3.6", "3.5.0", 1},
		{"2.29", "2.29.2", -1},
		{"10.0.0", "9.9.9", 1},
	}
	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
