package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wardenhq/sitewarden/internal/domain/issue"
	"github.com/wardenhq/sitewarden/internal/domain/scan"
	sharedErrors "github.com/wardenhq/sitewarden/internal/shared/errors"
)

const (
	// probeBodyLimit caps how much of the response body is inspected.
	probeBodyLimit = 2 << 20 // 2 MiB

	// DefaultThirdPartyLimit is how many external script origins a page may
	// load before it is flagged.
	DefaultThirdPartyLimit = 5

	defaultProbeTimeout = 30 * time.Second
)

var (
	formPattern         = regexp.MustCompile(`(?i)<form\b`)
	insecureFormPattern = regexp.MustCompile(`(?i)<form[^>]+action=["']http://[^"']+["']`)
	mixedContentPattern = regexp.MustCompile(`(?i)(?:src|href)=["']http://[^"']+["']`)
	scriptSrcPattern    = regexp.MustCompile(`(?i)<script[^>]+src=["']([^"']+)["']`)
)

// libraryPatterns match versioned script URLs of libraries with known
// advisories. jQuery is handled separately because it has its own catalog
// type.
var libraryPatterns = []struct {
	name       string
	pattern    *regexp.Regexp
	fixedIn    string
	advisories string
}{
	{"AngularJS", regexp.MustCompile(`(?i)angularjs?[/@](\d+\.\d+\.?\d*)`), "1.7.9", "CVE-2019-10768"},
	{"Lodash", regexp.MustCompile(`(?i)lodash(?:\.js)?[@/](\d+\.\d+\.?\d*)`), "4.17.12", "CVE-2019-10744"},
	{"Moment.js", regexp.MustCompile(`(?i)moment\.js[/@](\d+\.\d+\.?\d*)`), "2.29.2", "CVE-2022-24785"},
	{"Bootstrap", regexp.MustCompile(`(?i)bootstrap[/@](\d+\.\d+\.?\d*)`), "3.4.0", "CVE-2019-8331"},
}

var jqueryPattern = regexp.MustCompile(`(?i)jquery[/-](\d+\.\d+\.?\d*)`)

// jQuery before 3.5.0 has XSS issues in htmlPrefilter (CVE-2020-11022/11023).
const jquerySafeVersion = "3.5.0"

// HTTPProbe is the collector used when no browser is available: it fetches the
// page once and applies the same detection catalog to the static response. It
// cannot see script-injected DOM, so it under-reports relative to the browser
// collector but never over-reports.
type HTTPProbe struct {
	Timeout         time.Duration
	ThirdPartyLimit int
	UserAgent       string
	// Transport overrides the default round tripper, for proxies and tests.
	Transport http.RoundTripper
}

// NewHTTPProbe returns a probe with default limits.
func NewHTTPProbe() *HTTPProbe {
	return &HTTPProbe{
		Timeout:         defaultProbeTimeout,
		ThirdPartyLimit: DefaultThirdPartyLimit,
	}
}

func (p *HTTPProbe) Name() string { return "http probe" }

// Collect fetches pageURL and inspects headers, cookies, and body markup.
func (p *HTTPProbe) Collect(ctx context.Context, pageURL string) (*Evidence, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	client := &http.Client{Timeout: timeout, Transport: p.Transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &sharedErrors.AutomationError{URL: pageURL, Err: err}
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &sharedErrors.AutomationError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, probeBodyLimit))
	if err != nil {
		return nil, &sharedErrors.AutomationError{URL: pageURL, Err: fmt.Errorf("read body: %w", err)}
	}
	body := string(bodyBytes)

	// Redirects may have switched the scheme, so judge the final URL.
	final := resp.Request.URL

	evidence := &Evidence{
		Meta: scan.Meta{
			Protocol:    final.Scheme + ":",
			FormCount:   len(formPattern.FindAllStringIndex(body, -1)),
			CookieCount: len(resp.Cookies()),
			ScriptCount: len(scriptSrcPattern.FindAllStringIndex(body, -1)),
		},
	}

	p.detectTransport(evidence, final, body)
	p.detectCookieFlags(evidence, resp)
	p.detectClickjacking(evidence, resp.Header)
	p.detectLibraries(evidence, body)
	p.detectThirdPartyScripts(evidence, final, body)

	return evidence, nil
}

func (p *HTTPProbe) detectTransport(ev *Evidence, final *url.URL, body string) {
	if final.Scheme != "https" {
		ev.Issues = append(ev.Issues, issue.RawIssue{
			Type:    "https_missing",
			Details: "final URL " + final.String(),
		})
	}

	if n := len(insecureFormPattern.FindAllStringIndex(body, -1)); n > 0 {
		ev.Issues = append(ev.Issues, issue.RawIssue{
			Type:    "insecure_forms",
			Details: strconv.Itoa(n) + " form(s) posting to an http:// action",
		})
	}

	// Mixed content only exists on an HTTPS page.
	if final.Scheme == "https" {
		if n := len(mixedContentPattern.FindAllStringIndex(body, -1)); n > 0 {
			ev.Issues = append(ev.Issues, issue.RawIssue{
				Type:    "mixed_content",
				Details: strconv.Itoa(n) + " sub-resource(s) loaded over http://",
			})
		}
	}
}

func (p *HTTPProbe) detectCookieFlags(ev *Evidence, resp *http.Response) {
	if len(resp.Header["Set-Cookie"]) == 0 {
		return
	}
	var flagged []string
	for _, c := range resp.Cookies() {
		if !c.Secure || !c.HttpOnly {
			flagged = append(flagged, c.Name)
		}
	}
	if len(flagged) > 0 {
		ev.Issues = append(ev.Issues, issue.RawIssue{
			Type:    "cookie_flags",
			Details: "cookies missing Secure or HttpOnly: " + strings.Join(flagged, ", "),
		})
	}
}

func (p *HTTPProbe) detectClickjacking(ev *Evidence, headers http.Header) {
	if headers.Get("X-Frame-Options") != "" {
		return
	}
	csp := headers.Get("Content-Security-Policy")
	if strings.Contains(strings.ToLower(csp), "frame-ancestors") {
		return
	}
	ev.Issues = append(ev.Issues, issue.RawIssue{
		Type:    "clickjacking",
		Details: "no X-Frame-Options header and no frame-ancestors CSP directive",
	})
}

func (p *HTTPProbe) detectLibraries(ev *Evidence, body string) {
	if match := jqueryPattern.FindStringSubmatch(body); len(match) > 1 {
		if compareVersions(match[1], jquerySafeVersion) < 0 {
			ev.Issues = append(ev.Issues, issue.RawIssue{
				Type:    "old_jquery",
				Details: "jQuery " + match[1] + " detected, fixed in " + jquerySafeVersion + " (CVE-2020-11022, CVE-2020-11023)",
			})
		}
	}

	for _, lib := range libraryPatterns {
		match := lib.pattern.FindStringSubmatch(body)
		if len(match) < 2 || match[1] == "" {
			continue
		}
		if compareVersions(match[1], lib.fixedIn) < 0 {
			ev.Issues = append(ev.Issues, issue.RawIssue{
				Type:    "outdated_library",
				Details: lib.name + " " + match[1] + " detected, fixed in " + lib.fixedIn + " (" + lib.advisories + ")",
			})
		}
	}
}

func (p *HTTPProbe) detectThirdPartyScripts(ev *Evidence, base *url.URL, body string) {
	limit := p.ThirdPartyLimit
	if limit <= 0 {
		limit = DefaultThirdPartyLimit
	}

	external := externalScriptURLs(body, base)
	if len(external) > limit {
		sample := external
		if len(sample) > 3 {
			sample = sample[:3]
		}
		ev.Issues = append(ev.Issues, issue.RawIssue{
			Type:    "third_party_scripts",
			Details: fmt.Sprintf("%d external scripts, e.g. %s", len(external), strings.Join(sample, ", ")),
		})
	}
}

// externalScriptURLs returns deduplicated script URLs served from a different
// host than base.
func externalScriptURLs(body string, base *url.URL) []string {
	matches := scriptSrcPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}

	baseHost := strings.ToLower(base.Hostname())
	seen := make(map[string]struct{})
	var external []string

	for _, match := range matches {
		src := strings.TrimSpace(match[1])
		if src == "" || strings.HasPrefix(src, "data:") {
			continue
		}
		if strings.HasPrefix(src, "//") {
			src = base.Scheme + ":" + src
		}
		resolved, err := base.Parse(src)
		if err != nil || resolved.Hostname() == "" {
			continue
		}
		if strings.ToLower(resolved.Hostname()) == baseHost {
			continue
		}
		u := resolved.String()
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		external = append(external, u)
	}
	return external
}

// compareVersions compares dotted numeric versions, returning -1, 0, or 1.
// Non-numeric segments count as zero.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for len(as) < len(bs) {
		as = append(as, "0")
	}
	for len(bs) < len(as) {
		bs = append(bs, "0")
	}
	for i := range as {
		an, _ := strconv.Atoi(as[i])
		bn, _ := strconv.Atoi(bs[i])
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	return 0
}
