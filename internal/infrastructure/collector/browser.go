package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/wardenhq/sitewarden/internal/domain/issue"
	"github.com/wardenhq/sitewarden/internal/domain/scan"
	sharedErrors "github.com/wardenhq/sitewarden/internal/shared/errors"
)

const (
	defaultNavTimeout  = 60 * time.Second
	defaultSettleDelay = 2 * time.Second
)

// detectionScript is the in-page detector. It is the same logic the embed
// snippet runs on visitor pages, so active and passive scans observe a page
// identically. The %d placeholder is the third-party script threshold.
const detectionScript = `(() => {
	const issues = [];
	const proto = location.protocol;
	if (proto !== 'https:') {
		issues.push({type: 'https_missing', details: 'page loaded as ' + location.href});
	}
	const forms = Array.from(document.querySelectorAll('form'));
	const insecure = forms.filter(f => (f.getAttribute('action') || '').startsWith('http://'));
	if (insecure.length > 0) {
		issues.push({type: 'insecure_forms', details: insecure.length + ' form(s) posting to an http:// action'});
	}
	if (proto === 'https:') {
		const mixed = Array.from(document.querySelectorAll('[src], [href]')).filter(el => {
			const v = el.getAttribute('src') || el.getAttribute('href') || '';
			return v.startsWith('http://');
		});
		if (mixed.length > 0) {
			issues.push({type: 'mixed_content', details: mixed.length + ' sub-resource(s) loaded over http://'});
		}
	}
	if (window.jQuery && window.jQuery.fn && window.jQuery.fn.jquery) {
		const v = window.jQuery.fn.jquery.split('.').map(Number);
		if (v[0] < 3 || (v[0] === 3 && v[1] < 5)) {
			issues.push({type: 'old_jquery', details: 'jQuery ' + window.jQuery.fn.jquery + ' detected'});
		}
	}
	const scripts = Array.from(document.querySelectorAll('script[src]'));
	const external = scripts.filter(s => {
		try { return new URL(s.getAttribute('src'), location.href).hostname !== location.hostname; }
		catch (e) { return false; }
	});
	if (external.length > %d) {
		issues.push({type: 'third_party_scripts', details: external.length + ' external scripts'});
	}
	const cookieCount = document.cookie ? document.cookie.split(';').length : 0;
	return {
		issues: issues,
		meta: {protocol: proto, formCount: forms.length, cookieCount: cookieCount, scriptCount: scripts.length}
	};
})()`

// Browser drives headless Chrome to a page and runs the detection script
// after the page settles.
type Browser struct {
	// NavTimeout bounds the whole visit: navigation, settle, and script run.
	NavTimeout time.Duration
	// SettleDelay is how long to let late-loading scripts register before
	// detection runs.
	SettleDelay time.Duration
	// ThirdPartyLimit mirrors HTTPProbe's threshold.
	ThirdPartyLimit int
	// ExecPath points at a Chrome binary; empty means chromedp's lookup.
	ExecPath string
}

// NewBrowser returns a browser collector with default timeouts.
func NewBrowser() *Browser {
	return &Browser{
		NavTimeout:      defaultNavTimeout,
		SettleDelay:     defaultSettleDelay,
		ThirdPartyLimit: DefaultThirdPartyLimit,
	}
}

func (b *Browser) Name() string { return "headless browser" }

type detectionPayload struct {
	Issues []struct {
		Type    string `json:"type"`
		Details string `json:"details"`
	} `json:"issues"`
	Meta struct {
		Protocol    string `json:"protocol"`
		FormCount   int    `json:"formCount"`
		CookieCount int    `json:"cookieCount"`
		ScriptCount int    `json:"scriptCount"`
	} `json:"meta"`
}

// Collect navigates to pageURL in a fresh headless browser, waits for the
// page to settle, and evaluates the detection script. Any navigation or
// evaluation failure surfaces as an AutomationError with nothing ingested.
func (b *Browser) Collect(ctx context.Context, pageURL string) (*Evidence, error) {
	timeout := b.NavTimeout
	if timeout <= 0 {
		timeout = defaultNavTimeout
	}
	settle := b.SettleDelay
	if settle <= 0 {
		settle = defaultSettleDelay
	}
	limit := b.ThirdPartyLimit
	if limit <= 0 {
		limit = DefaultThirdPartyLimit
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.NoSandbox,
	)
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, timeout)
	defer cancelRun()

	var payload detectionPayload
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(settle),
		chromedp.Evaluate(fmt.Sprintf(detectionScript, limit), &payload),
	)
	if err != nil {
		return nil, &sharedErrors.AutomationError{URL: pageURL, Err: err}
	}

	evidence := &Evidence{
		Issues: make([]issue.RawIssue, 0, len(payload.Issues)),
		Meta: scan.Meta{
			Protocol:    payload.Meta.Protocol,
			FormCount:   payload.Meta.FormCount,
			CookieCount: payload.Meta.CookieCount,
			ScriptCount: payload.Meta.ScriptCount,
		},
	}
	for _, raw := range payload.Issues {
		evidence.Issues = append(evidence.Issues, issue.RawIssue{Type: raw.Type, Details: raw.Details})
	}
	return evidence, nil
}
