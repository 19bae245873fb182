package enrich

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/veridex-labs/trustpipe/internal/config"
	"github.com/veridex-labs/trustpipe/internal/dedup"
	"github.com/veridex-labs/trustpipe/internal/model"
	"github.com/veridex-labs/trustpipe/internal/resilience"
)

const maxProbeBody = 1 << 20 // 1 MiB homepage cap

// freeMailProviders are consumer mail domains; an address on one of
// these is never a professional email.
var freeMailProviders = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"live.com":       true,
	"icloud.com":     true,
	"aol.com":        true,
	"gmx.de":         true,
	"gmx.net":        true,
	"web.de":         true,
	"online.no":      true,
	"protonmail.com": true,
	"proton.me":      true,
}

var (
	emailRe       = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	metaDescRe    = regexp.MustCompile(`(?is)<meta\s+[^>]*name=["']description["'][^>]*content=["']([^"']*)["']`)
	metaDescRevRe = regexp.MustCompile(`(?is)<meta\s+[^>]*content=["']([^"']*)["'][^>]*name=["']description["']`)
	titleRe       = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	hrefRe        = regexp.MustCompile(`(?i)href=["']([^"']+)["']`)
	logoRe        = regexp.MustCompile(`(?is)<(?:img|link)\s+[^>]*(?:class|rel|id)=["'][^"']*(?:logo|icon)[^"']*["'][^>]*(?:src|href)=["']([^"']+)["']`)
)

var socialHosts = []string{
	"facebook.com", "linkedin.com", "twitter.com", "x.com",
	"instagram.com", "youtube.com", "tiktok.com",
}

// ProbeResult is one homepage observation.
type ProbeResult struct {
	Reachable  bool
	HasSSL     bool
	StatusCode int
	Analysis   *model.QualityAnalysis
	Body       string
}

// Prober fetches a business homepage and extracts content signals. One
// shared rate limiter throttles all requests; probers are safe for
// concurrent use.
type Prober struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewProber creates a prober from configuration.
func NewProber(cfg config.ProbeConfig) *Prober {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &Prober{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		userAgent: "trustpipe/1.0",
	}
}

// Probe fetches the homepage for a domain. HTTPS is attempted first;
// falling back to plain HTTP clears the SSL signal but still yields
// content. An unreachable site is a result, not an error; errors are
// reserved for the caller's own misuse (bad domain, canceled context).
func (p *Prober) Probe(ctx context.Context, domain string) (*ProbeResult, error) {
	d := dedup.NormalizeDomain(domain)
	if d == "" {
		return nil, eris.Errorf("enrich: unusable domain %q", domain)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "enrich: rate limiter wait")
	}

	result := &ProbeResult{}

	body, status, err := p.fetch(ctx, "https://"+d)
	if err == nil {
		result.Reachable = true
		result.HasSSL = true
	} else {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "enrich: probe canceled")
		}
		zap.L().Debug("enrich: https probe failed, retrying plain http",
			zap.String("domain", d),
			zap.Error(err),
		)
		body, status, err = p.fetch(ctx, "http://"+d)
		if err != nil {
			if resilience.IsTransient(err) {
				return nil, resilience.NewAdapterError("prober", err)
			}
			return result, nil
		}
		result.Reachable = true
	}

	result.StatusCode = status
	result.Body = body
	result.Analysis = p.extract(d, body)
	result.Analysis.HasSSL = result.HasSSL

	return result, nil
}

func (p *Prober) fetch(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, eris.Wrap(err, "enrich: create request")
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return "", resp.StatusCode, eris.Errorf("enrich: http %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return "", resp.StatusCode, eris.Wrap(err, "enrich: read body")
	}
	return string(data), resp.StatusCode, nil
}

// extract pulls content signals out of homepage HTML. Best-effort regex
// extraction; a full DOM parse buys little on the handful of fields we
// read.
func (p *Prober) extract(domain, body string) *model.QualityAnalysis {
	now := time.Now().UTC()
	qa := &model.QualityAnalysis{AnalyzedAt: &now}

	if m := metaDescRe.FindStringSubmatch(body); m != nil {
		qa.Description = strings.TrimSpace(m[1])
	} else if m := metaDescRevRe.FindStringSubmatch(body); m != nil {
		qa.Description = strings.TrimSpace(m[1])
	}
	if qa.Description == "" {
		if m := titleRe.FindStringSubmatch(body); m != nil {
			qa.Description = strings.TrimSpace(m[1])
		}
	}

	if m := logoRe.FindStringSubmatch(body); m != nil {
		qa.LogoURL = m[1]
	}

	if email := pickContactEmail(domain, emailRe.FindAllString(body, 20)); email != "" {
		qa.ContactEmail = email
		qa.ProfessionalEmail = IsProfessionalEmail(email, domain)
	}

	for _, m := range hrefRe.FindAllStringSubmatch(body, 200) {
		link := m[1]
		if social := socialHost(link); social != "" {
			qa.SocialLinks = appendUnique(qa.SocialLinks, link)
		} else if strings.HasPrefix(link, "/") && len(link) > 1 {
			qa.Sitelinks = appendUnique(qa.Sitelinks, link)
		}
	}
	qa.IndexedPages = len(qa.Sitelinks)

	return qa
}

// pickContactEmail prefers an address on the site's own domain.
func pickContactEmail(domain string, emails []string) string {
	var fallback string
	for _, e := range emails {
		e = strings.ToLower(e)
		if strings.HasSuffix(e, "@"+domain) {
			return e
		}
		if fallback == "" {
			fallback = e
		}
	}
	return fallback
}

// IsProfessionalEmail reports whether an address is on the business's
// own domain rather than a consumer mail provider.
func IsProfessionalEmail(email, domain string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	mailDomain := strings.ToLower(email[at+1:])
	if freeMailProviders[mailDomain] {
		return false
	}
	return mailDomain == domain || strings.HasSuffix(mailDomain, "."+domain)
}

func socialHost(link string) string {
	lower := strings.ToLower(link)
	for _, h := range socialHosts {
		if strings.Contains(lower, h+"/") || strings.HasSuffix(lower, h) {
			return h
		}
	}
	return ""
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
