package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridex-labs/trustpipe/internal/config"
	"github.com/veridex-labs/trustpipe/internal/resilience"
)

const testHomepage = `<!DOCTYPE html>
<html><head>
<title>Example AS - Industrial Supplies</title>
<meta name="description" content="Industrial supplies for the Nordic market since 1987.">
<link rel="icon logo" href="/static/logo.svg">
</head><body>
<a href="/about">About</a>
<a href="/products">Products</a>
<a href="/contact">Contact</a>
<a href="https://linkedin.com/company/example">LinkedIn</a>
<a href="https://facebook.com/exampleas">Facebook</a>
<p>Reach us at post@example.no or sales@gmail.com</p>
</body></html>`

func TestExtract_ContentSignals(t *testing.T) {
	p := NewProber(config.ProbeConfig{})

	qa := p.extract("example.no", testHomepage)

	assert.Equal(t, "Industrial supplies for the Nordic market since 1987.", qa.Description)
	assert.Equal(t, "/static/logo.svg", qa.LogoURL)
	assert.Equal(t, "post@example.no", qa.ContactEmail)
	assert.True(t, qa.ProfessionalEmail)
	assert.Len(t, qa.SocialLinks, 2)
	assert.Contains(t, qa.Sitelinks, "/about")
	assert.Contains(t, qa.Sitelinks, "/contact")
	assert.Equal(t, len(qa.Sitelinks), qa.IndexedPages)
	assert.NotNil(t, qa.AnalyzedAt)
}

func TestExtract_TitleFallbackWhenNoMetaDescription(t *testing.T) {
	p := NewProber(config.ProbeConfig{})
	qa := p.extract("acme.co.uk", `<html><head><title>Acme Ltd</title></head><body></body></html>`)
	assert.Equal(t, "Acme Ltd", qa.Description)
}

func TestProber_FallsBackToPlainHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testHomepage))
	}))
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")

	p := NewProber(config.ProbeConfig{TimeoutSecs: 5, RequestsPerSecond: 100})
	result, err := p.Probe(context.Background(), host)
	require.NoError(t, err)

	assert.True(t, result.Reachable)
	// The server speaks plain HTTP, so the https attempt fails first and
	// the SSL signal stays off.
	assert.False(t, result.HasSSL)
	require.NotNil(t, result.Analysis)
	assert.Equal(t, "post@example.no", result.Analysis.ContactEmail)
	assert.NotEmpty(t, result.Body)
}

func TestProber_ServerErrorIsUnreachableResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")

	p := NewProber(config.ProbeConfig{TimeoutSecs: 5, RequestsPerSecond: 100})
	result, err := p.Probe(context.Background(), host)
	require.NoError(t, err)
	assert.False(t, result.Reachable)
	assert.Nil(t, result.Analysis)
}

func TestProber_DNSFailureIsAdapterError(t *testing.T) {
	p := NewProber(config.ProbeConfig{TimeoutSecs: 2, RequestsPerSecond: 100})

	// Reserved TLD guarantees resolution failure.
	_, err := p.Probe(context.Background(), "host.invalid")
	require.Error(t, err)
	assert.True(t, resilience.IsAdapter(err))
}

func TestProber_RejectsUnusableDomain(t *testing.T) {
	p := NewProber(config.ProbeConfig{})
	_, err := p.Probe(context.Background(), "   ")
	assert.Error(t, err)
}

func TestIsProfessionalEmail(t *testing.T) {
	tests := []struct {
		email  string
		domain string
		want   bool
	}{
		{"post@example.no", "example.no", true},
		{"post@mail.example.no", "example.no", true},
		{"someone@gmail.com", "example.no", false},
		{"someone@hotmail.com", "example.no", false},
		{"post@other.no", "example.no", false},
		{"not-an-email", "example.no", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, IsProfessionalEmail(tt.email, tt.domain))
		})
	}
}

func TestPickContactEmail(t *testing.T) {
	assert.Equal(t, "post@example.no",
		pickContactEmail("example.no", []string{"x@gmail.com", "post@example.no"}))
	assert.Equal(t, "x@gmail.com",
		pickContactEmail("example.no", []string{"x@gmail.com"}))
	assert.Equal(t, "", pickContactEmail("example.no", nil))
}
