package enrich

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridex-labs/trustpipe/internal/config"
	"github.com/veridex-labs/trustpipe/internal/model"
	"github.com/veridex-labs/trustpipe/pkg/anthropic"
)

const analyzerSystemPrompt = `You assess business websites for a company registry.
Given homepage content, respond with ONLY a JSON object:
{
  "summary": "one-sentence description of what the business does",
  "industry": "short industry label",
  "quality_score": 1-10 integer (site professionalism and completeness),
  "red_flags": ["short phrases for anything suspicious, empty if none"]
}`

const maxAnalyzerContent = 8000 // runes of homepage text sent per call

// aiVerdict is the JSON shape the model is asked to return.
type aiVerdict struct {
	Summary      string   `json:"summary"`
	Industry     string   `json:"industry"`
	QualityScore int      `json:"quality_score"`
	RedFlags     []string `json:"red_flags"`
}

// Analyzer runs the AI quality assessment over probed homepage content.
// The API client is constructed lazily on first use; without an API key
// the analyzer reports itself disabled and the pipeline proceeds on
// probe signals alone.
type Analyzer struct {
	cfg config.AnthropicConfig

	once   sync.Once
	client anthropic.Client
}

// NewAnalyzer creates an analyzer. cfg.Key may be empty.
func NewAnalyzer(cfg config.AnthropicConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Enabled reports whether an API key is configured.
func (a *Analyzer) Enabled() bool {
	return a.cfg.Key != ""
}

func (a *Analyzer) getClient() anthropic.Client {
	a.once.Do(func() {
		if a.cfg.Key != "" {
			a.client = anthropic.NewClient(a.cfg.Key)
		}
	})
	return a.client
}

// Analyze assesses homepage content and returns the AI-derived portion
// of a quality analysis. Returns nil when the analyzer is disabled.
func (a *Analyzer) Analyze(ctx context.Context, rec *model.BusinessRecord, content string) (*model.QualityAnalysis, error) {
	client := a.getClient()
	if client == nil {
		return nil, nil
	}

	content = truncateRunes(stripTags(content), maxAnalyzerContent)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	resp, err := client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.cfg.Model,
		MaxTokens: a.cfg.MaxTokens,
		System:    analyzerSystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: "Business: " + rec.LegalName + " (" + rec.CountryCode + ")\nHomepage content:\n" + content},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: analyze %s", rec.ID)
	}
	resp.Usage.LogCost(a.cfg.Model, "quality-analysis")

	verdict, err := parseVerdict(resp.Text())
	if err != nil {
		zap.L().Warn("enrich: unparseable analyzer response",
			zap.String("business_id", rec.ID),
			zap.Error(err),
		)
		return nil, nil
	}

	qa := &model.QualityAnalysis{
		AISummary:      verdict.Summary,
		AIIndustry:     verdict.Industry,
		AIQualityScore: clampQuality(verdict.QualityScore),
		RedFlags:       verdict.RedFlags,
	}
	return qa, nil
}

// parseVerdict extracts the JSON object from a model response that may
// wrap it in prose or a code fence.
func parseVerdict(text string) (*aiVerdict, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.New("enrich: no JSON object in response")
	}
	var v aiVerdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return nil, eris.Wrap(err, "enrich: decode verdict")
	}
	return &v, nil
}

func clampQuality(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

// stripTags removes HTML tags, leaving visible text for the model.
func stripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
