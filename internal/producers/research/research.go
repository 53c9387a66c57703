// Package research implements the first pipeline stage: it pulls
// headlines from the configured trend sources concurrently, has the
// model score them, and emits the ranked trend list artifact.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/content-agent/internal/engine/stages"
	"github.com/jonathan/content-agent/internal/fetch"
	"github.com/jonathan/content-agent/internal/llm"
	"github.com/jonathan/content-agent/internal/schemas"
	"github.com/jonathan/content-agent/internal/types"
)

// Source is one site headlines are pulled from.
type Source struct {
	Name      string   `json:"name"`
	URL       string   `json:"url"`
	Selectors []string `json:"selectors,omitempty"`
}

// Config tunes the research stage.
type Config struct {
	Sources []Source
	// TopN caps the trend list after scoring. Default 10.
	TopN int
	// HeadlinesPerSource caps extraction per source. Default 15.
	HeadlinesPerSource int
	// UseBrowser enables the headless-browser fallback for sources that
	// render client side.
	UseBrowser bool
}

func (c Config) withDefaults() Config {
	if c.TopN <= 0 {
		c.TopN = 10
	}
	if c.HeadlinesPerSource <= 0 {
		c.HeadlinesPerSource = 15
	}
	return c
}

// Producer implements the research stage.
type Producer struct {
	cfg    Config
	client llm.Client
	log    *zap.Logger
}

// New creates the research producer.
func New(cfg Config, client llm.Client, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{cfg: cfg.withDefaults(), client: client, log: log}
}

type sourceHeadlines struct {
	source    Source
	headlines []fetch.Headline
}

// Invoke fetches every source, scores the combined headline pool, and
// returns the ranked []types.Trend.
func (p *Producer) Invoke(ctx context.Context, in stages.Input) (any, error) {
	if len(p.cfg.Sources) == 0 {
		return nil, types.Permanent(stages.StageResearch, "no trend sources configured", nil)
	}

	collected := p.fetchAll(ctx)
	if len(collected) == 0 {
		return nil, types.Transient(stages.StageResearch, "all trend sources failed", nil)
	}

	trends, err := p.score(ctx, collected)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(trends, func(i, j int) bool { return trends[i].Score > trends[j].Score })
	if len(trends) > p.cfg.TopN {
		trends = trends[:p.cfg.TopN]
	}

	p.log.Info("research stage scored trends",
		zap.String("run_id", in.RunID.String()),
		zap.Int("sources", len(collected)),
		zap.Int("trends", len(trends)))

	return trends, nil
}

// fetchAll pulls headlines from every source concurrently. Individual
// source failures are logged and skipped; the stage only fails when no
// source yields anything.
func (p *Producer) fetchAll(ctx context.Context) []sourceHeadlines {
	var (
		mu        sync.Mutex
		collected []sourceHeadlines
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range p.cfg.Sources {
		g.Go(func() error {
			headlines, err := p.fetchSource(gctx, src)
			if err != nil {
				p.log.Warn("trend source failed",
					zap.String("source", src.Name),
					zap.Error(err))
				return nil
			}
			if len(headlines) == 0 {
				p.log.Warn("trend source yielded no headlines", zap.String("source", src.Name))
				return nil
			}
			mu.Lock()
			collected = append(collected, sourceHeadlines{source: src, headlines: headlines})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// Stable ordering so the scoring prompt is deterministic for a given
	// fetch outcome.
	sort.Slice(collected, func(i, j int) bool { return collected[i].source.Name < collected[j].source.Name })
	return collected
}

func (p *Producer) fetchSource(ctx context.Context, src Source) ([]fetch.Headline, error) {
	res, err := fetch.URL(ctx, src.URL, nil)
	if err != nil {
		return nil, err
	}

	headlines, err := fetch.ExtractHeadlines(res.HTML, src.Selectors, p.cfg.HeadlinesPerSource)
	if err != nil {
		return nil, err
	}

	if len(headlines) == 0 && p.cfg.UseBrowser {
		html, berr := fetch.WithBrowser(ctx, src.URL, fetch.DefaultTimeout)
		if berr != nil {
			return nil, berr
		}
		headlines, err = fetch.ExtractHeadlines(html, src.Selectors, p.cfg.HeadlinesPerSource)
		if err != nil {
			return nil, err
		}
	}

	return headlines, nil
}

type trendWire struct {
	Trends []struct {
		Topic     string  `json:"topic"`
		Summary   string  `json:"summary"`
		SourceURL string  `json:"source_url"`
		Score     float64 `json:"score"`
	} `json:"trends"`
}

func (p *Producer) score(ctx context.Context, collected []sourceHeadlines) ([]types.Trend, error) {
	prompt := buildScoringPrompt(collected)

	raw, err := p.client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return nil, types.Transient(stages.StageResearch, "trend scoring request failed", err)
	}

	if err := schemas.ValidateJSONString(schemas.TrendList, raw); err != nil {
		var loadErr *schemas.SchemaLoadError
		if errors.As(err, &loadErr) {
			return nil, types.Permanent(stages.StageResearch, "trend schema failed to load", err)
		}
		return nil, types.Transient(stages.StageResearch, "model returned an invalid trend list", err)
	}

	var wire trendWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, types.Transient(stages.StageResearch, "failed to decode trend list", err)
	}

	trends := make([]types.Trend, 0, len(wire.Trends))
	for _, t := range wire.Trends {
		trends = append(trends, types.Trend{
			Title:   t.Topic,
			Summary: t.Summary,
			Source:  hostOf(t.SourceURL),
			URL:     t.SourceURL,
			Score:   t.Score,
		})
	}
	return trends, nil
}

func buildScoringPrompt(collected []sourceHeadlines) string {
	var sb strings.Builder
	sb.WriteString("You are a content strategist for a professional technology audience.\n")
	sb.WriteString("Below are today's headlines grouped by source. Identify the distinct trends\n")
	sb.WriteString("they represent and score each trend's relevance for a LinkedIn audience\n")
	sb.WriteString("between 0 and 1.\n\n")
	for _, sh := range collected {
		fmt.Fprintf(&sb, "Source: %s (%s)\n", sh.source.Name, sh.source.URL)
		for _, h := range sh.headlines {
			fmt.Fprintf(&sb, "- %s\n", h.Text)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(`Respond with JSON only, in this shape:
{"trends": [{"topic": "...", "summary": "...", "source_url": "...", "score": 0.0}]}`)
	return sb.String()
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
