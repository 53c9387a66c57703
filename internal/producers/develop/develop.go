// Package develop implements the second pipeline stage: it turns the
// top-ranked trends into platform-ready post drafts.
package develop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/content-agent/internal/engine/stages"
	"github.com/jonathan/content-agent/internal/llm"
	"github.com/jonathan/content-agent/internal/schemas"
	"github.com/jonathan/content-agent/internal/types"
)

// Config tunes the develop stage.
type Config struct {
	// DraftCount is how many of the top trends get a draft. Default 3.
	DraftCount int
	// Format tags the drafts, e.g. "linkedin_post". Default "linkedin_post".
	Format string
}

func (c Config) withDefaults() Config {
	if c.DraftCount <= 0 {
		c.DraftCount = 3
	}
	if c.Format == "" {
		c.Format = "linkedin_post"
	}
	return c
}

// Producer implements the develop stage.
type Producer struct {
	cfg    Config
	client llm.Client
	log    *zap.Logger
}

// New creates the develop producer.
func New(cfg Config, client llm.Client, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{cfg: cfg.withDefaults(), client: client, log: log}
}

type draftWire struct {
	Drafts []struct {
		Title    string   `json:"title"`
		Body     string   `json:"body"`
		Hashtags []string `json:"hashtags"`
		Format   string   `json:"format"`
	} `json:"drafts"`
}

// Invoke drafts one post per selected trend and returns []types.Draft.
func (p *Producer) Invoke(ctx context.Context, in stages.Input) (any, error) {
	payload, ok := in.Payload(stages.StageResearch)
	if !ok {
		return nil, types.Permanent(stages.StageDevelop, "research artifact missing", nil)
	}
	trends, ok := payload.([]types.Trend)
	if !ok {
		return nil, types.Permanent(stages.StageDevelop,
			fmt.Sprintf("research artifact has type %T, want []types.Trend", payload), nil)
	}
	if len(trends) == 0 {
		return nil, types.Permanent(stages.StageDevelop, "no trends to develop", nil)
	}

	selected := trends
	if len(selected) > p.cfg.DraftCount {
		selected = selected[:p.cfg.DraftCount]
	}

	raw, err := p.client.GenerateJSON(ctx, buildDraftPrompt(selected), llm.TierAdvanced)
	if err != nil {
		return nil, types.Transient(stages.StageDevelop, "draft generation request failed", err)
	}

	if err := schemas.ValidateJSONString(schemas.DraftList, raw); err != nil {
		var loadErr *schemas.SchemaLoadError
		if errors.As(err, &loadErr) {
			return nil, types.Permanent(stages.StageDevelop, "draft schema failed to load", err)
		}
		return nil, types.Transient(stages.StageDevelop, "model returned an invalid draft list", err)
	}

	var wire draftWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, types.Transient(stages.StageDevelop, "failed to decode draft list", err)
	}

	drafts := make([]types.Draft, 0, len(wire.Drafts))
	for i, d := range wire.Drafts {
		format := d.Format
		if format == "" {
			format = p.cfg.Format
		}
		trendSource := ""
		if i < len(selected) {
			trendSource = selected[i].Title
		}
		drafts = append(drafts, types.Draft{
			Post: types.Post{
				Title:    d.Title,
				Body:     d.Body,
				Hashtags: d.Hashtags,
				Format:   format,
			},
			TrendSource: trendSource,
			Order:       i,
		})
	}

	p.log.Info("develop stage produced drafts",
		zap.String("run_id", in.RunID.String()),
		zap.Int("drafts", len(drafts)))

	return drafts, nil
}

func buildDraftPrompt(trends []types.Trend) string {
	var sb strings.Builder
	sb.WriteString("You are a professional content writer. Write one LinkedIn post per trend\n")
	sb.WriteString("below, in the same order. Each post needs a punchy title, a body of 100\n")
	sb.WriteString("to 200 words with a clear takeaway, and 3 to 5 relevant hashtags.\n\n")
	for i, t := range trends {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, t.Title)
		if t.Summary != "" {
			fmt.Fprintf(&sb, "   %s\n", t.Summary)
		}
	}
	sb.WriteString(`
Respond with JSON only, in this shape:
{"drafts": [{"title": "...", "body": "...", "hashtags": ["..."], "format": "linkedin_post"}]}`)
	return sb.String()
}
