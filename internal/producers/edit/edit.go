// Package edit implements the third pipeline stage: an editorial review
// of every draft, with an approval threshold deciding what moves on to
// scheduling.
package edit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/content-agent/internal/engine/stages"
	"github.com/jonathan/content-agent/internal/llm"
	"github.com/jonathan/content-agent/internal/schemas"
	"github.com/jonathan/content-agent/internal/types"
)

// Config tunes the edit stage.
type Config struct {
	// ApprovalThreshold is the minimum review score for a draft to pass,
	// on top of the reviewer's own approved flag. Default 0.7.
	ApprovalThreshold float64
}

func (c Config) withDefaults() Config {
	if c.ApprovalThreshold <= 0 {
		c.ApprovalThreshold = 0.7
	}
	return c
}

// Producer implements the edit stage.
type Producer struct {
	cfg    Config
	client llm.Client
	log    *zap.Logger
	now    func() time.Time
}

// New creates the edit producer.
func New(cfg Config, client llm.Client, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{cfg: cfg.withDefaults(), client: client, log: log, now: time.Now}
}

type reviewWire struct {
	Reviews []struct {
		Approved bool     `json:"approved"`
		Score    float64  `json:"score"`
		Feedback string   `json:"feedback"`
		Title    string   `json:"title"`
		Body     string   `json:"body"`
		Hashtags []string `json:"hashtags"`
	} `json:"reviews"`
}

// Invoke reviews every draft and returns []types.Review, one per draft
// in draft order. Rejected drafts stay in the artifact with their
// feedback; only approved ones are scheduled downstream.
func (p *Producer) Invoke(ctx context.Context, in stages.Input) (any, error) {
	payload, ok := in.Payload(stages.StageDevelop)
	if !ok {
		return nil, types.Permanent(stages.StageEdit, "develop artifact missing", nil)
	}
	drafts, ok := payload.([]types.Draft)
	if !ok {
		return nil, types.Permanent(stages.StageEdit,
			fmt.Sprintf("develop artifact has type %T, want []types.Draft", payload), nil)
	}
	if len(drafts) == 0 {
		return nil, types.Permanent(stages.StageEdit, "no drafts to review", nil)
	}

	raw, err := p.client.GenerateJSON(ctx, buildReviewPrompt(drafts), llm.TierStandard)
	if err != nil {
		return nil, types.Transient(stages.StageEdit, "review request failed", err)
	}

	if err := schemas.ValidateJSONString(schemas.ReviewList, raw); err != nil {
		var loadErr *schemas.SchemaLoadError
		if errors.As(err, &loadErr) {
			return nil, types.Permanent(stages.StageEdit, "review schema failed to load", err)
		}
		return nil, types.Transient(stages.StageEdit, "model returned an invalid review list", err)
	}

	var wire reviewWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, types.Transient(stages.StageEdit, "failed to decode review list", err)
	}
	if len(wire.Reviews) != len(drafts) {
		return nil, types.Transient(stages.StageEdit,
			fmt.Sprintf("got %d reviews for %d drafts", len(wire.Reviews), len(drafts)), nil)
	}

	now := p.now()
	reviews := make([]types.Review, 0, len(drafts))
	approved := 0
	for i, r := range wire.Reviews {
		draft := drafts[i]
		// The reviewer may hand back a polished version of the post.
		if r.Title != "" {
			draft.Post.Title = r.Title
		}
		if r.Body != "" {
			draft.Post.Body = r.Body
		}
		if len(r.Hashtags) > 0 {
			draft.Post.Hashtags = r.Hashtags
		}

		pass := r.Approved && r.Score >= p.cfg.ApprovalThreshold
		if pass {
			approved++
		}
		reviews = append(reviews, types.Review{
			Draft:      draft,
			Approved:   pass,
			Score:      r.Score,
			Feedback:   r.Feedback,
			ReviewedAt: now,
		})
	}

	p.log.Info("edit stage reviewed drafts",
		zap.String("run_id", in.RunID.String()),
		zap.Int("drafts", len(drafts)),
		zap.Int("approved", approved))

	return reviews, nil
}

func buildReviewPrompt(drafts []types.Draft) string {
	var sb strings.Builder
	sb.WriteString("You are a senior editor for professional social content. Review each draft\n")
	sb.WriteString("below for clarity, accuracy, and tone. Score each between 0 and 1, approve\n")
	sb.WriteString("only drafts you would publish as-is or with your light edits, and return a\n")
	sb.WriteString("polished title and body when you make edits. Review in the same order.\n\n")
	for i, d := range drafts {
		fmt.Fprintf(&sb, "Draft %d:\nTitle: %s\nBody: %s\nHashtags: %s\n\n",
			i+1, d.Post.Title, d.Post.Body, strings.Join(d.Post.Hashtags, " "))
	}
	sb.WriteString(`Respond with JSON only, in this shape:
{"reviews": [{"approved": true, "score": 0.0, "feedback": "...", "title": "...", "body": "...", "hashtags": ["..."]}]}`)
	return sb.String()
}
