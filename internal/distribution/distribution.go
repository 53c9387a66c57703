// Package distribution publishes approved content to social platforms.
// The dispatcher consumes the Publisher interface; concrete publishers
// live here so platform API details stay out of the queue.
package distribution

import (
	"context"
	"fmt"

	"github.com/jonathan/content-agent/internal/types"
)

// Result is the reference returned by a successful publish.
type Result struct {
	Platform     string `json:"platform"`
	PublishedRef string `json:"published_ref"`
}

// Publisher sends one post to the given platform targets. A failed
// publish returns *types.DistributionFailure; the kind tells the caller
// whether a manual re-dispatch is likely to help.
type Publisher interface {
	Publish(ctx context.Context, post types.Post, targets []string) ([]Result, error)
}

// Registry fans a publish out to per-platform publishers.
type Registry struct {
	platforms map[string]Publisher
}

// NewRegistry builds a registry from a platform-name -> publisher map.
func NewRegistry(platforms map[string]Publisher) *Registry {
	return &Registry{platforms: platforms}
}

// Publish sends the post to every requested target. The first failure
// aborts: partial publishes are reported as a failure so the operator
// can inspect and re-dispatch.
func (r *Registry) Publish(ctx context.Context, post types.Post, targets []string) ([]Result, error) {
	if len(targets) == 0 {
		return nil, &types.DistributionFailure{
			Platform: "none",
			Kind:     types.FailurePermanent,
			Message:  "no platform targets",
		}
	}

	var results []Result
	for _, target := range targets {
		pub, ok := r.platforms[target]
		if !ok {
			return results, &types.DistributionFailure{
				Platform: target,
				Kind:     types.FailurePermanent,
				Message:  fmt.Sprintf("no publisher configured for platform %q", target),
			}
		}
		res, err := pub.Publish(ctx, post, []string{target})
		if err != nil {
			return results, err
		}
		results = append(results, res...)
	}
	return results, nil
}
