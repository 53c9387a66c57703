package distribution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/content-agent/internal/types"
)

const (
	linkedinAPIBase = "https://api.linkedin.com/v2"
	publishTimeout  = 30 * time.Second
)

// LinkedIn publishes posts through the LinkedIn UGC API.
type LinkedIn struct {
	accessToken string
	authorURN   string
	baseURL     string
	client      *http.Client
}

// NewLinkedIn creates a LinkedIn publisher. authorURN is the
// urn:li:person or urn:li:organization the posts are attributed to.
func NewLinkedIn(accessToken, authorURN string) *LinkedIn {
	return &LinkedIn{
		accessToken: accessToken,
		authorURN:   authorURN,
		baseURL:     linkedinAPIBase,
		client:      &http.Client{Timeout: publishTimeout},
	}
}

// WithBaseURL overrides the API endpoint, for tests.
func (l *LinkedIn) WithBaseURL(base string) *LinkedIn {
	l.baseURL = strings.TrimSuffix(base, "/")
	return l
}

// Publish posts the content as a single UGC share.
func (l *LinkedIn) Publish(ctx context.Context, post types.Post, _ []string) ([]Result, error) {
	if l.accessToken == "" {
		return nil, &types.DistributionFailure{
			Platform: "linkedin",
			Kind:     types.FailurePermanent,
			Message:  "no access token configured",
		}
	}

	body := map[string]any{
		"author":         l.authorURN,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary": map[string]any{
					"text": renderShareText(post),
				},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &types.DistributionFailure{
			Platform: "linkedin",
			Kind:     types.FailurePermanent,
			Message:  "failed to encode share payload",
			Cause:    err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/ugcPosts", bytes.NewReader(payload))
	if err != nil {
		return nil, &types.DistributionFailure{
			Platform: "linkedin",
			Kind:     types.FailurePermanent,
			Message:  "failed to build request",
			Cause:    err,
		}
	}
	req.Header.Set("Authorization", "Bearer "+l.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &types.DistributionFailure{
			Platform: "linkedin",
			Kind:     types.FailureTransient,
			Message:  "request failed",
			Cause:    err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &types.DistributionFailure{
			Platform: "linkedin",
			Kind:     classifyStatus(resp.StatusCode),
			Message:  fmt.Sprintf("API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	ref := resp.Header.Get("X-Restli-Id")
	if ref == "" {
		var created struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err == nil {
			ref = created.ID
		}
	}

	return []Result{{Platform: "linkedin", PublishedRef: ref}}, nil
}

// classifyStatus maps an HTTP status to a failure kind: rate limits and
// server errors are worth a manual re-dispatch, client errors are not.
func classifyStatus(code int) types.FailureKind {
	if code == http.StatusTooManyRequests || code >= 500 {
		return types.FailureTransient
	}
	return types.FailurePermanent
}

func renderShareText(post types.Post) string {
	var sb strings.Builder
	if post.Title != "" {
		sb.WriteString(post.Title)
		sb.WriteString("\n\n")
	}
	sb.WriteString(post.Body)
	if len(post.Hashtags) > 0 {
		sb.WriteString("\n\n")
		for i, tag := range post.Hashtags {
			if i > 0 {
				sb.WriteString(" ")
			}
			if !strings.HasPrefix(tag, "#") {
				sb.WriteString("#")
			}
			sb.WriteString(tag)
		}
	}
	return sb.String()
}
