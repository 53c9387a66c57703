package types

import "time"

// Trend is one candidate topic surfaced by the research stage.
type Trend struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Source   string   `json:"source"`
	URL      string   `json:"url,omitempty"`
	Score    float64  `json:"score"`
	Keywords []string `json:"keywords,omitempty"`
}

// Post is one piece of platform-ready content. It is what ultimately
// gets handed to the distribution collaborator.
type Post struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Hashtags []string `json:"hashtags,omitempty"`
	Format   string   `json:"format"` // e.g. "linkedin_post"
}

// Draft is a generated post paired with the trend that prompted it.
type Draft struct {
	Post        Post   `json:"post"`
	TrendSource string `json:"trend_source"`
	Order       int    `json:"order"`
}

// Review is the editor's verdict on one draft.
type Review struct {
	Draft      Draft     `json:"draft"`
	Approved   bool      `json:"approved"`
	Score      float64   `json:"score"`
	Feedback   string    `json:"feedback,omitempty"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// PlannedPost is an approved post assigned to a publishing slot by the
// schedule stage. The coordinator turns each one into a ScheduledItem.
type PlannedPost struct {
	Post          Post      `json:"post"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Platforms     []string  `json:"platforms"`
}
