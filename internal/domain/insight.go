package domain

import "time"

// Dimension names an axis along which engagement is aggregated.
type Dimension string

const (
	DimensionTopic  Dimension = "topic"
	DimensionRepo   Dimension = "repo"
	DimensionStyle  Dimension = "style"
	DimensionLength Dimension = "length"
)

// Style and length keys produced by the learner.
const (
	StyleWithCode = "with_code"
	StyleNoCode   = "no_code"
	LengthShort   = "short"
	LengthMedium  = "medium"
	LengthLong    = "long"
)

// Insight is a learned running-mean score for one (chat, dimension, key)
// triple. SampleSize counts how many observations were folded in.
type Insight struct {
	ChatID     string
	Dimension  Dimension
	Key        string
	Score      float64
	SampleSize int
	UpdatedAt  time.Time
}

// RankedKey pairs an insight key with its score for recommendation output.
type RankedKey struct {
	Key   string
	Score float64
}

// Recommendations summarizes learned insights into actionable guidance for
// the next post. Style and Length are empty when there is not enough data.
type Recommendations struct {
	Topics  []RankedKey
	Style   string
	Length  string
	Repos   []RankedKey
	Summary string
}
