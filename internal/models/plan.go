package models

// Plan is one line of the plan corpus. Position is its 0-based index in the
// corpus and doubles as its identity.
type Plan struct {
	Position int
	Text     string
}

// Match is a plan returned by a similarity query together with its cosine
// distance to the query embedding.
type Match struct {
	Plan     Plan
	Distance float64
}

// EmbeddedPlan pairs a plan with the vector computed for it at build time.
type EmbeddedPlan struct {
	Plan
	Embedding []float32
}
