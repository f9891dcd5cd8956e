package types

// RawUtterance is what the transcript parsers emit. It only lives between
// parse and normalize.
type RawUtterance struct {
	Speaker         string  `json:"speaker"`
	Content         string  `json:"content"`
	StartTime       string  `json:"start_time,omitempty"`
	EndTime         string  `json:"end_time,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	HasTiming       bool    `json:"-"`
}

// Utterance is the canonical record persisted in the search index.
// The enrichment fields (department, region, topics, sentiment_score) start
// at their defaults and are filled in by the enrichment orchestrator.
type Utterance struct {
	ID             string   `json:"id"`
	MeetingID      string   `json:"meeting_id"`
	MeetingDate    string   `json:"meeting_date"`
	Speaker        string   `json:"speaker"`
	Department     string   `json:"department"`
	Region         string   `json:"region"`
	Topics         []string `json:"topics"`
	SentimentScore float64  `json:"sentiment_score"`
	Content        string   `json:"content"`
	StartTimestamp string   `json:"start_timestamp"`
	EndTimestamp   string   `json:"end_timestamp"`
	DurationSecs   float64  `json:"duration_seconds"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

// Entities is the intermediate entity breakdown used only to infer
// department and region. It is never persisted.
type Entities struct {
	Persons       []string `json:"persons"`
	Organizations []string `json:"organizations"`
	Locations     []string `json:"locations"`
	Other         []string `json:"other"`
}

// MeetingSummary is the best-effort meeting-level annotation.
type MeetingSummary struct {
	Summary          string   `json:"summary"`
	Actions          []string `json:"actions"`
	Risks            []string `json:"risks"`
	SentimentOverall string   `json:"sentiment_overall"`
}

// FallbackSummary is returned whenever summarization fails.
func FallbackSummary() MeetingSummary {
	return MeetingSummary{
		Summary:          "Unable to generate summary",
		Actions:          []string{},
		Risks:            []string{},
		SentimentOverall: "neutral",
	}
}

// FilterSpec carries the optional query-side constraints. An unset field
// means "no constraint", never "match empty".
type FilterSpec struct {
	FromDate     string   `json:"from_date,omitempty"`
	ToDate       string   `json:"to_date,omitempty"`
	Department   string   `json:"department,omitempty"`
	Region       string   `json:"region,omitempty"`
	Topics       []string `json:"topics,omitempty"`
	SentimentMin *float64 `json:"sentiment_min,omitempty"`
	SentimentMax *float64 `json:"sentiment_max,omitempty"`
	Search       string   `json:"search,omitempty"`
}

// IsZero reports whether no constraint is set.
func (f FilterSpec) IsZero() bool {
	return f.FromDate == "" && f.ToDate == "" && f.Department == "" &&
		f.Region == "" && len(f.Topics) == 0 &&
		f.SentimentMin == nil && f.SentimentMax == nil && f.Search == ""
}

// Trend is a derived per-topic aggregate, computed on demand.
type Trend struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	MeetingsCount int     `json:"meetings_count"`
	AvgSentiment  float64 `json:"avg_sentiment"`
	Momentum      string  `json:"momentum"`
	NoveltyScore  float64 `json:"novelty_score"`
}

// Quote is one exemplar utterance attached to a speaker summary.
type Quote struct {
	Quote     string `json:"quote"`
	MeetingID string `json:"meeting_id"`
	Timestamp string `json:"ts"`
}

// SpeakerSummary is a derived per-speaker rollup.
type SpeakerSummary struct {
	SpeakerID      string  `json:"speaker_id"`
	DisplayName    string  `json:"display_name"`
	Department     string  `json:"department"`
	Region         string  `json:"region"`
	Mentions       int     `json:"mentions"`
	AvgSentiment   float64 `json:"avg_sentiment"`
	ExemplarQuotes []Quote `json:"exemplar_quotes"`
}

// IngestResult is the upload/watch ingestion outcome returned to callers.
type IngestResult struct {
	MeetingID       string         `json:"meeting_id"`
	Filename        string         `json:"filename"`
	UtterancesCount int            `json:"utterances_count"`
	Topics          []string       `json:"topics"`
	Summary         MeetingSummary `json:"summary"`
	Status          string         `json:"status"`
}

// ChatResponse is returned by the natural-language query endpoint.
type ChatResponse struct {
	Answer     string         `json:"answer"`
	Data       map[string]any `json:"data"`
	Sources    []string       `json:"sources"`
	Confidence float64        `json:"confidence"`
	Intent     string         `json:"intent"`
	Error      string         `json:"error,omitempty"`
}
