package domain

// Outcome classifies how a single match was resolved.
type Outcome string

// Match outcomes. Every outcome other than OutcomeDecided leaves all
// ratings untouched.
const (
	OutcomeDecided           Outcome = "decided"
	OutcomeSkippedDuplicate  Outcome = "skipped_duplicate"
	OutcomeSkippedEmpty      Outcome = "skipped_empty"
	OutcomeSkippedTie        Outcome = "skipped_tie"
	OutcomeSkippedInvalid    Outcome = "skipped_invalid"
	OutcomeSkippedJudgeError Outcome = "skipped_judge_error"
)

// Skipped reports whether the match was consumed without a rating change.
func (o Outcome) Skipped() bool { return o != OutcomeDecided }

// Side identifies one side of a pair.
type Side string

// Match sides. SideNone is used for skipped matches.
const (
	SideNone Side = ""
	SideA    Side = "a"
	SideB    Side = "b"
)

// WinnerMethod records which resolution rule produced the winner.
type WinnerMethod string

// Winner resolution methods, in the order they are attempted.
const (
	MethodNone       WinnerMethod = ""
	MethodExplicit   WinnerMethod = "explicit"
	MethodPattern    WinnerMethod = "pattern"
	MethodDimensions WinnerMethod = "dimensions"
)

// Phase is the lifecycle stage of a tournament run.
type Phase string

// Tournament phases in order.
const (
	PhaseScheduled Phase = "scheduled"
	PhaseRunning   Phase = "running"
	PhaseScored    Phase = "scored"
	PhaseSorted    Phase = "sorted"
	PhaseDone      Phase = "done"
)

// MatchRecord is the audit entry for one consumed match.
type MatchRecord struct {
	Round   int          `json:"round"`
	Pair    Pair         `json:"pair"`
	Outcome Outcome      `json:"outcome"`
	Winner  Side         `json:"winner,omitempty"`
	Method  WinnerMethod `json:"method,omitempty"`

	// RatingsBefore and RatingsAfter hold the composite ratings of A and B.
	RatingsBefore [2]int `json:"ratings_before"`
	RatingsAfter  [2]int `json:"ratings_after"`

	// Scores is set when the judge reported per-dimension scores.
	Scores DimensionScores `json:"scores,omitempty"`

	// Err is set for OutcomeSkippedJudgeError.
	Err error `json:"-"`
}

// MatchStats counts matches by outcome.
type MatchStats struct {
	Scheduled     int `json:"scheduled" yaml:"scheduled"`
	Valid         int `json:"valid" yaml:"valid"`
	Duplicate     int `json:"skipped_duplicate" yaml:"skipped_duplicate"`
	Empty         int `json:"skipped_empty" yaml:"skipped_empty"`
	Tie           int `json:"skipped_tie" yaml:"skipped_tie"`
	Invalid       int `json:"skipped_invalid" yaml:"skipped_invalid"`
	JudgeErrors   int `json:"skipped_judge_error" yaml:"skipped_judge_error"`
	ExplicitWins  int `json:"explicit" yaml:"explicit"`
	PatternWins   int `json:"pattern" yaml:"pattern"`
	DimensionWins int `json:"dimensions" yaml:"dimensions"`
}

// Record adds one match record to the counters.
func (s *MatchStats) Record(r MatchRecord) {
	switch r.Outcome {
	case OutcomeDecided:
		s.Valid++
		switch r.Method {
		case MethodExplicit:
			s.ExplicitWins++
		case MethodPattern:
			s.PatternWins++
		case MethodDimensions:
			s.DimensionWins++
		}
	case OutcomeSkippedDuplicate:
		s.Duplicate++
	case OutcomeSkippedEmpty:
		s.Empty++
	case OutcomeSkippedTie:
		s.Tie++
	case OutcomeSkippedInvalid:
		s.Invalid++
	case OutcomeSkippedJudgeError:
		s.JudgeErrors++
	}
}

// Skipped returns the total number of skipped matches.
func (s MatchStats) Skipped() int {
	return s.Duplicate + s.Empty + s.Tie + s.Invalid + s.JudgeErrors
}
