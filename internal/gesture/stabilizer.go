package gesture

import "time"

const (
	// windowSize bounds the rolling prediction window per connection.
	windowSize = 10
	// minStabilityRatio is the fraction of window frames that must agree.
	minStabilityRatio = 0.7
	// minAvgConfidence is the minimum mean confidence of agreeing frames.
	minAvgConfidence = 0.75
	// minStableDuration is how long a label must stay stable before commit.
	minStableDuration = 400 * time.Millisecond
	// commitCooldown is the global minimum spacing between commits,
	// independent of label.
	commitCooldown = 1000 * time.Millisecond
)

// Observation is the stabilizer output for one frame.
type Observation struct {
	Token      Token
	Confidence float64
	StableMs   int64
	Commit     bool
	TS         int64 // unix milliseconds
}

// Stabilizer smooths noisy per-frame predictions into de-duplicated,
// rate-limited commit events. One instance per connection; not safe for
// concurrent use — callers feed frames in arrival order.
type Stabilizer struct {
	window []Prediction

	lastCommitTime     time.Time
	lastCommittedToken Token
	stableStart        time.Time

	now func() time.Time
}

// NewStabilizer returns a stabilizer using the wall clock.
func NewStabilizer() *Stabilizer {
	return &Stabilizer{now: time.Now}
}

// NewStabilizerWithClock returns a stabilizer with an injected clock.
func NewStabilizerWithClock(now func() time.Time) *Stabilizer {
	return &Stabilizer{now: now}
}

// Observe appends the frame's prediction to the window and evaluates the
// commit state machine.
func (s *Stabilizer) Observe(p Prediction) Observation {
	now := s.now()

	s.window = append(s.window, p)
	if len(s.window) > windowSize {
		s.window = s.window[1:]
	}

	if len(s.window) == 0 {
		// Unreachable after the append above; kept for a well-defined
		// zero state.
		return Observation{Token: TokenNone, Confidence: 0, TS: now.UnixMilli()}
	}

	dominant, count := s.dominant()
	stabilityRatio := float64(count) / float64(len(s.window))

	var confSum float64
	for _, entry := range s.window {
		if entry.Token == dominant {
			confSum += entry.Confidence
		}
	}
	avgConfidence := confSum / float64(count)

	isStable := stabilityRatio >= minStabilityRatio &&
		avgConfidence >= minAvgConfidence &&
		dominant != TokenNone

	var stableMs int64
	if isStable {
		if s.stableStart.IsZero() {
			s.stableStart = now
		}
		stableMs = now.Sub(s.stableStart).Milliseconds()
	} else {
		// Losing stability resets the clock entirely; no partial credit.
		s.stableStart = time.Time{}
	}

	shouldCommit := false
	if isStable && stableMs >= minStableDuration.Milliseconds() {
		sinceCommit := now.Sub(s.lastCommitTime)
		if (s.lastCommitTime.IsZero() || sinceCommit >= commitCooldown) &&
			dominant != s.lastCommittedToken {
			shouldCommit = true
			s.lastCommitTime = now
			s.lastCommittedToken = dominant
		}
	}

	return Observation{
		Token:      dominant,
		Confidence: avgConfidence,
		StableMs:   stableMs,
		Commit:     shouldCommit,
		TS:         now.UnixMilli(),
	}
}

// dominant returns the most frequent token in the window. Ties break in
// favor of the token encountered first in window order.
func (s *Stabilizer) dominant() (Token, int) {
	counts := make(map[Token]int, len(s.window))
	best := s.window[0].Token
	bestCount := 0
	for _, entry := range s.window {
		counts[entry.Token]++
		if counts[entry.Token] > bestCount {
			best = entry.Token
			bestCount = counts[entry.Token]
		}
	}
	return best, bestCount
}

// WindowLen reports how many predictions are currently buffered.
func (s *Stabilizer) WindowLen() int { return len(s.window) }
