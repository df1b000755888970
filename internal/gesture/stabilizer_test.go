package gesture

import (
	"testing"
	"time"
)

// stepClock advances a fixed step on every reading, starting at start.
// The first call returns start.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	current := start.Add(-step)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestStabilizerWindowIsBounded(t *testing.T) {
	s := NewStabilizerWithClock(stepClock(testEpoch, 50*time.Millisecond))
	for i := 0; i < 25; i++ {
		s.Observe(Prediction{Token: TokenHello, Confidence: 0.9})
	}
	if got := s.WindowLen(); got != 10 {
		t.Errorf("window length = %d, want 10", got)
	}
}

func TestStabilizerCommitsOnceAfterStableDuration(t *testing.T) {
	// 10 frames of (HELLO, 0.9) spaced 50ms apart. The label is stable
	// from the first frame, so the 400ms threshold is crossed on the 9th
	// frame and exactly one commit fires.
	s := NewStabilizerWithClock(stepClock(testEpoch, 50*time.Millisecond))

	commits := 0
	var committed Observation
	for i := 0; i < 10; i++ {
		obs := s.Observe(Prediction{Token: TokenHello, Confidence: 0.9})
		if obs.Commit {
			commits++
			committed = obs
		}
	}

	if commits != 1 {
		t.Fatalf("commits = %d, want exactly 1", commits)
	}
	if committed.Token != TokenHello {
		t.Errorf("committed token = %s, want HELLO", committed.Token)
	}
	if committed.StableMs < 400 {
		t.Errorf("committed stable_ms = %d, want >= 400", committed.StableMs)
	}
}

func TestStabilizerNeverCommitsOnFirstFrame(t *testing.T) {
	s := NewStabilizerWithClock(stepClock(testEpoch, 50*time.Millisecond))
	obs := s.Observe(Prediction{Token: TokenHelp, Confidence: 1.0})
	if obs.Commit {
		t.Error("first frame committed, stability duration cannot be met yet")
	}
	if obs.StableMs != 0 {
		t.Errorf("stable_ms = %d on first frame, want 0", obs.StableMs)
	}
}

func TestStabilizerAlternatingLabelsNeverCommit(t *testing.T) {
	s := NewStabilizerWithClock(stepClock(testEpoch, 50*time.Millisecond))
	for i := 0; i < 40; i++ {
		token := TokenHello
		if i%2 == 1 {
			token = TokenNone
		}
		if obs := s.Observe(Prediction{Token: token, Confidence: 0.9}); obs.Commit {
			t.Fatalf("frame %d committed while alternating labels", i)
		}
	}
}

func TestStabilizerLowConfidenceNeverCommits(t *testing.T) {
	s := NewStabilizerWithClock(stepClock(testEpoch, 50*time.Millisecond))
	for i := 0; i < 30; i++ {
		if obs := s.Observe(Prediction{Token: TokenYes, Confidence: 0.5}); obs.Commit {
			t.Fatalf("frame %d committed with average confidence 0.5", i)
		}
	}
}

func TestStabilizerNoneNeverCommits(t *testing.T) {
	s := NewStabilizerWithClock(stepClock(testEpoch, 50*time.Millisecond))
	for i := 0; i < 30; i++ {
		if obs := s.Observe(Prediction{Token: TokenNone, Confidence: 1.0}); obs.Commit {
			t.Fatalf("frame %d committed NONE", i)
		}
	}
}

func TestStabilizerSameLabelNeverRecommits(t *testing.T) {
	s := NewStabilizerWithClock(stepClock(testEpoch, 50*time.Millisecond))

	commits := 0
	// Hold the same pose for 5 seconds worth of frames. Without a
	// different label in between, the commit must not repeat even long
	// after the cooldown has expired.
	for i := 0; i < 100; i++ {
		if obs := s.Observe(Prediction{Token: TokenWater, Confidence: 0.95}); obs.Commit {
			commits++
		}
	}
	if commits != 1 {
		t.Errorf("commits = %d, want exactly 1 for a held pose", commits)
	}
}

func TestStabilizerCommitsDifferentLabelAfterCooldown(t *testing.T) {
	s := NewStabilizerWithClock(stepClock(testEpoch, 50*time.Millisecond))

	var commitTimes []int64
	var commitTokens []Token
	observe := func(token Token, n int) {
		for i := 0; i < n; i++ {
			obs := s.Observe(Prediction{Token: token, Confidence: 0.9})
			if obs.Commit {
				commitTimes = append(commitTimes, obs.TS)
				commitTokens = append(commitTokens, obs.Token)
			}
		}
	}

	observe(TokenHello, 10)
	observe(TokenStop, 40)

	if len(commitTokens) != 2 {
		t.Fatalf("commits = %v, want [HELLO STOP]", commitTokens)
	}
	if commitTokens[0] != TokenHello || commitTokens[1] != TokenStop {
		t.Fatalf("commit order = %v, want [HELLO STOP]", commitTokens)
	}
	if gap := commitTimes[1] - commitTimes[0]; gap < 1000 {
		t.Errorf("commit spacing = %dms, want >= 1000", gap)
	}
}

func TestStabilizerStabilityClockResetsOnLoss(t *testing.T) {
	s := NewStabilizerWithClock(stepClock(testEpoch, 50*time.Millisecond))

	// Build up some stability, break it, then confirm stable_ms restarts
	// from zero once stability returns instead of resuming.
	for i := 0; i < 6; i++ {
		s.Observe(Prediction{Token: TokenYes, Confidence: 0.9})
	}
	for i := 0; i < 5; i++ {
		s.Observe(Prediction{Token: TokenNone, Confidence: 0.9})
	}

	for i := 0; i < 20; i++ {
		obs := s.Observe(Prediction{Token: TokenYes, Confidence: 0.9})
		if obs.StableMs > 0 {
			if obs.StableMs > 100 {
				t.Errorf("stable_ms resumed at %d after a stability loss, want a restart near 0", obs.StableMs)
			}
			return
		}
	}
	t.Error("stability never returned after regaining the dominant label")
}
