package buffer

import (
	"testing"
	"time"

	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/observation"
)

func sampleObs(id string, v float64) *observation.Observation {
	return observation.New(id, observation.KindSample, time.Now(), model.DoubleValue(v))
}

// TestScenarioS3 mirrors spec.md §8 scenario S3: buffer capacity 8,
// checkpointFrequency 2, 10 distinct observations committed.
func TestScenarioS3(t *testing.T) {
	b := New(3, 2) // capacity = 1<<3 = 8
	var lastSeq uint64
	for i := 0; i < 10; i++ {
		lastSeq = b.AddToBuffer(sampleObs("X", float64(i)))
	}

	if b.FirstSequence() != 3 {
		t.Errorf("firstSequence = %d, want 3", b.FirstSequence())
	}
	if b.NextSequence() != 11 {
		t.Errorf("nextSequence = %d, want 11", b.NextSequence())
	}
	if lastSeq != 10 {
		t.Errorf("last assigned sequence = %d, want 10", lastSeq)
	}

	cp := b.GetCheckpointAt(5, nil)
	obs, ok := cp.Get("X")
	if !ok {
		t.Fatal("expected X present in checkpoint at 5")
	}
	if obs.Sequence != 5 {
		t.Errorf("checkpoint at 5 reconstructed sequence %d, want 5", obs.Sequence)
	}
}

// TestSequenceMonotonicity is testable property 1.
func TestSequenceMonotonicity(t *testing.T) {
	b := New(4, 4)
	seen := make(map[uint64]bool)
	var prev uint64
	for i := 0; i < 50; i++ {
		seq := b.AddToBuffer(sampleObs("X", float64(i)))
		if seq <= prev {
			t.Fatalf("sequence %d not strictly greater than previous %d", seq, prev)
		}
		if seen[seq] {
			t.Fatalf("duplicate sequence %d", seq)
		}
		seen[seq] = true
		prev = seq
	}
}

func TestGetFromBufferOutOfRange(t *testing.T) {
	b := New(2, 2) // capacity 4
	for i := 0; i < 6; i++ {
		b.AddToBuffer(sampleObs("X", float64(i)))
	}
	if b.GetFromBuffer(1) != nil {
		t.Error("expected nil for evicted sequence 1")
	}
	if b.GetFromBuffer(100) != nil {
		t.Error("expected nil for future sequence")
	}
	if b.GetFromBuffer(b.FirstSequence()) == nil {
		t.Error("expected non-nil for live firstSequence")
	}
}

func TestGetObservationsWindow(t *testing.T) {
	b := New(4, 4)
	for i := 1; i <= 20; i++ {
		b.AddToBuffer(sampleObs("X", float64(i)))
	}

	from := uint64(5)
	obs, first, next, eob := b.GetObservations(5, nil, &from, nil)
	if first != 5 {
		t.Errorf("firstReturned = %d, want 5", first)
	}
	if len(obs) != 5 {
		t.Fatalf("len(obs) = %d, want 5", len(obs))
	}
	if obs[0].Sequence != 5 || obs[4].Sequence != 9 {
		t.Errorf("unexpected sequence window: %d..%d", obs[0].Sequence, obs[4].Sequence)
	}
	if eob {
		t.Error("expected eob=false mid-buffer")
	}
	if next != 10 {
		t.Errorf("nextReturned = %d, want 10", next)
	}
}

func TestRemoveDataItemsOrphans(t *testing.T) {
	b := New(4, 4)
	b.AddToBuffer(sampleObs("X", 1))
	b.RemoveDataItems(map[string]bool{"X": true})

	obs := b.GetFromBuffer(b.FirstSequence())
	if obs == nil || !obs.Orphan {
		t.Error("expected observation for removed data item to be marked orphan")
	}
}
