package buffer

import (
	"testing"
	"time"

	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/observation"
)

func TestCheckpointAddObservationReplacesScalar(t *testing.T) {
	cp := NewCheckpoint()
	cp.AddObservation(observation.New("X", observation.KindSample, time.Now(), model.DoubleValue(1)), false)
	cp.AddObservation(observation.New("X", observation.KindSample, time.Now(), model.DoubleValue(2)), false)

	got, ok := cp.Get("X")
	if !ok || got.Value.Float != 2 {
		t.Fatalf("expected latest scalar 2, got %+v ok=%v", got, ok)
	}
}

func TestCheckpointConditionChainMerge(t *testing.T) {
	cp := NewCheckpoint()
	c1 := observation.New("C", observation.KindCondition, time.Now(), model.Empty())
	c1.Condition = &observation.Condition{Level: observation.LevelFault, NativeCode: "A", DataItemID: "C"}
	cp.AddObservation(c1, false)

	c2 := observation.New("C", observation.KindCondition, time.Now(), model.Empty())
	c2.Condition = &observation.Condition{Level: observation.LevelNormal, NativeCode: "A", DataItemID: "C"}
	cp.AddObservation(c2, false)

	got, _ := cp.Get("C")
	if got.Condition.Level != observation.LevelNormal || got.Condition.NativeCode != "" {
		t.Fatalf("expected chain collapsed to empty-code NORMAL, got %+v", got.Condition)
	}
}

func TestCheckpointDataSetMerge(t *testing.T) {
	cp := NewCheckpoint()
	v1 := model.DataSetValue(model.DataSet{{Key: "a", Value: "1"}})
	o1 := observation.New("D", observation.KindDataSetEvent, time.Now(), v1)
	cp.AddObservation(o1, true)

	v2 := model.DataSetValue(model.DataSet{{Key: "b", Value: "2"}})
	o2 := observation.New("D", observation.KindDataSetEvent, time.Now(), v2)
	cp.AddObservation(o2, true)

	got, _ := cp.Get("D")
	if len(got.Value.DataSet) != 2 {
		t.Fatalf("expected merged set of 2 entries, got %d: %+v", len(got.Value.DataSet), got.Value.DataSet)
	}
}

func TestCheckpointCopyFilters(t *testing.T) {
	cp := NewCheckpoint()
	cp.AddObservation(observation.New("X", observation.KindSample, time.Now(), model.DoubleValue(1)), false)
	cp.AddObservation(observation.New("Y", observation.KindSample, time.Now(), model.DoubleValue(2)), false)

	filtered := cp.Copy(map[string]bool{"X": true})
	if _, ok := filtered.Get("Y"); ok {
		t.Error("expected Y to be excluded by filter")
	}
	if _, ok := filtered.Get("X"); !ok {
		t.Error("expected X to survive filter")
	}
}

// TestDuplicateSuppressionIdempotence is testable property 3's setup: the
// DuplicateFilter transform (internal/pipeline) consults this checkpoint
// to decide whether a resubmitted scalar should be dropped.
func TestDuplicateSuppressionIdempotence(t *testing.T) {
	cp := NewCheckpoint()
	obs := observation.New("X", observation.KindSample, time.Now(), model.DoubleValue(1))
	cp.AddObservation(obs, false)

	got, _ := cp.Get("X")
	dup := observation.New("X", observation.KindSample, time.Now(), model.DoubleValue(1))
	if !got.Value.Equal(dup.Value) {
		t.Fatal("expected equal values to be detected as duplicate by equality check")
	}
}
