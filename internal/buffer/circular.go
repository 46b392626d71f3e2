package buffer

import (
	"sync"

	"github.com/snarg/mtc-agent/internal/observation"
)

// CircularBuffer is a power-of-two bounded sequence of observations with
// firstSequence and nextSequence maintained, plus an ordered checkpoint
// ring and a running "latest" checkpoint (spec.md §3, §4.5). Capacity is
// 1 << bufferSizeExp, not a rounded-up value, exactly as
// _examples/original_source/src/mtconnect/buffer/circular_buffer.hpp
// computes m_slidingBufferSize.
type CircularBuffer struct {
	mu sync.Mutex

	capacity          uint64
	checkpointFreq    uint64
	checkpointCount   uint64
	ring              []*observation.Observation // ring[i] holds sequence (firstSequence+i)
	firstSequence     uint64
	nextSequence      uint64
	latest            *Checkpoint
	first             *Checkpoint // state just before firstSequence
	checkpoints       []checkpointEntry

	dataItemMeta map[string]dataItemKind // id -> kind classification for merge rules

	subscribers []chan *observation.Observation
}

type dataItemKind struct {
	isCondition bool
	isDataSet   bool
}

type checkpointEntry struct {
	sequence uint64
	cp       *Checkpoint
}

// New builds a CircularBuffer. bufferSizeExp is the power-of-two exponent
// (capacity = 1<<bufferSizeExp); checkpointFrequency must be positive.
func New(bufferSizeExp uint, checkpointFrequency int) *CircularBuffer {
	capacity := uint64(1) << bufferSizeExp
	freq := uint64(checkpointFrequency)
	return &CircularBuffer{
		capacity:        capacity,
		checkpointFreq:  freq,
		checkpointCount: capacity / freq,
		ring:            make([]*observation.Observation, 0, capacity),
		firstSequence:   1,
		nextSequence:    1,
		latest:          NewCheckpoint(),
		first:           NewCheckpoint(),
		dataItemMeta:    make(map[string]dataItemKind),
	}
}

// RegisterDataItem tells the buffer how to classify a data item id for
// merge purposes (condition chain vs. data-set vs. plain scalar). Called by
// the agent coordinator when a device model is loaded.
func (b *CircularBuffer) RegisterDataItem(id string, isCondition, isDataSet bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dataItemMeta[id] = dataItemKind{isCondition: isCondition, isDataSet: isDataSet}
}

// Subscribe returns a channel that receives every observation committed
// from this point forward, grounded on the original's data-item observer
// registration (SPEC_FULL.md §9 "Observers on data items") generalized to
// whole-buffer notification; per-data-item filtering happens at the
// subscriber (agent/REST/WS layer).
func (b *CircularBuffer) Subscribe(buf int) (<-chan *observation.Observation, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan *observation.Observation, buf)
	b.subscribers = append(b.subscribers, ch)
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subscribers {
			if s == ch {
				b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (b *CircularBuffer) notify(obs *observation.Observation) {
	for _, ch := range b.subscribers {
		select {
		case ch <- obs:
		default:
			// slow subscriber: drop rather than block the committing strand.
		}
	}
}

// AddToBuffer assigns a sequence number, folds the observation into first
// (if evicting) and latest checkpoints, snapshots the checkpoint ring on a
// checkpointFrequency boundary, and returns the assigned sequence — exactly
// the six steps of spec.md §4.5 addToBuffer. Returns 0 for an orphan
// observation.
func (b *CircularBuffer) AddToBuffer(obs *observation.Observation) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if obs.Orphan {
		return 0
	}

	obs.Sequence = b.nextSequence

	if uint64(len(b.ring)) >= b.capacity {
		evicted := b.ring[0]
		b.ring = b.ring[1:]
		b.foldInto(b.first, evicted)
		b.firstSequence++
	}

	b.ring = append(b.ring, obs)
	b.foldInto(b.latest, obs)

	if obs.Sequence%b.checkpointFreq == 0 {
		b.checkpoints = append(b.checkpoints, checkpointEntry{sequence: obs.Sequence, cp: b.latest.Copy(nil)})
		for uint64(len(b.checkpoints)) > b.checkpointCount {
			b.checkpoints = b.checkpoints[1:]
		}
	}

	b.nextSequence++
	b.notify(obs)
	return obs.Sequence
}

func (b *CircularBuffer) foldInto(cp *Checkpoint, obs *observation.Observation) {
	meta := b.dataItemMeta[obs.DataItemID]
	cp.AddObservation(obs, meta.isDataSet)
}

// FirstSequence and NextSequence expose the buffer's live range.
func (b *CircularBuffer) FirstSequence() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.firstSequence
}

func (b *CircularBuffer) NextSequence() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextSequence
}

// GetFromBuffer returns the observation committed at sequence s, or nil if
// s is outside the live range — circular_buffer.hpp's getFromBuffer, offset
// by seq - firstSequence.
func (b *CircularBuffer) GetFromBuffer(s uint64) *observation.Observation {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s < b.firstSequence || s >= b.nextSequence {
		return nil
	}
	return b.ring[s-b.firstSequence]
}

// GetCheckpointAt locates the nearest prior incremental checkpoint (or the
// first checkpoint), clones it under filter, then replays observations
// from that checkpoint's sequence up to s (spec.md §4.5).
func (b *CircularBuffer) GetCheckpointAt(s uint64, filter map[string]bool) *Checkpoint {
	b.mu.Lock()
	defer b.mu.Unlock()

	base := b.first
	baseSeq := uint64(0)
	for _, entry := range b.checkpoints {
		if entry.sequence <= s {
			base = entry.cp
			baseSeq = entry.sequence
		} else {
			break
		}
	}

	cp := base.Copy(filter)
	if baseSeq < b.firstSequence {
		baseSeq = b.firstSequence - 1
	}
	for seq := baseSeq + 1; seq <= s && seq < b.nextSequence; seq++ {
		if seq < b.firstSequence {
			continue
		}
		obs := b.ring[seq-b.firstSequence]
		meta := b.dataItemMeta[obs.DataItemID]
		cp.AddObservation(obs, meta.isDataSet)
	}
	return cp
}

// Latest returns a filtered clone of the continually-updated latest
// checkpoint.
func (b *CircularBuffer) Latest(filter map[string]bool) *Checkpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest.Copy(filter)
}

// LatestOne returns the most recently committed observation for a single
// data item id without cloning the whole checkpoint, used by
// DuplicateFilter/DeltaFilter/PeriodFilter (spec.md §4.1.1, §4.1.2) which
// only ever need one id at a time.
func (b *CircularBuffer) LatestOne(dataItemID string) (*observation.Observation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest.Get(dataItemID)
}

// GetObservations walks forward from `from` (if non-nil) or backward from
// `to` (if non-nil and from is nil), accumulating observations matching
// filter up to count, returning metadata enabling the caller to continue
// (long-poll) or detect end-of-buffer (spec.md §4.5).
func (b *CircularBuffer) GetObservations(count int, filter map[string]bool, from, to *uint64) (obs []*observation.Observation, firstReturned, nextReturned uint64, endOfBuffer bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if count <= 0 {
		count = 1
	}

	start := b.firstSequence
	if from != nil && *from > start {
		start = *from
	}
	end := b.nextSequence - 1
	if to != nil && *to < end {
		end = *to
	}

	if start > end || start >= b.nextSequence {
		return nil, start, start, true
	}

	firstReturned = start
	seq := start
	for ; seq <= end && len(obs) < count; seq++ {
		if seq < b.firstSequence {
			continue
		}
		o := b.ring[seq-b.firstSequence]
		if filter == nil || filter[o.DataItemID] {
			obs = append(obs, o)
		}
	}
	nextReturned = seq
	endOfBuffer = nextReturned >= b.nextSequence
	return obs, firstReturned, nextReturned, endOfBuffer
}

// RemoveDataItems drops every ring/checkpoint entry referencing one of the
// given data item ids, marking future lookups as orphaned — spec.md §4.4
// "An updated circular buffer drops observations referencing removed data
// items."
func (b *CircularBuffer) RemoveDataItems(ids map[string]bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id := range ids {
		delete(b.dataItemMeta, id)
	}
	for _, o := range b.ring {
		if ids[o.DataItemID] {
			o.Orphan = true
		}
	}
}
