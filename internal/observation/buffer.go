// Package observation implements the observation buffer: a bounded,
// insertion-ordered ring buffer of samples attached to an Observation
// resource, its JSON dump, and its min/max/mean/stddev aggregate queries.
package observation

import (
	"bytes"
	"math"

	"github.com/jtchitty/legatoDataHub/internal/ipcerr"
	"github.com/jtchitty/legatoDataHub/internal/metrics"
	"github.com/jtchitty/legatoDataHub/internal/sample"
	"github.com/jtchitty/legatoDataHub/internal/tree"
)

// thirtyYearsSeconds is the start_after threshold below which the value is
// treated as "seconds before now" rather than an absolute epoch timestamp.
const thirtyYearsSeconds = 30 * 365.25 * 86400

// AggregateKind selects the statistic computed by Aggregate.
type AggregateKind int

const (
	Min AggregateKind = iota
	Max
	Mean
	StdDev
)

// Buffer is the bounded ring buffer behind one Observation entry.
type Buffer struct {
	capacity int
	entries  []sample.Sample // insertion order, oldest first
	start    int             // index of the oldest element within entries, for O(1) eviction
	count    int
}

// NewBuffer creates a buffer with the given capacity. Capacity 0 disables
// buffering entirely (every append is dropped).
func NewBuffer(capacity int) *Buffer {
	return &Buffer{capacity: capacity, entries: make([]sample.Sample, capacity)}
}

// Append adds s to the buffer, evicting the oldest entry first if the
// buffer is already at capacity; the newest sample always wins.
func (b *Buffer) Append(s sample.Sample) {
	if b.capacity == 0 {
		return
	}
	if b.count < b.capacity {
		idx := (b.start + b.count) % b.capacity
		b.entries[idx] = s
		b.count++
		return
	}
	b.entries[b.start] = s
	b.start = (b.start + 1) % b.capacity
}

// snapshot returns the buffer's contents in insertion order.
func (b *Buffer) snapshot() []sample.Sample {
	out := make([]sample.Sample, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(b.start+i)%b.capacity]
	}
	return out
}

// effectiveStart resolves start_after: NaN means dump everything; values
// under the 30-years threshold are relative ("N seconds before now");
// larger values are an absolute epoch timestamp. A negative value is a
// contract violation and must kill the client.
func effectiveStart(startAfter, now float64) (float64, error) {
	if math.IsNaN(startAfter) {
		return math.Inf(-1), nil
	}
	if startAfter < 0 {
		return 0, ipcerr.Kill("negative start_after on buffer read")
	}
	if startAfter < thirtyYearsSeconds {
		return now - startAfter, nil
	}
	return startAfter, nil
}

// ReadJSON renders the samples with timestamp strictly greater than the
// resolved start_after as a single JSON array of {"t":...,"v":...} objects,
// oldest to newest. The JSON bytes are returned to the caller; the
// transport owns delivering them to the consumer's descriptor and
// reporting completion.
func ReadJSON(b *Buffer, startAfter, now float64) ([]byte, error) {
	threshold, err := effectiveStart(startAfter, now)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	first := true
	for _, s := range b.snapshot() {
		if s.Timestamp() <= threshold {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		encoded, err := s.MarshalJSON()
		if err != nil {
			return nil, ipcerr.ErrFault
		}
		buf.Write(encoded)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Aggregate computes kind over the numeric samples whose timestamp is
// strictly greater than the resolved start_after, returning NaN if the
// window contains no numeric samples.
func Aggregate(b *Buffer, kind AggregateKind, startTime, now float64) (float64, error) {
	threshold, err := effectiveStart(startTime, now)
	if err != nil {
		return math.NaN(), err
	}

	var values []float64
	for _, s := range b.snapshot() {
		if s.Timestamp() <= threshold || s.Type() != sample.Numeric {
			continue
		}
		values = append(values, s.NumericValue())
	}
	if len(values) == 0 {
		return math.NaN(), nil
	}

	switch kind {
	case Min:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case Max:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	case Mean:
		return mean(values), nil
	case StdDev:
		return stddev(values), nil
	default:
		return math.NaN(), ipcerr.ErrFault
	}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 1 {
		return 0
	}
	m := mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// Store owns one Buffer per Observation entry and implements
// push.ObservationAppender so the push engine can feed it directly.
type Store struct {
	buffers       map[*tree.Entry]*Buffer
	defaultCap    int
	capacityByObs map[*tree.Entry]int
}

// NewStore creates a buffer store. defaultCapacity is used for observations
// that haven't had an explicit capacity configured.
func NewStore(defaultCapacity int) *Store {
	return &Store{
		buffers:       make(map[*tree.Entry]*Buffer),
		defaultCap:    defaultCapacity,
		capacityByObs: make(map[*tree.Entry]int),
	}
}

// Configure sets entry's buffer capacity, (re)creating its buffer. Existing
// buffered samples are discarded, matching a fresh observation definition.
func (s *Store) Configure(entry *tree.Entry, capacity int) {
	s.capacityByObs[entry] = capacity
	s.buffers[entry] = NewBuffer(capacity)
}

// BufferFor returns entry's buffer, creating one at the default capacity on
// first use.
func (s *Store) BufferFor(entry *tree.Entry) *Buffer {
	if b, ok := s.buffers[entry]; ok {
		return b
	}
	b := NewBuffer(s.defaultCap)
	s.buffers[entry] = b
	return b
}

// AppendObservation implements push.ObservationAppender.
func (s *Store) AppendObservation(entry *tree.Entry, smp sample.Sample) {
	s.BufferFor(entry).Append(smp)
	metrics.ObservationAppendsTotal.Inc()
}

// Forget drops entry's buffer and its configured capacity.
func (s *Store) Forget(entry *tree.Entry) {
	delete(s.buffers, entry)
	delete(s.capacityByObs, entry)
}
