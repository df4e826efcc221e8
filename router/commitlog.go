package router

import "github.com/flowmesh/mqttbroker/packet"

const (
	DefaultSegmentSize        = 10 * packet.MB
	DefaultSegmentsPerPartition = 100
)

// Segment is a size-bounded, append-only run of publishes within a
// partition. Segment ids are assigned in strictly increasing order
// within their partition (§3's commit-log invariant).
type Segment struct {
	ID        uint64
	Size      int
	MaxSize   int
	Publishes []*packet.Publish
}

func (s *Segment) full() bool { return s.Size >= s.MaxSize }

func (s *Segment) append(p *packet.Publish) {
	s.Publishes = append(s.Publishes, p)
	s.Size += len(p.Payload) + len(p.Topic)
}

// Partition is the ordered list of segments for one topic.
type Partition struct {
	Topic         string
	Segments      []*Segment
	nextSegmentID uint64
}

// CommitLog owns all per-topic partitions plus the retained-message set.
// Per §9's resolved open question, retained messages live in a map
// separate from the segments so they survive segment eviction.
type CommitLog struct {
	Partitions           map[string]*Partition
	SegmentSize          int
	SegmentsPerPartition int

	Retained map[string]*packet.Publish
}

func NewCommitLog(segmentSize, segmentsPerPartition int) *CommitLog {
	if segmentSize <= 0 {
		segmentSize = DefaultSegmentSize
	}
	if segmentsPerPartition <= 0 {
		segmentsPerPartition = DefaultSegmentsPerPartition
	}
	return &CommitLog{
		Partitions:           make(map[string]*Partition),
		SegmentSize:          segmentSize,
		SegmentsPerPartition: segmentsPerPartition,
		Retained:             make(map[string]*packet.Publish),
	}
}

func (c *CommitLog) partition(topic string) *Partition {
	p, ok := c.Partitions[topic]
	if !ok {
		p = &Partition{Topic: topic}
		p.Segments = append(p.Segments, &Segment{ID: 0, MaxSize: c.SegmentSize})
		p.nextSegmentID = 1
		c.Partitions[topic] = p
	}
	return p
}

// Fill appends publish to the partition for its topic, rotating to a
// new segment when the tail is full and evicting the oldest segment
// once the partition holds more than SegmentsPerPartition. A retained
// publish with an empty payload clears the retained entry; any other
// retained publish replaces it (§4.5).
func (c *CommitLog) Fill(p *packet.Publish) {
	part := c.partition(p.Topic)
	tail := part.Segments[len(part.Segments)-1]
	if tail.full() {
		tail = &Segment{ID: part.nextSegmentID, MaxSize: c.SegmentSize}
		part.nextSegmentID++
		part.Segments = append(part.Segments, tail)
		if len(part.Segments) > c.SegmentsPerPartition {
			part.Segments = part.Segments[1:]
		}
	}
	tail.append(p)

	if p.Retain != 0 {
		if len(p.Payload) == 0 {
			delete(c.Retained, p.Topic)
		} else {
			c.Retained[p.Topic] = p
		}
	}
}

// Messages is the result of a Get call: the batch of publishes and the
// cursor of the last one delivered, so the caller resumes with
// LogOffset+1 next time.
type Messages struct {
	Publishes []*packet.Publish
	SegmentID uint64
	LogOffset uint64
}

// Get returns up to count publishes for topic starting at (segmentID,
// logOffset), advancing across segment boundaries as needed. If the
// cursor's segment has been evicted, it is clamped forward to the
// oldest surviving segment at offset 0 (§4.5) rather than panicking.
func (c *CommitLog) Get(topic string, segmentID, logOffset uint64, count int) (*Messages, bool) {
	part, ok := c.Partitions[topic]
	if !ok || len(part.Segments) == 0 {
		return nil, false
	}

	segIdx := segIndex(part, segmentID)
	offset := logOffset
	if segIdx == -1 {
		// Cursor references an evicted segment: clamp to the oldest
		// surviving one.
		segIdx = 0
		offset = 0
	}

	var out []*Messages
	var lastSeg uint64
	var lastOff uint64
	n := 0
	for segIdx < len(part.Segments) && n < count {
		seg := part.Segments[segIdx]
		start := 0
		if seg.ID == segmentID || (segIdx == 0 && segIndex(part, segmentID) == -1) {
			start = int(offset)
		}
		if start > len(seg.Publishes) {
			start = len(seg.Publishes)
		}
		for i := start; i < len(seg.Publishes) && n < count; i++ {
			out = append(out, &Messages{Publishes: []*packet.Publish{seg.Publishes[i]}})
			lastSeg = seg.ID
			lastOff = uint64(i)
			n++
		}
		segIdx++
		offset = 0
	}
	if n == 0 {
		return nil, false
	}
	msgs := &Messages{SegmentID: lastSeg, LogOffset: lastOff}
	for _, m := range out {
		msgs.Publishes = append(msgs.Publishes, m.Publishes...)
	}
	return msgs, true
}

func segIndex(part *Partition, id uint64) int {
	for i, s := range part.Segments {
		if s.ID == id {
			return i
		}
	}
	return -1
}
