package router

import "strings"

// cursorPos is a subscriber's read position within one topic's commit
// log partition.
type cursorPos struct {
	SegmentID uint64
	LogOffset uint64
}

// Subscription is one entry in a connection's concrete or wild map: the
// filter, the granted QoS, and a cursor per matching topic. A wild
// filter can match many topics at once, each advancing independently,
// so the cursor lives in a map keyed by topic rather than a single
// pair of fields (a concrete filter only ever populates one entry, keyed
// by the filter itself).
type Subscription struct {
	Filter  string
	QoS     uint8
	cursors map[string]*cursorPos
}

func newSubscription(filter string, qos uint8) *Subscription {
	return &Subscription{Filter: filter, QoS: qos, cursors: make(map[string]*cursorPos)}
}

// cursorFor returns (creating if necessary) this subscription's cursor
// for topic, starting new topics at the beginning of the log.
func (s *Subscription) cursorFor(topic string) *cursorPos {
	c, ok := s.cursors[topic]
	if !ok {
		c = &cursorPos{}
		s.cursors[topic] = c
	}
	return c
}

// subscriptionIndex holds a single connection's two subscription maps.
// Invariant (§4.6): the same filter key is never present in both maps,
// and after overlap resolution a subscriber belongs to at most one
// entry covering any given filter.
type subscriptionIndex struct {
	concrete map[string]*Subscription
	wild     map[string]*Subscription
}

func newSubscriptionIndex() *subscriptionIndex {
	return &subscriptionIndex{
		concrete: make(map[string]*Subscription),
		wild:     make(map[string]*Subscription),
	}
}

func isWildFilter(f string) bool {
	return strings.ContainsAny(f, "+#")
}

// Subscribe applies the §4.6 overlap-resolution algorithm: a new
// wildcard subscribe absorbs any existing filter (concrete or wild)
// that overlaps it, raising the effective QoS to the max seen, and
// adopts a wider existing wild filter as the final key when it already
// covers the new one.
func (idx *subscriptionIndex) Subscribe(filter string, qos uint8) {
	if !isWildFilter(filter) {
		// A concrete filter can still be covered by an existing wild
		// filter; if so, fold into it instead of creating a duplicate
		// delivery path.
		for existing, sub := range idx.wild {
			if matchTopic(existing, filter) {
				if qos > sub.QoS {
					sub.QoS = qos
				}
				return
			}
		}
		idx.concrete[filter] = newSubscription(filter, qos)
		return
	}

	finalKey := filter
	finalQoS := qos
	var prune []string

	for existing, sub := range idx.concrete {
		if overlaps(filter, existing) {
			prune = append(prune, existing)
			if sub.QoS > finalQoS {
				finalQoS = sub.QoS
			}
		}
	}
	for existing, sub := range idx.wild {
		if existing == filter {
			prune = append(prune, existing)
			if sub.QoS > finalQoS {
				finalQoS = sub.QoS
			}
			continue
		}
		if overlaps(filter, existing) {
			prune = append(prune, existing)
			if sub.QoS > finalQoS {
				finalQoS = sub.QoS
			}
			if filterContains(existing, filter) {
				finalKey = existing
			}
		}
	}

	for _, key := range prune {
		delete(idx.concrete, key)
		delete(idx.wild, key)
	}

	if isWildFilter(finalKey) {
		idx.wild[finalKey] = newSubscription(finalKey, finalQoS)
	} else {
		idx.concrete[finalKey] = newSubscription(finalKey, finalQoS)
	}
}

func (idx *subscriptionIndex) Unsubscribe(filter string) {
	delete(idx.concrete, filter)
	delete(idx.wild, filter)
}

// overlaps reports whether either of two filters (at least one of them
// wild) matches the other under MQTT topic matching, the other read as a
// literal topic. Filters that share topics without either matching the
// other, such as a/+/c and a/b/+, are not reported as overlapping.
func overlaps(a, b string) bool {
	if a == b {
		return true
	}
	return matchTopic(a, b) || matchTopic(b, a)
}

// filterContains reports whether wide (a wild filter) already matches
// every topic narrow could match — used to decide which of two
// overlapping wild filters survives as the index key.
func filterContains(wide, narrow string) bool {
	return matchTopic(wide, narrow)
}

// matchTopic implements MQTT topic matching: filter segments split on
// '/', '+' matches exactly one level, '#' (only legal as the final
// segment) matches the remainder. A topic beginning with '$' never
// matches a filter whose first segment is '+' or '#'.
func matchTopic(filter, topic string) bool {
	fSegs := strings.Split(filter, "/")
	tSegs := strings.Split(topic, "/")

	if len(tSegs) > 0 && strings.HasPrefix(tSegs[0], "$") {
		if len(fSegs) > 0 && (fSegs[0] == "+" || fSegs[0] == "#") {
			return false
		}
	}

	i := 0
	for ; i < len(fSegs); i++ {
		seg := fSegs[i]
		if seg == "#" {
			return i == len(fSegs)-1
		}
		if i >= len(tSegs) {
			return false
		}
		if seg != "+" && seg != tSegs[i] {
			return false
		}
	}
	return i == len(tSegs)
}
