// Package analyzer groups extracted test failures and ranks them by flakiness.
package analyzer

import (
	"github.com/newhook/tidybot/internal/logparser"
)

// Aggregator indexes failures by (file, name). It is owned by a single
// analysis run and is not safe for concurrent use.
type Aggregator struct {
	order  []logparser.Key
	groups map[logparser.Key][]logparser.Failure
	total  int
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		groups: make(map[logparser.Key][]logparser.Failure),
	}
}

// Add records one failure. Groups keep first-insertion order and failures
// within a group keep insertion order.
func (a *Aggregator) Add(f logparser.Failure) {
	key := f.Key()
	if _, exists := a.groups[key]; !exists {
		a.order = append(a.order, key)
	}
	a.groups[key] = append(a.groups[key], f)
	a.total++
}

// AddAll records every failure in order.
func (a *Aggregator) AddAll(failures []logparser.Failure) {
	for _, f := range failures {
		a.Add(f)
	}
}

// Len returns the number of distinct tests seen.
func (a *Aggregator) Len() int {
	return len(a.order)
}

// Failures returns the total number of failures recorded.
func (a *Aggregator) Failures() int {
	return a.total
}
