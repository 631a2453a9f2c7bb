// Package report aggregates per-entity and per-content-type failures of a
// run into the structured report returned to callers.
package report

import (
	"errors"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
)

// FatalSourceID is the source id under which a content-type-wide failure is
// recorded.
const FatalSourceID = "*"

type SourceError struct {
	SourceID string `json:"sourceId"`
	Message  string `json:"message"`
}

type TargetErrors struct {
	TargetType     string        `json:"targetType"`
	ErrorsBySource []SourceError `json:"errorsBySource"`
}

// Report lists, per content type, the sources that failed. An empty report
// marshals as {}.
type Report struct {
	ErrorsByTarget []TargetErrors `json:"errorsByTarget,omitempty"`
}

// Successful reports whether nothing failed.
func (r Report) Successful() bool {
	return len(r.ErrorsByTarget) == 0
}

// ErrorCount returns the number of recorded failures.
func (r Report) ErrorCount() int {
	n := 0
	for _, t := range r.ErrorsByTarget {
		n += len(t.ErrorsBySource)
	}
	return n
}

// Accumulator collects failures during a run. It is safe for concurrent use.
type Accumulator struct {
	mu     sync.Mutex
	errors map[model.ContentType]map[string]string
}

func NewAccumulator() *Accumulator {
	return &Accumulator{errors: make(map[model.ContentType]map[string]string)}
}

// Add records message for one source entity. A later message for the same
// entity replaces the earlier one.
func (a *Accumulator) Add(contentType model.ContentType, sourceID, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	bySource, ok := a.errors[contentType]
	if !ok {
		bySource = make(map[string]string)
		a.errors[contentType] = bySource
	}
	bySource[sourceID] = message
}

// AddError records err under the entity a *model.TranslationError names, or
// as a content-type failure otherwise.
func (a *Accumulator) AddError(contentType model.ContentType, err error) {
	var te *model.TranslationError
	if errors.As(err, &te) {
		a.Add(contentType, te.SourceID, te.Message)
		return
	}
	a.Fail(contentType, err)
}

// Fail records a failure that aborted the whole content type.
func (a *Accumulator) Fail(contentType model.ContentType, err error) {
	a.Add(contentType, FatalSourceID, err.Error())
}

// Merge copies every entry of other into a.
func (a *Accumulator) Merge(other *Accumulator) {
	other.mu.Lock()
	snapshot := make(map[model.ContentType]map[string]string, len(other.errors))
	for ct, bySource := range other.errors {
		copied := make(map[string]string, len(bySource))
		for id, msg := range bySource {
			copied[id] = msg
		}
		snapshot[ct] = copied
	}
	other.mu.Unlock()

	for ct, bySource := range snapshot {
		for id, msg := range bySource {
			a.Add(ct, id, msg)
		}
	}
}

// Count returns the number of failures recorded for contentType.
func (a *Accumulator) Count(contentType model.ContentType) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.errors[contentType])
}

// Report renders the collected failures, ordered by content type and then
// source id.
func (a *Accumulator) Report() Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	types := make([]string, 0, len(a.errors))
	for ct, bySource := range a.errors {
		if len(bySource) > 0 {
			types = append(types, string(ct))
		}
	}
	sort.Strings(types)

	var r Report
	for _, ct := range types {
		bySource := a.errors[model.ContentType(ct)]
		ids := make([]string, 0, len(bySource))
		for id := range bySource {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		target := TargetErrors{TargetType: ct, ErrorsBySource: make([]SourceError, 0, len(ids))}
		for _, id := range ids {
			target.ErrorsBySource = append(target.ErrorsBySource, SourceError{SourceID: id, Message: bySource[id]})
		}
		r.ErrorsByTarget = append(r.ErrorsByTarget, target)
	}
	return r
}
