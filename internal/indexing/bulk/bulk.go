// Package bulk turns documents and stale ids into newline-delimited bulk
// payloads capped at a configurable size. It performs no I/O.
package bulk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
)

// DefaultMaxSize is the default payload ceiling in characters.
const DefaultMaxSize = 1000000

// Payload is one bulk request body.
type Payload struct {
	Body       []byte
	Operations int
}

// Len returns the serialized size of the payload.
func (p Payload) Len() int {
	return len(p.Body)
}

// SerializationError identifies the document that could not be encoded.
type SerializationError struct {
	ID  string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serializing document %s: %v", e.ID, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// Batcher splits operations into payloads. A payload is closed once it
// already exceeds MaxSize when the next operation arrives, so a payload can
// overshoot by at most its last operation and no operation is ever split.
type Batcher struct {
	MaxSize int
}

// New returns a Batcher with the given ceiling, or DefaultMaxSize when
// maxSize is not positive.
func New(maxSize int) *Batcher {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Batcher{MaxSize: maxSize}
}

// BuildInsertBatches emits an index directive and the document line for
// every document, in input order.
func (b *Batcher) BuildInsertBatches(docs []model.TargetDocument) ([]Payload, error) {
	w := b.newWriter()
	for i := range docs {
		body, err := json.Marshal(docs[i])
		if err != nil {
			return nil, &SerializationError{ID: docs[i].ID, Err: err}
		}
		directive, err := directiveLine("index", docs[i].ID)
		if err != nil {
			return nil, &SerializationError{ID: docs[i].ID, Err: err}
		}
		w.append(directive, body)
	}
	return w.finish(), nil
}

// BuildDeleteBatches emits one delete directive per id, in sorted order.
// An empty set yields no payloads.
func (b *Batcher) BuildDeleteBatches(ids map[string]struct{}) []Payload {
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	w := b.newWriter()
	for _, id := range sorted {
		// string ids always encode
		directive, _ := directiveLine("delete", id)
		w.append(directive)
	}
	return w.finish()
}

func directiveLine(action, id string) ([]byte, error) {
	return json.Marshal(map[string]map[string]string{action: {"_id": id}})
}

type writer struct {
	max      int
	cur      bytes.Buffer
	ops      int
	payloads []Payload
}

func (b *Batcher) newWriter() *writer {
	return &writer{max: b.MaxSize}
}

func (w *writer) append(lines ...[]byte) {
	if w.cur.Len() > w.max {
		w.flush()
	}
	for _, line := range lines {
		w.cur.Write(line)
		w.cur.WriteByte('\n')
	}
	w.ops++
}

func (w *writer) flush() {
	if w.ops == 0 {
		return
	}
	body := make([]byte, w.cur.Len())
	copy(body, w.cur.Bytes())
	w.payloads = append(w.payloads, Payload{Body: body, Operations: w.ops})
	w.cur.Reset()
	w.ops = 0
}

func (w *writer) finish() []Payload {
	w.flush()
	if w.payloads == nil {
		return []Payload{}
	}
	return w.payloads
}
