package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/bulk"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
)

// Op names a Memory operation for fault injection.
type Op string

const (
	OpCreate Op = "create"
	OpDelete Op = "delete"
	OpList   Op = "list"
	OpBulk   Op = "bulk"
	OpSwap   Op = "swap"
)

type memoryIndex struct {
	mapping model.Mapping
	docs    map[string]json.RawMessage
}

// Memory is an in-process Store with alias support. Every operation holds a
// single lock, so alias swaps are atomic for concurrent readers.
type Memory struct {
	mu       sync.RWMutex
	indexes  map[string]*memoryIndex
	aliases  map[string]string
	faults   map[Op]map[string]error
	rejected map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		indexes:  make(map[string]*memoryIndex),
		aliases:  make(map[string]string),
		faults:   make(map[Op]map[string]error),
		rejected: make(map[string]string),
	}
}

// InjectFault makes op fail with err for the named index or alias. A nil
// err clears the fault.
func (m *Memory) InjectFault(op Op, name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults[op], name)
		return
	}
	if m.faults[op] == nil {
		m.faults[op] = make(map[string]error)
	}
	m.faults[op][name] = err
}

// RejectDocument makes every index operation for id fail at item level.
func (m *Memory) RejectDocument(id, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[id] = reason
}

func (m *Memory) fault(op Op, name string) error {
	if err, ok := m.faults[op][name]; ok {
		return err
	}
	return nil
}

func (m *Memory) resolve(name string) (*memoryIndex, bool) {
	if target, ok := m.aliases[name]; ok {
		name = target
	}
	idx, ok := m.indexes[name]
	return idx, ok
}

func (m *Memory) CreateIndex(ctx context.Context, name string, mapping model.Mapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpCreate, name); err != nil {
		return err
	}
	if _, ok := m.indexes[name]; ok {
		return fmt.Errorf("%w: index %s already exists", apperrors.ErrStoreTransport, name)
	}
	if _, ok := m.aliases[name]; ok {
		return fmt.Errorf("%w: %s is an alias", apperrors.ErrStoreTransport, name)
	}
	m.indexes[name] = &memoryIndex{mapping: mapping, docs: make(map[string]json.RawMessage)}
	return nil
}

func (m *Memory) DeleteIndex(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpDelete, name); err != nil {
		return err
	}
	if _, ok := m.indexes[name]; !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrIndexNotFound, name)
	}
	delete(m.indexes, name)
	for alias, target := range m.aliases {
		if target == name {
			delete(m.aliases, alias)
		}
	}
	return nil
}

func (m *Memory) ListDocuments(ctx context.Context, name string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fault(OpList, name); err != nil {
		return nil, err
	}
	idx, ok := m.resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrIndexNotFound, name)
	}
	docs := make([]Document, 0, len(idx.docs))
	for id, source := range idx.docs {
		var header struct {
			Type string `json:"type"`
		}
		json.Unmarshal(source, &header)
		docs = append(docs, Document{ID: id, Type: header.Type, Source: source})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Bulk applies index and delete operations line by line. Writing to a
// missing index creates it without mapping.
func (m *Memory) Bulk(ctx context.Context, name string, payload bulk.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpBulk, name); err != nil {
		return err
	}
	idx, ok := m.resolve(name)
	if !ok {
		idx = &memoryIndex{docs: make(map[string]json.RawMessage)}
		m.indexes[name] = idx
	}

	failures := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(payload.Body))
	scanner.Buffer(make([]byte, 0, 64*1024), len(payload.Body)+1)
	for scanner.Scan() {
		var directive map[string]struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &directive); err != nil {
			return fmt.Errorf("%w: malformed bulk directive: %v", apperrors.ErrStoreTransport, err)
		}
		if op, ok := directive["index"]; ok {
			if !scanner.Scan() {
				return fmt.Errorf("%w: index directive for %s without source", apperrors.ErrStoreTransport, op.ID)
			}
			if reason, rejected := m.rejected[op.ID]; rejected {
				failures[op.ID] = reason
				continue
			}
			source := make(json.RawMessage, len(scanner.Bytes()))
			copy(source, scanner.Bytes())
			idx.docs[op.ID] = source
			continue
		}
		if op, ok := directive["delete"]; ok {
			delete(idx.docs, op.ID)
			continue
		}
		return fmt.Errorf("%w: unsupported bulk directive %s", apperrors.ErrStoreTransport, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: reading bulk payload: %v", apperrors.ErrStoreTransport, err)
	}
	if len(failures) > 0 {
		return &BulkError{Index: name, Failures: failures}
	}
	return nil
}

func (m *Memory) ResolveAlias(ctx context.Context, alias string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if target, ok := m.aliases[alias]; ok {
		return target, nil
	}
	if _, ok := m.indexes[alias]; ok {
		return alias, nil
	}
	return "", nil
}

func (m *Memory) SwapAlias(ctx context.Context, alias, previous, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpSwap, alias); err != nil {
		return err
	}
	if _, ok := m.indexes[next]; !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrIndexNotFound, next)
	}
	switch {
	case previous == alias:
		if _, ok := m.indexes[alias]; !ok {
			return fmt.Errorf("%w: %s", apperrors.ErrIndexNotFound, alias)
		}
		delete(m.indexes, alias)
	case previous != "":
		if m.aliases[alias] != previous {
			return fmt.Errorf("%w: alias %s does not point to %s", apperrors.ErrStoreTransport, alias, previous)
		}
	}
	m.aliases[alias] = next
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

// IndexNames returns the physical indexes, sorted.
func (m *Memory) IndexNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.indexes))
	for name := range m.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mapping returns the mapping the index or alias target was created with.
func (m *Memory) Mapping(name string) (model.Mapping, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.resolve(name)
	if !ok {
		return nil, false
	}
	return idx.mapping, true
}
