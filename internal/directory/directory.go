// Package directory holds the contact and group book the send UI and CLI
// pick recipients from.
package directory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a contact or group id is unknown.
var ErrNotFound = errors.New("directory: entry not found")

// Contact is a single addressable phone number.
type Contact struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// Group is a named broadcast target. Number carries the gateway's group
// identifier rather than a phone number.
type Group struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// Directory is the read/write contact book.
type Directory interface {
	ListContacts(ctx context.Context) ([]Contact, error)
	ListGroups(ctx context.Context) ([]Group, error)
	GetContact(ctx context.Context, id string) (Contact, error)
	AddContact(ctx context.Context, name, number string) (Contact, error)
	// ImportContacts reads "name,number" CSV rows and adds each as a
	// contact. A header row containing "name" is skipped. Returns the
	// number of contacts added.
	ImportContacts(ctx context.Context, r io.Reader) (int, error)
}

// Memory is an in-process Directory, optionally pre-seeded.
type Memory struct {
	mu       sync.RWMutex
	contacts map[string]Contact
	groups   map[string]Group
}

// NewMemory creates an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{
		contacts: make(map[string]Contact),
		groups:   make(map[string]Group),
	}
}

// NewMemorySeeded creates an in-memory directory with a small demo data
// set, used by the example deployment and the CLI when no directory
// backend is configured.
func NewMemorySeeded() *Memory {
	m := NewMemory()
	for _, c := range []Contact{
		{ID: "c1", Name: "João Silva", Number: "5511999990001"},
		{ID: "c2", Name: "Maria Oliveira", Number: "5511999990002"},
		{ID: "c3", Name: "Carlos Santos", Number: "5511999990003"},
	} {
		m.contacts[c.ID] = c
	}
	for _, g := range []Group{
		{ID: "g1", Name: "Família", Number: "group1"},
		{ID: "g2", Name: "Trabalho", Number: "group2"},
		{ID: "g3", Name: "Amigos", Number: "group3"},
	} {
		m.groups[g.ID] = g
	}
	return m
}

// ListContacts returns all contacts sorted by name.
func (m *Memory) ListContacts(_ context.Context) ([]Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Contact, 0, len(m.contacts))
	for _, c := range m.contacts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListGroups returns all groups sorted by name.
func (m *Memory) ListGroups(_ context.Context) ([]Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetContact returns one contact by id.
func (m *Memory) GetContact(_ context.Context, id string) (Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contacts[id]
	if !ok {
		return Contact{}, ErrNotFound
	}
	return c, nil
}

// AddContact stores a new contact under a fresh id.
func (m *Memory) AddContact(_ context.Context, name, number string) (Contact, error) {
	name = strings.TrimSpace(name)
	number = strings.TrimSpace(number)
	if name == "" || number == "" {
		return Contact{}, fmt.Errorf("directory: contact needs both name and number")
	}

	c := Contact{ID: uuid.New().String(), Name: name, Number: number}

	m.mu.Lock()
	m.contacts[c.ID] = c
	m.mu.Unlock()
	return c, nil
}

// ImportContacts parses CSV rows of "name,number" and adds each contact.
func (m *Memory) ImportContacts(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	added := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return added, fmt.Errorf("directory: parse csv: %w", err)
		}

		// Skip a header row.
		if added == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "name") {
			continue
		}

		if _, err := m.AddContact(ctx, row[0], row[1]); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
