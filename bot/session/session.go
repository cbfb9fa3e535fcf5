// Package session tracks per-user conversation state. Sessions live in
// memory only; a restart drops every conversation back to the menu.
package session

import "sync"

// Step tags which conversation a user is in and which input comes next.
type Step int

const (
	StepNone Step = iota
	StepPartyLookupCode
	StepClientLookupID
	StepAddPartyCode
	StepDeletePartyCode
	StepUpdateStatusCode
	StepUpdateStatusValue
	StepAddClient
	StepDeleteClientID
)

var stepNames = map[Step]string{
	StepNone:              "none",
	StepPartyLookupCode:   "party_lookup.code",
	StepClientLookupID:    "client_lookup.id",
	StepAddPartyCode:      "add_party.code",
	StepDeletePartyCode:   "delete_party.code",
	StepUpdateStatusCode:  "update_status.code",
	StepUpdateStatusValue: "update_status.value",
	StepAddClient:         "add_client",
	StepDeleteClientID:    "delete_client.id",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// ClientField identifies one input of the add-client flow. The flow walks
// an ordered list of these, so field order is data rather than code.
type ClientField int

const (
	FieldID ClientField = iota
	FieldMesta
	FieldKub
	FieldKg
	FieldDestination
	FieldDate
	FieldImage
	FieldParty
)

var fieldNames = map[ClientField]string{
	FieldID:          "id",
	FieldMesta:       "mesta",
	FieldKub:         "kub",
	FieldKg:          "kg",
	FieldDestination: "destination",
	FieldDate:        "date",
	FieldImage:       "image",
	FieldParty:       "party",
}

func (f ClientField) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return "unknown"
}

// ClientDraft accumulates answers while an add-client flow runs.
type ClientDraft struct {
	ID          string
	Party       string
	Mesta       string
	Kub         string
	Kg          string
	Destination string
	Date        string
	Image       string
}

// Set writes value into the draft slot named by field.
func (d *ClientDraft) Set(field ClientField, value string) {
	switch field {
	case FieldID:
		d.ID = value
	case FieldParty:
		d.Party = value
	case FieldMesta:
		d.Mesta = value
	case FieldKub:
		d.Kub = value
	case FieldKg:
		d.Kg = value
	case FieldDestination:
		d.Destination = value
	case FieldDate:
		d.Date = value
	case FieldImage:
		d.Image = value
	}
}

// Session is one user's in-flight conversation. StatusCode carries the
// party code between the two update-status steps; Draft and Pending are
// only populated during add-client.
//
// Telebot runs handlers in separate goroutines, so two messages from the
// same user can be in flight at once. Handlers must hold the embedded
// mutex while reading or writing any session field; the manager's own
// lock guards only the map.
type Session struct {
	sync.Mutex
	Step       Step
	StatusCode string
	Draft      ClientDraft
	Pending    []ClientField
}

// Manager owns all live sessions keyed by Telegram user ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewManager returns an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[int64]*Session)}
}

// Start replaces any existing session for the user with a fresh one at the
// given step and returns it.
func (m *Manager) Start(userID int64, step Step) *Session {
	s := &Session{Step: step}
	m.mu.Lock()
	m.sessions[userID] = s
	m.mu.Unlock()
	return s
}

// Get returns the user's session, or nil when no flow is active.
func (m *Manager) Get(userID int64) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[userID]
}

// Clear drops the user's session.
func (m *Manager) Clear(userID int64) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}

// InProgress reports whether the user has an active flow.
func (m *Manager) InProgress(userID int64) bool {
	s := m.Get(userID)
	if s == nil {
		return false
	}
	s.Lock()
	defer s.Unlock()
	return s.Step != StepNone
}
