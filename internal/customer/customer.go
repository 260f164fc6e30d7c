// Package customer keeps per-customer profiles across conversations.
// Messaging platforms (Zalo, Facebook, Telegram) each bring their own user
// IDs; profiles map them onto internal customer IDs and accumulate contact
// info and interaction history, persisted as one JSON file.
package customer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sonagent/internal/logging"
)

// maxInteractions caps the stored history per customer; older entries are
// dropped first.
const maxInteractions = 50

// recentWindow defines how far back a customer counts as recent in stats.
const recentWindow = 7 * 24 * time.Hour

// Info holds the contact fields collected during conversations.
type Info struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Interaction is one logged touchpoint with an agent.
type Interaction struct {
	Timestamp time.Time `json:"timestamp"`
	Agent     string    `json:"agent"`
	Summary   string    `json:"summary"`
}

// Profile is everything known about one customer.
type Profile struct {
	CustomerID   string            `json:"customer_id"`
	Platform     string            `json:"platform"`
	PlatformID   string            `json:"platform_id"`
	CreatedAt    time.Time         `json:"created_at"`
	LastSeen     time.Time         `json:"last_seen"`
	Info         Info              `json:"info"`
	Preferences  map[string]string `json:"preferences,omitempty"`
	Interactions []Interaction     `json:"interaction_history,omitempty"`
}

// fileData is the on-disk layout of the profiles file.
type fileData struct {
	Profiles        map[string]*Profile `json:"profiles"`
	PlatformMapping map[string]string   `json:"platform_mapping"`
	LastUpdated     time.Time           `json:"last_updated"`
}

// Manager is the profile store. All mutations persist immediately.
type Manager struct {
	path string

	mu       sync.Mutex
	profiles map[string]*Profile
	mapping  map[string]string
	now      func() time.Time
}

// NewManager opens the profiles file, creating the directory if needed.
// A missing file is an empty store, not an error.
func NewManager(path string) (*Manager, error) {
	m := &Manager{
		path:     path,
		profiles: make(map[string]*Profile),
		mapping:  make(map[string]string),
		now:      time.Now,
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create profiles dir: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Customer("no profiles file yet, starting empty: %s", path)
			return m, nil
		}
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}

	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file %s: %w", path, err)
	}
	if fd.Profiles != nil {
		m.profiles = fd.Profiles
	}
	if fd.PlatformMapping != nil {
		m.mapping = fd.PlatformMapping
	}
	for id, p := range m.profiles {
		if p.CustomerID == "" {
			p.CustomerID = id
		}
	}

	logging.Customer("loaded %d customer profiles", len(m.profiles))
	return m, nil
}

// save persists the store atomically. Callers must hold the mutex.
func (m *Manager) save() error {
	fd := fileData{
		Profiles:        m.profiles,
		PlatformMapping: m.mapping,
		LastUpdated:     m.now(),
	}
	data, err := json.MarshalIndent(fd, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("failed to replace profiles file: %w", err)
	}
	return nil
}

// GetOrCreate resolves a platform identity to the internal customer ID,
// creating and persisting a fresh profile on first contact.
func (m *Manager) GetOrCreate(platform, platformID string) (string, error) {
	key := platform + ":" + platformID

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.mapping[key]; ok {
		logging.CustomerDebug("known customer %s for %s", id, key)
		return id, nil
	}

	id := m.nextID()
	now := m.now()
	m.profiles[id] = &Profile{
		CustomerID:  id,
		Platform:    platform,
		PlatformID:  platformID,
		CreatedAt:   now,
		LastSeen:    now,
		Preferences: make(map[string]string),
	}
	m.mapping[key] = id

	if err := m.save(); err != nil {
		delete(m.profiles, id)
		delete(m.mapping, key)
		return "", err
	}

	logging.Customer("created customer %s (%s)", id, key)
	return id, nil
}

// nextID picks the next sequential cust_NNNN ID. Callers hold the mutex.
func (m *Manager) nextID() string {
	n := len(m.profiles) + 1
	for {
		id := fmt.Sprintf("cust_%04d", n)
		if _, taken := m.profiles[id]; !taken {
			return id
		}
		n++
	}
}

// UpdateInfo merges non-empty contact fields into the profile and bumps
// last seen.
func (m *Manager) UpdateInfo(customerID string, info Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[customerID]
	if !ok {
		return fmt.Errorf("unknown customer %s", customerID)
	}

	if info.Name != "" {
		p.Info.Name = info.Name
	}
	if info.Phone != "" {
		p.Info.Phone = info.Phone
	}
	if info.Address != "" {
		p.Info.Address = info.Address
	}
	p.LastSeen = m.now()

	if err := m.save(); err != nil {
		return err
	}
	logging.Customer("updated info for %s", customerID)
	return nil
}

// SetPreference records one preference key for the customer.
func (m *Manager) SetPreference(customerID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[customerID]
	if !ok {
		return fmt.Errorf("unknown customer %s", customerID)
	}
	if p.Preferences == nil {
		p.Preferences = make(map[string]string)
	}
	p.Preferences[key] = value
	p.LastSeen = m.now()
	return m.save()
}

// AddInteraction appends a touchpoint to the history, keeping at most
// maxInteractions entries.
func (m *Manager) AddInteraction(customerID, agent, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[customerID]
	if !ok {
		return fmt.Errorf("unknown customer %s", customerID)
	}

	p.Interactions = append(p.Interactions, Interaction{
		Timestamp: m.now(),
		Agent:     agent,
		Summary:   summary,
	})
	if len(p.Interactions) > maxInteractions {
		p.Interactions = p.Interactions[len(p.Interactions)-maxInteractions:]
	}
	p.LastSeen = m.now()
	return m.save()
}

// Profile returns a copy of the profile for the ID.
func (m *Manager) Profile(customerID string) (Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[customerID]
	if !ok {
		return Profile{}, false
	}
	return copyProfile(p), true
}

func copyProfile(p *Profile) Profile {
	out := *p
	out.Preferences = make(map[string]string, len(p.Preferences))
	for k, v := range p.Preferences {
		out.Preferences[k] = v
	}
	out.Interactions = append([]Interaction(nil), p.Interactions...)
	return out
}

// Count returns the number of stored profiles.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.profiles)
}
