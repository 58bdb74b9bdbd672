package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/spigell/jobradar/internal/apperrors"
	"github.com/spigell/jobradar/internal/model"
	"github.com/spigell/jobradar/internal/notify"
)

type Memory struct {
	mu            sync.RWMutex
	preferences   map[string]model.Preferences
	profiles      map[string]model.Profile
	results       map[string][]model.ScoredJob
	notifications map[string][]model.NotificationRecord
}

func NewMemory() *Memory {
	return &Memory{
		preferences:   make(map[string]model.Preferences),
		profiles:      make(map[string]model.Profile),
		results:       make(map[string][]model.ScoredJob),
		notifications: make(map[string][]model.NotificationRecord),
	}
}

// PutUser seeds a user and their profile.
func (m *Memory) PutUser(prefs model.Preferences, profile model.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preferences[prefs.UserID] = prefs
	profile.UserID = prefs.UserID
	m.profiles[prefs.UserID] = profile
}

func (m *Memory) GetPreferences(_ context.Context, userID string) (*model.Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.preferences[userID]
	if !ok {
		return nil, apperrors.InvalidInput("load preferences", ErrNotFound).WithUser(userID)
	}
	return &p, nil
}

func (m *Memory) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, apperrors.InvalidInput("load profile", ErrNotFound).WithUser(userID)
	}
	return &p, nil
}

func (m *Memory) ListAutoSearchUsers(context.Context) ([]Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var subs []Subscription
	for id, p := range m.preferences {
		if p.AutoSearchEnabled {
			subs = append(subs, Subscription{UserID: id, Cadence: p.Cadence})
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].UserID < subs[j].UserID })
	return subs, nil
}

func (m *Memory) ReplaceResults(_ context.Context, userID string, results []model.ScoredJob) error {
	cp := make([]model.ScoredJob, len(results))
	copy(cp, results)
	m.mu.Lock()
	m.results[userID] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Results(_ context.Context, userID string) ([]model.ScoredJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := make([]model.ScoredJob, len(m.results[userID]))
	copy(cp, m.results[userID])
	return cp, nil
}

func (m *Memory) HasNotification(_ context.Context, userID string, jobIDs []string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recorded(userID, jobIDs), nil
}

func (m *Memory) recorded(userID string, jobIDs []string) bool {
	for _, r := range m.notifications[userID] {
		if slices.Contains(jobIDs, r.JobID) {
			return true
		}
		for _, alias := range r.JobAliases {
			if slices.Contains(jobIDs, alias) {
				return true
			}
		}
	}
	return false
}

func (m *Memory) CountImmediateSince(_ context.Context, userID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.notifications[userID] {
		if r.Tier == model.TierImmediate && !r.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) RecordNotification(_ context.Context, rec model.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.notifications[rec.UserID] {
		if r.JobID == rec.JobID {
			return notify.ErrAlreadyRecorded
		}
	}
	m.notifications[rec.UserID] = append(m.notifications[rec.UserID], rec)
	return nil
}

// Notifications returns the ledger of one user in insertion order.
func (m *Memory) Notifications(userID string) []model.NotificationRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := make([]model.NotificationRecord, len(m.notifications[userID]))
	copy(cp, m.notifications[userID])
	return cp
}
