// internal/weights/manager.go
package weights

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"resonance-pipeline/internal/common/logger"
	"resonance-pipeline/internal/models"
)

// Manager owns the active weight profile. Runs snapshot it once at start and
// never see later adjustments; the tuning loop swaps the active profile
// atomically under the write lock.
type Manager struct {
	mu      sync.RWMutex
	active  models.WeightProfile
	history map[string]ProfileStats

	store  *Store
	policy Policy
	logger logger.Logger

	adjustInterval time.Duration
}

func NewManager(store *Store, policy Policy, adjustInterval time.Duration, log logger.Logger) *Manager {
	return &Manager{
		history:        make(map[string]ProfileStats),
		store:          store,
		policy:         policy,
		logger:         log.WithFields(map[string]interface{}{"component": "weight-manager"}),
		adjustInterval: adjustInterval,
	}
}

// Init loads the active profile and outcome history from storage, seeding an
// equal-weight profile on first boot.
func (m *Manager) Init(ctx context.Context) error {
	active, err := m.store.LoadActive(ctx)
	if err != nil {
		return err
	}
	if active == nil {
		seed := models.WeightProfile{
			Version:   newVersion(),
			Weights:   models.EqualWeights(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := m.store.SaveActive(ctx, seed); err != nil {
			return err
		}
		active = &seed
		m.logger.Info("Seeded equal-weight profile", map[string]interface{}{
			"version": seed.Version,
		})
	}

	history, err := m.store.LoadHistory(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = *active
	for _, entry := range history {
		m.history[entry.Profile.Version] = entry
	}
	if _, ok := m.history[active.Version]; !ok {
		m.history[active.Version] = ProfileStats{
			Profile: active.Clone(),
			Stats:   models.VersionStats{Version: active.Version},
		}
	}
	return nil
}

// Snapshot returns an independent copy of the active profile.
func (m *Manager) Snapshot() models.WeightProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.Clone()
}

// RecordOutcome attributes one realized outcome to the version that scored
// the run, updating both storage and the in-memory history.
func (m *Manager) RecordOutcome(ctx context.Context, version string, success bool) error {
	if err := m.store.RecordOutcome(ctx, version, success); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.history[version]
	if !ok {
		entry = ProfileStats{Stats: models.VersionStats{Version: version}}
	}
	entry.Stats.Outcomes++
	if success {
		entry.Stats.Successes++
	}
	m.history[version] = entry
	return nil
}

// Adjust asks the policy for the next vector and, if it differs, publishes
// it as a new active version. Invalid candidate vectors are discarded.
func (m *Manager) Adjust(ctx context.Context) error {
	m.mu.RLock()
	active := m.active.Clone()
	history := make([]ProfileStats, 0, len(m.history))
	for _, entry := range m.history {
		history = append(history, entry)
	}
	m.mu.RUnlock()

	next, reason, changed := m.policy.Next(active, history)
	if !changed {
		return nil
	}
	if err := next.Validate(); err != nil {
		m.logger.Warn("Policy produced invalid weights, keeping active profile", map[string]interface{}{
			"reason": reason,
			"error":  err.Error(),
		})
		return nil
	}

	profile := models.WeightProfile{
		Version:   newVersion(),
		Weights:   next,
		UpdatedAt: time.Now().UTC(),
	}
	if err := m.store.SaveActive(ctx, profile); err != nil {
		return err
	}

	m.mu.Lock()
	m.active = profile
	m.history[profile.Version] = ProfileStats{
		Profile: profile.Clone(),
		Stats:   models.VersionStats{Version: profile.Version},
	}
	m.mu.Unlock()

	m.logger.Info("Activated new weight profile", map[string]interface{}{
		"version":  profile.Version,
		"previous": active.Version,
		"reason":   reason,
	})
	return nil
}

// Run drives the periodic adjustment loop until the context is canceled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.adjustInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Adjust(ctx); err != nil {
				m.logger.Error("Weight adjustment failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}

func newVersion() string {
	return "w-" + uuid.NewString()[:8]
}
