package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/cluster"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/config"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/features"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/metrics"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/profile"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/scoring"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/source"
)

var (
	// ErrSourceUnavailable means the source returned nothing or did not answer in time.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrClusteringDegenerate means the catalog could not be partitioned.
	ErrClusteringDegenerate = cluster.ErrClusteringDegenerate
)

// Snapshot is one published catalog with its derived data. It is never
// modified after publication.
type Snapshot struct {
	ID       string
	Version  int64
	LoadedAt time.Time
	Source   string

	Profiles   []profile.Profile
	Vocabulary *features.Vocabulary
	Matrix     *features.Matrix
	Clustering *cluster.State
	Rejected   int
}

// ReloadResult describes a successful reload.
type ReloadResult struct {
	Version    int64         `json:"version"`
	SnapshotID string        `json:"snapshot_id"`
	Source     string        `json:"source"`
	Ingested   int           `json:"ingested"`
	Rejected   int           `json:"rejected"`
	RequestedK int           `json:"requested_k"`
	EffectiveK int           `json:"effective_k"`
	Duration   time.Duration `json:"duration"`
}

// Status summarises the manager for the status endpoint.
type Status struct {
	Ready         bool      `json:"ready"`
	Version       int64     `json:"version"`
	SnapshotID    string    `json:"snapshot_id,omitempty"`
	Source        string    `json:"source,omitempty"`
	LoadedAt      time.Time `json:"loaded_at,omitempty"`
	Profiles      int       `json:"profiles"`
	RequestedK    int       `json:"requested_k"`
	EffectiveK    int       `json:"effective_k"`
	ClusterSizes  []int     `json:"cluster_sizes,omitempty"`
	Rejected      int       `json:"rejected"`
	LastError     string    `json:"last_error,omitempty"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitempty"`
	Scheduled     bool      `json:"scheduled"`
}

// Manager owns the current snapshot and rebuilds it on reload.
type Manager struct {
	Config     *config.Config
	Logger     *logrus.Entry
	Source     source.Source
	normalizer *profile.Normalizer

	// State
	mu          sync.RWMutex
	current     *Snapshot
	lastError   string
	lastAttempt time.Time

	reloadMu sync.Mutex
	version  int64

	cron *cron.Cron
}

// NewManager creates a manager that reloads from src. No snapshot is
// published until the first successful reload.
func NewManager(cfg *config.Config, src source.Source, logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logrus.WithField("component", "engine")
	}
	return &Manager{
		Config:     cfg,
		Logger:     logger,
		Source:     src,
		normalizer: profile.NewNormalizer(logger),
	}
}

// Snapshot returns the published snapshot, or nil before the first load.
func (m *Manager) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Profiles returns copies of every published profile in catalog order.
func (m *Manager) Profiles() []profile.Profile {
	snap := m.Snapshot()
	if snap == nil {
		return []profile.Profile{}
	}
	out := make([]profile.Profile, len(snap.Profiles))
	for i, p := range snap.Profiles {
		out[i] = p.Clone()
	}
	return out
}

// Recommend ranks the published catalog against q and returns the default shortlist.
func (m *Manager) Recommend(q scoring.Query) []scoring.Match {
	return m.RecommendN(q, scoring.DefaultLimit)
}

// RecommendN is Recommend with an explicit result limit.
func (m *Manager) RecommendN(q scoring.Query, limit int) []scoring.Match {
	start := time.Now()
	defer func() { metrics.RecordRecommendation(time.Since(start)) }()

	snap := m.Snapshot()
	if snap == nil {
		return []scoring.Match{}
	}
	if q.IsEmpty() {
		m.Logger.Debug("Empty query, results follow catalog order")
	}
	matches := scoring.Rank(q, snap.Profiles, limit)
	for i := range matches {
		matches[i].Profile = matches[i].Profile.Clone()
	}
	return matches
}

// Clusters characterises the published snapshot. Summaries are computed on
// every call and never stored.
func (m *Manager) Clusters() []cluster.Summary {
	snap := m.Snapshot()
	if snap == nil {
		return []cluster.Summary{}
	}
	return cluster.Characterize(snap.Clustering, snap.Profiles)
}

// ConstantFeatures names the feature columns that carry no variance in the
// published catalog and so take no part in clustering.
func (m *Manager) ConstantFeatures() []string {
	snap := m.Snapshot()
	if snap == nil {
		return []string{}
	}
	names := []string{}
	for _, j := range snap.Clustering.Scaler.ConstantColumns() {
		names = append(names, snap.Matrix.Columns[j])
	}
	return names
}

// Status reports the published snapshot and the last reload outcome.
func (m *Manager) Status() Status {
	m.mu.RLock()
	snap, lastErr, lastAttempt := m.current, m.lastError, m.lastAttempt
	scheduled := m.cron != nil
	m.mu.RUnlock()

	st := Status{
		LastError:     lastErr,
		LastAttemptAt: lastAttempt,
		Scheduled:     scheduled,
	}
	if snap != nil {
		st.Ready = true
		st.Version = snap.Version
		st.SnapshotID = snap.ID
		st.Source = snap.Source
		st.LoadedAt = snap.LoadedAt
		st.Profiles = len(snap.Profiles)
		st.RequestedK = snap.Clustering.RequestedK
		st.EffectiveK = snap.Clustering.EffectiveK
		st.ClusterSizes = snap.Clustering.Sizes()
		st.Rejected = snap.Rejected
	}
	return st
}

// Reload rebuilds the catalog from the manager's source.
func (m *Manager) Reload(ctx context.Context) (*ReloadResult, error) {
	return m.ReloadFrom(ctx, m.Source)
}

// ReloadFrom fetches, normalises, encodes and clusters a fresh catalog from
// src and publishes it. On any error the previous snapshot stays in place.
func (m *Manager) ReloadFrom(ctx context.Context, src source.Source) (*ReloadResult, error) {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	start := time.Now()
	log := m.Logger.WithField("source", src.Name())
	log.Info("Reloading catalog")

	if timeout := m.Config.Reload.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	snap, err := m.build(ctx, src)
	if err != nil {
		m.recordFailure(src.Name(), start, err)
		log.WithError(err).Error("Catalog reload failed, keeping previous snapshot")
		return nil, err
	}

	m.version++
	snap.Version = m.version

	m.mu.Lock()
	m.current = snap
	m.lastError = ""
	m.lastAttempt = start
	m.mu.Unlock()

	d := time.Since(start)
	metrics.RecordReload(src.Name(), metrics.ResultSuccess, d)
	metrics.RecordRejected(snap.Rejected)
	metrics.RecordSnapshot(len(snap.Profiles), snap.Clustering.EffectiveK)

	log.WithFields(logrus.Fields{
		"version":     snap.Version,
		"profiles":    len(snap.Profiles),
		"rejected":    snap.Rejected,
		"effective_k": snap.Clustering.EffectiveK,
		"duration":    d,
	}).Info("Published catalog snapshot")

	return &ReloadResult{
		Version:    snap.Version,
		SnapshotID: snap.ID,
		Source:     snap.Source,
		Ingested:   len(snap.Profiles),
		Rejected:   snap.Rejected,
		RequestedK: snap.Clustering.RequestedK,
		EffectiveK: snap.Clustering.EffectiveK,
		Duration:   d,
	}, nil
}

// build produces an unpublished snapshot.
func (m *Manager) build(ctx context.Context, src source.Source) (*Snapshot, error) {
	records, err := fetch(ctx, src)
	if err != nil {
		return nil, err
	}

	profiles, rejected := m.normalizer.NormalizeAll(records)
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: all %d records rejected", profile.ErrMalformedProfile, len(records))
	}

	vocab, matrix := features.Encode(profiles)

	state, err := cluster.Fit(ctx, matrix, cluster.Config{
		K:             m.Config.Cluster.K,
		Seed:          m.Config.Cluster.Seed,
		NInit:         m.Config.Cluster.NInit,
		MaxIterations: m.Config.Cluster.MaxIterations,
	})
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}
	if state.Reduced() {
		m.Logger.WithFields(logrus.Fields{
			"requested_k": state.RequestedK,
			"effective_k": state.EffectiveK,
		}).Warn("Reduced cluster count to fit catalog")
	}

	for i := range profiles {
		id := state.Labels[i]
		profiles[i].ClusterID = &id
	}

	return &Snapshot{
		ID:         uuid.NewString(),
		LoadedAt:   time.Now(),
		Source:     src.Name(),
		Profiles:   profiles,
		Vocabulary: vocab,
		Matrix:     matrix,
		Clustering: state,
		Rejected:   rejected,
	}, nil
}

// fetch runs the source and gives up when ctx ends, even if the source does not.
// An abandoned Fetch keeps running in the background until it notices the
// cancelled ctx; its records are discarded. The wiki source stops at its next
// request or limiter wait, but until then it may share the breaker and limiter
// with the following reload.
func fetch(ctx context.Context, src source.Source) ([]profile.Record, error) {
	done := make(chan []profile.Record, 1)
	go func() {
		done <- src.Fetch(ctx)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, src.Name(), ctx.Err())
	case records := <-done:
		if len(records) == 0 {
			return nil, fmt.Errorf("%w: %s returned no records", ErrSourceUnavailable, src.Name())
		}
		return records, nil
	}
}

func (m *Manager) recordFailure(sourceName string, start time.Time, err error) {
	m.mu.Lock()
	m.lastError = err.Error()
	m.lastAttempt = start
	m.mu.Unlock()

	metrics.RecordReload(sourceName, failureResult(err), time.Since(start))
}

func failureResult(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return metrics.ResultTimeout
	case errors.Is(err, ErrSourceUnavailable):
		return metrics.ResultSourceUnavailable
	case errors.Is(err, profile.ErrMalformedProfile):
		return metrics.ResultMalformed
	default:
		return metrics.ResultDegenerate
	}
}

// StartScheduler reloads on the given cron expression until Stop is called.
func (m *Manager) StartScheduler(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := m.Reload(context.Background()); err != nil {
			m.Logger.WithError(err).Warn("Scheduled reload failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reload schedule %q: %w", schedule, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		m.cron.Stop()
	}
	m.cron = c
	c.Start()

	m.Logger.WithField("schedule", schedule).Info("Scheduled catalog reloads")
	return nil
}

// Stop halts scheduled reloads and waits for a running one to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
