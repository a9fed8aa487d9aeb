package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/duckhunt/internal/config"
	"github.com/duckhunt/internal/domain"
	"github.com/stretchr/testify/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHuntConfig() *config.HuntConfig {
	return &config.DefaultConfig().Hunt
}

type scoreKey struct {
	network, channel, name string
}

// memLedger is an in-memory Ledger
type memLedger struct {
	mu      sync.Mutex
	rows    map[scoreKey]domain.ScoreRecord
	failErr error
}

func newMemLedger(records ...domain.ScoreRecord) *memLedger {
	l := &memLedger{rows: make(map[scoreKey]domain.ScoreRecord)}
	for _, r := range records {
		l.rows[scoreKey{r.Network, r.Channel, r.Name}] = r
	}
	return l
}

func (l *memLedger) IncrementScore(_ context.Context, network, channel, name string, kind domain.ScoreKind) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		return 0, l.failErr
	}
	k := scoreKey{network, channel, name}
	rec, ok := l.rows[k]
	if !ok {
		rec = domain.ScoreRecord{Network: network, Channel: channel, Name: name}
	}
	if kind == domain.ScoreBefriend {
		rec.Befriend++
	} else {
		rec.Shot++
	}
	l.rows[k] = rec
	return rec.Count(kind), nil
}

func (l *memLedger) MergeScores(_ context.Context, network, oldName, newName string) (domain.MergeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := domain.MergeResult{Network: network, OldName: oldName, NewName: newName}
	if l.failErr != nil {
		return result, l.failErr
	}

	var old []domain.ScoreRecord
	for k, r := range l.rows {
		if k.network == network && k.name == oldName {
			old = append(old, r)
		}
	}
	if len(old) == 0 {
		return result, domain.ErrNothingToMerge
	}
	sort.Slice(old, func(i, j int) bool { return old[i].Channel < old[j].Channel })

	for _, r := range old {
		nk := scoreKey{network, r.Channel, newName}
		merged, ok := l.rows[nk]
		if !ok {
			merged = domain.ScoreRecord{Network: network, Channel: r.Channel, Name: newName}
		}
		merged.Shot += r.Shot
		merged.Befriend += r.Befriend
		l.rows[nk] = merged
		delete(l.rows, scoreKey{network, r.Channel, oldName})

		result.Shot += r.Shot
		result.Befriend += r.Befriend
		result.Channels = append(result.Channels, r.Channel)
	}
	return result, nil
}

func (l *memLedger) ListScores(_ context.Context, f domain.ScoreFilter) ([]domain.ScoreRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		return nil, l.failErr
	}
	var out []domain.ScoreRecord
	for _, r := range l.rows {
		if (f.Network == "" || r.Network == f.Network) &&
			(f.Channel == "" || r.Channel == f.Channel) &&
			(f.Name == "" || r.Name == f.Name) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Network != out[j].Network {
			return out[i].Network < out[j].Network
		}
		if out[i].Channel != out[j].Channel {
			return out[i].Channel < out[j].Channel
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (l *memLedger) get(network, channel, name string) (domain.ScoreRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[scoreKey{network, channel, name}]
	return r, ok
}

// memStatus is an in-memory StatusStore
type memStatus struct {
	mu       sync.Mutex
	statuses map[domain.ChannelKey]domain.ChannelStatus
	optOuts  map[domain.ChannelKey]bool
	failErr  error
}

func newMemStatus() *memStatus {
	return &memStatus{
		statuses: make(map[domain.ChannelKey]domain.ChannelStatus),
		optOuts:  make(map[domain.ChannelKey]bool),
	}
}

func (s *memStatus) SaveStatus(_ context.Context, st domain.ChannelStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.statuses[st.Key] = st
	return nil
}

func (s *memStatus) LoadStatuses(context.Context) ([]domain.ChannelStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ChannelStatus
	for _, st := range s.statuses {
		out = append(out, st)
	}
	return out, s.failErr
}

func (s *memStatus) AddOptOut(_ context.Context, key domain.ChannelKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.optOuts[key] = true
	return nil
}

func (s *memStatus) RemoveOptOut(_ context.Context, key domain.ChannelKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	delete(s.optOuts, key)
	return nil
}

func (s *memStatus) ListOptOuts(context.Context) ([]domain.ChannelKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ChannelKey
	for k := range s.optOuts {
		out = append(out, k)
	}
	return out, s.failErr
}

type mockChat struct {
	mock.Mock
}

func (m *mockChat) SendAnnouncement(ctx context.Context, key domain.ChannelKey, a domain.Announcement) (domain.AnnouncementRef, error) {
	args := m.Called(ctx, key, a)
	return args.Get(0).(domain.AnnouncementRef), args.Error(1)
}

func (m *mockChat) EditAnnouncement(ctx context.Context, key domain.ChannelKey, ref domain.AnnouncementRef, a domain.Announcement) error {
	return m.Called(ctx, key, ref, a).Error(0)
}

func (m *mockChat) Reply(ctx context.Context, key domain.ChannelKey, text string) error {
	return m.Called(ctx, key, text).Error(0)
}

func (m *mockChat) MuteUser(ctx context.Context, key domain.ChannelKey, userID string) error {
	return m.Called(ctx, key, userID).Error(0)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Increment(ctx context.Context, network, channel, name string, kind domain.ScoreKind) (int64, error) {
	args := m.Called(ctx, network, channel, name, kind)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCache) TopN(ctx context.Context, network, channel string, kind domain.ScoreKind, n int) ([]domain.RankEntry, error) {
	args := m.Called(ctx, network, channel, kind, n)
	entries, _ := args.Get(0).([]domain.RankEntry)
	return entries, args.Error(1)
}

func (m *mockCache) Replace(ctx context.Context, network, channel string, records []domain.ScoreRecord) error {
	return m.Called(ctx, network, channel, records).Error(0)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// lowRand always draws the lowest value, so contested rolls hit
type lowRand struct{}

func (lowRand) Float64() float64   { return 0 }
func (lowRand) Int64N(int64) int64 { return 0 }
func (lowRand) IntN(int) int       { return 0 }
