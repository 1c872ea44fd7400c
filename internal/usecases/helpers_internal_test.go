package usecases

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"keystock.backend/internal/domain/entities"
	"keystock.backend/internal/infrastructure/filestore"
	"keystock.backend/internal/infrastructure/repositories"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	enabled bool
	sent    []string
}

func (d *recordingDispatcher) Enabled() bool { return d.enabled }

func (d *recordingDispatcher) Dispatch(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, text)
}

func (d *recordingDispatcher) messages() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.sent...)
}

type MockStockMonitor struct {
	mock.Mock
}

func (m *MockStockMonitor) Evaluate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type fixture struct {
	path       string
	repo       *repositories.FileKeyRepository
	dispatcher *recordingDispatcher
	notifier   *LowStockNotifier
	keys       *KeyUsecase
	settings   *SettingsUsecase
	history    *HistoryUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return openFixture(t, filepath.Join(t.TempDir(), "db.json"))
}

func openFixture(t *testing.T, path string) *fixture {
	t.Helper()
	repo := repositories.NewFileKeyRepository(filestore.Open(context.Background(), path))
	dispatcher := &recordingDispatcher{enabled: true}
	notifier := NewLowStockNotifier(repo, repo, dispatcher)
	return &fixture{
		path:       path,
		repo:       repo,
		dispatcher: dispatcher,
		notifier:   notifier,
		keys:       NewKeyUsecase(repo, notifier),
		settings:   NewSettingsUsecase(repo, notifier),
		history:    NewHistoryUsecase(repo),
	}
}

func keyN(i int) string {
	return fmt.Sprintf("AAAAA-BBBBB-CCCCC-DDDDD-%05d", i)
}

func keyBatch(from, n int) []string {
	out := make([]string, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, keyN(i))
	}
	return out
}

// seed writes keys straight through the repository, bypassing the notifier
func (f *fixture) seed(t *testing.T, n int) {
	t.Helper()
	batch := make([]*entities.Key, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, &entities.Key{Key: keyN(i), CreatedAt: time.Now().UTC()})
	}
	require.NoError(t, f.repo.CreateBatch(context.Background(), batch))
}

func (f *fixture) lastWarned(t *testing.T) (int, bool) {
	t.Helper()
	state, err := f.repo.GetState(context.Background())
	require.NoError(t, err)
	return state.LastWarned.Int, state.LastWarned.Valid
}

func withClock(t *testing.T, times ...time.Time) {
	t.Helper()
	orig := keyNow
	i := 0
	keyNow = func() time.Time {
		ts := times[i]
		if i < len(times)-1 {
			i++
		}
		return ts
	}
	t.Cleanup(func() { keyNow = orig })
}
