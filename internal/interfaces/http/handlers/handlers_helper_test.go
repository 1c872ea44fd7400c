package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"keystock.backend/internal/domain/repositories"
	"keystock.backend/internal/infrastructure/filestore"
	infraRepos "keystock.backend/internal/infrastructure/repositories"
	"keystock.backend/internal/usecases"
)

type dispatcherStub struct {
	mu   sync.Mutex
	sent []string
}

func (d *dispatcherStub) Enabled() bool { return true }

func (d *dispatcherStub) Dispatch(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, text)
}

func (d *dispatcherStub) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type testServer struct {
	router     *gin.Engine
	dispatcher *dispatcherStub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := infraRepos.NewFileKeyRepository(filestore.Open(context.Background(), filepath.Join(t.TempDir(), "db.json")))
	return newTestServerWithRepo(repo, repo)
}

func newTestServerWithRepo(keyRepo repositories.KeyRepository, notifRepo repositories.NotificationRepository) *testServer {
	gin.SetMode(gin.TestMode)
	dispatcher := &dispatcherStub{}
	notifier := usecases.NewLowStockNotifier(keyRepo, notifRepo, dispatcher)
	history := usecases.NewHistoryUsecase(keyRepo)
	keyHandler := NewKeyHandler(usecases.NewKeyUsecase(keyRepo, notifier), history)
	historyHandler := NewHistoryHandler(history)
	settingsHandler := NewSettingsHandler(usecases.NewSettingsUsecase(notifRepo, notifier))

	r := gin.New()
	r.GET("/keys", keyHandler.ListKeys)
	r.POST("/keys", keyHandler.CreateKeys)
	r.GET("/keys/free", keyHandler.AcquireFree)
	r.GET("/keys/free/list", keyHandler.ListFree)
	r.GET("/keys/active/list", keyHandler.ListActive)
	r.GET("/keys/summary", keyHandler.Summary)
	r.PUT("/keys/:key/inuse", keyHandler.MarkInUse)
	r.PUT("/keys/:key/release", keyHandler.Release)
	r.PUT("/keys/:key/invalidate", keyHandler.Invalidate)
	r.DELETE("/keys/:key", keyHandler.DeleteKey)
	r.GET("/keys/:key/history", keyHandler.History)
	r.GET("/history", historyHandler.GlobalHistory)
	r.GET("/stats", historyHandler.Stats)
	r.GET("/telegram/settings", settingsHandler.GetSettings)
	r.PUT("/telegram/settings", settingsHandler.UpdateSettings)

	return &testServer{router: r, dispatcher: dispatcher}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func testKey(i int) string {
	return fmt.Sprintf("ABCDE-FGHIJ-KLMNO-PQRST-%05d", i)
}

func (s *testServer) seed(t *testing.T, n int) {
	t.Helper()
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, testKey(i))
	}
	w := s.do(t, http.MethodPost, "/keys", map[string]interface{}{"keys": keys})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}
