package handlers

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keystock.backend/internal/domain/entities"
	domainerrors "keystock.backend/internal/domain/errors"
	"keystock.backend/internal/infrastructure/filestore"
	infraRepos "keystock.backend/internal/infrastructure/repositories"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func TestKeyHandler_CreateSingleAndBatch(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/keys", map[string]string{"key": testKey(1)})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[[]entities.Key](t, w)
	require.Len(t, created, 1)
	assert.Equal(t, testKey(1), created[0].Key)
	assert.False(t, created[0].InUse)
	assert.False(t, created[0].Invalid)
	assert.NotNil(t, created[0].History)
	assert.False(t, created[0].CreatedAt.IsZero())

	w = s.do(t, http.MethodPost, "/keys", map[string]interface{}{
		"keys": []string{testKey(1), "bad", testKey(2)},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created = decode[[]entities.Key](t, w)
	require.Len(t, created, 1)
	assert.Equal(t, testKey(2), created[0].Key)
	assert.Equal(t, int64(2), created[0].ID)
}

func TestKeyHandler_CreateFailures(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/keys", map[string]string{"key": "lowercase-nope"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, domainerrors.CodeNoValidKey, body.Code)
	assert.Equal(t, body.Message, body.Error)

	w = s.do(t, http.MethodPost, "/keys", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domainerrors.CodeKeyMissing, decode[errorBody](t, w).Code)

	w = s.do(t, http.MethodPost, "/keys", map[string]interface{}{"keys": []string{}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domainerrors.CodeKeyMissing, decode[errorBody](t, w).Code)

	w = s.do(t, http.MethodPost, "/keys", map[string]interface{}{"keys": []string{}, "key": testKey(1)})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domainerrors.CodeKeyMissing, decode[errorBody](t, w).Code)

	w = s.do(t, http.MethodPost, "/keys", `{"key": 42}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domainerrors.CodeKeyMissing, decode[errorBody](t, w).Code)

	w = s.do(t, http.MethodPost, "/keys", `{"keys": [42, null, {"a": 1}]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domainerrors.CodeNoValidKey, decode[errorBody](t, w).Code)

	w = s.do(t, http.MethodPost, "/keys", `{"keys": [`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body = decode[errorBody](t, w)
	assert.Equal(t, domainerrors.CodeInvalidInput, body.Code)
	assert.Equal(t, invalidBodyMessage, body.Message)
	assert.NotContains(t, w.Body.String(), "unexpected EOF")
}

func TestKeyHandler_CreateSkipsNonStringBatchEntries(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/keys", `{"keys": ["`+testKey(1)+`", 42, true, "`+testKey(2)+`"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[[]entities.Key](t, w)
	require.Len(t, created, 2)
	assert.Equal(t, testKey(1), created[0].Key)
	assert.Equal(t, testKey(2), created[1].Key)

	w = s.do(t, http.MethodGet, "/keys", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]entities.Key](t, w), 2)
}

func TestKeyHandler_MarkInUseMalformedBody(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, 1)

	w := s.do(t, http.MethodPut, "/keys/"+testKey(0)+"/inuse", `{"assignedTo": 7}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, domainerrors.CodeInvalidInput, body.Code)
	assert.Equal(t, invalidBodyMessage, body.Message)
	assert.NotContains(t, w.Body.String(), "unmarshal")

	w = s.do(t, http.MethodGet, "/keys/active/list", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]entities.Key](t, w))
}

func TestKeyHandler_AcquireFreeReturnsPlainText(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, 2)

	w := s.do(t, http.MethodGet, "/keys/free", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testKey(0), w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	w = s.do(t, http.MethodGet, "/keys/"+testKey(0)+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	events := decode[[]entities.HistoryEvent](t, w)
	require.Len(t, events, 1)
	assert.Equal(t, entities.HistoryActionFree, events[0].Action)
}

func TestKeyHandler_AcquireFreeAfterInvalidatingOnlyKey(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, 1)

	w := s.do(t, http.MethodPut, "/keys/"+testKey(0)+"/invalidate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[entities.Key](t, w)
	assert.True(t, rec.Invalid)
	assert.False(t, rec.InUse)

	w = s.do(t, http.MethodGet, "/keys/free", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domainerrors.CodeNoFreeKey, decode[errorBody](t, w).Code)
}

func TestKeyHandler_MarkInUseAndRelease(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, 2)

	w := s.do(t, http.MethodPut, "/keys/"+testKey(1)+"/inuse", map[string]string{"assignedTo": "max"})
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[entities.Key](t, w)
	assert.True(t, rec.InUse)
	assert.Equal(t, "max", rec.AssignedTo.String)
	assert.True(t, rec.LastUsedAt.Valid)

	w = s.do(t, http.MethodPut, "/keys/"+testKey(0)+"/inuse", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[entities.Key](t, w).AssignedTo.Valid)

	w = s.do(t, http.MethodGet, "/keys/active/list", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]entities.Key](t, w), 2)

	w = s.do(t, http.MethodPut, "/keys/"+testKey(1)+"/release", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec = decode[entities.Key](t, w)
	assert.False(t, rec.InUse)
	assert.False(t, rec.AssignedTo.Valid)

	w = s.do(t, http.MethodGet, "/keys/free/list", nil)
	require.Equal(t, http.StatusOK, w.Code)
	free := decode[[]entities.Key](t, w)
	require.Len(t, free, 1)
	assert.Equal(t, testKey(1), free[0].Key)
}

func TestKeyHandler_ListQueryFilters(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, 3)
	s.do(t, http.MethodPut, "/keys/"+testKey(0)+"/inuse", map[string]string{"assignedTo": "anna"})
	s.do(t, http.MethodPut, "/keys/"+testKey(1)+"/inuse", map[string]string{"assignedTo": "max"})

	cases := []struct {
		query string
		want  []string
	}{
		{"", []string{testKey(0), testKey(1), testKey(2)}},
		{"?inUse=TRUE", []string{testKey(0), testKey(1)}},
		{"?inUse=false", []string{testKey(2)}},
		{"?inUse=yes", []string{testKey(2)}},
		{"?assignedTo=max", []string{testKey(1)}},
		{"?inUse=true&assignedTo=anna", []string{testKey(0)}},
		{"?inUse=false&assignedTo=anna", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/keys"+tc.query, nil)
			require.Equal(t, http.StatusOK, w.Code)
			got := make([]string, 0)
			for _, k := range decode[[]entities.Key](t, w) {
				got = append(got, k.Key)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestKeyHandler_Delete(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, 1)

	w := s.do(t, http.MethodDelete, "/keys/"+testKey(0), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = s.do(t, http.MethodDelete, "/keys/"+testKey(0), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domainerrors.CodeKeyNotFound, decode[errorBody](t, w).Code)
}

func TestKeyHandler_UnknownKeyIs404(t *testing.T) {
	s := newTestServer(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPut, "/keys/" + testKey(9) + "/inuse"},
		{http.MethodPut, "/keys/" + testKey(9) + "/release"},
		{http.MethodPut, "/keys/" + testKey(9) + "/invalidate"},
		{http.MethodGet, "/keys/" + testKey(9) + "/history"},
	} {
		w := s.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, tc.path)
	}
}

func TestKeyHandler_Summary(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, 3)
	s.do(t, http.MethodPut, "/keys/"+testKey(0)+"/inuse", nil)
	s.do(t, http.MethodPut, "/keys/"+testKey(1)+"/invalidate", nil)

	w := s.do(t, http.MethodGet, "/keys/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":3,"free":1,"inUse":1,"invalid":1}`, w.Body.String())
}

func TestKeyHandler_LowStockNotificationFlow(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, 11)
	require.Equal(t, 1, s.dispatcher.count(), "11 free keys are below 20")

	s.do(t, http.MethodPut, "/keys/"+testKey(0)+"/inuse", nil)
	assert.Equal(t, 1, s.dispatcher.count())

	s.do(t, http.MethodPut, "/keys/"+testKey(1)+"/inuse", nil)
	assert.Equal(t, 2, s.dispatcher.count())
}

type brokenKeyRepo struct {
	*infraRepos.FileKeyRepository
}

func (brokenKeyRepo) List(context.Context, entities.KeyFilter) ([]*entities.Key, error) {
	return nil, errors.New("disk on fire")
}

func TestKeyHandler_StoreFailureIs500(t *testing.T) {
	repo := infraRepos.NewFileKeyRepository(filestore.Open(context.Background(), filepath.Join(t.TempDir(), "db.json")))
	s := newTestServerWithRepo(brokenKeyRepo{repo}, repo)

	w := s.do(t, http.MethodGet, "/keys", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, domainerrors.CodeInternalError, body.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}
