package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/engine"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/formstate"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/session"
)

const roofDefinition = `
treeId: roof
nodes:
  - id: S
    type: section
    label: Toiture
    children:
      - id: R
        type: leaf_repeater
        label: Versant
        order: 1
        repeater:
          templateNodeIds: [T1]
          maxItems: 1
        children:
          - id: T1
            type: leaf_field
            label: Orientation
      - id: K
        type: leaf_field
        label: Prix
        order: 2
`

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := engine.New(nodestore.NewMemoryStore(), formstate.NewMemoryStore(), session.NewManager(0, 0), engine.Options{})
	router := NewRouter(svc, zap.NewNop())

	rec := do(t, router, http.MethodPut, "/v1/trees/roof", "application/yaml", roofDefinition)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return router
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/sessions", "application/json", `{"treeId":"roof"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id, _ := decode(t, rec)["sessionId"].(string)
	require.NotEmpty(t, id)
	return id
}

func renderedFieldIDs(t *testing.T, body map[string]any) []string {
	t.Helper()
	var ids []string
	var walk func(sections []any)
	walk = func(sections []any) {
		for _, s := range sections {
			sec := s.(map[string]any)
			fields, _ := sec["fields"].([]any)
			for _, f := range fields {
				ids = append(ids, f.(map[string]any)["id"].(string))
			}
			children, _ := sec["children"].([]any)
			walk(children)
		}
	}
	sections, _ := body["sections"].([]any)
	walk(sections)
	return ids
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestTrees(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/v1/trees", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"roof"}, decode(t, rec)["trees"])

	rec = do(t, router, http.MethodPut, "/v1/trees/other", "application/yaml", roofDefinition)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "TREE_ID_MISMATCH", decode(t, rec)["code"])

	rec = do(t, router, http.MethodPut, "/v1/trees/roof", "application/json", `{"treeId":"roof","nodes":[{"id":"x","type":"widget"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DEFINITION", decode(t, rec)["code"])
}

func TestSharedReferences(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/v1/trees/roof/nodes/K/shared-references", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["sharedReferenceIds"])

	rec = do(t, router, http.MethodGet, "/v1/trees/roof/nodes/ghost/shared-references", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)
	base := "/v1/sessions/" + id

	rec := do(t, router, http.MethodGet, base+"/render", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"R_addButton", "K"}, renderedFieldIDs(t, decode(t, rec)))

	rec = do(t, router, http.MethodPost, base+"/repeaters/R/instances", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["instanceIndex"])

	rec = do(t, router, http.MethodPost, base+"/repeaters/R/instances", "", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "MAX_ITEMS", decode(t, rec)["code"])

	rec = do(t, router, http.MethodGet, base+"/render", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"R_0_T1", "R_removeInstance_0", "R_addButton", "K"}, renderedFieldIDs(t, decode(t, rec)))

	rec = do(t, router, http.MethodPost, base+"/values", "application/json",
		`{"changes":[{"fieldId":"R_0_T1","value":"Sud"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, base+"/values", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	values := decode(t, rec)["values"].(map[string]any)
	assert.Equal(t, "Sud", values["R_0_T1"])
	assert.Equal(t, "Sud", values["__mirror_data_Orientation"])

	rec = do(t, router, http.MethodDelete, base+"/repeaters/R/instances/x", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, router, http.MethodDelete, base+"/repeaters/R/instances/3", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, router, http.MethodDelete, base+"/repeaters/R/instances/0", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, base+"/activity?limit=x", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, router, http.MethodGet, base+"/activity?category=field&limit=10", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["entries"])

	rec = do(t, router, http.MethodDelete, base, "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, router, http.MethodGet, base+"/render", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode(t, rec)["code"])
}

func TestCreateSession_Errors(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/v1/sessions", "application/json", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/v1/sessions", "application/json", `{"treeId":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id := createSession(t, router)
	rec = do(t, router, http.MethodPost, "/v1/sessions/"+id+"/values", "application/json", `{"changes":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)
	h := Recovery(log)(Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())

	logs.TakeAll()
	ok := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tea", nil))
	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(http.StatusTeapot), entries[0].ContextMap()["status"])
}
