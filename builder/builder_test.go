package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"restosite/common"
	"restosite/models"
	"restosite/sections"
)

const testSecret = "jwt-secret"

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.SectionRecord{}, &models.SectionListState{}, &models.SectionContent{}))
	return db
}

type testEnv struct {
	router *gin.Engine
	store  *sections.Store
}

func setupTestRouter(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)
	store := sections.NewStore(setupTestDB(t), zap.NewNop())
	manager := sections.NewManager(store)
	module := NewBuilderModule(store, manager, testSecret, time.Hour, zap.NewNop())

	router := gin.New()
	router.Use(sessions.Sessions("test-session", cookie.NewStore([]byte("secret"))))
	router.GET("/test/login/:id", func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("id"))
		session := sessions.Default(c)
		session.Set("user_id", id)
		session.Save()
		c.Status(http.StatusOK)
	})
	module.RegisterRoutes(router)
	return &testEnv{router: router, store: store}
}

func (e *testEnv) login(t *testing.T, userID int) []*http.Cookie {
	req, _ := http.NewRequest("GET", "/test/login/"+strconv.Itoa(userID), nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Result().Cookies()
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) sections.Snapshot {
	var snap sections.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func kindsOf(l sections.List) []sections.Kind {
	out := make([]sections.Kind, len(l))
	for i, s := range l {
		out[i] = s.Kind
	}
	return out
}

func TestDashboard_RequiresLogin(t *testing.T) {
	env := setupTestRouter(t)
	w := env.do(t, "GET", "/admin/sections", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDashboard_ListStartsWithTemplate(t *testing.T) {
	env := setupTestRouter(t)
	cookies := env.login(t, 1)

	w := env.do(t, "GET", "/admin/sections", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, []sections.Kind{sections.KindNav, sections.KindHero, sections.KindFooter}, kindsOf(snap.Sections))
	assert.Contains(t, w.Body.String(), `"isLocked":true`)
}

func TestDashboard_AddTwoGalleries(t *testing.T) {
	env := setupTestRouter(t)
	cookies := env.login(t, 1)

	w := env.do(t, "POST", "/admin/sections/gallery", nil, cookies)
	require.Equal(t, http.StatusCreated, w.Code)
	w = env.do(t, "POST", "/admin/sections", gin.H{"name": "Gallery Section", "section": "Gallery"}, cookies)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Section  sections.Section `json:"section"`
		Revision int64            `json:"revision"`
		Sections sections.List    `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, int64(2), resp.Revision)
	assert.Equal(t, 3, resp.Section.Priority)
	assert.Equal(t, []sections.Kind{
		sections.KindNav, sections.KindHero, sections.KindGallery, sections.KindGallery, sections.KindFooter,
	}, kindsOf(resp.Sections))
	assert.NotEqual(t, resp.Sections[2].ID, resp.Sections[3].ID)
}

func TestDashboard_AddRejectsBadKinds(t *testing.T) {
	env := setupTestRouter(t)
	cookies := env.login(t, 1)

	w := env.do(t, "POST", "/admin/sections", gin.H{"section": "Footer"}, cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, "POST", "/admin/sections", gin.H{"section": "Carousel"}, cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, "POST", "/admin/sections", gin.H{}, cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboard_DeleteFooterIsNoop(t *testing.T) {
	env := setupTestRouter(t)
	cookies := env.login(t, 1)

	w := env.do(t, "DELETE", "/admin/sections/footer", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Len(t, snap.Sections, 3)
	assert.Equal(t, int64(0), snap.Revision)
}

func TestDashboard_ReorderMoveAndDelete(t *testing.T) {
	env := setupTestRouter(t)
	cookies := env.login(t, 1)

	for _, kind := range []string{"Menu", "Reviews", "Faq"} {
		w := env.do(t, "POST", "/admin/sections", gin.H{"section": kind}, cookies)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do(t, "POST", "/admin/sections/reorder", gin.H{"from": 2, "to": 0}, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, sections.KindFaq, snap.Sections[2].Kind)

	faq := snap.Sections[2].ID
	w = env.do(t, "POST", "/admin/sections/"+faq+"/down", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	snap = decodeSnapshot(t, w)
	assert.Equal(t, faq, snap.Sections[3].ID)

	w = env.do(t, "POST", "/admin/sections/"+faq+"/move", gin.H{"to": 2}, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	snap = decodeSnapshot(t, w)
	assert.Equal(t, faq, snap.Sections[4].ID)

	w = env.do(t, "POST", "/admin/sections/reorder", gin.H{"from": 0, "to": 7}, cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "DELETE", "/admin/sections/"+faq, nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	snap = decodeSnapshot(t, w)
	assert.Len(t, snap.Sections, 5)
	assert.Equal(t, sections.KindFooter, snap.Sections[4].Kind)

	w = env.do(t, "POST", "/admin/sections/reset", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeSnapshot(t, w).Sections, 3)
}

func TestDashboard_Content(t *testing.T) {
	env := setupTestRouter(t)
	cookies := env.login(t, 1)

	w := env.do(t, "PUT", "/admin/sections/hero/content", gin.H{"body": "# Welcome"}, cookies)
	assert.Equal(t, http.StatusNotFound, w.Code, "nothing stored before the first save")

	w = env.do(t, "POST", "/admin/sections/gallery", nil, cookies)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, "PUT", "/admin/sections/hero/content", gin.H{"body": "# Welcome"}, cookies)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/admin/sections/hero/content", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# Welcome")
}

func TestDashboard_Kinds(t *testing.T) {
	env := setupTestRouter(t)
	w := env.do(t, "GET", "/admin/sections/kinds", nil, env.login(t, 1))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"section":"GiftCards"`)
	assert.NotContains(t, w.Body.String(), `"section":"Footer"`)
}

func bearer(t *testing.T, tenantID string) string {
	token, _, err := common.IssueToken(testSecret, tenantID, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestSyncAPI_Auth(t *testing.T) {
	env := setupTestRouter(t)

	req, _ := http.NewRequest("GET", "/api/v1/sections/1", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req, _ = http.NewRequest("GET", "/api/v1/sections/1", nil)
	req.Header.Set("Authorization", bearer(t, "2"))
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSyncAPI_SaveConflict(t *testing.T) {
	env := setupTestRouter(t)

	post := func(snap sections.Snapshot) *httptest.ResponseRecorder {
		body, _ := json.Marshal(snap)
		req, _ := http.NewRequest("POST", "/api/v1/sections/1", bytes.NewReader(body))
		req.Header.Set("Authorization", bearer(t, "1"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		return w
	}

	w := post(sections.Snapshot{Revision: 0, Sections: sections.DefaultList()})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decodeSnapshot(t, w).Revision)

	w = post(sections.Snapshot{Revision: 0, Sections: sections.DefaultList()})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, int64(1), decodeSnapshot(t, w).Revision)
}

func TestIssueToken(t *testing.T) {
	env := setupTestRouter(t)
	w := env.do(t, "POST", "/api/token", nil, env.login(t, 5))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	tenant, err := common.ParseToken(testSecret, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "5", tenant)
}

// A manager on another machine reconciles through the HTTP client against
// the same API.
func TestRemoteManagerOverHTTP(t *testing.T) {
	env := setupTestRouter(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	token, _, err := common.IssueToken(testSecret, "1", time.Hour)
	require.NoError(t, err)
	remote := sections.NewManager(sections.NewClient(srv.URL, token))
	ctx := context.Background()

	first, _, err := remote.AddGallery(ctx, "1")
	require.NoError(t, err)
	second, snap, err := remote.AddGallery(ctx, "1")
	require.NoError(t, err)

	assert.Equal(t, 2, first.Priority)
	assert.Equal(t, 3, second.Priority)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int64(2), snap.Revision)

	// a local edit makes the remote cache stale; the remote still applies its
	// next change on top of it
	local := sections.NewManager(env.store)
	_, err = local.Delete(ctx, "1", first.ID)
	require.NoError(t, err)

	snap, err = remote.MoveUp(ctx, "1", second.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Sections, 4)

	// and a stale direct save is rejected as a conflict
	client := sections.NewClient(srv.URL, token)
	_, err = client.Save(ctx, "1", sections.Snapshot{Revision: 1, Sections: sections.DefaultList()})
	assert.ErrorIs(t, err, sections.ErrStaleRevision)

	// a token for another tenant is refused
	_, err = client.Fetch(ctx, "2")
	assert.Error(t, err)
}
