package site

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"restosite/database"
	"restosite/models"
	"restosite/sections"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(database.All...))
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewSiteModule(db, "https://restosite.app/").RegisterRoutes(router)
	return router
}

func createRestaurant(t *testing.T, db *gorm.DB, email, subdomain string, listed bool) *models.Restaurant {
	user := &models.User{Email: email, PasswordHash: "hash"}
	require.NoError(t, db.Create(user).Error)
	r := &models.Restaurant{UserID: user.ID, Title: strings.ToUpper(subdomain), Subdomain: subdomain, IsListed: listed}
	require.NoError(t, db.Create(r).Error)
	return r
}

func TestIndex_OnlyListed(t *testing.T) {
	db := setupTestDB(t)
	createRestaurant(t, db, "a@example.com", "bistro", true)
	createRestaurant(t, db, "b@example.com", "hidden", false)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	setupTestRouter(db).ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Restaurants []listedRestaurant `json:"restaurants"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Restaurants, 1)
	assert.Equal(t, "bistro", resp.Restaurants[0].Subdomain)
	assert.Equal(t, "https://restosite.app/@/bistro/", resp.Restaurants[0].URL)
}

func TestSitemap(t *testing.T) {
	db := setupTestDB(t)
	r := createRestaurant(t, db, "a@example.com", "bistro", false)
	_, err := sections.NewStore(db, nil).Save(context.Background(), models.TenantID(r.UserID), sections.Snapshot{Sections: sections.DefaultList()})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/sitemap.xml", nil)
	setupTestRouter(db).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")
	body := w.Body.String()
	assert.Contains(t, body, "<loc>https://restosite.app/</loc>")
	assert.Contains(t, body, "<loc>https://restosite.app/@/bistro/</loc>")
	assert.Contains(t, body, "<lastmod>")
}
