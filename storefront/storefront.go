package storefront

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restosite/analytics"
	"restosite/models"
	"restosite/sections"
)

// StorefrontModule renders the public page of each restaurant.
type StorefrontModule struct {
	db        *gorm.DB
	store     *sections.Store
	analytics *analytics.AnalyticsModule
	log       *zap.Logger
}

func NewStorefrontModule(db *gorm.DB, store *sections.Store, analyticsModule *analytics.AnalyticsModule, log *zap.Logger) *StorefrontModule {
	if log == nil {
		log = zap.NewNop()
	}
	return &StorefrontModule{db: db, store: store, analytics: analyticsModule, log: log}
}

func (s *StorefrontModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/@/:subdomain/", s.index)
}

// TrackCachedVisit counts a visit to a restaurant page that was served from
// the page cache, where index never runs.
func (s *StorefrontModule) TrackCachedVisit(c *gin.Context, subdomain, page string) {
	if s.analytics == nil || page != "index" {
		return
	}
	restaurant, err := s.getRestaurantBySubdomain(subdomain)
	if err != nil {
		return
	}
	s.analytics.TrackVisit(c, restaurant.ID)
}

func (s *StorefrontModule) getRestaurantBySubdomain(subdomain string) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	err := s.db.Where("subdomain = ?", subdomain).First(&restaurant).Error
	return &restaurant, err
}

func (s *StorefrontModule) index(c *gin.Context) {
	restaurant, err := s.getRestaurantBySubdomain(c.Param("subdomain"))
	if err != nil {
		c.Data(http.StatusNotFound, "text/plain; charset=utf-8", []byte("Restaurant not found"))
		return
	}

	ctx := c.Request.Context()
	tenantID := models.TenantID(restaurant.UserID)

	snap, err := s.store.Fetch(ctx, tenantID)
	if err != nil {
		s.log.Error("loading sections for page", zap.String("subdomain", restaurant.Subdomain), zap.Error(err))
		c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8", []byte("Error loading page"))
		return
	}
	bodies, err := s.store.Contents(ctx, tenantID)
	if err != nil {
		s.log.Error("loading section content", zap.String("subdomain", restaurant.Subdomain), zap.Error(err))
		c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8", []byte("Error loading page"))
		return
	}

	var buf bytes.Buffer
	if err := renderPage(&buf, restaurant, snap.Sections, bodies); err != nil {
		s.log.Error("rendering page", zap.String("subdomain", restaurant.Subdomain), zap.Error(err))
		c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8", []byte("Error rendering page"))
		return
	}

	s.analytics.TrackVisit(c, restaurant.ID)
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
