package site

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"restosite/models"
)

type SiteModule struct {
	db     *gorm.DB
	domain string
}

// NewSiteModule serves the platform pages. domain is the public base URL.
func NewSiteModule(db *gorm.DB, domain string) *SiteModule {
	if domain == "" {
		domain = "http://localhost"
	}
	return &SiteModule{db: db, domain: strings.TrimSuffix(domain, "/")}
}

func (s *SiteModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/", s.index)
	router.GET("/sitemap.xml", s.sitemap)
}

func (s *SiteModule) restaurantURL(subdomain string) string {
	return s.domain + "/@/" + subdomain + "/"
}

type listedRestaurant struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Subdomain   string `json:"subdomain"`
	URL         string `json:"url"`
}

// index lists the restaurants that opted into the platform directory.
func (s *SiteModule) index(c *gin.Context) {
	var restaurants []models.Restaurant
	if err := s.db.Where("is_listed = ?", true).Order("title ASC").Find(&restaurants).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load restaurants"})
		return
	}

	out := make([]listedRestaurant, 0, len(restaurants))
	for _, r := range restaurants {
		out = append(out, listedRestaurant{
			Title:       r.Title,
			Description: r.Description,
			Subdomain:   r.Subdomain,
			URL:         s.restaurantURL(r.Subdomain),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"domain":      s.domain,
		"restaurants": out,
	})
}

func (s *SiteModule) sitemap(c *gin.Context) {
	var sitemap strings.Builder
	sitemap.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sitemap.WriteString("\n")
	sitemap.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	sitemap.WriteString("\n")

	sitemap.WriteString("  <url>\n")
	sitemap.WriteString("    <loc>" + s.domain + "/</loc>\n")
	sitemap.WriteString("    <changefreq>weekly</changefreq>\n")
	sitemap.WriteString("    <priority>1.0</priority>\n")
	sitemap.WriteString("  </url>\n")

	var restaurants []models.Restaurant
	s.db.Order("id ASC").Find(&restaurants)

	for _, r := range restaurants {
		// the last section save is the last visible change of the page
		var state models.SectionListState
		s.db.Where("tenant_id = ?", models.TenantID(r.UserID)).Limit(1).Find(&state)
		lastmod := r.CreatedAt
		if state.UpdatedAt.After(lastmod) {
			lastmod = state.UpdatedAt
		}

		sitemap.WriteString("  <url>\n")
		sitemap.WriteString("    <loc>" + s.restaurantURL(r.Subdomain) + "</loc>\n")
		if !lastmod.IsZero() {
			sitemap.WriteString("    <lastmod>" + lastmod.UTC().Format(time.RFC3339) + "</lastmod>\n")
		}
		sitemap.WriteString("    <changefreq>weekly</changefreq>\n")
		sitemap.WriteString("    <priority>0.7</priority>\n")
		sitemap.WriteString("  </url>\n")
	}

	sitemap.WriteString("</urlset>\n")

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, sitemap.String())
}
