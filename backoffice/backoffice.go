package backoffice

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"restosite/cache"
	"restosite/models"
	"restosite/sections"
)

// BackofficeModule is the staff console. Only users whose email is listed in
// BACKOFFICE_EMAILS can log in.
type BackofficeModule struct {
	db      *gorm.DB
	manager *sections.Manager
	pages   cache.Store
	emails  map[string]bool
	log     *zap.Logger
}

func NewBackofficeModule(db *gorm.DB, manager *sections.Manager, pages cache.Store, emails []string, log *zap.Logger) *BackofficeModule {
	if log == nil {
		log = zap.NewNop()
	}
	allowed := make(map[string]bool, len(emails))
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			allowed[e] = true
		}
	}
	return &BackofficeModule{db: db, manager: manager, pages: pages, emails: allowed, log: log}
}

func (b *BackofficeModule) RegisterRoutes(router *gin.Engine) {
	backofficeGroup := router.Group("/$")
	{
		backofficeGroup.POST("/login", b.login)
		backofficeGroup.POST("/logout", b.logout)
		backofficeGroup.GET("/restaurants", b.requireBackofficeAuth, b.restaurants)
		backofficeGroup.POST("/toggle-listed/:restaurantID", b.requireBackofficeAuth, b.toggleListed)
		backofficeGroup.POST("/validate-user/:userID", b.requireBackofficeAuth, b.validateUser)
		backofficeGroup.POST("/clear-cache/:restaurantID", b.requireBackofficeAuth, b.clearCache)
		backofficeGroup.POST("/reset-sections/:restaurantID", b.requireBackofficeAuth, b.resetSections)
		backofficeGroup.POST("/create-restaurant/:userID", b.requireBackofficeAuth, b.createRestaurant)
	}
}

func (b *BackofficeModule) requireBackofficeAuth(c *gin.Context) {
	session := sessions.Default(c)
	userID := session.Get("backoffice_user_id")
	if userID == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not logged in"})
		return
	}

	var user models.User
	if err := b.db.First(&user, userID).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not logged in"})
		return
	}

	// the allow list may have shrunk since login
	if !b.isBackofficeEmail(user.Email) {
		session.Delete("backoffice_user_id")
		session.Save()
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	c.Set("backoffice_user", user)
	c.Next()
}

func (b *BackofficeModule) isBackofficeEmail(email string) bool {
	return b.emails[strings.ToLower(email)]
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (b *BackofficeModule) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	var user models.User
	if err := b.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Wrong email or password"})
		return
	}
	if !checkPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Wrong email or password"})
		return
	}
	if !b.isBackofficeEmail(user.Email) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed in the backoffice"})
		return
	}

	session := sessions.Default(c)
	session.Set("backoffice_user_id", user.ID)
	session.Save()

	b.log.Info("backoffice login", zap.String("email", user.Email))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// logout ends the staff session only; the operator dashboard shares the cookie.
func (b *BackofficeModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Delete("backoffice_user_id")
	session.Save()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RestaurantStats is one row of the staff restaurant listing.
type RestaurantStats struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Subdomain     string `json:"subdomain"`
	IsListed      bool   `json:"is_listed"`
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	SectionCount  int64  `json:"section_count"`
	Revision      int64  `json:"revision"`
}

func (b *BackofficeModule) restaurants(c *gin.Context) {
	var restaurants []models.Restaurant
	if err := b.db.Preload("User").Order("id ASC").Find(&restaurants).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load restaurants"})
		return
	}

	out := make([]RestaurantStats, len(restaurants))
	for i, r := range restaurants {
		tenantID := models.TenantID(r.UserID)

		var sectionCount int64
		b.db.Model(&models.SectionRecord{}).Where("tenant_id = ?", tenantID).Count(&sectionCount)

		var state models.SectionListState
		b.db.Where("tenant_id = ?", tenantID).Limit(1).Find(&state)

		out[i] = RestaurantStats{
			ID:            r.ID,
			Title:         r.Title,
			Subdomain:     r.Subdomain,
			IsListed:      r.IsListed,
			UserID:        tenantID,
			Email:         r.User.Email,
			EmailVerified: r.User.EmailVerified,
			SectionCount:  sectionCount,
			Revision:      state.Revision,
		}
	}
	c.JSON(http.StatusOK, out)
}

func (b *BackofficeModule) findRestaurant(c *gin.Context) (*models.Restaurant, bool) {
	var restaurant models.Restaurant
	if err := b.db.First(&restaurant, c.Param("restaurantID")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
		return nil, false
	}
	return &restaurant, true
}

func (b *BackofficeModule) toggleListed(c *gin.Context) {
	restaurant, ok := b.findRestaurant(c)
	if !ok {
		return
	}

	restaurant.IsListed = !restaurant.IsListed
	if err := b.db.Save(restaurant).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update restaurant"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "is_listed": restaurant.IsListed})
}

func (b *BackofficeModule) validateUser(c *gin.Context) {
	var user models.User
	if err := b.db.First(&user, c.Param("userID")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	user.EmailVerified = true
	user.EmailVerificationToken = ""
	if err := b.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "email_verified": user.EmailVerified})
}

func (b *BackofficeModule) clearCache(c *gin.Context) {
	restaurant, ok := b.findRestaurant(c)
	if !ok {
		return
	}
	if b.pages == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Page cache is off"})
		return
	}
	if err := b.pages.Clear(c.Request.Context(), restaurant.Subdomain); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cache: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cache cleared"})
}

// resetSections puts a restaurant back on the default template.
func (b *BackofficeModule) resetSections(c *gin.Context) {
	restaurant, ok := b.findRestaurant(c)
	if !ok {
		return
	}

	tenantID := models.TenantID(restaurant.UserID)
	snap, err := b.manager.Reset(c.Request.Context(), tenantID)
	if err != nil {
		b.log.Error("backoffice reset sections", zap.String("tenant", tenantID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to reset sections"})
		return
	}
	b.log.Info("sections reset by staff", zap.String("tenant", tenantID), zap.Int64("revision", snap.Revision))
	c.JSON(http.StatusOK, snap)
}

// createRestaurant gives a user without one a placeholder restaurant named
// after the current timestamp.
func (b *BackofficeModule) createRestaurant(c *gin.Context) {
	var user models.User
	if err := b.db.First(&user, c.Param("userID")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var existing models.Restaurant
	if err := b.db.Where("user_id = ?", user.ID).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "User already has a restaurant"})
		return
	}

	timestamp := time.Now().Unix()
	restaurant := models.Restaurant{
		UserID:    user.ID,
		Title:     fmt.Sprintf("Restaurant %d", timestamp),
		Subdomain: fmt.Sprintf("restaurant%d", timestamp),
	}
	if err := b.db.Create(&restaurant).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create restaurant: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"subdomain":     restaurant.Subdomain,
		"title":         restaurant.Title,
		"restaurant_id": restaurant.ID,
	})
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
