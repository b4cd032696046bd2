package admin

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"restosite/analytics"
	"restosite/cache"
	"restosite/common"
	emailpkg "restosite/email"
	"restosite/models"
)

// bcryptCost is lowered by tests.
var bcryptCost = 14

// visitDays is the window shown on the visits chart.
const visitDays = 15

const minPasswordLength = 8

type AdminModule struct {
	db        *gorm.DB
	analytics *analytics.AnalyticsModule
	mailer    emailpkg.Sender
	pages     cache.Store
	jwtSecret string
	tokenTTL  time.Duration
	log       *zap.Logger
}

// NewAdminModule builds the operator account module. pages may be nil when
// page caching is off.
func NewAdminModule(db *gorm.DB, analyticsModule *analytics.AnalyticsModule, mailer emailpkg.Sender, pages cache.Store, jwtSecret string, tokenTTL time.Duration, log *zap.Logger) *AdminModule {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminModule{
		db:        db,
		analytics: analyticsModule,
		mailer:    mailer,
		pages:     pages,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		log:       log,
	}
}

func (a *AdminModule) RegisterRoutes(router *gin.Engine) {
	auth := router.Group("/api/auth")
	{
		auth.POST("/register", a.register)
		auth.GET("/confirm/:token", a.confirmEmail)
		auth.POST("/login", a.login)
		auth.POST("/logout", a.logout)
	}

	adminGroup := router.Group("/admin")
	adminGroup.Use(common.RequireSession)
	{
		adminGroup.GET("/me", a.me)
		adminGroup.GET("/restaurant", a.restaurant)
		adminGroup.POST("/restaurant", a.updateRestaurant)
		adminGroup.GET("/visits", a.visits)
	}
}

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Title       string `json:"title" binding:"required"`
	Subdomain   string `json:"subdomain"`
	Description string `json:"description"`
}

func (a *AdminModule) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email, password (8+ characters) and title are required"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	subdomain := req.Subdomain
	if subdomain == "" {
		subdomain = req.Title
	}
	subdomain, err := validSubdomain(subdomain)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existingUser models.User
	if err := a.db.Where("email = ?", email).First(&existingUser).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "This email is already registered"})
		return
	}
	var existingRestaurant models.Restaurant
	if err := a.db.Where("subdomain = ?", subdomain).First(&existingRestaurant).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "This subdomain is already taken"})
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}
	verificationToken, err := generateToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create verification token"})
		return
	}

	user := models.User{
		Email:                  email,
		PasswordHash:           passwordHash,
		EmailVerificationToken: verificationToken,
	}
	restaurant := models.Restaurant{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Subdomain:   subdomain,
	}
	err = a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		restaurant.UserID = user.ID
		return tx.Create(&restaurant).Error
	})
	if err != nil {
		a.log.Error("register", zap.String("email", email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	resp := gin.H{
		"user_id":   user.ID,
		"email":     user.Email,
		"subdomain": restaurant.Subdomain,
	}
	if a.mailer != nil {
		if err := a.mailer.SendVerificationEmail(user.Email, verificationToken); err != nil {
			a.log.Warn("sending verification email", zap.String("email", user.Email), zap.Error(err))
			resp["email_error"] = "Could not send the verification email, contact support."
		}
	}
	c.JSON(http.StatusCreated, resp)
}

func (a *AdminModule) confirmEmail(c *gin.Context) {
	var user models.User
	if err := a.db.Where("email_verification_token = ?", c.Param("token")).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid or expired token"})
		return
	}

	user.EmailVerified = true
	user.EmailVerificationToken = ""
	if err := a.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm email"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email confirmed, you can now log in."})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *AdminModule) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	var user models.User
	if err := a.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Wrong email or password"})
		return
	}
	if !checkPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Wrong email or password"})
		return
	}
	if !user.EmailVerified {
		c.JSON(http.StatusForbidden, gin.H{"error": "Email not verified. Check your inbox and confirm your email."})
		return
	}

	var restaurant models.Restaurant
	if err := a.db.Where("user_id = ?", user.ID).First(&restaurant).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Restaurant not found"})
		return
	}

	token, expiresAt, err := common.IssueToken(a.jwtSecret, user.TenantID(), a.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":    user.TenantID(),
		"subdomain":  restaurant.Subdomain,
		"token":      token,
		"expires_at": expiresAt,
	})
}

func (a *AdminModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *AdminModule) currentRestaurant(c *gin.Context) (*models.Restaurant, bool) {
	var restaurant models.Restaurant
	if err := a.db.Where("user_id = ?", c.GetInt("user_id")).First(&restaurant).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
		return nil, false
	}
	return &restaurant, true
}

func (a *AdminModule) me(c *gin.Context) {
	var user models.User
	if err := a.db.First(&user, c.GetInt("user_id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	restaurant, ok := a.currentRestaurant(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":    user.TenantID(),
		"email":      user.Email,
		"restaurant": restaurant,
	})
}

func (a *AdminModule) restaurant(c *gin.Context) {
	restaurant, ok := a.currentRestaurant(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, restaurant)
}

type restaurantRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Theme       *string `json:"theme"`
	Subdomain   *string `json:"subdomain"`
	IsListed    *bool   `json:"is_listed"`
	Password    string  `json:"password"`
}

func (a *AdminModule) updateRestaurant(c *gin.Context) {
	restaurant, ok := a.currentRestaurant(c)
	if !ok {
		return
	}

	var req restaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid settings"})
		return
	}

	if req.Password != "" && len(req.Password) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters"})
		return
	}

	oldSubdomain := restaurant.Subdomain
	if req.Subdomain != nil {
		subdomain, err := validSubdomain(*req.Subdomain)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if subdomain != restaurant.Subdomain {
			var existing models.Restaurant
			if err := a.db.Where("subdomain = ?", subdomain).First(&existing).Error; err == nil {
				c.JSON(http.StatusConflict, gin.H{"error": "This subdomain is already taken"})
				return
			}
			restaurant.Subdomain = subdomain
		}
	}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
			return
		}
		restaurant.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		restaurant.Description = *req.Description
	}
	if req.Theme != nil {
		restaurant.Theme = *req.Theme
	}
	if req.IsListed != nil {
		restaurant.IsListed = *req.IsListed
	}

	var passwordHash string
	if req.Password != "" {
		hash, err := hashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
			return
		}
		passwordHash = hash
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(restaurant).Error; err != nil {
			return err
		}
		if passwordHash == "" {
			return nil
		}
		res := tx.Model(&models.User{}).Where("id = ?", c.GetInt("user_id")).Update("password_hash", passwordHash)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		a.log.Error("saving restaurant settings", zap.Int("restaurant", restaurant.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}

	a.clearPages(c, oldSubdomain)
	if restaurant.Subdomain != oldSubdomain {
		a.clearPages(c, restaurant.Subdomain)
	}
	c.JSON(http.StatusOK, restaurant)
}

func (a *AdminModule) clearPages(c *gin.Context, subdomain string) {
	if a.pages == nil {
		return
	}
	if err := a.pages.Clear(c.Request.Context(), subdomain); err != nil {
		a.log.Warn("clearing page cache", zap.String("subdomain", subdomain), zap.Error(err))
	}
}

// DayVisitChart is a day of visits with its share of the busiest day.
type DayVisitChart struct {
	Date       string  `json:"date"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

func (a *AdminModule) visits(c *gin.Context) {
	restaurant, ok := a.currentRestaurant(c)
	if !ok {
		return
	}
	if a.analytics == nil {
		c.JSON(http.StatusOK, gin.H{"analytics_enabled": false})
		return
	}

	visitsByDay := a.analytics.GetVisitsByDay(restaurant.ID, visitDays)

	maxVisits := int64(1)
	for _, day := range visitsByDay {
		if day.Count > maxVisits {
			maxVisits = day.Count
		}
	}
	days := make([]DayVisitChart, len(visitsByDay))
	for i, day := range visitsByDay {
		days[i] = DayVisitChart{
			Date:       day.Date,
			Count:      day.Count,
			Percentage: float64(day.Count) / float64(maxVisits) * 100,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"analytics_enabled": true,
		"total":             a.analytics.TotalVisits(restaurant.ID),
		"days":              days,
	})
}

var errBadSubdomain = errors.New("subdomain must have 3 to 63 letters, digits or dashes")

// validSubdomain slugifies s and rejects reserved or malformed names.
func validSubdomain(s string) (string, error) {
	slug := generateSlug(s)
	if len(slug) < 3 || len(slug) > 63 {
		return "", errBadSubdomain
	}
	if common.ReservedSubdomains[slug] {
		return "", errors.New("this subdomain is reserved")
	}
	return slug, nil
}

func generateSlug(title string) string {
	accentMap := map[rune]rune{
		'á': 'a', 'à': 'a', 'ã': 'a', 'â': 'a', 'ä': 'a', 'å': 'a', 'ā': 'a',
		'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e', 'ē': 'e',
		'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i', 'ī': 'i',
		'ó': 'o', 'ò': 'o', 'õ': 'o', 'ô': 'o', 'ö': 'o', 'ø': 'o', 'ō': 'o',
		'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u', 'ū': 'u',
		'ç': 'c', 'ć': 'c', 'č': 'c',
		'ñ': 'n', 'ń': 'n',
		'ý': 'y', 'ÿ': 'y',
		'ß': 's',
	}

	// lowercase first so the map only needs the small letters
	slug := strings.ToLower(title)
	slug = strings.Map(func(r rune) rune {
		if replacement, exists := accentMap[r]; exists {
			return replacement
		}
		return r
	}, slug)

	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		if r == ' ' {
			return '-'
		}
		return -1
	}, slug)

	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
