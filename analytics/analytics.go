package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VisitThrottle is how long a returning visitor is not counted again.
const VisitThrottle = 30 * time.Minute

const visitorCookie = "restosite_visitor_id"

// RestaurantEvent is a visit to a restaurant page.
type RestaurantEvent struct {
	ID           uint    `gorm:"primary_key;autoIncrement"`
	RestaurantID int     `gorm:"not null;index"`
	CookieID     string  `gorm:"not null;index"`
	Event        string  `gorm:"not null;default:'visit'"`
	IP           string  `gorm:"not null"`
	Country      *string // nullable
	Language     *string // nullable
	Browser      *string // nullable
	CreatedAt    time.Time `gorm:"index"`
}

// AnalyticsModule records visits into a separate database. A nil module is
// valid and records nothing.
type AnalyticsModule struct {
	db  *gorm.DB
	log *zap.Logger

	// sync makes TrackVisit write inline; tests use it.
	sync bool
}

func NewAnalyticsModule(db *gorm.DB, log *zap.Logger) *AnalyticsModule {
	if log == nil {
		log = zap.NewNop()
	}
	if db == nil {
		log.Warn("analytics db is nil, analytics will be disabled")
		return nil
	}

	if err := db.AutoMigrate(&RestaurantEvent{}); err != nil {
		log.Error("migrating restaurant_events table", zap.Error(err))
		return nil
	}

	log.Info("analytics module initialized")
	return &AnalyticsModule{db: db, log: log}
}

// TrackVisit records a visit unless the same visitor was counted for this
// restaurant within VisitThrottle.
func (a *AnalyticsModule) TrackVisit(c *gin.Context, restaurantID int) {
	if a == nil || a.db == nil {
		return
	}

	cookieID := a.getOrCreateCookieID(c)

	var recent RestaurantEvent
	err := a.db.Where("cookie_id = ? AND restaurant_id = ? AND created_at > ?",
		cookieID, restaurantID, time.Now().Add(-VisitThrottle)).
		First(&recent).Error
	if err == nil {
		return
	}

	event := RestaurantEvent{
		RestaurantID: restaurantID,
		CookieID:     cookieID,
		Event:        "visit",
		IP:           a.getClientIP(c),
		Language:     a.extractLanguage(c),
		Browser:      a.extractBrowser(c.Request.UserAgent()),
		CreatedAt:    time.Now(),
	}

	save := func() {
		if err := a.db.Create(&event).Error; err != nil {
			a.log.Error("saving analytics event", zap.Int("restaurant", restaurantID), zap.Error(err))
		}
	}
	if a.sync {
		save()
		return
	}
	go save()
}

func (a *AnalyticsModule) getOrCreateCookieID(c *gin.Context) string {
	if cookie, err := c.Cookie(visitorCookie); err == nil && cookie != "" {
		return cookie
	}

	data := time.Now().String() + c.ClientIP() + c.Request.UserAgent()
	hash := sha256.Sum256([]byte(data))
	cookieID := hex.EncodeToString(hash[:])

	c.SetCookie(visitorCookie, cookieID, 60*60*24*365*2, "/", "", false, true)
	return cookieID
}

// getClientIP prefers the proxy headers over the socket address.
func (a *AnalyticsModule) getClientIP(c *gin.Context) string {
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := c.GetHeader("CF-Connecting-IP"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

func (a *AnalyticsModule) extractBrowser(userAgent string) *string {
	if userAgent == "" {
		return nil
	}

	ua := strings.ToLower(userAgent)
	var browser string

	// most specific first
	switch {
	case strings.Contains(ua, "edg"):
		browser = "Edge"
	case strings.Contains(ua, "opera") || strings.Contains(ua, "opr"):
		browser = "Opera"
	case strings.Contains(ua, "chrome"):
		browser = "Chrome"
	case strings.Contains(ua, "safari"):
		browser = "Safari"
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "msie") || strings.Contains(ua, "trident"):
		browser = "Internet Explorer"
	default:
		browser = "Other"
	}
	return &browser
}

// extractLanguage keeps the first tag of Accept-Language, e.g. "en-US" from
// "en-US,en;q=0.9".
func (a *AnalyticsModule) extractLanguage(c *gin.Context) *string {
	acceptLang := c.GetHeader("Accept-Language")
	if acceptLang == "" {
		return nil
	}
	lang := strings.TrimSpace(strings.Split(acceptLang, ",")[0])
	lang = strings.Split(lang, ";")[0]
	return &lang
}

type DayVisits struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// GetVisitsByDay returns one entry per day for the last N days, oldest first,
// with zero for days without visits.
func (a *AnalyticsModule) GetVisitsByDay(restaurantID int, days int) []DayVisits {
	if a == nil || a.db == nil || days <= 0 {
		return []DayVisits{}
	}

	startDate := time.Now().AddDate(0, 0, -days)

	var results []struct {
		Date  string
		Count int64
	}
	a.db.Model(&RestaurantEvent{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Where("restaurant_id = ? AND created_at >= ?", restaurantID, startDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&results)

	dayVisits := make([]DayVisits, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := time.Now().AddDate(0, 0, -(days - 1 - i)).Format("2006-01-02")
		dayVisits[i] = DayVisits{Date: date}
		index[date] = i
	}
	for _, r := range results {
		if i, ok := index[r.Date]; ok {
			dayVisits[i].Count = r.Count
		}
	}
	return dayVisits
}

// TotalVisits counts every recorded visit of a restaurant.
func (a *AnalyticsModule) TotalVisits(restaurantID int) int64 {
	if a == nil || a.db == nil {
		return 0
	}
	var count int64
	a.db.Model(&RestaurantEvent{}).Where("restaurant_id = ?", restaurantID).Count(&count)
	return count
}
