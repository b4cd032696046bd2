package common

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"restosite/models"
)

// RequireSession rejects requests without a logged-in operator and exposes
// "user_id" (int) and "tenant_id" (string) to the handlers.
func RequireSession(c *gin.Context) {
	session := sessions.Default(c)
	userID, ok := session.Get("user_id").(int)
	if !ok || userID == 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not logged in"})
		return
	}

	c.Set("user_id", userID)
	c.Set("tenant_id", models.TenantID(userID))
	c.Next()
}
