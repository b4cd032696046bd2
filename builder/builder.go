package builder

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"restosite/common"
	"restosite/sections"
)

// BuilderModule serves the section list: the token-protected sync API used
// by remote clients and the dashboard operations of the logged-in operator.
type BuilderModule struct {
	store     *sections.Store
	manager   *sections.Manager
	jwtSecret string
	tokenTTL  time.Duration
	log       *zap.Logger
}

func NewBuilderModule(store *sections.Store, manager *sections.Manager, jwtSecret string, tokenTTL time.Duration, log *zap.Logger) *BuilderModule {
	return &BuilderModule{
		store:     store,
		manager:   manager,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		log:       log,
	}
}

func (b *BuilderModule) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/sections")
	api.Use(common.RequireToken(b.jwtSecret), b.requireOwnTenant)
	{
		api.GET("/:userId", b.fetch)
		api.POST("/:userId", b.save)
	}

	router.POST("/api/token", common.RequireSession, b.issueToken)

	dashboard := router.Group("/admin/sections")
	dashboard.Use(common.RequireSession)
	{
		dashboard.GET("", b.list)
		dashboard.GET("/kinds", b.kinds)
		dashboard.POST("", b.add)
		dashboard.POST("/gallery", b.addGallery)
		dashboard.POST("/reorder", b.reorder)
		dashboard.POST("/reset", b.reset)
		dashboard.DELETE("/:id", b.delete)
		dashboard.POST("/:id/up", b.moveUp)
		dashboard.POST("/:id/down", b.moveDown)
		dashboard.POST("/:id/move", b.move)
		dashboard.GET("/:id/content", b.content)
		dashboard.PUT("/:id/content", b.saveContent)
	}
}

// requireOwnTenant only lets a token act on its own section list.
func (b *BuilderModule) requireOwnTenant(c *gin.Context) {
	if c.Param("userId") != c.GetString("tenant_id") {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Token does not belong to this user"})
		return
	}
	c.Next()
}

func (b *BuilderModule) fetch(c *gin.Context) {
	snap, err := b.store.Fetch(c.Request.Context(), c.Param("userId"))
	if err != nil {
		b.log.Error("fetch sections", zap.String("tenant", c.Param("userId")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load sections"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (b *BuilderModule) save(c *gin.Context) {
	tenantID := c.Param("userId")

	var snap sections.Snapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid section list"})
		return
	}

	ctx := c.Request.Context()
	stored, err := b.store.Save(ctx, tenantID, snap)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, stored)
	case errors.Is(err, sections.ErrStaleRevision):
		current, ferr := b.store.Fetch(ctx, tenantID)
		if ferr != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusConflict, gin.H{
			"error":    err.Error(),
			"revision": current.Revision,
			"sections": current.Sections,
		})
	case errors.Is(err, sections.ErrInvariant):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		b.log.Error("save sections", zap.String("tenant", tenantID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save sections"})
	}
}

func (b *BuilderModule) issueToken(c *gin.Context) {
	token, exp, err := common.IssueToken(b.jwtSecret, c.GetString("tenant_id"), b.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": exp,
		"user_id":    c.GetString("tenant_id"),
	})
}

// respond writes the snapshot of a finished operation or maps its error.
func (b *BuilderModule) respond(c *gin.Context, snap sections.Snapshot, err error) {
	if err == nil {
		c.JSON(http.StatusOK, snap)
		return
	}

	switch {
	case errors.Is(err, sections.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Another change is still being saved"})
	case errors.Is(err, sections.ErrStaleRevision):
		c.JSON(http.StatusConflict, gin.H{"error": "Sections were changed elsewhere, please retry"})
	case errors.Is(err, sections.ErrSaveFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to save sections"})
	case errors.Is(err, sections.ErrFetchFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load sections"})
	case errors.Is(err, sections.ErrInvalidKind), errors.Is(err, sections.ErrOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		c.AbortWithStatus(http.StatusServiceUnavailable)
	default:
		b.log.Error("section operation", zap.String("tenant", c.GetString("tenant_id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
	}
}

func (b *BuilderModule) list(c *gin.Context) {
	snap, err := b.manager.Load(c.Request.Context(), c.GetString("tenant_id"))
	b.respond(c, snap, err)
}

type kindEntry struct {
	Kind  sections.Kind `json:"section"`
	Label string        `json:"label"`
}

func (b *BuilderModule) kinds(c *gin.Context) {
	var out []kindEntry
	for _, k := range sections.AddableKinds() {
		out = append(out, kindEntry{Kind: k, Label: k.Label()})
	}
	c.JSON(http.StatusOK, out)
}

type addRequest struct {
	Name string `json:"name"`
	Kind string `json:"section" binding:"required"`
}

func (b *BuilderModule) add(c *gin.Context) {
	var req addRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Section type is required"})
		return
	}
	kind, err := sections.ParseKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added, snap, err := b.manager.Add(c.Request.Context(), c.GetString("tenant_id"), req.Name, kind)
	if err != nil {
		b.respond(c, snap, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"section":  added,
		"revision": snap.Revision,
		"sections": snap.Sections,
	})
}

func (b *BuilderModule) addGallery(c *gin.Context) {
	added, snap, err := b.manager.AddGallery(c.Request.Context(), c.GetString("tenant_id"))
	if err != nil {
		b.respond(c, snap, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"section":  added,
		"revision": snap.Revision,
		"sections": snap.Sections,
	})
}

func (b *BuilderModule) delete(c *gin.Context) {
	snap, err := b.manager.Delete(c.Request.Context(), c.GetString("tenant_id"), c.Param("id"))
	b.respond(c, snap, err)
}

func (b *BuilderModule) moveUp(c *gin.Context) {
	snap, err := b.manager.MoveUp(c.Request.Context(), c.GetString("tenant_id"), c.Param("id"))
	b.respond(c, snap, err)
}

func (b *BuilderModule) moveDown(c *gin.Context) {
	snap, err := b.manager.MoveDown(c.Request.Context(), c.GetString("tenant_id"), c.Param("id"))
	b.respond(c, snap, err)
}

type moveRequest struct {
	To *int `json:"to" binding:"required"`
}

func (b *BuilderModule) move(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Destination is required"})
		return
	}
	snap, err := b.manager.Move(c.Request.Context(), c.GetString("tenant_id"), c.Param("id"), *req.To)
	b.respond(c, snap, err)
}

type reorderRequest struct {
	From *int `json:"from" binding:"required"`
	To   *int `json:"to" binding:"required"`
}

func (b *BuilderModule) reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Source and destination are required"})
		return
	}
	snap, err := b.manager.Reorder(c.Request.Context(), c.GetString("tenant_id"), *req.From, *req.To)
	b.respond(c, snap, err)
}

func (b *BuilderModule) reset(c *gin.Context) {
	snap, err := b.manager.Reset(c.Request.Context(), c.GetString("tenant_id"))
	b.respond(c, snap, err)
}

func (b *BuilderModule) content(c *gin.Context) {
	body, err := b.store.Content(c.Request.Context(), c.GetString("tenant_id"), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load content"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "body": body})
}

type contentRequest struct {
	Body string `json:"body"`
}

func (b *BuilderModule) saveContent(c *gin.Context) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid content"})
		return
	}
	err := b.store.SetContent(c.Request.Context(), c.GetString("tenant_id"), c.Param("id"), req.Body)
	switch {
	case errors.Is(err, sections.ErrUnknownSection):
		c.JSON(http.StatusNotFound, gin.H{"error": "Section not found"})
	case err != nil:
		b.log.Error("save content", zap.String("tenant", c.GetString("tenant_id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save content"})
	default:
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "body": req.Body})
	}
}
