package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"booking-search-platform/internal/config"
	"booking-search-platform/internal/database"
	"booking-search-platform/internal/queue"
	"booking-search-platform/internal/search"
	"booking-search-platform/middleware"
	"booking-search-platform/utils"
)

// AdminDeps carries the wired components the operator endpoints act on.
type AdminDeps struct {
	Conn     *search.Manager
	Indexer  *search.Indexer
	Producer *queue.Client
	Repos    *database.Repositories
}

// SetupAdminRoutes registers the write-side operator surface. These are
// ops endpoints, not query features: the query engine talks to the
// store directly.
func SetupAdminRoutes(router *gin.Engine, cfg *config.Config, deps AdminDeps, auth *middleware.AuthMiddleware) {
	admin := router.Group("/admin/index")
	admin.Use(auth.RequireAdmin())

	// Synchronous single-unit reindex. The manual-recovery path the
	// stale-index alert points operators at.
	admin.POST("/units/:id/reindex", func(c *gin.Context) {
		unitID := c.Param("id")
		if unitID == "" {
			utils.RespondWithBadRequest(c, "unit id is required", nil)
			return
		}

		err := deps.Indexer.ReindexUnit(c.Request.Context(), unitID)
		if err != nil {
			if errors.Is(err, search.ErrWriteExhausted) {
				utils.RespondWithServiceUnavailable(c, "search store unavailable; unit index remains stale")
				return
			}
			utils.RespondWithInternalError(c, "reindex failed", err.Error())
			return
		}

		c.JSON(http.StatusOK, gin.H{"unit_id": unitID, "status": "reindexed"})
	})

	admin.POST("/units/:id/remove", func(c *gin.Context) {
		unitID := c.Param("id")

		if err := deps.Indexer.RemoveUnit(c.Request.Context(), unitID); err != nil {
			if errors.Is(err, search.ErrWriteExhausted) {
				utils.RespondWithServiceUnavailable(c, "search store unavailable; documents not removed")
				return
			}
			utils.RespondWithInternalError(c, "removal failed", err.Error())
			return
		}

		c.JSON(http.StatusOK, gin.H{"unit_id": unitID, "status": "removed"})
	})

	// Field fan-outs touch many units, so they always go through the queue.
	admin.POST("/fields/:id/reindex", func(c *gin.Context) {
		fieldID := c.Param("id")

		if err := deps.Producer.EnqueueReindexField(fieldID); err != nil {
			utils.RespondWithInternalError(c, "failed to enqueue field reindex", err.Error())
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"field_id": fieldID, "status": "enqueued"})
	})

	// Full rebuild: recreate the index definitions, then enqueue a
	// reindex for every approved unit. With drop_docs=true the existing
	// documents are deleted first.
	admin.POST("/rebuild", func(c *gin.Context) {
		dropDocs, _ := strconv.ParseBool(c.DefaultQuery("drop_docs", "false"))
		ctx := c.Request.Context()

		rdb, err := deps.Conn.Database(ctx)
		if err != nil {
			utils.RespondWithServiceUnavailable(c, "search store unavailable")
			return
		}

		if err := search.DropIndexes(ctx, rdb, dropDocs); err != nil {
			utils.RespondWithInternalError(c, "failed to drop indexes", err.Error())
			return
		}
		if err := search.EnsureIndexes(ctx, rdb); err != nil {
			utils.RespondWithInternalError(c, "failed to recreate indexes", err.Error())
			return
		}

		unitIDs, err := deps.Repos.ListApprovedUnitIDs(ctx)
		if err != nil {
			utils.RespondWithInternalError(c, "failed to list units", err.Error())
			return
		}

		var enqueueFailures int
		for _, id := range unitIDs {
			if err := deps.Producer.EnqueueReindexUnit(id, 0); err != nil {
				enqueueFailures++
			}
		}

		c.JSON(http.StatusAccepted, gin.H{
			"status":           "rebuild_enqueued",
			"units":            len(unitIDs),
			"enqueue_failures": enqueueFailures,
			"dropped_docs":     dropDocs,
		})
	})

	admin.GET("/connection", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Conn.Info())
	})

	admin.POST("/connection/reconnect", func(c *gin.Context) {
		if err := deps.Conn.Reconnect(c.Request.Context()); err != nil {
			if errors.Is(err, search.ErrLockTimeout) {
				utils.RespondWithServiceUnavailable(c, "another reconnect is in progress")
				return
			}
			utils.RespondWithServiceUnavailable(c, err.Error())
			return
		}
		c.JSON(http.StatusOK, deps.Conn.Info())
	})
}
