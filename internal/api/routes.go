package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up every API route on the gin router.
func registerRoutes(router *gin.Engine, s *server) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	project := router.Group("/api/projects/:project")
	project.GET("/plan", handleGetActive(s))
	project.GET("/plans", handleListPlans(s))
	project.POST("/plans", handleCreatePlan(s))
	project.POST("/bulk", handleBulkByFilter(s))

	p := project.Group("/plans/:plan")
	p.POST("/activate", handleActivatePlan(s))
	p.PUT("/tasks", handleUpsertTasks(s))
	p.POST("/reorder", handleReorder(s))
	p.POST("/shift", handleShift(s))
	p.POST("/baseline", handleSetBaseline(s))
	p.DELETE("/baseline", handleClearBaseline(s))
	p.GET("/variance", handleVariance(s))
	p.POST("/bulk", handleBulkByIDs(s))

	task := project.Group("/tasks/:task")
	task.POST("/bump", handleBump(s))
	task.PUT("/dependencies", handleSetDependencies(s))
	task.PUT("/snooze", handleSnooze(s))
}
