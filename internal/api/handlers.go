package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/planyard/internal/dates"
	"github.com/zulandar/planyard/internal/plan"
	"gorm.io/gorm"
)

type createPlanRequest struct {
	Title string `json:"title"`
}

type upsertTasksRequest struct {
	Tasks []plan.TaskInput `json:"tasks"`
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

type shiftRequest struct {
	FromTaskID string `json:"fromTaskId"`
	DeltaDays  int    `json:"deltaDays"`
	Cascade    bool   `json:"cascade"`
}

type baselineRequest struct {
	TaskIDs []string `json:"taskIds"`
}

type bulkByIDsRequest struct {
	IDs []string      `json:"ids"`
	Set plan.FieldSet `json:"set"`
}

type bulkByFilterRequest struct {
	PlanID string        `json:"planId"`
	Filter plan.Filter   `json:"filter"`
	Set    plan.FieldSet `json:"set"`
	// DryRun returns the matching tasks instead of writing.
	DryRun bool `json:"dryRun"`
}

type bumpRequest struct {
	Days int `json:"days"`
}

type dependenciesRequest struct {
	DependsOn []string `json:"dependsOn"`
}

type snoozeRequest struct {
	Until *string `json:"until"`
}

// bind decodes the JSON body into dst. An empty body leaves dst untouched
// when optional is set.
func bind(c *gin.Context, dst interface{}, optional bool) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		badRequest(c, "body", err.Error())
		return false
	}
	return true
}

func handleGetActive(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		db, cancel := s.scoped(c)
		defer cancel()
		view, err := plan.GetActive(db, c.Param("project"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func handleListPlans(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		db, cancel := s.scoped(c)
		defer cancel()
		plans, err := plan.ListPlans(db, c.Param("project"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"plans": plans})
	}
}

func handleCreatePlan(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createPlanRequest
		if !bind(c, &req, false) {
			return
		}
		db, cancel := s.scoped(c)
		defer cancel()
		p, err := plan.CreatePlan(db, plan.CreatePlanOpts{ProjectID: c.Param("project"), Title: req.Title})
		if err != nil {
			s.fail(c, err)
			return
		}
		s.log.Info("plan created", "project", p.ProjectID, "plan", p.ID, "version", p.Version)
		c.JSON(http.StatusCreated, gin.H{"plan": p})
	}
}

func handleActivatePlan(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		db, cancel := s.scoped(c)
		defer cancel()
		p, err := plan.ActivatePlan(db, c.Param("project"), c.Param("plan"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"plan": p})
	}
}

func handleUpsertTasks(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req upsertTasksRequest
		if !bind(c, &req, false) {
			return
		}
		db, cancel := s.scoped(c)
		defer cancel()
		res, err := plan.UpsertTasks(db, c.Param("project"), c.Param("plan"), req.Tasks)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleReorder(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req idsRequest
		if !bind(c, &req, false) {
			return
		}
		db, cancel := s.scoped(c)
		defer cancel()
		n, err := plan.Reorder(db, c.Param("project"), c.Param("plan"), req.IDs)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n})
	}
}

func handleShift(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req shiftRequest
		if !bind(c, &req, false) {
			return
		}
		db, cancel := s.scoped(c)
		defer cancel()
		res, err := plan.Shift(db, plan.ShiftOpts{
			ProjectID:  c.Param("project"),
			PlanID:     c.Param("plan"),
			FromTaskID: req.FromTaskID,
			DeltaDays:  req.DeltaDays,
			Cascade:    req.Cascade,
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleSetBaseline(s *server) gin.HandlerFunc {
	return baselineHandler(s, plan.SetBaseline)
}

func handleClearBaseline(s *server) gin.HandlerFunc {
	return baselineHandler(s, plan.ClearBaseline)
}

func baselineHandler(s *server, op func(*gorm.DB, plan.BaselineOpts) (int, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req baselineRequest
		if !bind(c, &req, true) {
			return
		}
		db, cancel := s.scoped(c)
		defer cancel()
		n, err := op(db, plan.BaselineOpts{
			ProjectID: c.Param("project"),
			PlanID:    c.Param("plan"),
			TaskIDs:   req.TaskIDs,
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n})
	}
}

func handleVariance(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		db, cancel := s.scoped(c)
		defer cancel()
		rows, err := plan.VarianceReport(db, c.Param("project"), c.Param("plan"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rows": rows})
	}
}

func handleBulkByIDs(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bulkByIDsRequest
		if !bind(c, &req, false) {
			return
		}
		db, cancel := s.scoped(c)
		defer cancel()
		n, err := plan.BulkUpdateByIDs(db, c.Param("project"), c.Param("plan"), req.IDs, req.Set)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n})
	}
}

func handleBulkByFilter(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bulkByFilterRequest
		if !bind(c, &req, false) {
			return
		}
		db, cancel := s.scoped(c)
		defer cancel()
		if req.DryRun {
			tasks, err := plan.MatchTasks(db, c.Param("project"), req.PlanID, req.Filter)
			if err != nil {
				s.fail(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"tasks": tasks})
			return
		}
		n, err := plan.BulkUpdateByFilter(db, c.Param("project"), req.PlanID, req.Filter, req.Set)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n})
	}
}

func handleBump(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bumpRequest
		if !bind(c, &req, false) {
			return
		}
		db, cancel := s.scoped(c)
		defer cancel()
		due, err := plan.Bump(db, c.Param("project"), c.Param("task"), req.Days)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"dueAt": due})
	}
}

func handleSetDependencies(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dependenciesRequest
		if !bind(c, &req, false) {
			return
		}
		db, cancel := s.scoped(c)
		defer cancel()
		if err := plan.SetDependencies(db, c.Param("project"), c.Param("task"), req.DependsOn); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleSnooze(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req snoozeRequest
		if !bind(c, &req, false) {
			return
		}
		var until *time.Time
		if req.Until != nil {
			t, err := dates.ParseTimestamp(*req.Until)
			if err != nil {
				badRequest(c, "until", err.Error())
				return
			}
			until = &t
		}
		db, cancel := s.scoped(c)
		defer cancel()
		if err := plan.Snooze(db, c.Param("project"), c.Param("task"), until); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
