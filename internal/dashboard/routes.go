package dashboard

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB) {
	// Pages.
	router.GET("/", handleIndex(db))
	router.GET("/builds/:id", handleBuildDetail(db))

	// JSON API.
	router.GET("/api/builds", handleAPIBuilds(db))
	router.GET("/api/rules/stats", handleAPIRuleStats(db))

	// SSE stream of new classifications.
	router.GET("/api/events", handleSSE(db))
}

func handleIndex(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := RecentBuilds(db, 50)
		if err != nil {
			c.String(http.StatusInternalServerError, "query builds: %v", err)
			return
		}
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"page":   "builds",
			"builds": rows,
		})
	}
}

func handleBuildDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.String(http.StatusBadRequest, "invalid build id")
			return
		}
		build, err := BuildDetail(db, uint(id))
		if err != nil {
			c.String(http.StatusNotFound, "build not found")
			return
		}
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"page":  "build-detail",
			"build": build,
		})
	}
}

func handleAPIBuilds(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := RecentBuilds(db, 50)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func handleAPIRuleStats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := RuleStats(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
