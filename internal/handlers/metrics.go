package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/internal/services"
)

var startTime = time.Now()

// Metrics returns Prometheus-compatible text format metrics.
func Metrics(c *gin.Context) {
	var b strings.Builder

	// -- Runtime metrics --
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "testflow_uptime_seconds", "Time since server start in seconds", float64(time.Since(startTime).Seconds()))
	writeGauge(&b, "testflow_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "testflow_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "testflow_memory_sys_bytes", "Total memory obtained from OS in bytes", float64(m.Sys))
	writeGauge(&b, "testflow_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	// -- Database metrics --
	db := models.GetDB()
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			stats := sqlDB.Stats()
			writeGauge(&b, "testflow_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
			writeGauge(&b, "testflow_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
			writeGauge(&b, "testflow_db_idle_connections", "Number of idle DB connections", float64(stats.Idle))
		}
	}

	// -- Queue metrics --
	taskQueue := services.GetTaskQueue()
	queueAsync := 0.0
	if taskQueue != nil && taskQueue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "testflow_queue_async_enabled", "Whether async queue (Redis) is enabled (1=yes, 0=no)", queueAsync)

	// -- Domain metrics --
	if db != nil {
		var scenarioCount, executionCount, passed24h, failed24h int64
		db.Model(&models.TestScenario{}).Where("deleted_at IS NULL").Count(&scenarioCount)
		db.Model(&models.Execution{}).Count(&executionCount)

		since24h := time.Now().Add(-24 * time.Hour)
		db.Model(&models.Execution{}).Where("executed_at >= ? AND status = ?", since24h, models.ExecutionPassed).Count(&passed24h)
		db.Model(&models.Execution{}).Where("executed_at >= ? AND status = ?", since24h, models.ExecutionFailed).Count(&failed24h)

		writeGauge(&b, "testflow_scenarios_total", "Total number of test scenarios", float64(scenarioCount))
		writeGauge(&b, "testflow_executions_total", "Total number of recorded executions", float64(executionCount))
		writeGauge(&b, "testflow_executions_passed_24h", "Passed executions in the last 24 hours", float64(passed24h))
		writeGauge(&b, "testflow_executions_failed_24h", "Failed executions in the last 24 hours", float64(failed24h))

		var openBugs, pendingInvitations int64
		db.Model(&models.Bug{}).Where("status <> ? AND deleted_at IS NULL", models.BugClosed).Count(&openBugs)
		db.Model(&models.Invitation{}).Where("status = ?", models.InvitationPending).Count(&pendingInvitations)

		writeGauge(&b, "testflow_bugs_open", "Number of bugs not yet closed", float64(openBugs))
		writeGauge(&b, "testflow_invitations_pending", "Number of pending invitations", float64(pendingInvitations))

		// Projects & Users
		var projectCount, userCount int64
		db.Model(&models.Project{}).Where("deleted_at IS NULL").Count(&projectCount)
		db.Model(&models.User{}).Where("deleted_at IS NULL AND is_active = ?", true).Count(&userCount)

		writeGauge(&b, "testflow_projects_total", "Total number of active projects", float64(projectCount))
		writeGauge(&b, "testflow_users_active", "Number of active users", float64(userCount))
	}

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
