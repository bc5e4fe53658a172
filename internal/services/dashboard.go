package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

// DashboardService aggregates per-project testing activity.
type DashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

type DashboardStatsRequest struct {
	StartDate     string `form:"start_date"` // YYYY-MM-DD
	EndDate       string `form:"end_date"`   // YYYY-MM-DD
	ExecutorLimit int    `form:"executor_limit"`
}

type DashboardStats struct {
	Scenarios      int64   `json:"scenarios"`
	ReadyScenarios int64   `json:"ready_scenarios"`
	Executions     int64   `json:"executions"`
	Passed         int64   `json:"passed"`
	Failed         int64   `json:"failed"`
	Blocked        int64   `json:"blocked"`
	Skipped        int64   `json:"skipped"`
	PassRate       float64 `json:"pass_rate"`
	OpenBugs       int64   `json:"open_bugs"`
	Members        int64   `json:"members"`
}

type ExecutorStats struct {
	UserID         uint    `json:"user_id"`
	Name           string  `json:"name"`
	ExecutionCount int64   `json:"execution_count"`
	PassRate       float64 `json:"pass_rate"`
}

type DashboardResponse struct {
	Stats         DashboardStats  `json:"stats"`
	ExecutorStats []ExecutorStats `json:"executor_stats"`
}

// ProjectDashboard returns aggregate counts for the project, optionally
// restricted to a date range on executions.
func (s *DashboardService) ProjectDashboard(userID, projectID uint, req *DashboardStatsRequest) (*DashboardResponse, error) {
	if _, err := resolveAccess(s.db, projectID, userID); err != nil {
		return nil, err
	}

	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	var stats DashboardStats

	s.db.Model(&models.TestScenario{}).Where("project_id = ?", projectID).Count(&stats.Scenarios)
	s.db.Model(&models.TestScenario{}).
		Where("project_id = ? AND status = ?", projectID, models.ScenarioReady).
		Count(&stats.ReadyScenarios)

	execQuery := func() *gorm.DB {
		q := s.db.Model(&models.Execution{}).Where("project_id = ?", projectID)
		if !start.IsZero() {
			q = q.Where("executed_at >= ?", start)
		}
		if !end.IsZero() {
			q = q.Where("executed_at < ?", end)
		}
		return q
	}

	execQuery().Count(&stats.Executions)
	execQuery().Where("status = ?", models.ExecutionPassed).Count(&stats.Passed)
	execQuery().Where("status = ?", models.ExecutionFailed).Count(&stats.Failed)
	execQuery().Where("status = ?", models.ExecutionBlocked).Count(&stats.Blocked)
	execQuery().Where("status = ?", models.ExecutionSkipped).Count(&stats.Skipped)

	if stats.Executions > 0 {
		stats.PassRate = float64(stats.Passed) / float64(stats.Executions) * 100
	}

	s.db.Model(&models.Bug{}).
		Where("project_id = ? AND status IN ?", projectID, []string{models.BugOpen, models.BugInProgress}).
		Count(&stats.OpenBugs)
	s.db.Model(&models.Membership{}).Where("project_id = ?", projectID).Count(&stats.Members)

	limit := req.ExecutorLimit
	if limit < 1 || limit > 50 {
		limit = 10
	}
	executors, err := s.topExecutors(projectID, start, end, limit)
	if err != nil {
		return nil, err
	}

	return &DashboardResponse{
		Stats:         stats,
		ExecutorStats: executors,
	}, nil
}

func (s *DashboardService) topExecutors(projectID uint, start, end time.Time, limit int) ([]ExecutorStats, error) {
	type row struct {
		ExecutorID uint
		Name       string
		Total      int64
		Passed     int64
	}

	q := s.db.Model(&models.Execution{}).
		Select("executions.executor_id, users.nickname AS name, COUNT(*) AS total, SUM(CASE WHEN executions.status = ? THEN 1 ELSE 0 END) AS passed", models.ExecutionPassed).
		Joins("JOIN users ON users.id = executions.executor_id").
		Where("executions.project_id = ?", projectID)
	if !start.IsZero() {
		q = q.Where("executions.executed_at >= ?", start)
	}
	if !end.IsZero() {
		q = q.Where("executions.executed_at < ?", end)
	}

	var rows []row
	if err := q.Group("executions.executor_id, users.nickname").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := make([]ExecutorStats, 0, len(rows))
	for _, r := range rows {
		es := ExecutorStats{
			UserID:         r.ExecutorID,
			Name:           r.Name,
			ExecutionCount: r.Total,
		}
		if r.Total > 0 {
			es.PassRate = float64(r.Passed) / float64(r.Total) * 100
		}
		stats = append(stats, es)
	}
	return stats, nil
}

// parseDateRange turns YYYY-MM-DD bounds into [start, end) times. The end
// date is inclusive, so one day is added.
func parseDateRange(startDate, endDate string) (time.Time, time.Time, error) {
	var start, end time.Time
	if startDate != "" {
		t, err := time.ParseInLocation("2006-01-02", startDate, time.Local)
		if err != nil {
			return start, end, response.NewBadRequest("invalid start_date: " + startDate)
		}
		start = t
	}
	if endDate != "" {
		t, err := time.ParseInLocation("2006-01-02", endDate, time.Local)
		if err != nil {
			return start, end, response.NewBadRequest("invalid end_date: " + endDate)
		}
		end = t.AddDate(0, 0, 1)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, response.NewBadRequest("end_date is before start_date")
	}
	return start, end, nil
}
