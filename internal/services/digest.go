package services

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/config"
	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/pkg/logger"
)

// DigestService mails project owners a daily summary of testing activity.
// It only fires on business days of the configured country.
type DigestService struct {
	db            *gorm.DB
	cfg           *config.DigestConfig
	notifier      *NotificationService
	holidays      *HolidayService
	cronScheduler *cron.Cron
}

func NewDigestService(db *gorm.DB, cfg *config.DigestConfig, notifier *NotificationService) *DigestService {
	return &DigestService{
		db:       db,
		cfg:      cfg,
		notifier: notifier,
		holidays: NewHolidayService(),
	}
}

func (s *DigestService) StartScheduler() {
	if !s.cfg.Enabled {
		logger.Info().Msg("[Digest] Scheduler disabled")
		return
	}

	s.cronScheduler = cron.New()

	hour := s.cfg.Hour
	if hour < 0 || hour > 23 {
		hour = 18
	}
	cronExpr := fmt.Sprintf("0 %d * * *", hour)

	if _, err := s.cronScheduler.AddFunc(cronExpr, func() {
		s.Run(time.Now())
	}); err != nil {
		logger.Error().Err(err).Msg("[Digest] Failed to add cron job")
		return
	}

	s.cronScheduler.Start()
	logger.Info().Str("cron", cronExpr).Msg("[Digest] Scheduler started")
}

func (s *DigestService) StopScheduler() {
	if s.cronScheduler != nil {
		s.cronScheduler.Stop()
	}
}

// Run builds and dispatches digests for every project that saw executions in
// the 24 hours before now. Quiet projects get no mail.
func (s *DigestService) Run(now time.Time) {
	if !s.holidays.IsWorkday(now, s.cfg.Country) {
		logger.Info().Msg("[Digest] Skipping non-business day")
		return
	}

	since := now.Add(-24 * time.Hour)

	var projectIDs []uint
	if err := s.db.Model(&models.Execution{}).
		Where("executed_at >= ? AND executed_at < ?", since, now).
		Distinct("project_id").
		Pluck("project_id", &projectIDs).Error; err != nil {
		logger.Error().Err(err).Msg("[Digest] Failed to list active projects")
		return
	}

	for _, projectID := range projectIDs {
		if err := s.sendProjectDigest(projectID, since, now); err != nil {
			logger.Error().Err(err).Uint("project_id", projectID).Msg("[Digest] Failed to send digest")
		}
	}
}

func (s *DigestService) sendProjectDigest(projectID uint, since, until time.Time) error {
	var project models.Project
	if err := s.db.Preload("Owner").First(&project, projectID).Error; err != nil {
		return err
	}
	if project.Owner == nil || project.Owner.Email == "" {
		return nil
	}

	summary, err := s.collect(projectID, since, until)
	if err != nil {
		return err
	}

	s.notifier.NotifyDigest(project.Owner.Email, &project, s.buildBody(&project, summary))
	return nil
}

type digestSummary struct {
	Executions int64
	Passed     int64
	Failed     int64
	Blocked    int64
	Skipped    int64
	NewBugs    int64
}

func (s *DigestService) collect(projectID uint, since, until time.Time) (*digestSummary, error) {
	var sum digestSummary

	base := func() *gorm.DB {
		return s.db.Model(&models.Execution{}).
			Where("project_id = ? AND executed_at >= ? AND executed_at < ?", projectID, since, until)
	}

	if err := base().Count(&sum.Executions).Error; err != nil {
		return nil, err
	}
	base().Where("status = ?", models.ExecutionPassed).Count(&sum.Passed)
	base().Where("status = ?", models.ExecutionFailed).Count(&sum.Failed)
	base().Where("status = ?", models.ExecutionBlocked).Count(&sum.Blocked)
	base().Where("status = ?", models.ExecutionSkipped).Count(&sum.Skipped)

	s.db.Model(&models.Bug{}).
		Where("project_id = ? AND created_at >= ? AND created_at < ?", projectID, since, until).
		Count(&sum.NewBugs)

	return &sum, nil
}

func (s *DigestService) buildBody(project *models.Project, sum *digestSummary) string {
	var sb strings.Builder

	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<h2>Daily Digest: %s</h2>", html.EscapeString(project.Name)))
	sb.WriteString("<table style=\"border-collapse: collapse; margin-bottom: 20px;\">")

	rows := []struct {
		label string
		value int64
	}{
		{"Executions", sum.Executions},
		{"Passed", sum.Passed},
		{"Failed", sum.Failed},
		{"Blocked", sum.Blocked},
		{"Skipped", sum.Skipped},
		{"New bugs", sum.NewBugs},
	}
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("<tr><td style=\"padding: 8px; border: 1px solid #ddd; font-weight: bold;\">%s</td><td style=\"padding: 8px; border: 1px solid #ddd;\">%d</td></tr>", r.label, r.value))
	}
	sb.WriteString("</table>")

	if sum.Executions > 0 {
		rate := float64(sum.Passed) / float64(sum.Executions) * 100
		sb.WriteString(fmt.Sprintf("<p>Pass rate: <strong>%.1f%%</strong></p>", rate))
	}

	sb.WriteString("<hr><p style=\"color: #888; font-size: 12px;\">Powered by TestFlow</p>")
	sb.WriteString("</body></html>")

	return sb.String()
}
