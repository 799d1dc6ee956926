package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/naduri/naduri-backend/internal/llm"
	"github.com/naduri/naduri-backend/internal/models"
	"github.com/naduri/naduri-backend/internal/providers"
)

// ReportFailedText is the summary stored when report generation fails
const ReportFailedText = "report generation failed"

// FinalizeResult is returned by Finalize
type FinalizeResult struct {
	SessionID string         `json:"session_id"`
	EndedAt   *time.Time     `json:"ended_at_utc"`
	Report    *models.Report `json:"report"`
}

// Finalizer closes a session and stores its report
type Finalizer struct {
	sessions *SessionService
	ledger   *Ledger
	reporter providers.Reporter
	timeout  time.Duration
	metrics  *llm.MetricsCollector
	logger   *logrus.Logger
}

// NewFinalizer creates a new session finalizer
func NewFinalizer(sessions *SessionService, ledger *Ledger, reporter providers.Reporter, timeout time.Duration, metrics *llm.MetricsCollector, logger *logrus.Logger) *Finalizer {
	if metrics == nil {
		metrics = llm.NewNoopMetricsCollector()
	}
	return &Finalizer{
		sessions: sessions,
		ledger:   ledger,
		reporter: reporter,
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger,
	}
}

// Finalize ends the session if needed, regenerates the report from the full history
// and overwrites the stored one.
func (f *Finalizer) Finalize(ctx context.Context, id string) (*FinalizeResult, error) {
	session, err := f.sessions.End(ctx, id)
	if err != nil {
		return nil, err
	}

	conversation, err := f.ledger.BuildContext(ctx, id, 0)
	if err != nil {
		return nil, err
	}

	report := f.generate(ctx, conversation)
	if report.Degraded {
		f.metrics.RecordDegraded(ctx, "report")
		f.logger.WithFields(logrus.Fields{
			"session_id": id,
			"reason":     report.Reason,
		}).Warn("report generation degraded")
	}

	if err := f.sessions.SetFinalReport(ctx, id, report.Value); err != nil {
		return nil, err
	}

	f.logger.WithFields(logrus.Fields{
		"session_id":       id,
		"turns":            len(conversation),
		"final_risk_score": report.Value.FinalRiskScore,
	}).Info("session finalized")

	return &FinalizeResult{
		SessionID: session.ID,
		EndedAt:   session.EndedAt,
		Report:    report.Value,
	}, nil
}

// GetReport returns the stored report, nil when none exists yet
func (f *Finalizer) GetReport(ctx context.Context, id string) (*models.Report, error) {
	session, err := f.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.FinalReport.Corrupt() {
		f.logger.WithFields(logrus.Fields{
			"session_id": id,
			"error":      session.FinalReport.Error,
		}).Warn("stored report could not be decoded")
	}
	return session.FinalReport, nil
}

func (f *Finalizer) generate(ctx context.Context, conversation []models.ContextMessage) llm.Outcome[*models.Report] {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	report, err := f.reporter.GenerateReport(ctx, conversation)
	if err != nil {
		return llm.Degraded(failedReport(), err.Error())
	}
	if report == nil {
		return llm.Degraded(failedReport(), "empty report")
	}
	return llm.OK(llm.ClampReport(report))
}

func failedReport() *models.Report {
	return &models.Report{FinalRiskScore: 0, SummaryText: ReportFailedText}
}
