package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/aozorakai/taxflow/internal/models"
	"github.com/aozorakai/taxflow/internal/repository"
	"go.uber.org/zap"
)

// complianceRecipient receives deadline alerts for the firm
const complianceRecipient = "compliance-team"

// Notifier is the slice of the notification dispatcher the monitor needs
type Notifier interface {
	Notify(ctx context.Context, recipient, title, message string, severity models.Severity)
}

// Monitor scans pending filings, raises deadline alerts at the configured
// thresholds and transitions overdue filings. The alert ledger guarantees
// each (filing, threshold) pair fires at most once across runs.
type Monitor struct {
	filingRepo *repository.FilingRepository
	alertRepo  *repository.AlertRepository
	calc       *Calculator
	notifier   Notifier
	thresholds []int
	logger     *zap.Logger
	now        func() time.Time
}

// NewMonitor creates a compliance deadline monitor
func NewMonitor(
	filingRepo *repository.FilingRepository,
	alertRepo *repository.AlertRepository,
	calc *Calculator,
	notifier Notifier,
	thresholds []int,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		filingRepo: filingRepo,
		alertRepo:  alertRepo,
		calc:       calc,
		notifier:   notifier,
		thresholds: thresholds,
		logger:     logger,
		now:        time.Now,
	}
}

// Name returns the job name
func (m *Monitor) Name() string {
	return "compliance-monitor"
}

// Execute runs one monitoring pass. A failed filing is logged and skipped;
// only the initial load aborts the run.
func (m *Monitor) Execute(ctx context.Context) error {
	filings, err := m.filingRepo.ListPending()
	if err != nil {
		return fmt.Errorf("failed to load pending filings: %w", err)
	}

	now := m.now()
	alerted := 0
	overdue := 0
	failed := 0

	for _, filing := range filings {
		if err := ctx.Err(); err != nil {
			return err
		}

		didAlert, becameOverdue, err := m.checkFiling(ctx, filing, now)
		if err != nil {
			m.logger.Warn("Failed to evaluate filing",
				zap.Int64("filing_id", filing.ID),
				zap.String("filing_ref", filing.FilingRef),
				zap.Error(err))
			failed++
			continue
		}
		if didAlert {
			alerted++
		}
		if becameOverdue {
			overdue++
		}
	}

	m.logger.Info("Compliance monitoring completed",
		zap.Int("filings", len(filings)),
		zap.Int("alerted", alerted),
		zap.Int("overdue", overdue),
		zap.Int("failed", failed))

	return nil
}

func (m *Monitor) checkFiling(ctx context.Context, filing *models.ComplianceFiling, now time.Time) (alerted, becameOverdue bool, err error) {
	if now.After(filing.DueDate) {
		return m.handleOverdue(ctx, filing, now)
	}

	daysUntil := DaysUntilDeadline(now, filing.DueDate)
	for _, threshold := range m.thresholds {
		if daysUntil != threshold {
			continue
		}

		inserted, err := m.alertRepo.Record(nil, &models.ComplianceAlert{
			FilingID:      filing.ID,
			ThresholdDays: threshold,
			SentAt:        now,
		})
		if err != nil {
			return false, false, err
		}
		if !inserted {
			// Already alerted for this threshold on an earlier run
			return false, false, nil
		}

		severity := models.SeverityWarning
		if Classify(daysUntil) == ProximityImminent {
			severity = models.SeverityCritical
		}

		m.notifier.Notify(ctx, complianceRecipient,
			fmt.Sprintf("Filing %s due in %d days", filing.FilingRef, threshold),
			fmt.Sprintf("Filing %s for client %d is due on %s",
				filing.FilingRef, filing.ClientID, filing.DueDate.Format("2006-01-02")),
			severity)

		return true, false, nil
	}

	return false, false, nil
}

func (m *Monitor) handleOverdue(ctx context.Context, filing *models.ComplianceFiling, now time.Time) (alerted, becameOverdue bool, err error) {
	daysOverdue := DaysUntilDeadline(filing.DueDate, now)
	penalty := m.calc.Penalty(filing.Amount, daysOverdue)

	if err := m.filingRepo.MarkOverdue(nil, filing.ID, penalty); err != nil {
		return false, false, err
	}

	inserted, err := m.alertRepo.Record(nil, &models.ComplianceAlert{
		FilingID:      filing.ID,
		ThresholdDays: models.OverdueThreshold,
		PenaltyAmount: penalty,
		SentAt:        now,
	})
	if err != nil {
		return false, true, err
	}
	if !inserted {
		return false, true, nil
	}

	m.logger.Warn("Filing is overdue",
		zap.Int64("filing_id", filing.ID),
		zap.String("filing_ref", filing.FilingRef),
		zap.Int("days_overdue", daysOverdue),
		zap.Float64("penalty", penalty))

	m.notifier.Notify(ctx, complianceRecipient,
		fmt.Sprintf("Filing %s is overdue", filing.FilingRef),
		fmt.Sprintf("Filing %s for client %d was due %s; accrued penalty %.2f",
			filing.FilingRef, filing.ClientID, filing.DueDate.Format("2006-01-02"), penalty),
		models.SeverityCritical)

	return true, true, nil
}
