package reconciliation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/ledger"
	"github.com/cokeastorga/underdeskflow-payments/pkg/observability"
)

// DefaultInterval is how often the trailing closed day is re-reconciled.
const DefaultInterval = time.Hour

// Service is the reconciliation job: it re-derives per-store totals from the
// ledger alone and compares them with the previously published report for
// the same period. It never mutates the ledger.
type Service struct {
	ledger   *ledger.Service
	reports  ports.ReconciliationRepository
	clock    ports.Clock
	logger   ports.Logger
	interval time.Duration
}

// NewService creates the reconciliation service. A zero interval selects the
// default.
func NewService(ledgerSvc *ledger.Service, reports ports.ReconciliationRepository, clock ports.Clock, logger ports.Logger, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		ledger:   ledgerSvc,
		reports:  reports,
		clock:    clock,
		logger:   logger,
		interval: interval,
	}
}

// Run reconciles the trailing closed day on a ticker until the context is
// canceled.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("reconciliation worker started", ports.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reconciliation worker stopped")
			return
		case <-ticker.C:
			periodEnd := s.clock.Now().Truncate(24 * time.Hour)
			periodStart := periodEnd.Add(-24 * time.Hour)
			if err := s.RunOnce(ctx, periodStart, periodEnd); err != nil {
				s.logger.Error("reconciliation run failed", ports.Err(err))
			}
		}
	}
}

// RunOnce reconciles every store with ledger activity in the period.
func (s *Service) RunOnce(ctx context.Context, periodStart, periodEnd time.Time) error {
	storeIDs, err := s.reports.ListStoreIDsWithActivity(ctx, nil, periodStart, periodEnd)
	if err != nil {
		return fmt.Errorf("list stores with activity: %w", err)
	}

	for _, storeID := range storeIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.reconcileStore(ctx, storeID, periodStart, periodEnd); err != nil {
			observability.ReconciliationRunsTotal.WithLabelValues("error").Inc()
			s.logger.Error("store reconciliation failed",
				ports.String("store_id", storeID.String()),
				ports.Err(err),
			)
		}
	}
	return nil
}

func (s *Service) reconcileStore(ctx context.Context, storeID uuid.UUID, periodStart, periodEnd time.Time) error {
	txns, err := s.ledger.ListByStorePeriod(ctx, nil, storeID, periodStart, periodEnd)
	if err != nil {
		return err
	}

	report := &ports.ReconciliationReport{
		ID:          uuid.New(),
		StoreID:     storeID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Checksum:    checksum(txns),
		Status:      "clean",
		CreatedAt:   s.clock.Now(),
	}
	report.GrossRevenue, report.TotalFees, report.Net = totals(txns)

	prior, err := s.reports.GetLatest(ctx, nil, storeID, periodStart, periodEnd)
	if err != nil {
		return err
	}
	if prior != nil && !matches(prior, report) {
		report.Status = "discrepancy"
		s.logger.Error("reconciliation discrepancy for closed period",
			ports.String("store_id", storeID.String()),
			ports.String("prior_checksum", prior.Checksum),
			ports.String("checksum", report.Checksum),
		)
	}

	if err := s.reports.Save(ctx, nil, report); err != nil {
		return err
	}

	observability.ReconciliationRunsTotal.WithLabelValues(report.Status).Inc()
	s.logger.Info("store reconciled",
		ports.String("store_id", storeID.String()),
		ports.String("status", report.Status),
		ports.Int64("gross_revenue", report.GrossRevenue),
		ports.Int64("total_fees", report.TotalFees),
		ports.Int64("net", report.Net),
	)
	return nil
}

func matches(a, b *ports.ReconciliationReport) bool {
	return a.Checksum == b.Checksum &&
		a.GrossRevenue == b.GrossRevenue &&
		a.TotalFees == b.TotalFees &&
		a.Net == b.Net
}

// checksum hashes the ordered (id, created_at) pairs so any insertion,
// mutation, or reorder in a closed period changes the digest.
func checksum(txns []*domain.LedgerTransaction) string {
	h := sha256.New()
	for _, txn := range txns {
		fmt.Fprintf(h, "%s|%s\n", txn.ID, txn.CreatedAt.UTC().Format(time.RFC3339Nano))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// totals re-derives the period's money facts from entries alone: gross is
// what the PSPs collected, fees the signed commission movement, net the
// signed payoutable movement.
func totals(txns []*domain.LedgerTransaction) (gross, fees, net int64) {
	for _, txn := range txns {
		for _, e := range txn.Entries {
			signed := e.Amount
			if e.Direction == domain.Debit {
				signed = -signed
			}
			switch e.Account {
			case domain.AccountPayoutableBalance:
				net += signed
			case domain.AccountPlatformCommission, domain.AccountChannelCommission:
				fees += signed
			case domain.AccountPSPInTransit:
				if txn.Name == "payment_paid" && e.Direction == domain.Debit {
					gross += e.Amount
				}
			}
		}
	}
	return gross, fees, net
}
