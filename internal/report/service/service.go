// Package service charges researchers for a generated report and pays the
// owners of every study the report used.
package service

import (
	"context"
	"errors"
	"log/slog"

	paymentsvc "desci/internal/payment/service"
	registrymodels "desci/internal/registry/models"
	"desci/internal/report/models"
	"desci/internal/report/store"
	"desci/pkg/domain"
	dErrors "desci/pkg/domain-errors"
	"desci/pkg/platform/invocation"
	"desci/pkg/platform/sentinel"
	"desci/pkg/requestcontext"
)

const (
	contractName        = "report"
	maxStudiesPerReport = 500
)

type Runner interface {
	Invoke(ctx context.Context, contract, operation string, fn invocation.Func) error
}

type Credits interface {
	Transfer(ctx context.Context, from, to domain.AccountID, amount domain.Amount) (domain.Amount, error)
}

type Studies interface {
	StudyData(ctx context.Context, studyHash domain.Hash) (*registrymodels.StudyRecord, error)
}

type Payments interface {
	PayContributors(ctx context.Context, d paymentsvc.Distribution) (int, error)
}

// Config holds the economics of a report. Zero amounts are honored as
// given: a zero ReportCost charges nothing and a zero USDCPerStudy pays
// nobody. Defaults live in config.FromEnv.
type Config struct {
	Treasury     domain.AccountID
	Token        domain.AccountID
	ReportCost   domain.Amount
	USDCPerStudy domain.Amount
}

type Service struct {
	runner   Runner
	credits  Credits
	studies  Studies
	payments Payments
	cfg      Config
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(runner Runner, credits Credits, studies Studies, payments Payments, cfg Config, opts ...Option) *Service {
	s := &Service{
		runner:   runner,
		credits:  credits,
		studies:  studies,
		payments: payments,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessPayment charges the researcher the report cost in BioCredits,
// resolves the owner of every used study, pays each one USDCPerStudy and
// stores the receipt under reportID.
//
// The steps share one invocation. If any of them fails, the charge, local
// token transfers, the receipt and all events are discarded together. A
// report id that already has a receipt is rejected before anything moves.
func (s *Service) ProcessPayment(ctx context.Context, researcher domain.AccountID, reportID domain.Tag, studyHashes []domain.Hash) (*models.Report, error) {
	if researcher.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "researcher is required")
	}
	if reportID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "report_id is required")
	}
	if len(studyHashes) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one study hash is required")
	}
	if len(studyHashes) > maxStudiesPerReport {
		return nil, dErrors.New(dErrors.CodeValidation, "too many study hashes")
	}
	seen := make(map[domain.Hash]struct{}, len(studyHashes))
	for _, h := range studyHashes {
		if _, dup := seen[h]; dup {
			return nil, dErrors.New(dErrors.CodeValidation, "study hash listed twice: "+h.String())
		}
		seen[h] = struct{}{}
	}

	total, err := s.cfg.USDCPerStudy.Mul(domain.NewAmount(int64(len(studyHashes))))
	if err != nil {
		return nil, err
	}

	var result *models.Report
	err = s.runner.Invoke(ctx, contractName, "process_payment", func(ctx context.Context, inv *invocation.Invocation) error {
		reports := store.NewReportStore(inv.Tx())
		used, err := reports.Exists(ctx, reportID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check report")
		}
		if used {
			return dErrors.New(dErrors.CodeConflict, "report "+string(reportID)+" was already paid")
		}

		if _, err := s.credits.Transfer(ctx, researcher, s.cfg.Treasury, s.cfg.ReportCost); err != nil {
			return err
		}

		contributors := make([]domain.AccountID, len(studyHashes))
		amounts := make([]domain.Amount, len(studyHashes))
		for i, h := range studyHashes {
			rec, err := s.studies.StudyData(ctx, h)
			if err != nil {
				return err
			}
			contributors[i] = rec.OwnerWallet
			amounts[i] = s.cfg.USDCPerStudy
		}

		paid, err := s.payments.PayContributors(ctx, paymentsvc.Distribution{
			Contributors: contributors,
			Amounts:      amounts,
			Token:        s.cfg.Token,
			Treasury:     s.cfg.Treasury,
			ReportID:     reportID,
		})
		if err != nil {
			return err
		}

		rep := &models.Report{
			ReportID:         reportID,
			Researcher:       researcher,
			StudyHashes:      append([]domain.Hash(nil), studyHashes...),
			CreditsCharged:   s.cfg.ReportCost,
			ContributorsPaid: paid,
			TotalUSDC:        total,
			CreatedAt:        requestcontext.Now(ctx).UTC(),
		}
		if err := reports.Save(ctx, rep); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save report")
		}
		if err := store.NewResearcherIndexStore(inv.Tx()).Append(ctx, researcher, reportID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update researcher index")
		}
		result = rep
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "report payment failed",
			"report_id", reportID,
			"researcher", researcher,
			"studies", len(studyHashes),
			"error", err,
		)
		return nil, err
	}

	s.logger.InfoContext(ctx, "report payment processed",
		"report_id", reportID,
		"researcher", researcher,
		"contributors_paid", result.ContributorsPaid,
		"total_usdc", result.TotalUSDC.String(),
	)
	return result, nil
}

// Report returns the receipt stored for reportID.
func (s *Service) Report(ctx context.Context, reportID domain.Tag) (*models.Report, error) {
	var rep *models.Report
	err := s.runner.Invoke(ctx, contractName, "get_report", func(ctx context.Context, inv *invocation.Invocation) error {
		r, err := store.NewReportStore(inv.Tx()).Find(ctx, reportID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "report not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read report")
		}
		rep = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// ReportsByResearcher returns the researcher's receipts, newest first. A
// positive limit keeps only that many.
func (s *Service) ReportsByResearcher(ctx context.Context, researcher domain.AccountID, limit int) ([]*models.Report, error) {
	if researcher.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "researcher is required")
	}

	var out []*models.Report
	err := s.runner.Invoke(ctx, contractName, "get_reports_by_researcher", func(ctx context.Context, inv *invocation.Invocation) error {
		ids, err := store.NewResearcherIndexStore(inv.Tx()).List(ctx, researcher)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read researcher index")
		}
		n := len(ids)
		if limit > 0 && limit < n {
			n = limit
		}
		reports := store.NewReportStore(inv.Tx())
		out = make([]*models.Report, 0, n)
		for i := len(ids) - 1; i >= len(ids)-n; i-- {
			rep, err := reports.Find(ctx, ids[i])
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "researcher index points at a missing report")
			}
			out = append(out, rep)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
