package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/internal/pkg/metrics"
)

var errRequestDecided = errors.New("downgrade request already decided")

// DecisionOutcome is the state of a request after an admin decision.
type DecisionOutcome struct {
	Request                  *models.DowngradeRequest `json:"request"`
	Changed                  bool                     `json:"changed"`
	CancelledSubscriptionIDs []string                 `json:"cancelledSubscriptionIds,omitempty"`
}

// GovernanceService runs admin decisions: an approval that moves a request
// out of pending executes the downgrade.
type GovernanceService struct {
	store    *GovernanceStore
	executor DowngradeExecutor
	users    UserSource
	metrics  *metrics.Billing
	log      logrus.FieldLogger
}

// NewGovernanceService creates the admin decision service.
func NewGovernanceService(store *GovernanceStore, executor DowngradeExecutor, users UserSource, m *metrics.Billing, log logrus.FieldLogger) *GovernanceService {
	return &GovernanceService{store: store, executor: executor, users: users, metrics: m, log: log}
}

// Decide records the decision and, on a fresh approval, executes the
// downgrade. The approval commits with the downgrade, so a failed execution
// leaves the request pending for another attempt. Repeated decisions return
// the stored request untouched.
func (s *GovernanceService) Decide(ctx context.Context, id string, raw string, actor Actor) (*DecisionOutcome, error) {
	decision, err := ParseDecision(raw)
	if err != nil {
		return nil, err
	}
	if decision == DecisionReject {
		return s.reject(ctx, id, actor)
	}

	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.DowngradeStatusPending {
		return s.unchanged(req), nil
	}

	entry := s.log.WithFields(logrus.Fields{
		"request_id":  req.ID,
		"decision":    decision,
		"business_id": req.BusinessID,
		"decided_by":  actor.UserID,
	})

	var ownerEmail string
	if owner, err := s.users.GetByID(ctx, req.OwnerUserID); err == nil {
		ownerEmail = owner.Email
	}
	recorded := false
	res, err := s.executor.Execute(ctx, DowngradeExecution{
		OwnerUserID:      req.OwnerUserID,
		OwnerEmail:       ownerEmail,
		BusinessID:       req.BusinessID,
		CurrentPackageID: req.CurrentPackageID,
		TargetPackageID:  req.TargetPackageID,
		InTx: func(tx *gorm.DB) error {
			changed, err := s.store.decideIn(tx, req.ID, DecisionApprove, actor)
			if err != nil {
				return err
			}
			if !changed {
				return errRequestDecided
			}
			recorded = true
			return nil
		},
	})
	if err != nil {
		// A concurrent decision wins over this attempt's failure.
		if current, getErr := s.store.GetRequest(ctx, id); getErr == nil && current.Status != models.DowngradeStatusPending {
			return s.unchanged(current), nil
		}
		entry.WithError(err).Error("approved downgrade failed to execute")
		return nil, fmt.Errorf("execute approved downgrade: %w", err)
	}
	if !recorded {
		// Executors that do not run InTx get the approval recorded after
		// they return.
		changed, err := s.store.decideIn(s.store.db.WithContext(ctx), req.ID, DecisionApprove, actor)
		if err != nil {
			return nil, err
		}
		recorded = changed
	}

	req, err = s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !recorded {
		return s.unchanged(req), nil
	}
	s.metrics.DowngradeDecision(string(decision))
	entry.Info("downgrade request approved and executed")
	return &DecisionOutcome{Request: req, Changed: true, CancelledSubscriptionIDs: res.CancelledSubscriptionIDs}, nil
}

func (s *GovernanceService) reject(ctx context.Context, id string, actor Actor) (*DecisionOutcome, error) {
	req, changed, err := s.store.Decide(ctx, id, DecisionReject, actor)
	if err != nil {
		return nil, err
	}
	if !changed {
		return s.unchanged(req), nil
	}
	s.metrics.DowngradeDecision(string(DecisionReject))
	s.log.WithFields(logrus.Fields{
		"request_id":  req.ID,
		"business_id": req.BusinessID,
		"decided_by":  actor.UserID,
	}).Info("downgrade request rejected")
	return &DecisionOutcome{Request: req, Changed: true}, nil
}

func (s *GovernanceService) unchanged(req *models.DowngradeRequest) *DecisionOutcome {
	s.metrics.DowngradeDecision("unchanged")
	return &DecisionOutcome{Request: req, Changed: false}
}
