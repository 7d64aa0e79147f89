package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domwf "github.com/aozorakai/taxflow/internal/domain/workflow"
	"github.com/aozorakai/taxflow/internal/models"
	"github.com/aozorakai/taxflow/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no approval request matches the given ID
var ErrNotFound = errors.New("approval request not found")

// Notifier is the slice of the notification dispatcher this service needs
type Notifier interface {
	Notify(ctx context.Context, recipient, title, message string, severity models.Severity)
}

// Service drives payment approval requests through their role chain
type Service struct {
	repo     *repository.ApprovalRepository
	resolver *ChainResolver
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates a new payment approval service
func NewService(repo *repository.ApprovalRepository, resolver *ChainResolver, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		notifier: notifier,
		logger:   logger,
	}
}

// RequestPaymentApproval creates a PENDING request at step 0 and notifies
// the first role in the resolved chain
func (s *Service) RequestPaymentApproval(ctx context.Context, paymentRef string, amount float64, requestedBy string) (*models.PaymentApprovalRequest, error) {
	chain := s.resolver.Resolve(amount)
	encoded, err := encodeChain(chain)
	if err != nil {
		return nil, err
	}

	req := &models.PaymentApprovalRequest{
		PublicID:    uuid.NewString(),
		PaymentRef:  paymentRef,
		Amount:      amount,
		RequestedBy: requestedBy,
		Chain:       encoded,
		CurrentStep: 0,
		Status:      models.ApprovalStatusPending,
		Comments:    "[]",
	}

	if err := s.repo.Create(nil, req); err != nil {
		return nil, err
	}

	s.logger.Info("Payment approval requested",
		zap.String("public_id", req.PublicID),
		zap.String("payment_ref", paymentRef),
		zap.Float64("amount", amount),
		zap.Int("chain_length", len(chain)))

	s.notifier.Notify(ctx, roleRecipient(chain[0]),
		"Payment approval required",
		fmt.Sprintf("Payment %s (amount %.2f) requested by %s awaits your approval", paymentRef, amount, requestedBy),
		models.SeverityInfo)

	return req, nil
}

// Get returns the approval request with the given public ID
func (s *Service) Get(approvalID string) (*models.PaymentApprovalRequest, error) {
	req, err := s.repo.GetByPublicID(approvalID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, approvalID)
	}
	return req, nil
}

// Approve records the current step's approval and advances the chain.
// When the last role approves, status becomes APPROVED. Approving a
// terminal request fails with ErrInvalidState.
func (s *Service) Approve(ctx context.Context, approvalID, approverID, comment string) error {
	req, err := s.repo.GetByPublicID(approvalID)
	if err != nil {
		return err
	}
	if req == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, approvalID)
	}

	chain, err := decodeChain(req.Chain)
	if err != nil {
		return err
	}

	if req.CurrentStep >= len(chain) {
		return fmt.Errorf("%w: step index %d exceeds chain length %d", domwf.ErrInvalidState, req.CurrentStep, len(chain))
	}
	role := chain[req.CurrentStep]
	final := req.CurrentStep == len(chain)-1

	machine := newRequestMachine(req.Status, final)
	if err := machine.Fire(ctx, domwf.TriggerApprove); err != nil {
		return fmt.Errorf("cannot approve request %s: %w", approvalID, err)
	}

	comments, err := appendComment(req.Comments, models.ApprovalComment{
		ApproverID: approverID,
		Role:       role,
		Action:     models.ApprovalStatusApproved,
		Comment:    comment,
		At:         time.Now(),
	})
	if err != nil {
		return err
	}

	nextStep := req.CurrentStep + 1
	newStatus := string(machine.State())

	var completedAt *time.Time
	if newStatus == models.ApprovalStatusApproved {
		now := time.Now()
		completedAt = &now
	}

	if err := s.repo.UpdateProgress(nil, req.ID, nextStep, newStatus, comments, completedAt); err != nil {
		return err
	}

	s.logger.Info("Approval step recorded",
		zap.String("public_id", req.PublicID),
		zap.String("role", role.String()),
		zap.String("approver", approverID),
		zap.String("status", newStatus))

	if newStatus == models.ApprovalStatusApproved {
		s.notifier.Notify(ctx, req.RequestedBy,
			"Payment approved",
			fmt.Sprintf("Payment %s has been approved by the full chain", req.PaymentRef),
			models.SeverityInfo)
		return nil
	}

	s.notifier.Notify(ctx, roleRecipient(chain[nextStep]),
		"Payment approval required",
		fmt.Sprintf("Payment %s (amount %.2f) awaits your approval", req.PaymentRef, req.Amount),
		models.SeverityInfo)

	return nil
}

// Reject terminates the request regardless of step index. Rejection is
// absolute: no further approvals are possible. Rejecting a terminal
// request fails with ErrInvalidState.
func (s *Service) Reject(ctx context.Context, approvalID, approverID, reason string) error {
	req, err := s.repo.GetByPublicID(approvalID)
	if err != nil {
		return err
	}
	if req == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, approvalID)
	}

	chain, err := decodeChain(req.Chain)
	if err != nil {
		return err
	}

	var role models.Role
	if req.CurrentStep < len(chain) {
		role = chain[req.CurrentStep]
	}

	machine := newRequestMachine(req.Status, false)
	if err := machine.Fire(ctx, domwf.TriggerReject); err != nil {
		return fmt.Errorf("cannot reject request %s: %w", approvalID, err)
	}

	comments, err := appendComment(req.Comments, models.ApprovalComment{
		ApproverID: approverID,
		Role:       role,
		Action:     models.ApprovalStatusRejected,
		Comment:    reason,
		At:         time.Now(),
	})
	if err != nil {
		return err
	}

	now := time.Now()
	if err := s.repo.UpdateProgress(nil, req.ID, req.CurrentStep, models.ApprovalStatusRejected, comments, &now); err != nil {
		return err
	}

	s.logger.Info("Approval request rejected",
		zap.String("public_id", req.PublicID),
		zap.String("approver", approverID),
		zap.String("reason", reason))

	s.notifier.Notify(ctx, req.RequestedBy,
		"Payment rejected",
		fmt.Sprintf("Payment %s was rejected: %s", req.PaymentRef, reason),
		models.SeverityWarning)

	return nil
}

// newRequestMachine builds the lifecycle machine for a request in the
// given status. The final flag gates the PENDING to APPROVED transition:
// only the last chain step may finalize.
func newRequestMachine(status string, final bool) domwf.StateMachine {
	b := domwf.NewBuilder()
	b.Configure(domwf.StatePending).
		PermitIf(domwf.TriggerApprove, domwf.StateApproved, func(context.Context) bool { return final }).
		Permit(domwf.TriggerApprove, domwf.StatePending).
		Permit(domwf.TriggerReject, domwf.StateRejected)
	return b.Build(domwf.State(status))
}

// appendComment adds an entry to the stored comment audit list
func appendComment(raw string, comment models.ApprovalComment) (string, error) {
	var comments []models.ApprovalComment
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &comments); err != nil {
			return "", fmt.Errorf("failed to decode comments: %w", err)
		}
	}

	comments = append(comments, comment)
	data, err := json.Marshal(comments)
	if err != nil {
		return "", fmt.Errorf("failed to encode comments: %w", err)
	}
	return string(data), nil
}

// roleRecipient maps a role to its notification pool address
func roleRecipient(role models.Role) string {
	return strings.ToLower(role.String()) + "-pool"
}
