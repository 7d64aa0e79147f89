package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aozorakai/taxflow/internal/approval"
	domwf "github.com/aozorakai/taxflow/internal/domain/workflow"
	"github.com/aozorakai/taxflow/internal/escalation"
	"github.com/aozorakai/taxflow/internal/models"
	"github.com/aozorakai/taxflow/internal/repository"
	"github.com/aozorakai/taxflow/internal/workflow"
)

// JobRunner triggers an out-of-band pass of a background job
type JobRunner interface {
	RunNow(ctx context.Context) error
	Name() string
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine           *workflow.Engine
	evaluator        *workflow.Evaluator
	approvalService  *approval.Service
	escalator        *escalation.Escalator
	instanceRepo     *repository.InstanceRepository
	filingRepo       *repository.FilingRepository
	conversationRepo *repository.ConversationRepository
	jobs             map[string]JobRunner
	logger           *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine *workflow.Engine,
	evaluator *workflow.Evaluator,
	approvalService *approval.Service,
	escalator *escalation.Escalator,
	instanceRepo *repository.InstanceRepository,
	filingRepo *repository.FilingRepository,
	conversationRepo *repository.ConversationRepository,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		engine:           engine,
		evaluator:        evaluator,
		approvalService:  approvalService,
		escalator:        escalator,
		instanceRepo:     instanceRepo,
		filingRepo:       filingRepo,
		conversationRepo: conversationRepo,
		jobs:             make(map[string]JobRunner),
		logger:           logger,
	}
}

// RegisterJob makes a background job triggerable via the admin endpoint
func (h *Handlers) RegisterJob(job JobRunner) {
	h.jobs[job.Name()] = job
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrWorkflowNotFound),
		errors.Is(err, workflow.ErrInstanceNotFound),
		errors.Is(err, approval.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrWorkflowInactive),
		errors.Is(err, domwf.ErrInvalidState),
		errors.Is(err, domwf.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// StartWorkflowRequest is the body for POST /api/workflows/:id/start
type StartWorkflowRequest struct {
	Variables map[string]interface{} `json:"variables"`
	StartedBy string                 `json:"started_by" binding:"required"`
}

// StartWorkflow handles POST /api/workflows/:id/start
func (h *Handlers) StartWorkflow(c *gin.Context) {
	workflowID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid workflow id")
		return
	}

	var req StartWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	publicID, err := h.engine.StartInstance(c.Request.Context(), workflowID, req.Variables, req.StartedBy)
	if err != nil {
		fail(c, statusFor(err), err.Error())
		return
	}

	ok(c, http.StatusCreated, gin.H{"instance_id": publicID})
}

// GetInstance handles GET /api/instances/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	instance, err := h.instanceRepo.GetByPublicID(c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if instance == nil {
		fail(c, http.StatusNotFound, "instance not found")
		return
	}
	ok(c, http.StatusOK, instance)
}

// CompleteInstance handles POST /api/instances/:id/complete
func (h *Handlers) CompleteInstance(c *gin.Context) {
	if err := h.engine.CompleteInstance(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, statusFor(err), err.Error())
		return
	}
	ok(c, http.StatusOK, nil)
}

// CancelInstance handles POST /api/instances/:id/cancel
func (h *Handlers) CancelInstance(c *gin.Context) {
	if err := h.engine.CancelInstance(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, statusFor(err), err.Error())
		return
	}
	ok(c, http.StatusOK, nil)
}

// PaymentApprovalRequest is the body for POST /api/payments
type PaymentApprovalRequest struct {
	PaymentRef  string  `json:"payment_ref" binding:"required"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	RequestedBy string  `json:"requested_by" binding:"required"`
}

// RequestPaymentApproval handles POST /api/payments
func (h *Handlers) RequestPaymentApproval(c *gin.Context) {
	var req PaymentApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.approvalService.RequestPaymentApproval(
		c.Request.Context(), req.PaymentRef, req.Amount, req.RequestedBy)
	if err != nil {
		fail(c, statusFor(err), err.Error())
		return
	}

	ok(c, http.StatusCreated, created)
}

// GetPaymentApproval handles GET /api/payments/:id
func (h *Handlers) GetPaymentApproval(c *gin.Context) {
	req, err := h.approvalService.Get(c.Param("id"))
	if err != nil {
		fail(c, statusFor(err), err.Error())
		return
	}
	ok(c, http.StatusOK, req)
}

// ApprovalActionRequest is the body for approve/reject actions
type ApprovalActionRequest struct {
	ApproverID string `json:"approver_id" binding:"required"`
	Comment    string `json:"comment"`
}

// ApprovePayment handles POST /api/payments/:id/approve
func (h *Handlers) ApprovePayment(c *gin.Context) {
	var req ApprovalActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.approvalService.Approve(c.Request.Context(), c.Param("id"), req.ApproverID, req.Comment); err != nil {
		fail(c, statusFor(err), err.Error())
		return
	}
	ok(c, http.StatusOK, nil)
}

// RejectPayment handles POST /api/payments/:id/reject
func (h *Handlers) RejectPayment(c *gin.Context) {
	var req ApprovalActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.approvalService.Reject(c.Request.Context(), c.Param("id"), req.ApproverID, req.Comment); err != nil {
		fail(c, statusFor(err), err.Error())
		return
	}
	ok(c, http.StatusOK, nil)
}

// CreateFilingRequest is the body for POST /api/filings
type CreateFilingRequest struct {
	FilingRef  string    `json:"filing_ref" binding:"required"`
	ClientID   int64     `json:"client_id" binding:"required"`
	FilingType string    `json:"filing_type" binding:"required"`
	Amount     float64   `json:"amount" binding:"required,gt=0"`
	DueDate    time.Time `json:"due_date" binding:"required"`
}

// CreateFiling handles POST /api/filings
func (h *Handlers) CreateFiling(c *gin.Context) {
	var req CreateFilingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	filing := &models.ComplianceFiling{
		FilingRef:  req.FilingRef,
		ClientID:   req.ClientID,
		FilingType: req.FilingType,
		Amount:     req.Amount,
		DueDate:    req.DueDate,
		Status:     models.FilingStatusPending,
	}
	if err := h.filingRepo.Create(nil, filing); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	ok(c, http.StatusCreated, filing)
}

// GetFiling handles GET /api/filings/:id
func (h *Handlers) GetFiling(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid filing id")
		return
	}

	filing, err := h.filingRepo.GetByID(id)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if filing == nil {
		fail(c, http.StatusNotFound, "filing not found")
		return
	}
	ok(c, http.StatusOK, filing)
}

// MarkFilingFiled handles POST /api/filings/:id/file
func (h *Handlers) MarkFilingFiled(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid filing id")
		return
	}

	filing, err := h.filingRepo.GetByID(id)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if filing == nil {
		fail(c, http.StatusNotFound, "filing not found")
		return
	}

	if err := h.filingRepo.MarkFiled(nil, id, time.Now()); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, http.StatusOK, nil)
}

// OpenConversationRequest is the body for POST /api/conversations
type OpenConversationRequest struct {
	ClientID int64  `json:"client_id" binding:"required"`
	Subject  string `json:"subject" binding:"required"`
	Priority string `json:"priority"`
}

// OpenConversation handles POST /api/conversations
func (h *Handlers) OpenConversation(c *gin.Context) {
	var req OpenConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	conv := &models.Conversation{
		ClientID: req.ClientID,
		Subject:  req.Subject,
		Priority: models.Priority(req.Priority),
	}
	if err := h.escalator.RouteNew(c.Request.Context(), conv); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	ok(c, http.StatusCreated, conv)
}

// GetConversation handles GET /api/conversations/:id, including its
// escalation history
func (h *Handlers) GetConversation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid conversation id")
		return
	}

	conv, err := h.conversationRepo.GetByID(id)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if conv == nil {
		fail(c, http.StatusNotFound, "conversation not found")
		return
	}

	escalations, err := h.conversationRepo.ListEscalations(id)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	ok(c, http.StatusOK, gin.H{
		"conversation": conv,
		"escalations":  escalations,
	})
}

// ResolveConversationRequest is the body for POST /api/conversations/:id/resolve
type ResolveConversationRequest struct {
	Status string `json:"status"`
}

// ResolveConversation handles POST /api/conversations/:id/resolve
func (h *Handlers) ResolveConversation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid conversation id")
		return
	}

	var req ResolveConversationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	status := req.Status
	if status == "" {
		status = models.ConversationStatusResolved
	}
	if status != models.ConversationStatusResolved && status != models.ConversationStatusClosed {
		fail(c, http.StatusBadRequest, "status must be RESOLVED or CLOSED")
		return
	}

	conv, err := h.conversationRepo.GetByID(id)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if conv == nil {
		fail(c, http.StatusNotFound, "conversation not found")
		return
	}
	if conv.Status != models.ConversationStatusOpen {
		fail(c, http.StatusConflict, "conversation is not open")
		return
	}

	if err := h.conversationRepo.Resolve(nil, id, status, time.Now()); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, http.StatusOK, nil)
}

// RunJob handles POST /api/jobs/:name/run
func (h *Handlers) RunJob(c *gin.Context) {
	job, found := h.jobs[c.Param("name")]
	if !found {
		fail(c, http.StatusNotFound, "unknown job")
		return
	}

	if err := job.RunNow(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, http.StatusOK, nil)
}

// WebhookTrigger handles POST /webhook/triggers/*path. The body, if any,
// is passed to the started instance as variables.
func (h *Handlers) WebhookTrigger(c *gin.Context) {
	var variables map[string]interface{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&variables); err != nil {
			fail(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	publicID, err := h.evaluator.StartFromWebhook(
		c.Request.Context(), c.Param("path"), variables, "webhook")
	if err != nil {
		h.logger.Warn("Webhook trigger rejected",
			zap.String("path", c.Param("path")),
			zap.Error(err))
		fail(c, http.StatusNotFound, err.Error())
		return
	}

	ok(c, http.StatusAccepted, gin.H{"instance_id": publicID})
}
