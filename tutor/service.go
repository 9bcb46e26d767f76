package tutor

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stemtutor/tutorflow/checkpoint"
	"github.com/stemtutor/tutorflow/collab"
	"github.com/stemtutor/tutorflow/config"
	"github.com/stemtutor/tutorflow/ratelimit"
	"github.com/stemtutor/tutorflow/types"
	"github.com/stemtutor/tutorflow/workflow"
)

// Public session statuses in API responses.
const (
	StatusCompleted              = "completed"
	StatusRequiresClarification  = "requires_clarification"
	StatusRequiresDisambiguation = "requires_disambiguation"
	StatusError                  = "error"
	StatusRunning                = "running"
)

// AnalyzeRequest starts a tutoring session. Exactly one of Text and
// ImageB64 must be set.
type AnalyzeRequest struct {
	Identity string `json:"identity"`
	Tier     string `json:"tier,omitempty"`
	Text     string `json:"text,omitempty"`
	ImageB64 string `json:"image_b64,omitempty"`

	// SessionID optionally names the session; one is generated when empty.
	SessionID string `json:"session_id,omitempty"`
}

// ResumeRequest answers a suspended session's question.
type ResumeRequest struct {
	SessionID string `json:"session_id"`

	// Topic is the learner's chosen or confirmed topic.
	Topic string `json:"topic"`

	// Text optionally restates the problem, for clarification answers.
	Text string `json:"text,omitempty"`
}

// SessionResult is the public view of a session after a run or resume.
type SessionResult struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`

	// HaltedAwaitingInput is true while the session is suspended on a
	// clarification or disambiguation question.
	HaltedAwaitingInput bool `json:"halted_awaiting_input"`

	Topic      string   `json:"topic,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
	Message    string   `json:"message,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	Content    string   `json:"content,omitempty"`

	Solution *collab.WorkedSolution `json:"solution,omitempty"`
	Media    *collab.MediaRef       `json:"media,omitempty"`
}

// Metrics counts session outcomes. Satisfied by metrics.Collector.
type Metrics interface {
	RecordSession(outcome string)
	RecordResume(outcome string)
}

// Service is the application facade: it gates requests through the rate
// limiter and drives the tutoring graph.
type Service struct {
	executor *workflow.Executor[State]
	limiter  *ratelimit.Limiter
	logger   *zap.Logger
	metrics  Metrics
}

// NewService builds the tutoring service over prepared collaborators and
// stores.
func NewService(
	adapters *collab.Adapters,
	store checkpoint.Store,
	limiter *ratelimit.Limiter,
	routing config.RoutingConfig,
	logger *zap.Logger,
) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	exec, err := workflow.NewExecutor(BuildGraph(adapters, routing), store, Merge, logger)
	if err != nil {
		return nil, err
	}

	return &Service{
		executor: exec,
		limiter:  limiter,
		logger:   logger.With(zap.String("component", "tutor")),
	}, nil
}

// WithStepObserver registers a per-step metrics callback on the executor.
func (s *Service) WithStepObserver(obs workflow.StepObserver) *Service {
	s.executor.WithObserver(obs)
	return s
}

// WithMetrics registers a session-outcome recorder.
func (s *Service) WithMetrics(m Metrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) recordSession(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordSession(outcome)
	}
}

func (s *Service) recordResume(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordResume(outcome)
	}
}

func validateAnalyze(req *AnalyzeRequest) error {
	if strings.TrimSpace(req.Identity) == "" {
		return types.NewError(types.ErrInvalidRequest, "identity is required")
	}
	hasText := strings.TrimSpace(req.Text) != ""
	hasImage := req.ImageB64 != ""
	if hasText == hasImage {
		return types.NewError(types.ErrInvalidRequest, "exactly one of text and image_b64 is required")
	}
	if hasImage {
		if _, err := base64.StdEncoding.DecodeString(req.ImageB64); err != nil {
			return types.NewError(types.ErrInvalidRequest, "image_b64 is not valid base64").WithCause(err)
		}
	}
	return nil
}

// Analyze checks the identity's quota, then runs a new session to
// completion or its first suspension point.
func (s *Service) Analyze(ctx context.Context, req *AnalyzeRequest) (*SessionResult, error) {
	if err := validateAnalyze(req); err != nil {
		return nil, err
	}

	decision, err := s.limiter.Check(ctx, req.Identity, ratelimit.Tier(req.Tier))
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, types.NewError(types.ErrRateLimitExceeded,
			fmt.Sprintf("quota of %d requests per window exhausted, retry in %ds",
				decision.Limit, decision.ResetInSeconds))
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	initial := State{
		SessionID: sessionID,
		Identity:  req.Identity,
		InputKind: InputText,
		Problem:   req.Text,
	}
	if req.ImageB64 != "" {
		initial.InputKind = InputImage
		initial.ImageB64 = req.ImageB64
	}

	s.logger.Info("starting session",
		zap.String("session_id", sessionID),
		zap.String("identity", req.Identity),
		zap.String("input_kind", string(initial.InputKind)),
	)

	res, err := s.executor.Run(ctx, sessionID, initial)
	if err != nil {
		s.recordSession(StatusError)
		return nil, err
	}
	out := s.toResult(res)
	s.recordSession(out.Status)
	return out, nil
}

// Resume answers a suspended session's question. The override carries the
// learner's topic at full confidence, so the route re-evaluates into the
// teaching branch.
func (s *Service) Resume(ctx context.Context, req *ResumeRequest) (*SessionResult, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "session_id is required")
	}
	if strings.TrimSpace(req.Topic) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "topic is required")
	}

	override := State{
		Problem: req.Text,
		Classification: &Outcome{
			Topic:      req.Topic,
			Confidence: 1.0,
			Ambiguous:  false,
		},
	}

	s.logger.Info("resuming session",
		zap.String("session_id", req.SessionID),
		zap.String("topic", req.Topic),
	)

	res, err := s.executor.Resume(ctx, req.SessionID, override)
	if err != nil {
		s.recordResume(StatusError)
		return nil, err
	}
	out := s.toResult(res)
	s.recordResume(out.Status)
	return out, nil
}

// GetState returns the public view of a session's checkpointed state.
func (s *Service) GetState(ctx context.Context, sessionID string) (*SessionResult, error) {
	state, status, err := s.executor.GetState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(sessionID, state, status), nil
}

// Quota reports the identity's remaining budget without consuming it.
func (s *Service) Quota(ctx context.Context, identity, tier string) (*ratelimit.Decision, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "identity is required")
	}
	return s.limiter.Quota(ctx, identity, ratelimit.Tier(tier))
}

// ResetQuota restores an identity's full budget.
func (s *Service) ResetQuota(ctx context.Context, identity string) error {
	if strings.TrimSpace(identity) == "" {
		return types.NewError(types.ErrInvalidRequest, "identity is required")
	}
	return s.limiter.Reset(ctx, identity)
}

func (s *Service) toResult(res *workflow.Result[State]) *SessionResult {
	return s.view(res.SessionID, res.State, res.Status)
}

func (s *Service) view(sessionID string, state State, status checkpoint.Status) *SessionResult {
	out := &SessionResult{
		SessionID:           sessionID,
		Status:              publicStatus(status),
		HaltedAwaitingInput: status.IsHalted(),
	}

	if state.Classification != nil {
		out.Topic = state.Classification.Topic
		out.Confidence = state.Classification.Confidence
	}
	if state.Pending != nil {
		out.Message = state.Pending.Prompt
		out.Candidates = state.Pending.Candidates
	}
	if status == checkpoint.StatusCompleted {
		out.Content = state.FinalOutput
		out.Solution = state.Solution
		out.Media = state.Media
	}

	return out
}

func publicStatus(status checkpoint.Status) string {
	switch status {
	case checkpoint.StatusCompleted:
		return StatusCompleted
	case checkpoint.StatusHaltedClarify:
		return StatusRequiresClarification
	case checkpoint.StatusHaltedDisambiguate:
		return StatusRequiresDisambiguation
	case checkpoint.StatusFailed:
		return StatusError
	default:
		return StatusRunning
	}
}
