package collab

import (
	"context"

	"go.uber.org/zap"

	"github.com/stemtutor/tutorflow/internal/retry"
	"github.com/stemtutor/tutorflow/types"
)

// Adapters bundles the resilient collaborator set a workflow graph is built
// from. Every method retries transient failures with bounded exponential
// backoff, degrades to a documented fallback on permanent failure or
// exhaustion, and never returns an error past its own boundary.
type Adapters struct {
	classifier Classifier
	plans      PlanGenerator
	solutions  SolutionGenerator
	practice   PracticeGenerator
	media      MediaFinder

	retryer *retry.Retryer
	logger  *zap.Logger
}

// NewAdapters wraps the raw collaborators with retry and fallback behavior.
// A nil policy uses the default three-attempt backoff.
func NewAdapters(
	classifier Classifier,
	plans PlanGenerator,
	solutions SolutionGenerator,
	practice PracticeGenerator,
	media MediaFinder,
	policy *retry.Policy,
	logger *zap.Logger,
) *Adapters {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = retry.DefaultPolicy()
	}
	policy.Retryable = types.IsRetryable
	return &Adapters{
		classifier: classifier,
		plans:      plans,
		solutions:  solutions,
		practice:   practice,
		media:      media,
		retryer:    retry.New(policy, logger),
		logger:     logger.With(zap.String("component", "collab_adapters")),
	}
}

// call runs fn with retries and reports whether it ultimately succeeded.
// The caller substitutes a fallback when it did not.
func (a *Adapters) call(ctx context.Context, name string, fn func() error) bool {
	err := a.retryer.Do(ctx, fn)
	if err == nil {
		return true
	}
	a.logger.Warn("collaborator call degraded to fallback",
		zap.String("call", name),
		zap.String("code", string(types.GetErrorCode(err))),
		zap.Error(err),
	)
	return false
}

// ClassifyText classifies a text problem, degrading to the fallback
// classification on failure.
func (a *Adapters) ClassifyText(ctx context.Context, problem string) *Classification {
	var result *Classification
	ok := a.call(ctx, "classify_text", func() error {
		var err error
		result, err = a.classifier.ClassifyText(ctx, problem)
		return err
	})
	if !ok || result == nil {
		return FallbackClassification()
	}
	return result
}

// ClassifyImage classifies an image problem, degrading to the fallback
// classification on failure.
func (a *Adapters) ClassifyImage(ctx context.Context, imageB64 string) *Classification {
	var result *Classification
	ok := a.call(ctx, "classify_image", func() error {
		var err error
		result, err = a.classifier.ClassifyImage(ctx, imageB64)
		return err
	})
	if !ok || result == nil {
		return FallbackClassification()
	}
	return result
}

// GeneratePlan produces a teaching plan, degrading to a placeholder.
func (a *Adapters) GeneratePlan(ctx context.Context, topic, problem string) *TeachingPlan {
	var result *TeachingPlan
	ok := a.call(ctx, "generate_plan", func() error {
		var err error
		result, err = a.plans.GeneratePlan(ctx, topic, problem)
		return err
	})
	if !ok || result == nil {
		return FallbackPlan(topic)
	}
	return result
}

// GenerateSolution produces a worked solution, degrading to a placeholder.
func (a *Adapters) GenerateSolution(ctx context.Context, topic, problem string) *WorkedSolution {
	var result *WorkedSolution
	ok := a.call(ctx, "generate_solution", func() error {
		var err error
		result, err = a.solutions.GenerateSolution(ctx, topic, problem)
		return err
	})
	if !ok || result == nil {
		return FallbackSolution()
	}
	return result
}

// GeneratePractice produces practice content, degrading to a placeholder.
func (a *Adapters) GeneratePractice(ctx context.Context, topic, problem string) *Practice {
	var result *Practice
	ok := a.call(ctx, "generate_practice", func() error {
		var err error
		result, err = a.practice.GeneratePractice(ctx, topic, problem)
		return err
	})
	if !ok || result == nil {
		return FallbackPractice(topic)
	}
	return result
}

// FindMedia locates reference media, degrading to an empty reference.
func (a *Adapters) FindMedia(ctx context.Context, topic string) *MediaRef {
	var result *MediaRef
	ok := a.call(ctx, "find_media", func() error {
		var err error
		result, err = a.media.FindMedia(ctx, topic)
		return err
	})
	if !ok || result == nil {
		return FallbackMedia()
	}
	return result
}
