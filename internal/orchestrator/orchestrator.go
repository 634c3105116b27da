// Package orchestrator runs one outbound call request from validation through
// dispatch, audit logging and event publication.
package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/callify-backend/internal/analysis"
	"github.com/JakeFAU/callify-backend/internal/bland"
	"github.com/JakeFAU/callify-backend/internal/callify"
	"github.com/JakeFAU/callify-backend/internal/logging"
	"github.com/JakeFAU/callify-backend/internal/quota"
	"github.com/JakeFAU/callify-backend/internal/script"
	"github.com/JakeFAU/callify-backend/internal/telemetry"
)

// UnknownClient identifies callers whose address could not be determined.
const UnknownClient = "unknown"

// sideEffectTimeout bounds the call log write and event publish that follow a
// dispatch.
const sideEffectTimeout = 10 * time.Second

// QuotaGate admits or denies a call for an identity.
type QuotaGate interface {
	CheckAndConsume(ctx context.Context, identity string, today time.Time) quota.Decision
}

// AnalysisResolver finds the newest stored analysis for a website.
type AnalysisResolver interface {
	ResolveLatest(ctx context.Context, websiteURL string) *callify.AnalysisRecord
}

// ScriptSynthesizer produces the task text for a call.
type ScriptSynthesizer interface {
	Synthesize(targetName, businessNameHint string, rec *callify.AnalysisRecord) script.Script
	Preview(text string) string
}

// Deps are the collaborators of an Orchestrator. Publisher may be nil.
type Deps struct {
	Gate      QuotaGate
	Resolver  AnalysisResolver
	Scripts   ScriptSynthesizer
	Voice     callify.VoiceProvider
	CallLogs  callify.CallLogStore
	Publisher callify.Publisher
	Clock     callify.Clock
}

// Config controls event publication.
type Config struct {
	Topic string
}

// Orchestrator places outbound calls.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer
}

// New constructs an Orchestrator.
func New(deps Deps, cfg Config, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: logging.OrNop(logger),
		tracer: telemetry.Tracer("orchestrator"),
	}
}

// PlaceCall validates req, charges the caller's daily quota, builds the call
// script and dispatches the call. Audit logging and event publication failures
// are logged and do not fail the request.
func (o *Orchestrator) PlaceCall(ctx context.Context, req callify.CallRequest, clientAddr string) (callify.CallResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.PlaceCall")
	defer span.End()

	req = req.Trimmed()
	identity := clientAddr
	if identity == "" {
		identity = UnknownClient
	}
	logger := o.logger.With(zap.String("client", identity), zap.String("website_url", req.WebsiteURL))

	if err := validate(req); err != nil {
		telemetry.ObserveCall(telemetry.CallRejected)
		span.SetStatus(codes.Error, "invalid request")
		return callify.CallResult{}, err
	}

	decision := o.checkQuota(ctx, identity)
	span.SetAttributes(
		attribute.Int("quota.current", decision.Current),
		attribute.Int("quota.limit", decision.Limit),
		attribute.Bool("quota.fail_open", decision.FailOpen),
	)
	if !decision.Allowed {
		logger.Info("call rejected by quota", zap.Int("current", decision.Current), zap.Int("limit", decision.Limit))
		telemetry.ObserveCall(telemetry.CallRateLimited)
		span.SetStatus(codes.Error, "rate limited")
		return callify.CallResult{}, decision.Err()
	}

	task := o.buildScript(ctx, req)
	logger.Info("dispatching call",
		zap.String("script_source", string(task.Source)),
		zap.String("business_name", task.BusinessName),
		zap.String("script_preview", o.deps.Scripts.Preview(task.Text)),
	)

	// The provider may act before it answers; dispatch and its audit trail
	// outlive the client's request.
	placed := context.WithoutCancel(ctx)
	result, err := o.dispatch(placed, req.PhoneNumber, task.Text)
	if err != nil {
		logger.Error("call dispatch failed", zap.Error(err))
		telemetry.ObserveCall(telemetry.CallFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		return callify.CallResult{}, err
	}
	span.SetAttributes(attribute.String("call.id", result.CallID))

	sideCtx, cancel := context.WithTimeout(placed, sideEffectTimeout)
	defer cancel()
	o.logCall(sideCtx, req, result, identity, logger)
	o.publish(sideCtx, req, result, identity, logger)

	logger.Info("call dispatched", zap.String("call_id", result.CallID), zap.String("status", result.Status))
	telemetry.ObserveCall(telemetry.CallDispatched)
	return result, nil
}

// CallStatus returns the provider's current view of callID.
func (o *Orchestrator) CallStatus(ctx context.Context, callID string) (callify.CallStatus, error) {
	if callID == "" {
		return callify.CallStatus{}, &callify.ValidationError{Title: "Missing required parameters", Message: "Call ID is required"}
	}
	ctx, span := o.tracer.Start(ctx, "orchestrator.CallStatus", trace.WithAttributes(attribute.String("call.id", callID)))
	defer span.End()
	status, err := o.deps.Voice.CallStatus(ctx, callID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status lookup failed")
		return callify.CallStatus{}, err
	}
	return status, nil
}

func validate(req callify.CallRequest) error {
	if req.Name == "" || req.PhoneNumber == "" || req.WebsiteURL == "" {
		return &callify.ValidationError{
			Title:   "Missing required parameters",
			Message: "Name, phone number, and website URL are required",
		}
	}
	if !bland.ValidPhone(req.PhoneNumber) {
		return &callify.ValidationError{
			Title:   "Invalid phone number",
			Message: "Please provide a valid phone number",
		}
	}
	return nil
}

func (o *Orchestrator) checkQuota(ctx context.Context, identity string) quota.Decision {
	ctx, span := o.tracer.Start(ctx, "orchestrator.checkQuota")
	defer span.End()
	return o.deps.Gate.CheckAndConsume(ctx, identity, o.deps.Clock.Now())
}

func (o *Orchestrator) buildScript(ctx context.Context, req callify.CallRequest) script.Script {
	ctx, span := o.tracer.Start(ctx, "orchestrator.buildScript")
	defer span.End()
	rec := o.deps.Resolver.ResolveLatest(ctx, req.WebsiteURL)
	task := o.deps.Scripts.Synthesize(req.Name, analysis.ExtractDomain(req.WebsiteURL), rec)
	span.SetAttributes(attribute.String("script.source", string(task.Source)))
	return task
}

func (o *Orchestrator) dispatch(ctx context.Context, phone, text string) (callify.CallResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.dispatch")
	defer span.End()
	result, err := o.deps.Voice.Dispatch(ctx, phone, text)
	if err != nil {
		span.RecordError(err)
	}
	return result, err
}

func (o *Orchestrator) logCall(ctx context.Context, req callify.CallRequest, result callify.CallResult, identity string, logger *zap.Logger) {
	rec := callify.CallLogRecord{
		Name:          req.Name,
		PhoneNumber:   req.PhoneNumber,
		WebsiteURL:    req.WebsiteURL,
		CallID:        result.CallID,
		Status:        result.Status,
		ClientAddress: identity,
	}
	if _, err := o.deps.CallLogs.AppendCallLog(ctx, rec); err != nil {
		logger.Error("call log write failed", zap.String("call_id", result.CallID), zap.Error(err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, req callify.CallRequest, result callify.CallResult, identity string, logger *zap.Logger) {
	if o.deps.Publisher == nil {
		return
	}
	event := callify.CallEvent{
		Event:         callify.EventCallDispatched,
		CallID:        result.CallID,
		Status:        result.Status,
		WebsiteURL:    req.WebsiteURL,
		ClientAddress: identity,
		Timestamp:     o.deps.Clock.Now(),
	}
	if _, err := o.deps.Publisher.Publish(ctx, o.cfg.Topic, event); err != nil {
		logger.Warn("call event publish failed", zap.String("call_id", result.CallID), zap.Error(err))
	}
}
