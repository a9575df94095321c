// Package pipeline orchestrates the incident enrichment sequence: validate
// the raw stack trace, obtain a structured diagnosis from the completion
// service, resolve commit attribution, persist an audit row, summarize the
// collected history, and hand the composed report to the notifier.
//
// Only the validation and diagnosis stages are fatal. Every later stage is
// best-effort: its failure is logged and the incident still completes.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/stacksentry/stacksentry/api/schemas"
	"github.com/stacksentry/stacksentry/internal/attribution"
	"github.com/stacksentry/stacksentry/internal/audit"
	"github.com/stacksentry/stacksentry/internal/config"
	"github.com/stacksentry/stacksentry/internal/diagnosis"
	"github.com/stacksentry/stacksentry/internal/report"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HistorySummaryUnavailable replaces the commit-history summary when the
// second completion call fails.
const HistorySummaryUnavailable = "history summary unavailable"

// Result is the ingress-facing outcome of a processed incident.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Deps are the injected collaborators. Notifier may be nil when no
// notification channel is configured.
type Deps struct {
	LLM      schemas.LLMClient
	Resolver *attribution.Resolver
	Recorder *audit.Recorder
	Notifier schemas.Notifier
	Logger   *zap.Logger
}

// Pipeline processes incidents. Invocations are stateless and safe to run
// concurrently; the only shared resource is the audit store, which
// serializes its own appends.
type Pipeline struct {
	llm          schemas.LLMClient
	resolver     *attribution.Resolver
	recorder     *audit.Recorder
	notifier     schemas.Notifier
	logger       *zap.Logger
	cfg          config.PipelineConfig
	systemPrompt string
}

// New builds a Pipeline. systemPrompt overrides the built-in diagnosis
// prompt when non-empty.
func New(deps Deps, cfg config.PipelineConfig, systemPrompt string) (*Pipeline, error) {
	if deps.LLM == nil {
		return nil, fmt.Errorf("pipeline requires an LLM client")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("pipeline requires an attribution resolver")
	}
	if deps.Recorder == nil {
		return nil, fmt.Errorf("pipeline requires an audit recorder")
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	return &Pipeline{
		llm:          deps.LLM,
		resolver:     deps.Resolver,
		recorder:     deps.Recorder,
		notifier:     deps.Notifier,
		logger:       deps.Logger.Named("pipeline"),
		cfg:          cfg,
		systemPrompt: systemPrompt,
	}, nil
}

// ProcessIncident runs one incident through the full enrichment sequence.
// It returns an error only for a missing stack trace or an unrecoverable
// diagnosis; everything past the diagnosis stage degrades gracefully.
func (p *Pipeline) ProcessIncident(ctx context.Context, stacktrace, appName string) (*Result, error) {
	if strings.TrimSpace(stacktrace) == "" {
		return nil, schemas.NewInvalidInput("missing required field: stacktrace")
	}
	if appName == "" {
		appName = p.cfg.AppName
	}

	incidentID := newIncidentID()
	logger := p.logger.With(zap.String("incident_id", incidentID), zap.String("app", appName))
	logger.Info("Incident received", zap.Int("stacktrace_bytes", len(stacktrace)))

	// Diagnosis is the one enrichment the report cannot exist without; a
	// failure here aborts the incident.
	diag, err := p.diagnose(ctx, stacktrace)
	if err != nil {
		logger.Error("Diagnosis failed", zap.Error(err))
		return nil, err
	}
	logger.Info("Diagnosis obtained",
		zap.String("error_type", diag.ErrorType),
		zap.Int("implicated_files", len(diag.Files)),
	)

	ref := schemas.RepoRef{Owner: p.cfg.RepoOwner, Repo: p.cfg.RepoName}

	attr, err := p.resolver.Resolve(ctx, diag.Files, ref)
	if err != nil {
		// Typically an empty file list from the model; proceed without
		// attribution.
		logger.Warn("Attribution skipped", zap.Error(err))
		attr = &schemas.Attribution{Files: []schemas.FileCommits{}}
	}

	row := p.buildAuditRow(incidentID, ref, diag, attr)
	if err := p.recorder.Append(row); err != nil {
		logger.Error("Failed to append audit row", zap.Error(err))
	}

	historySummary := p.summarizeHistory(ctx, attr, logger)

	text := report.Compose(appName, diag, historySummary)
	if p.notifier == nil {
		logger.Warn("No notifier configured; report not delivered")
	} else if err := p.notifier.Notify(ctx, text); err != nil {
		logger.Error("Failed to deliver notification", zap.Error(err))
	}

	logger.Info("Incident processed")
	return &Result{Success: true, Message: "Incident processed"}, nil
}

func (p *Pipeline) diagnose(ctx context.Context, stacktrace string) (*schemas.Diagnosis, error) {
	raw, err := p.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: p.systemPrompt,
		UserPrompt:   stacktrace,
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("completion service failed: %w", err)
	}

	return diagnosis.Extract(raw)
}

// summarizeHistory asks the completion service for a chronological
// summary of the collected commit data. Any failure, or an attribution
// with no commits at all, yields the fixed placeholder instead.
func (p *Pipeline) summarizeHistory(ctx context.Context, attr *schemas.Attribution, logger *zap.Logger) string {
	if !hasCommits(attr) {
		return HistorySummaryUnavailable
	}

	payload, err := json.MarshalToString(attr)
	if err != nil {
		logger.Error("Failed to serialize commit data for summary", zap.Error(err))
		return HistorySummaryUnavailable
	}

	summary, err := p.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: historySummarySystemPrompt,
		UserPrompt:   payload,
		Tier:         schemas.TierFast,
		Options:      schemas.GenerationOptions{Temperature: 0.3},
	})
	if err != nil {
		logger.Warn("History summary generation failed; using placeholder", zap.Error(err))
		return HistorySummaryUnavailable
	}
	return strings.TrimSpace(summary)
}

func (p *Pipeline) buildAuditRow(incidentID string, ref schemas.RepoRef, diag *schemas.Diagnosis, attr *schemas.Attribution) schemas.AuditRow {
	primaryFile := ""
	var primaryCommits []schemas.CommitRecord
	if len(attr.Files) > 0 {
		primaryFile = attr.Files[0].Path
		primaryCommits = attr.Files[0].Commits
	}

	return schemas.AuditRow{
		IncidentID:   incidentID,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Repo:         ref.String(),
		File:         primaryFile,
		Line:         diag.LineNumber,
		ErrorName:    diag.ErrorType,
		ErrorMessage: diag.ErrorMessage,
		TopFrame:     diag.TopFrame,
		OwnersTop3:   ownersSummary(attr.PrimaryOwners),
		CommitList:   commitSummary(primaryCommits),
		SlackText:    diag.Summary,
	}
}

// ownersSummary renders the ranking as pipe-delimited "author:count".
func ownersSummary(ranking *schemas.OwnerRanking) string {
	if ranking == nil {
		return ""
	}
	parts := make([]string, 0, len(ranking.TopAuthors))
	for _, a := range ranking.TopAuthors {
		parts = append(parts, fmt.Sprintf("%s:%d", a.Author, a.CommitCount))
	}
	return strings.Join(parts, "|")
}

// commitSummary renders the primary file's commits as semicolon-delimited
// "shortSha:firstMessageLine@author".
func commitSummary(commits []schemas.CommitRecord) string {
	parts := make([]string, 0, len(commits))
	for _, c := range commits {
		message := c.Message
		if i := strings.IndexByte(message, '\n'); i >= 0 {
			message = message[:i]
		}
		parts = append(parts, fmt.Sprintf("%s:%s@%s", c.ShortSHA, message, c.Author))
	}
	return strings.Join(parts, ";")
}

func hasCommits(attr *schemas.Attribution) bool {
	for _, f := range attr.Files {
		if len(f.Commits) > 0 {
			return true
		}
	}
	return false
}

// newIncidentID prefers a UUID and falls back to a millisecond timestamp
// when the system entropy source fails.
func newIncidentID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	return id.String()
}
