package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/matcher"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/logger"
)

// MatchMode selects which engine a pipeline runs after processing.
type MatchMode string

const (
	MatchNone     MatchMode = "none"
	MatchDefault  MatchMode = "default"
	MatchAdvanced MatchMode = "advanced"
)

// PipelineRequest describes one statement file to run through the
// import lifecycle.
type PipelineRequest struct {
	Bank     models.BankType
	FileName string
	Data     []byte
	Mode     MatchMode
	// Scoring configures the advanced engine. Nil selects its defaults.
	Scoring *matcher.ScoringConfig
}

// Validate validates the request
func (r *PipelineRequest) Validate() error {
	if r.FileName == "" {
		return fmt.Errorf("file name is required")
	}
	switch r.Mode {
	case "", MatchNone, MatchDefault, MatchAdvanced:
	default:
		return fmt.Errorf("unknown match mode %q", r.Mode)
	}
	return nil
}

// PipelineResult is the outcome of one pipeline run. Process and Match
// are nil for the steps that did not run.
type PipelineResult struct {
	Import      *models.Import           `json:"import"`
	Process     *ProcessResult           `json:"process,omitempty"`
	Match       *MatchResult             `json:"match,omitempty"`
	Ambiguities []matcher.AmbiguityGroup `json:"ambiguities,omitempty"`
	Duration    time.Duration            `json:"duration"`
}

// Progress tracks the steps of a pipeline run.
type Progress struct {
	TotalSteps         int           `json:"total_steps"`
	CompletedSteps     int           `json:"completed_steps"`
	CurrentStep        string        `json:"current_step"`
	PercentComplete    float64       `json:"percent_complete"`
	StartTime          time.Time     `json:"start_time"`
	ElapsedTime        time.Duration `json:"elapsed_time"`
	EstimatedRemaining time.Duration `json:"estimated_remaining"`
	Warnings           []string      `json:"warnings,omitempty"`
}

// ProgressCallback is called after every completed step.
type ProgressCallback func(Progress)

// Orchestrator runs whole pipelines (create, process and optionally match)
// on top of an ImportService and reports step progress.
type Orchestrator struct {
	service *ImportService
	logger  logger.Logger

	progressCallbacks []ProgressCallback
	progress          Progress
	progressMutex     sync.RWMutex
}

// NewOrchestrator creates an orchestrator over service.
func NewOrchestrator(service *ImportService) (*Orchestrator, error) {
	if service == nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "create orchestrator", nil).
			WithContext("reason", "no import service")
	}
	return &Orchestrator{
		service: service,
		logger:  logger.GetGlobalLogger().WithComponent("orchestrator"),
	}, nil
}

// AddProgressCallback adds a progress callback function
func (o *Orchestrator) AddProgressCallback(callback ProgressCallback) {
	o.progressCallbacks = append(o.progressCallbacks, callback)
}

// Progress returns a snapshot of the current run.
func (o *Orchestrator) Progress() Progress {
	o.progressMutex.RLock()
	defer o.progressMutex.RUnlock()

	p := o.progress
	p.Warnings = append([]string(nil), o.progress.Warnings...)
	return p
}

// Run creates an import for req, processes it and runs the requested
// engine. The import is kept in the service even when a later step fails,
// so it can be inspected; the returned result then holds what was done.
func (o *Orchestrator) Run(ctx context.Context, req *PipelineRequest) (*PipelineResult, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.UserInputError(errors.CodeInvalidRequest, err.Error(), err)
	}

	mode := req.Mode
	if mode == "" {
		mode = MatchDefault
	}
	steps := 2
	if mode != MatchNone {
		steps = 3
	}

	start := time.Now()
	o.initializeProgress(steps, start)
	result := &PipelineResult{}
	defer func() { result.Duration = time.Since(start) }()

	log := o.logger.WithFields(logger.Fields{
		"bank": req.Bank,
		"file": req.FileName,
		"mode": mode,
	})
	log.Info("Starting import pipeline")

	imp, err := o.service.NewImport(ctx, req.Bank, req.FileName, req.Data)
	if err != nil {
		return result, err
	}
	result.Import = imp
	o.updateProgress("Import created", 1, time.Since(start))

	processed, err := o.service.Process(ctx, imp.ID)
	if err != nil {
		return result, err
	}
	result.Process = processed
	result.Import = processed.Import
	if n := len(processed.Stats.RowErrors); n > 0 {
		o.addWarning(fmt.Sprintf("%d rows could not be read", n))
	}
	o.updateProgress("File processed", 2, time.Since(start))

	if mode == MatchNone {
		log.WithField("transactions", processed.Import.TotalOperations()).Info("Import pipeline completed")
		return result, nil
	}

	var matched *MatchResult
	if mode == MatchAdvanced {
		matched, err = o.service.MatchAdvanced(ctx, imp.ID, req.Scoring)
	} else {
		matched, err = o.service.Match(ctx, imp.ID)
	}
	if err != nil {
		return result, err
	}
	result.Match = matched
	result.Import = matched.Import
	result.Ambiguities = matcher.DetectAmbiguities(matched.Import.Matches)
	if n := len(result.Ambiguities); n > 0 {
		o.addWarning(fmt.Sprintf("%d ambiguous match groups need review", n))
	}
	o.updateProgress("Transactions matched", 3, time.Since(start))

	log.WithFields(logger.Fields{
		"transactions": matched.Import.TotalOperations(),
		"matches":      len(matched.Import.Matches),
		"ambiguities":  len(result.Ambiguities),
	}).Info("Import pipeline completed")
	return result, nil
}

// RunAll runs every request in order. It stops at the first failure and
// returns the results gathered so far.
func (o *Orchestrator) RunAll(ctx context.Context, reqs []*PipelineRequest) ([]*PipelineResult, error) {
	results := make([]*PipelineResult, 0, len(reqs))
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := o.Run(ctx, req)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (o *Orchestrator) initializeProgress(steps int, start time.Time) {
	o.progressMutex.Lock()
	defer o.progressMutex.Unlock()

	o.progress = Progress{
		TotalSteps: steps,
		StartTime:  start,
	}
}

func (o *Orchestrator) updateProgress(step string, completed int, elapsed time.Duration) {
	o.progressMutex.Lock()
	o.progress.CurrentStep = step
	o.progress.CompletedSteps = completed
	o.progress.ElapsedTime = elapsed
	o.progress.PercentComplete = float64(completed) / float64(o.progress.TotalSteps) * 100
	o.progress.EstimatedRemaining = 0
	if completed > 0 && completed < o.progress.TotalSteps {
		avgTimePerStep := elapsed / time.Duration(completed)
		o.progress.EstimatedRemaining = avgTimePerStep * time.Duration(o.progress.TotalSteps-completed)
	}
	snapshot := o.progress
	o.progressMutex.Unlock()

	for _, callback := range o.progressCallbacks {
		callback(snapshot)
	}
}

func (o *Orchestrator) addWarning(message string) {
	o.progressMutex.Lock()
	defer o.progressMutex.Unlock()

	o.progress.Warnings = append(o.progress.Warnings, message)
	o.logger.Warn(message)
}
