// Package run implements the phase orchestrator for the stagehand workflow.
package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chesapeakedev/stagehand/internal/agent"
	"github.com/chesapeakedev/stagehand/internal/config"
	"github.com/chesapeakedev/stagehand/internal/db"
	"github.com/chesapeakedev/stagehand/internal/plan"
	"github.com/chesapeakedev/stagehand/internal/term"
	"github.com/chesapeakedev/stagehand/internal/vcs"
	"github.com/chesapeakedev/stagehand/internal/workitem"
	"github.com/rs/zerolog/log"
)

// Mode selects how much of the workflow a run owns.
type Mode string

const (
	// ModeFull manages the branch, commits, pushes, and opens a pull request.
	ModeFull Mode = "full"
	// ModeLocal only edits the workspace, leaving VCS actions to the caller.
	ModeLocal Mode = "local"
)

// ErrBlocked marks a run aborted because the agent reported it could not
// proceed at all.
var ErrBlocked = errors.New("agent reported a blocking error")

// ErrDirtyTree marks a run refused because the working tree had uncommitted
// changes before branch creation.
var ErrDirtyTree = errors.New("working tree has uncommitted changes")

// ErrRunInProgress marks a branch-managing run refused because another one
// holds the run lock.
var ErrRunInProgress = errors.New("another run is already in progress")

// ErrPreservation marks a run aborted because the implement phase altered
// authored plan content outside the checklist.
var ErrPreservation = errors.New("plan file authored content was modified")

// Request describes one orchestrator invocation.
type Request struct {
	// Reference is the work item input: an issue number, a GitHub issue or
	// PR URL, or a local document path. Optional for implement-only runs
	// against an existing plan.
	Reference string
	// PlanName selects the plan file (without the .plan.md suffix). When
	// empty the orchestrator prompts, defaulting to the active branch name.
	PlanName string
	Mode     Mode
	// DoPlan and DoImplement select the phases to run.
	DoPlan      bool
	DoImplement bool
	KeepDebug   bool
}

// Outcome summarizes a finished run.
type Outcome struct {
	RunID      string
	PlanPath   string
	Branch     string
	Completion plan.Completion
	// Status is one of planned, complete, incomplete.
	Status string
	// ResumeCommand is the exact command to re-run for an incomplete plan.
	// Re-invocation is the sole retry mechanism: the orchestrator never
	// loops internally.
	ResumeCommand  string
	PullRequestURL string
}

// Runner drives the workflow state machine for one run.
type Runner struct {
	repoRoot     string
	stagehandDir string
	cfg          config.Config
	store        *db.Store
	agent        agent.Runner
	source       workitem.Source
	decider      term.Decider
}

// New constructs a Runner. store and source may be nil: history recording is
// skipped without a store, and remote work items fail to resolve without a
// source.
func New(repoRoot string, cfg config.Config, store *db.Store, agentRunner agent.Runner, source workitem.Source, decider term.Decider) *Runner {
	return &Runner{
		repoRoot:     repoRoot,
		stagehandDir: filepath.Join(repoRoot, ".stagehand"),
		cfg:          cfg,
		store:        store,
		agent:        agentRunner,
		source:       source,
		decider:      decider,
	}
}

// Run executes the workflow for the request. Fatal errors carry the scratch
// directory path so a failed agent invocation stays inspectable.
func (r *Runner) Run(ctx context.Context, req Request) (out Outcome, err error) {
	rc, err := NewRunContext(r.stagehandDir, req.KeepDebug)
	if err != nil {
		return out, err
	}
	out.RunID = rc.ID
	startedAt := time.Now()

	keepForInspection := false
	defer func() {
		if err != nil {
			// Failed agent invocations must stay inspectable.
			err = fmt.Errorf("%w (debug files: %s)", err, rc.Dir)
			keepForInspection = true
		}
		if !keepForInspection {
			rc.Cleanup()
		}
		log.Info().
			Str("run_id", rc.ID).
			Str("status", out.Status).
			Dur("duration", time.Since(startedAt)).
			Msg("run finished")
	}()
	if req.KeepDebug {
		keepForInspection = true
	}

	if req.Mode == ModeFull {
		lock, held, lockErr := TryAcquireRunLock(r.stagehandDir)
		if lockErr != nil {
			return out, lockErr
		}
		if !held {
			return out, ErrRunInProgress
		}
		defer func() { _ = lock.Release() }()
	}

	defer func() {
		if err != nil {
			r.recordFinish(ctx, rc.ID, "failed", out, err)
		}
	}()

	item, err := r.resolveWorkItem(ctx, req)
	if err != nil {
		return out, err
	}

	r.recordStart(ctx, rc, req, item)

	var vcsCtx *vcs.Context
	if req.Mode == ModeFull {
		vcsCtx, err = r.prepareVcs(ctx, item)
		if err != nil {
			return out, err
		}
		out.Branch = vcsCtx.Branch
		defer func() {
			if err != nil {
				r.maybeCleanupBranch(ctx, vcsCtx)
			}
		}()
	}

	planPath, err := r.resolvePlanPath(ctx, req, vcsCtx, item)
	if err != nil {
		return out, err
	}
	out.PlanPath = planPath

	if req.DoPlan {
		if err := r.planPhase(ctx, rc, req, item, planPath, vcsCtx); err != nil {
			return out, err
		}
	}

	doc, err := plan.Load(planPath)
	if err != nil {
		return out, fmt.Errorf("load plan %s: %w", planPath, err)
	}
	if err := doc.ValidateStructure(); err != nil {
		return out, fmt.Errorf("plan %s: %w", planPath, err)
	}

	if req.DoPlan && req.Mode == ModeFull {
		r.syncItemDescription(ctx, item, doc)
	}

	if !req.DoImplement {
		out.Status = "planned"
		out.Completion = doc.ComputeCompletion()
		out.ResumeCommand = resumeCommand(planPath)
		r.recordFinish(ctx, rc.ID, out.Status, out, nil)
		return out, nil
	}

	updated, err := r.implementPhase(ctx, rc, doc, planPath)
	if err != nil {
		return out, err
	}

	out.Completion = updated.ComputeCompletion()
	if out.Completion.Complete() {
		out.Status = "complete"
		if req.Mode == ModeFull {
			// The plan has served its purpose as a checkpoint and would
			// otherwise go stale.
			if err := os.Remove(planPath); err != nil {
				log.Warn().Err(err).Str("plan", planPath).Msg("failed to remove completed plan")
			}
		}
	} else {
		out.Status = "incomplete"
		out.ResumeCommand = resumeCommand(planPath)
	}

	r.lintBestEffort(ctx)
	r.artifactsBestEffort(ctx)

	prURL, err := r.validateAndPublish(ctx, req, item, vcsCtx)
	if err != nil {
		return out, err
	}
	out.PullRequestURL = prURL

	r.recordFinish(ctx, rc.ID, out.Status, out, nil)
	return out, nil
}

// resolveWorkItem classifies the input reference and resolves it. An
// implement-only run without a reference falls back to the plan file's own
// metadata and title, so resuming never requires the original reference.
func (r *Runner) resolveWorkItem(ctx context.Context, req Request) (*workitem.WorkItem, error) {
	if req.Reference == "" {
		if req.DoPlan {
			return nil, errors.New("a work item reference is required")
		}
		return r.itemFromPlan(req)
	}

	ref, err := workitem.ParseReference(req.Reference)
	if err != nil {
		return nil, err
	}
	resolver := workitem.NewResolver(r.source, originOwner(ctx, r.repoRoot), originRepo(ctx, r.repoRoot))
	item, err := resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve work item %q: %w", req.Reference, err)
	}
	return item, nil
}

func (r *Runner) itemFromPlan(req Request) (*workitem.WorkItem, error) {
	if req.PlanName == "" {
		return nil, errors.New("a plan name is required to resume without a work item reference")
	}
	doc, err := plan.Load(r.planPath(req.PlanName))
	if err != nil {
		return nil, fmt.Errorf("load plan for resume: %w", err)
	}
	item := &workitem.WorkItem{Title: doc.Title()}
	if n, convErr := strconv.Atoi(doc.ReadMetadata().Item); convErr == nil {
		item.Number = n
	}
	return item, nil
}

// prepareVcs detects the backend, refuses a dirty tree, and creates or
// reuses the working branch.
func (r *Runner) prepareVcs(ctx context.Context, item *workitem.WorkItem) (*vcs.Context, error) {
	backend, err := vcs.Detect(ctx, r.repoRoot)
	if err != nil {
		return nil, err
	}
	clean, err := backend.IsClean(ctx)
	if err != nil {
		return nil, err
	}
	if !clean {
		return nil, ErrDirtyTree
	}
	return vcs.PrepareBranch(ctx, backend, item, r.decider)
}

func (r *Runner) planPath(name string) string {
	return filepath.Join(r.repoRoot, r.cfg.PlansDir, name+".plan.md")
}

// resolvePlanPath picks the plan file path, prompting with the active branch
// name as default when no explicit name was supplied.
func (r *Runner) resolvePlanPath(ctx context.Context, req Request, vcsCtx *vcs.Context, item *workitem.WorkItem) (string, error) {
	name := req.PlanName
	if name == "" {
		def := ""
		if vcsCtx != nil {
			def = strings.TrimPrefix(vcsCtx.Branch, vcs.BranchPrefix)
		} else if backend, err := vcs.Detect(ctx, r.repoRoot); err == nil {
			if branch, err := backend.CurrentBranch(ctx); err == nil {
				def = strings.TrimPrefix(branch, vcs.BranchPrefix)
			}
		}
		if def == "" && item != nil {
			def = strings.TrimPrefix(vcs.BranchName(item), vcs.BranchPrefix)
		}
		var err error
		name, err = r.decider.Input("Plan name", def)
		if err != nil {
			return "", err
		}
		if name == "" {
			return "", errors.New("no plan name chosen")
		}
	}
	path := r.planPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create plans dir: %w", err)
	}
	return path, nil
}

// planPhase runs the agent under the restricted profile and validates the
// produced plan file. Either a non-zero exit or an invalid structure is
// fatal: no implement phase runs on an invalid plan.
func (r *Runner) planPhase(ctx context.Context, rc *RunContext, req Request, item *workitem.WorkItem, planPath string, vcsCtx *vcs.Context) error {
	continuation := ""
	if req.Mode == ModeLocal {
		if raw, err := os.ReadFile(planPath); err == nil {
			cont, err := r.decider.Confirm(fmt.Sprintf("Plan %s already exists. Continue it?", planPath), true)
			if err != nil {
				return err
			}
			if !cont {
				return fmt.Errorf("plan %s already exists", planPath)
			}
			continuation = string(raw)
		}
	}

	promptPath, err := rc.WritePrompt("plan.md", planPrompt(item, planPath, continuation))
	if err != nil {
		return err
	}

	log.Info().Str("plan", planPath).Msg("running plan phase")
	res, err := r.agent.Run(ctx, agent.PhasePlan, promptPath, r.repoRoot)
	if err != nil {
		return fmt.Errorf("plan phase: %w", err)
	}
	stdoutPath, stderrPath, err := rc.WriteLogs("plan", res.Stdout, res.Stderr)
	if err != nil {
		return err
	}
	r.recordPhase(ctx, rc.ID, "plan", res, planPath)
	if res.ExitCode != 0 {
		return fmt.Errorf("plan agent exited with code %d (prompt: %s, stdout: %s, stderr: %s)",
			res.ExitCode, promptPath, stdoutPath, stderrPath)
	}
	if excerpt, found := agent.DetectBlockingError(res.Stdout, res.Stderr); found {
		return fmt.Errorf("%w during plan phase: %s", ErrBlocked, excerpt)
	}

	doc, err := plan.Load(planPath)
	if err != nil {
		return fmt.Errorf("plan agent did not produce %s: %w", planPath, err)
	}
	if err := doc.ValidateStructure(); err != nil {
		return fmt.Errorf("plan %s: %w", planPath, err)
	}
	return r.stampMetadata(doc, planPath, item, vcsCtx)
}

// stampMetadata writes the advisory frontmatter block so a later invocation
// can resume without the original reference.
func (r *Runner) stampMetadata(doc *plan.Document, planPath string, item *workitem.WorkItem, vcsCtx *vcs.Context) error {
	meta := doc.ReadMetadata()
	if meta.Item != "" || meta.Branch != "" {
		return nil
	}
	if item != nil && item.Number > 0 {
		meta.Item = strconv.Itoa(item.Number)
	}
	if vcsCtx != nil {
		meta.Branch = vcsCtx.Branch
	}
	if meta.Item == "" && meta.Branch == "" {
		return nil
	}
	doc.Frontmatter = plan.RenderMetadata(meta) + doc.Frontmatter
	return doc.Write(planPath)
}

// checklistHeading marks the synced checklist block in a tracked item's
// description.
const checklistHeading = "## Plan Checklist"

// syncItemDescription mirrors the plan's acceptance criteria into the
// tracked item's description so progress is visible without opening the
// repository. Best effort: a failed update never fails the run.
func (r *Runner) syncItemDescription(ctx context.Context, item *workitem.WorkItem, doc *plan.Document) {
	if r.source == nil || item == nil || item.IsLocal() || item.Number == 0 {
		return
	}
	sec := doc.Section(plan.CriteriaHeading)
	if sec == nil {
		return
	}
	body := upsertChecklist(item.Body, strings.TrimSpace(sec.Body))
	if body == item.Body {
		return
	}
	if err := r.source.UpdateBody(ctx, item, body); err != nil {
		log.Warn().Err(err).Msg("failed to sync plan checklist to work item")
		return
	}
	item.Body = body
}

// upsertChecklist appends the checklist block to body, or replaces a block
// written by an earlier run.
func upsertChecklist(body, checklist string) string {
	block := checklistHeading + "\n\n" + checklist + "\n"
	start := strings.Index(body, checklistHeading)
	if start == -1 {
		if strings.TrimSpace(body) == "" {
			return block
		}
		return strings.TrimRight(body, "\n") + "\n\n" + block
	}
	rest := body[start+len(checklistHeading):]
	end := len(body)
	if next := strings.Index(rest, "\n## "); next != -1 {
		// Keep the newline so the following section stays separated.
		end = start + len(checklistHeading) + next
	}
	return body[:start] + block + body[end:]
}

// implementPhase runs the agent under the permissive profile, aborts on a
// blocking error, and enforces that only the checklist changed in the plan.
func (r *Runner) implementPhase(ctx context.Context, rc *RunContext, original *plan.Document, planPath string) (*plan.Document, error) {
	promptPath, err := rc.WritePrompt("implement.md", implementPrompt(planPath, original.String()))
	if err != nil {
		return nil, err
	}

	log.Info().Str("plan", planPath).Msg("running implement phase")
	res, err := r.agent.Run(ctx, agent.PhaseImplement, promptPath, r.repoRoot)
	if err != nil {
		return nil, fmt.Errorf("implement phase: %w", err)
	}
	stdoutPath, stderrPath, err := rc.WriteLogs("implement", res.Stdout, res.Stderr)
	if err != nil {
		return nil, err
	}
	r.recordPhase(ctx, rc.ID, "implement", res, planPath)
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("implement agent exited with code %d (prompt: %s, stdout: %s, stderr: %s)",
			res.ExitCode, promptPath, stdoutPath, stderrPath)
	}
	// The agent may report success while having silently given up, so this
	// check runs regardless of exit code.
	if excerpt, found := agent.DetectBlockingError(res.Stdout, res.Stderr); found {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, excerpt)
	}

	updated, err := plan.Load(planPath)
	if err != nil {
		return nil, fmt.Errorf("reload plan %s: %w", planPath, err)
	}
	if violations := plan.VerifyPreserved(original, updated); len(violations) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrPreservation, strings.Join(violations, "; "))
	}
	return updated, nil
}

func (r *Runner) lintBestEffort(ctx context.Context) {
	if r.cfg.Commands.Lint == "" {
		return
	}
	if err := runShell(ctx, r.repoRoot, r.cfg.Commands.Lint); err != nil {
		log.Warn().Err(err).Str("cmd", r.cfg.Commands.Lint).Msg("lint failed")
	}
}

func (r *Runner) artifactsBestEffort(ctx context.Context) {
	if r.cfg.Commands.Generate == "" {
		return
	}
	if err := runShell(ctx, r.repoRoot, r.cfg.Commands.Generate); err != nil {
		log.Warn().Err(err).Str("cmd", r.cfg.Commands.Generate).Msg("artifact generation failed")
	}
}

// validateAndPublish ends the run successfully when no backend or no changes
// exist. Only a branch-managing run with detected changes commits, pushes,
// and opens a pull request.
func (r *Runner) validateAndPublish(ctx context.Context, req Request, item *workitem.WorkItem, vcsCtx *vcs.Context) (string, error) {
	var backend vcs.Backend
	if vcsCtx != nil {
		backend = vcsCtx.Backend
	} else {
		var err error
		backend, err = vcs.Detect(ctx, r.repoRoot)
		if err != nil {
			log.Info().Msg("no version-control backend detected, skipping commit")
			return "", nil
		}
	}

	changed, err := backend.HasChanges(ctx)
	if err != nil {
		return "", err
	}
	if !changed {
		log.Info().Msg("no changes to commit")
		return "", nil
	}
	if req.Mode != ModeFull {
		log.Info().Msg("changes left in working tree for the caller")
		return "", nil
	}

	subject := vcs.CommitSubject(item)
	if err := backend.CommitAll(ctx, subject); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if err := backend.Push(ctx, vcsCtx.Branch, vcsCtx.Created); err != nil {
		return "", fmt.Errorf("push: %w", err)
	}

	if r.source == nil || item.IsLocal() {
		return "", nil
	}
	base := r.cfg.BaseBranch
	if base == "" {
		base = vcsCtx.PreviousBranch
	}
	url, err := r.source.CreatePullRequest(ctx, item.Owner, item.Repo, vcsCtx.Branch, base,
		item.Title, fmt.Sprintf("Closes #%d", item.Number))
	if err != nil {
		// The branch is pushed; a failed PR creation should not fail the run.
		log.Warn().Err(err).Msg("failed to open pull request")
		return "", nil
	}
	return url, nil
}

// maybeCleanupBranch deletes a branch this run created, but only while it is
// still empty. A branch with changes holds agent work worth keeping.
func (r *Runner) maybeCleanupBranch(ctx context.Context, vcsCtx *vcs.Context) {
	if vcsCtx == nil || !vcsCtx.Created {
		return
	}
	changed, err := vcsCtx.Backend.HasChanges(ctx)
	if err != nil || changed {
		return
	}
	vcs.Cleanup(ctx, vcsCtx)
}

func resumeCommand(planPath string) string {
	name := strings.TrimSuffix(filepath.Base(planPath), ".plan.md")
	return fmt.Sprintf("stagehand implement %s", name)
}

func (r *Runner) recordStart(ctx context.Context, rc *RunContext, req Request, item *workitem.WorkItem) {
	if r.store == nil {
		return
	}
	rec := db.RunRecord{
		RunID:   rc.ID,
		ItemRef: req.Reference,
		Mode:    string(req.Mode),
		Status:  "running",
		RunDir:  rc.Dir,
	}
	if item != nil {
		rec.ItemTitle = item.Title
		if rec.ItemRef == "" && item.Number > 0 {
			rec.ItemRef = strconv.Itoa(item.Number)
		}
	}
	if err := r.store.CreateRun(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("failed to record run start")
	}
}

func (r *Runner) recordPhase(ctx context.Context, runID, phase string, res agent.Result, planPath string) {
	if r.store == nil {
		return
	}
	outcome := "ok"
	if res.ExitCode != 0 {
		outcome = "error"
	}
	now := time.Now().UTC()
	rec := db.PhaseRecord{
		RunID:     runID,
		Phase:     phase,
		StartedAt: now.Add(-res.Duration).Format(time.RFC3339),
		EndedAt:   now.Format(time.RFC3339),
		ExitCode:  res.ExitCode,
		Outcome:   outcome,
	}
	update := db.Update{Status: "running", PlanPath: planPath}
	ev := db.Event{Type: phase + "_finished", Message: fmt.Sprintf("%s phase exited %d", phase, res.ExitCode)}
	if err := r.store.CommitPhase(ctx, rec, []db.Event{ev}, update); err != nil {
		log.Warn().Err(err).Msg("failed to record phase")
	}
}

func (r *Runner) recordFinish(ctx context.Context, runID, status string, out Outcome, runErr error) {
	if r.store == nil {
		return
	}
	ev := &db.Event{Type: "run_finished", Message: status}
	if runErr != nil {
		ev.Message = runErr.Error()
	}
	update := db.Update{Status: status, PlanPath: out.PlanPath, Branch: out.Branch}
	if err := r.store.UpdateRun(ctx, runID, update, ev); err != nil {
		log.Warn().Err(err).Msg("failed to record run finish")
	}
}
