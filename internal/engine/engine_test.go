package engine_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"qualityline/internal/config"
	"qualityline/internal/domain"
	"qualityline/internal/engine"
	"qualityline/internal/events"
)

type testEnv struct {
	Engine engine.Engine
	Now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{Now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	n := 0
	env.Engine = engine.New(config.Default("Acme"),
		engine.WithClock(func() time.Time { return env.Now }),
		engine.WithIDs(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
	return env
}

func (env *testEnv) process(t *testing.T, name, typ string) domain.Process {
	t.Helper()
	p := domain.Process{Name: name, Type: typ, Purpose: "purpose", Inputs: []string{"in"}, Outputs: []string{"out"}, Status: domain.StatusActive}
	if err := engine.ValidateProcessForm(&p); err != nil {
		t.Fatalf("validate %s: %v", name, err)
	}
	return env.Engine.CreateProcess(p)
}

func TestProcessUpdateBumpsVersion(t *testing.T) {
	env := newTestEnv(t)
	p := env.process(t, "Direction", domain.ProcessManagement)
	if p.Code != "PRC-001" || p.Version != 1 {
		t.Fatalf("unexpected create: %+v", p)
	}
	env.Now = env.Now.Add(time.Hour)
	name := "Direction générale"
	updated, err := env.Engine.UpdateProcess(p.ID, domain.ProcessPatch{Name: &name}, "rename")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 || updated.RevisionDate != "2024-01-01T01:00:00Z" || updated.RevisionNote != "rename" {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if _, err := env.Engine.UpdateProcess("missing", domain.ProcessPatch{Name: &name}, ""); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	evts := env.Engine.Events.Latest(0, events.Filter{EntityKind: "process"})
	if len(evts) != 2 || evts[0].Type != "process.updated" {
		t.Fatalf("unexpected events: %+v", evts)
	}
}

func TestAttachGuards(t *testing.T) {
	env := newTestEnv(t)
	mgmt := env.process(t, "Direction", domain.ProcessManagement)
	other := env.process(t, "Strategy", domain.ProcessManagement)
	ops := env.process(t, "Production", domain.ProcessOperational)

	if _, err := env.Engine.AttachFunction(mgmt.ID, "fn-4.1-context", "alice"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := env.Engine.AttachFunction(mgmt.ID, "fn-4.1-context", "alice"); !errors.Is(err, engine.ErrAlreadyAttached) {
		t.Fatalf("expected already attached, got %v", err)
	}
	var blocked *engine.BlockedError
	if _, err := env.Engine.AttachFunction(other.ID, "fn-4.1-context", "alice"); !errors.As(err, &blocked) || blocked.HostProcessID != mgmt.ID {
		t.Fatalf("expected blocked by %s, got %v", mgmt.ID, err)
	}
	if _, err := env.Engine.AttachFunction(mgmt.ID, "fn-8.1-operational-planning", "alice"); !errors.Is(err, engine.ErrNotEligible) {
		t.Fatalf("expected not eligible, got %v", err)
	}
	if _, err := env.Engine.AttachFunction("nope", "fn-4.1-context", "alice"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected process not found, got %v", err)
	}
	if _, err := env.Engine.AttachFunction(ops.ID, "fn-0-none", "alice"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected function not found, got %v", err)
	}
	if _, err := env.Engine.ArchiveProcess(ops.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	var verr *engine.ValidationError
	if _, err := env.Engine.AttachFunction(ops.ID, "fn-8.1-operational-planning", "alice"); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for archived process, got %v", err)
	}
}

func TestPerProcessAttachIsIndependent(t *testing.T) {
	env := newTestEnv(t)
	a := env.process(t, "Production", domain.ProcessOperational)
	b := env.process(t, "Delivery", domain.ProcessOperational)
	for _, p := range []domain.Process{a, b} {
		if _, err := env.Engine.AttachFunction(p.ID, "fn-8.1-operational-planning", "bob"); err != nil {
			t.Fatalf("attach to %s: %v", p.Code, err)
		}
	}
	if got := len(env.Engine.Instances.ByFunction("fn-8.1-operational-planning")); got != 2 {
		t.Fatalf("expected 2 instances, got %d", got)
	}
}

func TestProcessTypeFrozenWhileFunctionsAttached(t *testing.T) {
	env := newTestEnv(t)
	a := env.process(t, "Direction", domain.ProcessManagement)
	b := env.process(t, "Strategy", domain.ProcessManagement)
	if _, err := env.Engine.AttachFunction(a.ID, "fn-4.1-context", "alice"); err != nil {
		t.Fatalf("attach: %v", err)
	}

	operational := domain.ProcessOperational
	var verr *engine.ValidationError
	if _, err := env.Engine.UpdateProcess(a.ID, domain.ProcessPatch{Type: &operational}, ""); !errors.As(err, &verr) || verr.Field != "type" {
		t.Fatalf("expected type validation error, got %v", err)
	}
	if got, _ := env.Engine.GetProcess(a.ID); got.Type != domain.ProcessManagement || got.Version != 1 {
		t.Fatalf("process changed after rejected patch: %+v", got)
	}
	appl, err := env.Engine.Applicability(a.ID)
	if err != nil || appl.AttachedCount != 1 {
		t.Fatalf("host lost its function: %v %+v", err, appl)
	}

	updated, err := env.Engine.UpdateProcess(b.ID, domain.ProcessPatch{Type: &operational}, "")
	if err != nil || updated.Type != domain.ProcessOperational {
		t.Fatalf("type change without functions: %v %+v", err, updated)
	}
	same := domain.ProcessManagement
	if _, err := env.Engine.UpdateProcess(a.ID, domain.ProcessPatch{Type: &same}, ""); err != nil {
		t.Fatalf("unchanged type should pass: %v", err)
	}
}

func TestArchivedProcessReleasesUniqueFunctions(t *testing.T) {
	env := newTestEnv(t)
	a := env.process(t, "Direction", domain.ProcessManagement)
	b := env.process(t, "Strategy", domain.ProcessManagement)
	if _, err := env.Engine.AttachFunction(a.ID, "fn-4.1-context", "alice"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if c := env.Engine.Compliance(); c.AllocatedCount != 1 {
		t.Fatalf("expected 1 allocated before archive, got %+v", c)
	}
	if _, err := env.Engine.ArchiveProcess(a.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if c := env.Engine.Compliance(); c.AllocatedCount != 0 {
		t.Fatalf("archived host still counted: %+v", c)
	}
	appl, err := env.Engine.Applicability(b.ID)
	if err != nil {
		t.Fatalf("applicability: %v", err)
	}
	for _, g := range appl.Groups {
		for _, item := range g.Items {
			if item.Function.ID == "fn-4.1-context" && (item.IsBlocked || !item.CanAttach) {
				t.Fatalf("archived host still blocks: %+v", item)
			}
		}
	}
	if archived, _ := env.Engine.Applicability(a.ID); archived.AttachedCount != 1 {
		t.Fatalf("archived process should still show its instance: %+v", archived)
	}

	if _, err := env.Engine.AttachFunction(b.ID, "fn-4.1-context", "bob"); err != nil {
		t.Fatalf("attach after archive: %v", err)
	}
	if c := env.Engine.Compliance(); c.AllocatedCount != 1 {
		t.Fatalf("expected new host to allocate: %+v", c)
	}

	active := domain.StatusActive
	var blocked *engine.BlockedError
	if _, err := env.Engine.UpdateProcess(a.ID, domain.ProcessPatch{Status: &active}, ""); !errors.As(err, &blocked) || blocked.HostProcessID != b.ID {
		t.Fatalf("expected restore blocked by %s, got %v", b.ID, err)
	}
}

func TestFunctionInstanceLifecycle(t *testing.T) {
	env := newTestEnv(t)
	p := env.process(t, "Direction", domain.ProcessManagement)
	fi, err := env.Engine.AttachFunction(p.ID, "fn-9.3-management-review", "alice")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if fi.Status != domain.InstancePending || len(fi.History) != 1 {
		t.Fatalf("unexpected new instance: %+v", fi)
	}

	fi, err = env.Engine.SetFunctionStatus(fi.ID, domain.InstanceActive, "alice")
	if err != nil || fi.Status != domain.InstanceActive {
		t.Fatalf("status: %v %+v", err, fi)
	}
	last := fi.History[len(fi.History)-1]
	if last.Action != domain.HistoryStatusChanged || last.PreviousValue != domain.InstancePending || last.NewValue != domain.InstanceActive {
		t.Fatalf("unexpected history: %+v", last)
	}
	fi, _ = env.Engine.SetFunctionStatus(fi.ID, domain.InstanceActive, "alice")
	if len(fi.History) != 2 {
		t.Fatalf("same status should not add history, got %d entries", len(fi.History))
	}
	if _, err := env.Engine.SetFunctionStatus(fi.ID, "done", "alice"); err == nil {
		t.Fatalf("expected invalid status error")
	}

	fi, err = env.Engine.UpdateFunctionData(fi.ID, map[string]any{"inputs": "audit results", "notes": "x"}, "alice")
	if err != nil || fi.Data["inputs"] != "audit results" {
		t.Fatalf("data: %v %+v", err, fi.Data)
	}
	fi, _ = env.Engine.UpdateFunctionData(fi.ID, map[string]any{"notes": nil}, "alice")
	if _, ok := fi.Data["notes"]; ok {
		t.Fatalf("nil value should remove key")
	}

	fi, err = env.Engine.AddEvidence(fi.ID, domain.Evidence{Type: domain.EvidenceLink, Title: "Minutes", Reference: "https://example.test/minutes"}, "alice")
	if err != nil || len(fi.Evidence) != 1 || fi.Evidence[0].AddedAt != "2024-01-01T00:00:00Z" || fi.Evidence[0].AddedBy != "alice" {
		t.Fatalf("evidence: %v %+v", err, fi.Evidence)
	}
	if _, err := env.Engine.AddEvidence(fi.ID, domain.Evidence{Type: "video", Title: "x"}, "alice"); err == nil {
		t.Fatalf("expected evidence type error")
	}

	action := env.Engine.CreateAction(domain.Action{ProcessID: p.ID, Description: "Plan review"})
	fi, err = env.Engine.LinkAction(fi.ID, action.ID, "alice")
	if err != nil || len(fi.LinkedActionIDs) != 1 {
		t.Fatalf("link: %v %+v", err, fi.LinkedActionIDs)
	}
	fi, _ = env.Engine.LinkAction(fi.ID, action.ID, "alice")
	if len(fi.LinkedActionIDs) != 1 {
		t.Fatalf("duplicate link recorded: %+v", fi.LinkedActionIDs)
	}
	if _, err := env.Engine.LinkAction(fi.ID, "nope", "alice"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected action not found, got %v", err)
	}

	wantActions := []string{
		domain.HistoryCreated,
		domain.HistoryStatusChanged,
		domain.HistoryUpdated,
		domain.HistoryUpdated,
		domain.HistoryEvidenceAdded,
		domain.HistoryActionLinked,
	}
	if len(fi.History) != len(wantActions) {
		t.Fatalf("expected %d history entries, got %d", len(wantActions), len(fi.History))
	}
	for i, want := range wantActions {
		if fi.History[i].Action != want {
			t.Fatalf("history[%d] = %s, want %s", i, fi.History[i].Action, want)
		}
	}
}

func TestOverdueAndDashboard(t *testing.T) {
	env := newTestEnv(t)
	p := env.process(t, "Production", domain.ProcessOperational)
	past, future := "2023-12-31", "2024-02-01"
	env.Engine.CreateAction(domain.Action{ProcessID: p.ID, Description: "late", DueDate: &past})
	env.Engine.CreateAction(domain.Action{ProcessID: p.ID, Description: "on time", DueDate: &future})
	env.Engine.CreateAction(domain.Action{ProcessID: p.ID, Description: "done", DueDate: &past, Status: domain.ActionCompleted})
	sev, prob := 3, 4
	env.Engine.CreateIssue(domain.ContextIssue{ProcessID: p.ID, Quadrant: domain.QuadrantThreat, Description: "supplier", Severity: &sev, Probability: &prob})
	env.Engine.CreateIssue(domain.ContextIssue{ProcessID: p.ID, Quadrant: domain.QuadrantStrength, Description: "team"})

	overdue := env.Engine.OverdueActions()
	if len(overdue) != 1 || overdue[0].Description != "late" {
		t.Fatalf("unexpected overdue: %+v", overdue)
	}
	d := env.Engine.Dashboard()
	if d.ActiveProcesses != 1 || d.OpenActions != 2 || d.OverdueActions != 1 || d.Risks != 1 || d.TotalIssues != 2 {
		t.Fatalf("unexpected dashboard: %+v", d)
	}
	// 15 unique + 7 mandatory per-process requirements for one operational process.
	if d.Compliance.TotalRequirements != 22 || d.Compliance.AllocatedCount != 0 || d.Compliance.UnallocatedUniqueCount != 15 {
		t.Fatalf("unexpected compliance: %+v", d.Compliance)
	}
}

func TestIssueCrud(t *testing.T) {
	env := newTestEnv(t)
	p := env.process(t, "Production", domain.ProcessOperational)
	sev, prob := 2, 5
	issue := env.Engine.CreateIssue(domain.ContextIssue{ProcessID: p.ID, Quadrant: domain.QuadrantWeakness, Description: "aging machines", Severity: &sev, Probability: &prob})
	if issue.Type != domain.IssueRisk || issue.Criticality == nil || *issue.Criticality != 10 {
		t.Fatalf("unexpected issue: %+v", issue)
	}
	q := domain.QuadrantOpportunity
	updated, err := env.Engine.UpdateIssue(issue.ID, domain.IssuePatch{Quadrant: &q}, "")
	if err != nil || updated.Type != domain.IssueOpportunity || updated.Version != 2 {
		t.Fatalf("update: %v %+v", err, updated)
	}
	if got := env.Engine.ListIssues(engine.IssueFilters{Type: domain.IssueRisk}); len(got) != 0 {
		t.Fatalf("expected no risks, got %d", len(got))
	}
	if err := env.Engine.DeleteIssue(issue.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.Engine.DeleteIssue(issue.ID); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestDocumentsByProcessSkipsArchived(t *testing.T) {
	env := newTestEnv(t)
	p := env.process(t, "Production", domain.ProcessOperational)
	d1 := env.Engine.CreateDocument(domain.Document{Title: "Work instruction", Type: domain.DocInstruction, ProcessIDs: []string{p.ID}})
	env.Engine.CreateDocument(domain.Document{Title: "Release form", Type: domain.DocForm, ProcessIDs: []string{p.ID}})
	if d1.Code != "DOC-001" {
		t.Fatalf("code %s", d1.Code)
	}
	if _, err := env.Engine.ArchiveDocument(d1.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if got := env.Engine.ListDocuments(engine.DocumentFilters{ProcessID: p.ID}); len(got) != 1 || got[0].Title != "Release form" {
		t.Fatalf("unexpected documents: %+v", got)
	}
	if got := env.Engine.ListDocuments(engine.DocumentFilters{}); len(got) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(got))
	}
}

func TestConcurrentActionUpdatesChainStatuses(t *testing.T) {
	env := newTestEnv(t)
	p := env.process(t, "Production", domain.ProcessOperational)
	a := env.Engine.CreateAction(domain.Action{ProcessID: p.ID, Description: "qualify supplier", Status: domain.ActionPlanned})

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		status := domain.ActionPlanned
		if i%2 == 0 {
			status = domain.ActionInProgress
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.Engine.UpdateAction(a.ID, domain.ActionPatch{Status: &status}, ""); err != nil {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()

	evts := env.Engine.Events.Latest(0, events.Filter{Type: "action.updated"})
	if len(evts) != 40 {
		t.Fatalf("expected 40 update events, got %d", len(evts))
	}
	prev := domain.ActionPlanned
	for i := len(evts) - 1; i >= 0; i-- {
		if from := evts[i].Payload["from_status"]; from != prev {
			t.Fatalf("event %d from_status %v, previous to_status %v", evts[i].ID, from, prev)
		}
		prev, _ = evts[i].Payload["to_status"].(string)
	}
	if got, _ := env.Engine.GetAction(a.ID); got.Status != prev || got.Version != 41 {
		t.Fatalf("final action %+v does not match last event status %s", got, prev)
	}
}
