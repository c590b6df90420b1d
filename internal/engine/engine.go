package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"qualityline/internal/catalog"
	"qualityline/internal/config"
	"qualityline/internal/domain"
	"qualityline/internal/events"
	"qualityline/internal/store"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// Engine is one in-memory management-system session.
type Engine struct {
	Processes *store.ProcessStore
	Issues    *store.IssueStore
	Actions   *store.ActionStore
	Documents *store.DocumentStore
	Instances *store.InstanceStore
	Catalog   *catalog.Catalog
	Events    *events.Log
	Config    *config.Config
	Logger    *slog.Logger

	now func() time.Time
	// mu serializes operations that read before they write.
	mu *sync.Mutex
}

// Option customizes a new Engine.
type Option func(*engineConfig)

type engineConfig struct {
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger
	catalog *catalog.Catalog
}

// WithClock overrides the session clock.
func WithClock(now func() time.Time) Option {
	return func(c *engineConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDs overrides entity id generation.
func WithIDs(newID func() string) Option {
	return func(c *engineConfig) { c.newID = newID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) { c.logger = logger }
}

// WithCatalog replaces the embedded ISO 9001 catalog.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(c *engineConfig) {
		if cat != nil {
			c.catalog = cat
		}
	}
}

func New(cfg *config.Config, opts ...Option) Engine {
	if cfg == nil {
		cfg = config.Default("default-org")
	}
	ec := engineConfig{now: time.Now, catalog: catalog.Default()}
	for _, opt := range opts {
		opt(&ec)
	}
	if ec.logger == nil {
		ec.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	so := store.Options{Now: ec.now, NewID: ec.newID}
	return Engine{
		Processes: store.NewProcessStore(so, cfg.Codes.ProcessPrefix, cfg.Codes.Width),
		Issues:    store.NewIssueStore(so),
		Actions:   store.NewActionStore(so),
		Documents: store.NewDocumentStore(so, cfg.Codes.DocumentPrefix, cfg.Codes.Width),
		Instances: store.NewInstanceStore(so),
		Catalog:   ec.catalog,
		Events:    &events.Log{Now: ec.now},
		Config:    cfg,
		Logger:    ec.logger,
		now:       ec.now,
		mu:        &sync.Mutex{},
	}
}

// Now returns the session clock reading.
func (e Engine) Now() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

func (e Engine) record(evtType, kind, id, actorID string, payload events.EventPayload) {
	evt := e.Events.Append(evtType, kind, id, actorID, payload)
	e.Logger.Debug("session event", "type", evt.Type, "entity_kind", kind, "entity_id", id, "event_id", evt.ID)
}

// Processes

func (e Engine) CreateProcess(p domain.Process) domain.Process {
	created := e.Processes.Create(p)
	e.record("process.created", "process", created.ID, "", events.EventPayload{"code": created.Code, "type": created.Type, "status": created.Status})
	return created
}

// UpdateProcess applies patch and bumps the version. The type is frozen
// while functions are attached, and a process cannot leave the archive
// while another process hosts one of its unique functions.
func (e Engine) UpdateProcess(id string, patch domain.ProcessPatch, note string) (domain.Process, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	before, ok := e.Processes.Get(id)
	if !ok {
		return domain.Process{}, notFound("process", id)
	}
	hosted := e.Instances.ByProcess(id)
	if patch.Type != nil && *patch.Type != before.Type && len(hosted) > 0 {
		return domain.Process{}, invalid("type", "Process type cannot change while functions are attached")
	}
	if before.Status == domain.StatusArchived && patch.Status != nil && *patch.Status != domain.StatusArchived {
		if err := e.checkRestore(id, hosted); err != nil {
			return domain.Process{}, err
		}
	}
	updated, ok := e.Processes.Update(id, patch, note)
	if !ok {
		return domain.Process{}, notFound("process", id)
	}
	e.record("process.updated", "process", id, "", events.EventPayload{
		"version":     updated.Version,
		"from_status": before.Status,
		"to_status":   updated.Status,
		"note":        note,
	})
	return updated, nil
}

// checkRestore reports a unique function of processID that a live process
// now hosts.
func (e Engine) checkRestore(processID string, hosted []domain.FunctionInstance) error {
	live := LiveInstances(e.Processes.List(), e.Instances.List())
	for _, own := range hosted {
		fn, ok := e.Catalog.FunctionByID(own.FunctionID)
		if !ok || fn.DuplicationRule != domain.RuleUnique {
			continue
		}
		for _, fi := range live {
			if fi.FunctionID == own.FunctionID && fi.ProcessID != processID {
				return &BlockedError{FunctionID: fn.ID, HostProcessID: fi.ProcessID}
			}
		}
	}
	return nil
}

// ArchiveProcess retires a process. Its function instances stay in place
// but no longer host or block anything.
func (e Engine) ArchiveProcess(id string) (domain.Process, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.Processes.Archive(id)
	if !ok {
		return domain.Process{}, notFound("process", id)
	}
	e.record("process.archived", "process", id, "", events.EventPayload{"version": p.Version})
	return p, nil
}

func (e Engine) GetProcess(id string) (domain.Process, error) {
	p, ok := e.Processes.Get(id)
	if !ok {
		return domain.Process{}, notFound("process", id)
	}
	return p, nil
}

// ProcessFilters narrows ListProcesses.
type ProcessFilters struct {
	Status string
	Type   string
}

func (e Engine) ListProcesses(f ProcessFilters) []domain.Process {
	var res []domain.Process
	for _, p := range e.Processes.List() {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Type != "" && p.Type != f.Type {
			continue
		}
		res = append(res, p)
	}
	return res
}

// Issues

func (e Engine) CreateIssue(issue domain.ContextIssue) domain.ContextIssue {
	created := e.Issues.Create(issue)
	payload := events.EventPayload{"process_id": created.ProcessID, "quadrant": created.Quadrant, "type": created.Type}
	if created.Criticality != nil {
		payload["criticality"] = *created.Criticality
	}
	e.record("issue.created", "issue", created.ID, "", payload)
	return created
}

func (e Engine) UpdateIssue(id string, patch domain.IssuePatch, note string) (domain.ContextIssue, error) {
	updated, ok := e.Issues.Update(id, patch, note)
	if !ok {
		return domain.ContextIssue{}, notFound("issue", id)
	}
	e.record("issue.updated", "issue", id, "", events.EventPayload{"version": updated.Version, "note": note})
	return updated, nil
}

func (e Engine) DeleteIssue(id string) error {
	if !e.Issues.Delete(id) {
		return notFound("issue", id)
	}
	e.record("issue.deleted", "issue", id, "", nil)
	return nil
}

func (e Engine) GetIssue(id string) (domain.ContextIssue, error) {
	issue, ok := e.Issues.Get(id)
	if !ok {
		return domain.ContextIssue{}, notFound("issue", id)
	}
	return issue, nil
}

// IssueFilters narrows ListIssues.
type IssueFilters struct {
	ProcessID string
	Quadrant  string
	Type      string
}

func (e Engine) ListIssues(f IssueFilters) []domain.ContextIssue {
	var res []domain.ContextIssue
	for _, issue := range e.Issues.List() {
		if f.ProcessID != "" && issue.ProcessID != f.ProcessID {
			continue
		}
		if f.Quadrant != "" && issue.Quadrant != f.Quadrant {
			continue
		}
		if f.Type != "" && issue.Type != f.Type {
			continue
		}
		res = append(res, issue)
	}
	return res
}

// Actions

func (e Engine) CreateAction(a domain.Action) domain.Action {
	created := e.Actions.Create(a)
	e.record("action.created", "action", created.ID, "", events.EventPayload{"process_id": created.ProcessID, "status": created.Status})
	return created
}

func (e Engine) UpdateAction(id string, patch domain.ActionPatch, note string) (domain.Action, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	before, ok := e.Actions.Get(id)
	if !ok {
		return domain.Action{}, notFound("action", id)
	}
	updated, ok := e.Actions.Update(id, patch, note)
	if !ok {
		return domain.Action{}, notFound("action", id)
	}
	e.record("action.updated", "action", id, "", events.EventPayload{
		"version":     updated.Version,
		"from_status": before.Status,
		"to_status":   updated.Status,
	})
	return updated, nil
}

func (e Engine) GetAction(id string) (domain.Action, error) {
	a, ok := e.Actions.Get(id)
	if !ok {
		return domain.Action{}, notFound("action", id)
	}
	return a, nil
}

// ActionFilters narrows ListActions.
type ActionFilters struct {
	ProcessID string
	Status    string
}

func (e Engine) ListActions(f ActionFilters) []domain.Action {
	var res []domain.Action
	for _, a := range e.Actions.List() {
		if f.ProcessID != "" && a.ProcessID != f.ProcessID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		res = append(res, a)
	}
	return res
}

// OverdueActions returns open actions due strictly before the session clock.
func (e Engine) OverdueActions() []domain.Action {
	return e.Actions.Overdue(e.Now())
}

// Documents

func (e Engine) CreateDocument(d domain.Document) domain.Document {
	created := e.Documents.Create(d)
	e.record("document.created", "document", created.ID, "", events.EventPayload{"code": created.Code, "type": created.Type})
	return created
}

func (e Engine) UpdateDocument(id string, patch domain.DocumentPatch, note string) (domain.Document, error) {
	updated, ok := e.Documents.Update(id, patch, note)
	if !ok {
		return domain.Document{}, notFound("document", id)
	}
	e.record("document.updated", "document", id, "", events.EventPayload{"version": updated.Version, "note": note})
	return updated, nil
}

func (e Engine) ArchiveDocument(id string) (domain.Document, error) {
	d, ok := e.Documents.Archive(id)
	if !ok {
		return domain.Document{}, notFound("document", id)
	}
	e.record("document.archived", "document", id, "", events.EventPayload{"version": d.Version})
	return d, nil
}

func (e Engine) GetDocument(id string) (domain.Document, error) {
	d, ok := e.Documents.Get(id)
	if !ok {
		return domain.Document{}, notFound("document", id)
	}
	return d, nil
}

// DocumentFilters narrows ListDocuments. ProcessID excludes archived
// documents.
type DocumentFilters struct {
	ProcessID string
	Status    string
}

func (e Engine) ListDocuments(f DocumentFilters) []domain.Document {
	items := e.Documents.List()
	if f.ProcessID != "" {
		items = e.Documents.ByProcess(f.ProcessID)
	}
	var res []domain.Document
	for _, d := range items {
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		res = append(res, d)
	}
	return res
}
