package app

import (
	"fmt"

	"qualityline/internal/config"
	"qualityline/internal/domain"
	"qualityline/internal/engine"
)

// ResolveConfig picks the session config. An explicit path wins, then
// qualityline.yml in workspace, then built-in defaults.
func ResolveConfig(workspace, path string) (*config.Config, error) {
	if path != "" {
		return config.FromFile(path)
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("default-org")
	}
	return cfg, nil
}

// NewSession builds an engine for cfg and loads its seed records.
func NewSession(cfg *config.Config, actorID string, opts ...engine.Option) (engine.Engine, error) {
	eng := engine.New(cfg, opts...)
	if err := ApplySeed(eng, cfg.Seed, actorID); err != nil {
		return engine.Engine{}, err
	}
	eng.Logger.Info("session ready",
		"organization", cfg.Organization.Name,
		"processes", eng.Processes.Len(),
		"instances", len(eng.Instances.List()),
	)
	return eng, nil
}

// ApplySeed creates seed records through the same validation the outer
// surfaces use. Seed entries refer to processes by key.
func ApplySeed(eng engine.Engine, seed config.Seed, actorID string) error {
	ids := map[string]string{}
	for _, sp := range seed.Processes {
		p := domain.Process{
			Name:      sp.Name,
			Type:      sp.Type,
			Purpose:   sp.Purpose,
			Inputs:    sp.Inputs,
			Outputs:   sp.Outputs,
			PilotName: sp.PilotName,
			Status:    sp.Status,
		}
		if err := engine.ValidateProcessForm(&p); err != nil {
			return fmt.Errorf("seed process %s: %w", sp.Key, err)
		}
		ids[sp.Key] = eng.CreateProcess(p).ID
	}
	for i, si := range seed.Issues {
		issue := domain.ContextIssue{
			ProcessID:   ids[si.Process],
			Quadrant:    si.Quadrant,
			Description: si.Description,
			Origin:      si.Origin,
			Severity:    si.Severity,
			Probability: si.Probability,
		}
		if err := engine.ValidateIssueForm(&issue); err != nil {
			return fmt.Errorf("seed issue %d: %w", i, err)
		}
		eng.CreateIssue(issue)
	}
	for i, sa := range seed.Actions {
		a := domain.Action{
			ProcessID:       ids[sa.Process],
			Title:           sa.Title,
			Description:     sa.Description,
			ResponsibleName: sa.ResponsibleName,
			Status:          sa.Status,
		}
		if sa.DueDate != "" {
			due := sa.DueDate
			a.DueDate = &due
		}
		if err := engine.ValidateActionForm(&a); err != nil {
			return fmt.Errorf("seed action %d: %w", i, err)
		}
		eng.CreateAction(a)
	}
	for i, sd := range seed.Documents {
		d := domain.Document{
			Title:       sd.Title,
			Type:        sd.Type,
			Description: sd.Description,
			Status:      sd.Status,
		}
		for _, key := range sd.Processes {
			d.ProcessIDs = append(d.ProcessIDs, ids[key])
		}
		for _, num := range sd.Clauses {
			d.ISOClauseReferences = append(d.ISOClauseReferences, clause(eng, num))
		}
		if err := engine.ValidateDocumentForm(&d); err != nil {
			return fmt.Errorf("seed document %d: %w", i, err)
		}
		eng.CreateDocument(d)
	}
	for _, at := range seed.Attachments {
		fi, err := eng.AttachFunction(ids[at.Process], at.Function, actorID)
		if err != nil {
			return fmt.Errorf("seed attachment %s on %s: %w", at.Function, at.Process, err)
		}
		if at.Status != "" && at.Status != fi.Status {
			if _, err := eng.SetFunctionStatus(fi.ID, at.Status, actorID); err != nil {
				return fmt.Errorf("seed attachment %s status: %w", at.Function, err)
			}
		}
	}
	return nil
}

func clause(eng engine.Engine, number string) domain.ClauseReference {
	for _, c := range eng.Catalog.Clauses() {
		if c.ClauseNumber == number {
			return c
		}
	}
	return domain.ClauseReference{ClauseNumber: number}
}
