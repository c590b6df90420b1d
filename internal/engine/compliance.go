package engine

import (
	"math"

	"qualityline/internal/catalog"
	"qualityline/internal/domain"
)

// CompliancePercentage is round(allocated/total*100), or 0 with no
// requirements.
func CompliancePercentage(allocated, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(allocated) / float64(total) * 100))
}

// ComputeCompliance counts mandatory requirements and how many are allocated.
// A mandatory unique function is one requirement, met by an instance on any
// non-archived process. A mandatory per-process function is one requirement per eligible
// non-archived process, met by an instance on that process.
func ComputeCompliance(processes []domain.Process, instances []domain.FunctionInstance, functions []domain.StandardFunction) domain.Compliance {
	hosted := map[string]bool{}
	pairs := map[[2]string]bool{}
	for _, fi := range LiveInstances(processes, instances) {
		hosted[fi.FunctionID] = true
		pairs[[2]string{fi.FunctionID, fi.ProcessID}] = true
	}

	var c domain.Compliance
	for _, fn := range functions {
		if !fn.Mandatory {
			continue
		}
		switch fn.DuplicationRule {
		case domain.RuleUnique:
			c.TotalRequirements++
			if hosted[fn.ID] {
				c.AllocatedCount++
			} else {
				c.UnallocatedUniqueCount++
			}
		case domain.RulePerProcess:
			for _, p := range processes {
				if p.Status == domain.StatusArchived || !catalog.Eligible(fn, p.Type) {
					continue
				}
				c.TotalRequirements++
				if pairs[[2]string{fn.ID, p.ID}] {
					c.AllocatedCount++
				}
			}
		}
	}
	c.Percentage = CompliancePercentage(c.AllocatedCount, c.TotalRequirements)
	return c
}

func (e Engine) Compliance() domain.Compliance {
	return ComputeCompliance(e.Processes.List(), e.Instances.List(), e.Catalog.Functions())
}

// Dashboard aggregates the headline session counters.
func (e Engine) Dashboard() domain.Dashboard {
	issues := e.Issues.List()
	d := domain.Dashboard{
		ActiveProcesses: len(e.Processes.Active()),
		OpenActions:     len(e.Actions.Open()),
		OverdueActions:  len(e.OverdueActions()),
		TotalIssues:     len(issues),
		Compliance:      e.Compliance(),
	}
	for _, issue := range issues {
		if issue.Type == domain.IssueRisk {
			d.Risks++
		}
	}
	return d
}
