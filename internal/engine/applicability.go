package engine

import (
	"qualityline/internal/catalog"
	"qualityline/internal/domain"
)

// ResolveApplicability lists the catalog functions process p may host, in
// catalog order, with their attachment state. A unique function with an
// instance on another process is blocked and cannot be attached; blocking
// wins over mandatory-missing. Per-process functions are never blocked.
func ResolveApplicability(p domain.Process, instances []domain.FunctionInstance, functions []domain.StandardFunction) []domain.ApplicableFunction {
	own := map[string]domain.FunctionInstance{}
	hostedBy := map[string]string{}
	for _, fi := range instances {
		if fi.ProcessID == p.ID {
			own[fi.FunctionID] = fi
			continue
		}
		if _, seen := hostedBy[fi.FunctionID]; !seen {
			hostedBy[fi.FunctionID] = fi.ProcessID
		}
	}

	res := []domain.ApplicableFunction{}
	for _, fn := range functions {
		if !catalog.Eligible(fn, p.Type) {
			continue
		}
		item := domain.ApplicableFunction{Function: fn, IsMandatory: fn.Mandatory}
		if fi, ok := own[fn.ID]; ok {
			fi := fi
			item.Instance = &fi
			item.IsAttached = true
		} else if host, ok := hostedBy[fn.ID]; ok && fn.DuplicationRule == domain.RuleUnique {
			item.IsBlocked = true
			item.BlockedByProcessID = host
		}
		item.CanAttach = !item.IsAttached && !item.IsBlocked
		res = append(res, item)
	}
	return res
}

// LiveInstances drops instances whose process is archived or unknown.
// Archived processes keep their instances but release unique functions.
func LiveInstances(processes []domain.Process, instances []domain.FunctionInstance) []domain.FunctionInstance {
	live := make(map[string]bool, len(processes))
	for _, p := range processes {
		live[p.ID] = p.Status != domain.StatusArchived
	}
	res := []domain.FunctionInstance{}
	for _, fi := range instances {
		if live[fi.ProcessID] {
			res = append(res, fi)
		}
	}
	return res
}

// GroupByCategory buckets items by function category. Known categories come
// first in display order; unknown ones follow in first-seen order. Empty
// groups are omitted.
func GroupByCategory(items []domain.ApplicableFunction) []domain.FunctionGroup {
	index := map[string]int{}
	var groups []domain.FunctionGroup
	for _, c := range domain.FunctionCategories {
		index[c] = len(groups)
		groups = append(groups, domain.FunctionGroup{Category: c})
	}
	for _, item := range items {
		i, ok := index[item.Function.Category]
		if !ok {
			i = len(groups)
			index[item.Function.Category] = i
			groups = append(groups, domain.FunctionGroup{Category: item.Function.Category})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	out := []domain.FunctionGroup{}
	for _, g := range groups {
		if len(g.Items) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// Summarize counts attached and mandatory-missing functions for a resolved
// process.
func Summarize(processID string, items []domain.ApplicableFunction) domain.Applicability {
	sum := domain.Applicability{ProcessID: processID, Groups: GroupByCategory(items)}
	for _, item := range items {
		if item.IsAttached {
			sum.AttachedCount++
		}
		if item.IsMandatory && !item.IsAttached && !item.IsBlocked {
			sum.MandatoryMissing++
		}
	}
	return sum
}

// Applicability resolves the function report for one process.
func (e Engine) Applicability(processID string) (domain.Applicability, error) {
	p, ok := e.Processes.Get(processID)
	if !ok {
		return domain.Applicability{}, notFound("process", processID)
	}
	hosts := LiveInstances(e.Processes.List(), e.Instances.List())
	if p.Status == domain.StatusArchived {
		// an archived process still shows what it holds
		hosts = append(hosts, e.Instances.ByProcess(p.ID)...)
	}
	items := ResolveApplicability(p, hosts, e.Catalog.Functions())
	return Summarize(p.ID, items), nil
}
