package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qualityline/internal/app"
	"qualityline/internal/catalog"
	"qualityline/internal/config"
	"qualityline/internal/domain"
)

const reportSeed = `organization:
  name: Acme
  standard: ISO_9001
seed:
  processes:
    - {key: dir, name: Direction, type: management, purpose: steer, inputs: [strategy], outputs: [objectives], status: active}
    - {key: rev, name: Review, type: management, purpose: review, inputs: [results], outputs: [decisions], status: active}
    - {key: old, name: Legacy, type: support, purpose: legacy, inputs: [a], outputs: [b], status: archived}
  attachments:
    - {process: dir, function: fn-4.1-context, status: active}
`

func TestFilterFunctions(t *testing.T) {
	all := catalog.Default().Functions()

	unique := filterFunctions(all, "", domain.RuleUnique, domain.ProcessManagement)
	assert.Len(t, unique, 11)
	for _, fn := range unique {
		assert.Equal(t, domain.RuleUnique, fn.DuplicationRule)
	}

	ctx := filterFunctions(all, "context", "", "")
	require.NotEmpty(t, ctx)
	for _, fn := range ctx {
		assert.Equal(t, "context", fn.Category)
	}

	assert.Empty(t, filterFunctions(all, "no-such-category", "", ""))
	assert.Len(t, filterFunctions(all, "", "", ""), len(all))
}

func TestBuildAndPrintReport(t *testing.T) {
	color.NoColor = true
	cfg, err := config.FromYAML([]byte(reportSeed))
	require.NoError(t, err)
	eng, err := app.NewSession(cfg, "tester")
	require.NoError(t, err)

	rep, err := buildReport(eng, cfg)
	require.NoError(t, err)
	assert.Equal(t, "Acme", rep.Organization)
	require.Len(t, rep.Processes, 2, "archived processes are left out")
	assert.Equal(t, 1, rep.Processes[0].Applicability.AttachedCount+rep.Processes[1].Applicability.AttachedCount)

	var buf bytes.Buffer
	printReport(&buf, rep)
	out := buf.String()
	assert.Contains(t, out, "QMS report: Acme")
	assert.Contains(t, out, "attached active")
	assert.Contains(t, out, "Leadership")
	assert.Contains(t, out, "blocked by")
	assert.Contains(t, out, "Compliance:")
	assert.NotContains(t, out, "Legacy")
}
