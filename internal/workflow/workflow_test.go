package workflow

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fieldStep struct {
	*StepBase
	value string
}

func newFieldStep(header, field string) *fieldStep {
	s := &fieldStep{StepBase: NewStepBase(header), value: "ok"}
	s.SetValidator(Rules{
		{Field: field, Check: Required(func() string { return s.value }, field+" is required")},
	})
	return s
}

func newTestWorkflow() (*Workflow, []*fieldStep) {
	steps := []*fieldStep{
		newFieldStep("Locations", "InstallDir"),
		newFieldStep("Service", "User"),
		newFieldStep("Configuration", "ClusterName"),
		newFieldStep("Plugins", "Plugins"),
	}
	list := make([]Step, 0, len(steps))
	for _, s := range steps {
		list = append(list, s)
	}
	return New(list, WithClosing(NewClosingStep("Closing"))), steps
}

func TestEmptyClusterNameBlocksNavigation(t *testing.T) {
	w, steps := newTestWorkflow()
	require.True(t, w.Select(2))

	steps[2].value = ""
	w.Validate()

	failures := steps[2].ValidationFailures()
	require.Len(t, failures, 1)
	assert.Equal(t, "ClusterName", failures[0].Field)
	assert.Equal(t, 2, w.TabSelectionMax())
	assert.Equal(t, failures, w.CurrentFailures())

	assert.False(t, w.NavigateForward())
	assert.Equal(t, 2, w.ActiveIndex())
	assert.Same(t, steps[2], w.Active())
}

func TestAllValidSelectsUpToClosing(t *testing.T) {
	w, _ := newTestWorkflow()

	assert.True(t, w.IsValid())
	assert.Equal(t, 4, w.TabSelectionMax())
	assert.Empty(t, w.CurrentFailures())

	for w.NavigateForward() {
	}
	assert.Equal(t, 4, w.ActiveIndex())
	assert.Equal(t, "Closing", w.Active().Header())

	assert.False(t, w.NavigateForward())
	assert.True(t, w.NavigateBack())
	assert.Equal(t, 3, w.ActiveIndex())
}

func TestActiveStepPulledBackWhenEarlierStepInvalidates(t *testing.T) {
	w, steps := newTestWorkflow()
	require.True(t, w.Select(3))

	steps[1].value = ""
	w.Validate()

	assert.Equal(t, 1, w.TabSelectionMax())
	assert.Equal(t, 1, w.ActiveIndex())
	assert.Same(t, steps[1], w.Active())
}

func TestFailuresShownAreFromFirstInvalidStep(t *testing.T) {
	w, steps := newTestWorkflow()
	steps[3].value = ""
	w.Validate()
	require.True(t, w.Select(3))

	steps[0].value = ""
	steps[0].Validate()
	w.Recompute()

	s, idx, ok := w.FirstInvalidStep()
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Same(t, steps[0], s)
	assert.Equal(t, "InstallDir", w.CurrentFailures()[0].Field)
}

func TestIrrelevantStepsAreSkipped(t *testing.T) {
	w, steps := newTestWorkflow()
	steps[1].SetRelevant(false)
	steps[1].value = ""
	w.Validate()

	assert.True(t, w.IsValid())
	assert.Len(t, w.Navigable(), 4)
	assert.NoError(t, w.ValidationSummary())
}

func TestTabSelectionMaxTracksFirstInvalidStep(t *testing.T) {
	w, steps := newTestWorkflow()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		s := steps[rng.Intn(len(steps))]
		if rng.Intn(2) == 0 {
			s.value = ""
		} else {
			s.value = "set"
		}
		w.Validate()
		w.Select(rng.Intn(6))

		want := len(w.Navigable()) - 1
		for j, st := range w.Navigable() {
			if !st.IsValid() {
				want = j
				break
			}
		}
		require.Equal(t, want, w.TabSelectionMax(), "iteration "+strconv.Itoa(i))
		require.LessOrEqual(t, w.ActiveIndex(), w.TabSelectionMax())
	}
}

func TestValidationSummaryListsEveryFailure(t *testing.T) {
	w, steps := newTestWorkflow()
	steps[0].value = ""
	steps[2].value = " "
	w.Validate()

	err := w.ValidationSummary()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InstallDir: InstallDir is required")
	assert.Contains(t, err.Error(), "ClusterName: ClusterName is required")
	assert.Len(t, w.AllFailures(), 2)
}

func TestPrerequisiteClassifier(t *testing.T) {
	step := newFieldStep("Locations", "JavaHome")
	step.value = ""
	w := New([]Step{step}, WithPrerequisites("javahome"))

	require.False(t, w.IsValid())
	pre := w.PrerequisiteFailures()
	require.Len(t, pre, 1)
	assert.Equal(t, "Locations", pre[0].Step)
	assert.True(t, w.IsPrerequisite("JAVAHOME"))
	assert.False(t, w.IsPrerequisite("ClusterName"))
}

func TestRefreshDiscardsEditsAndKeepsRelevance(t *testing.T) {
	step := newFieldStep("Configuration", "ClusterName")
	step.OnRefresh(func() { step.value = "from-environment" })
	step.SetRelevant(false)
	w := New([]Step{step, newFieldStep("Other", "Other")})

	step.value = "edited"
	w.Refresh()

	assert.Equal(t, "from-environment", step.value)
	assert.False(t, step.IsRelevant())
}

func TestChangedPropagatesThroughGraph(t *testing.T) {
	total := 8192
	maxMemory := 0
	step := &fieldStep{StepBase: NewStepBase("Memory"), value: "4096"}
	step.SetValidator(ValidatorFunc(func() []Failure {
		v, _ := strconv.Atoi(step.value)
		if v > maxMemory {
			return []Failure{{Field: "SelectedMemory", Message: "exceeds maximum"}}
		}
		return nil
	}))

	g := NewGraph()
	require.NoError(t, g.Derive("MaxMemory", func() { maxMemory = total / 2 }, "TotalMemory"))
	w := New([]Step{step}, WithGraph(g))
	assert.True(t, w.IsValid())

	total = 4096
	w.Changed("TotalMemory")
	assert.Equal(t, 2048, maxMemory)
	assert.False(t, w.IsValid())
}
