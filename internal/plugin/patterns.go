package plugin

import (
	"regexp"
	"strconv"
)

// Phase is a named stage of a plugin install that consumes a fixed share
// of the tick budget when its pattern matches.
type Phase struct {
	Name    string
	Pattern *regexp.Regexp
	Share   float64
}

// Patterns classifies the output lines of one product's plugin script.
type Patterns struct {
	// Percentage captures the completion percentage in its first group.
	Percentage *regexp.Regexp
	// PercentageShare is the share of the budget spread over 0..100%.
	PercentageShare float64
	Phases          []Phase
	// Prompt marks a line asking for confirmation on stdin.
	Prompt string
}

// ElasticsearchPatterns matches elasticsearch-plugin.bat output.
var ElasticsearchPatterns = Patterns{
	Percentage:      regexp.MustCompile(`(\d{1,3})%\s*$`),
	PercentageShare: 0.6,
	Phases: []Phase{
		{Name: "downloading", Pattern: regexp.MustCompile(`^-> Downloading `), Share: 0.1},
		{Name: "verifying", Pattern: regexp.MustCompile(`^-> Verifying `), Share: 0.1},
		{Name: "installed", Pattern: regexp.MustCompile(`^-> Installed `), Share: 0.2},
	},
	Prompt: "[y/N]",
}

// KibanaPatterns matches kibana-plugin.bat output.
var KibanaPatterns = Patterns{
	Percentage:      regexp.MustCompile(`(\d{1,3})%\s*$`),
	PercentageShare: 0.3,
	Phases: []Phase{
		{Name: "transferring", Pattern: regexp.MustCompile(`^Attempting to transfer from `), Share: 0.05},
		{Name: "transfer complete", Pattern: regexp.MustCompile(`^Transfer complete`), Share: 0.15},
		{Name: "retrieving metadata", Pattern: regexp.MustCompile(`^Retrieving metadata from plugin archive`), Share: 0.05},
		{Name: "extracting", Pattern: regexp.MustCompile(`^Extracting plugin archive`), Share: 0.1},
		{Name: "extraction complete", Pattern: regexp.MustCompile(`^Extraction complete`), Share: 0.1},
		{Name: "optimizing", Pattern: regexp.MustCompile(`^Optimizing and caching browser bundles`), Share: 0.15},
		{Name: "complete", Pattern: regexp.MustCompile(`^Plugin installation complete`), Share: 0.1},
	},
	Prompt: "[y/N]",
}

// tracker converts classified lines into tick increments, never exceeding
// the budget.
type tracker struct {
	patterns Patterns
	budget   int
	used     int
	percent  int
}

func newTracker(p Patterns, budget int) *tracker {
	return &tracker{patterns: p, budget: budget}
}

// classify returns the ticks earned by line and whether it matched.
func (t *tracker) classify(line string) (int, bool) {
	if t.patterns.Percentage != nil {
		if m := t.patterns.Percentage.FindStringSubmatch(line); m != nil {
			pct := atoiClamp(m[1])
			target := int(float64(t.budget) * t.patterns.PercentageShare * float64(pct) / 100)
			inc := target - t.percent
			if inc < 0 {
				inc = 0
			}
			t.percent += inc
			return t.spend(inc), true
		}
	}
	for _, ph := range t.patterns.Phases {
		if ph.Pattern.MatchString(line) {
			return t.spend(int(float64(t.budget) * ph.Share)), true
		}
	}
	return 0, false
}

func (t *tracker) spend(n int) int {
	if n > t.budget-t.used {
		n = t.budget - t.used
	}
	if n < 0 {
		n = 0
	}
	t.used += n
	return n
}

func atoiClamp(s string) int {
	n, _ := strconv.Atoi(s)
	if n > 100 {
		n = 100
	}
	return n
}
