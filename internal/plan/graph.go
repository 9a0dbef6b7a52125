package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zulandar/planyard/internal/models"
)

// Warning kinds reported by CheckGraph.
const (
	WarnDangling = "dangling"
	WarnSelf     = "self"
	WarnCycle    = "cycle"
)

// Warning is a non-blocking note about a task's dependency edges. The engine
// never rejects a write because of one.
type Warning struct {
	TaskID string `json:"taskId"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// CheckGraph inspects the DependsOn sets of a plan's tasks and reports edges
// to tasks outside the set, self edges and cycles. Each cycle is reported
// once, against its member with the smallest id.
func CheckGraph(tasks []models.Task) []Warning {
	warnings := []Warning{}
	byID := make(map[string]*models.Task, len(tasks))
	for i := range tasks {
		byID[tasks[i].ID] = &tasks[i]
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			switch {
			case dep == t.ID:
				warnings = append(warnings, Warning{TaskID: t.ID, Kind: WarnSelf, Detail: "depends on itself"})
			case byID[dep] == nil:
				warnings = append(warnings, Warning{TaskID: t.ID, Kind: WarnDangling, Detail: fmt.Sprintf("depends on unknown task %s", dep)})
			}
		}
	}

	for _, cycle := range findCycles(tasks, byID) {
		warnings = append(warnings, Warning{
			TaskID: cycle[0],
			Kind:   WarnCycle,
			Detail: "cycle through " + strings.Join(cycle, ", "),
		})
	}
	return warnings
}

// findCycles returns the strongly connected components with more than one
// member (Tarjan), each rotated to start at its smallest id.
func findCycles(tasks []models.Task, byID map[string]*models.Task) [][]string {
	index := 0
	indices := map[string]int{}
	lowlink := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	var cycles [][]string

	var strongConnect func(id string)
	strongConnect = func(id string) {
		indices[id] = index
		lowlink[id] = index
		index++
		stack = append(stack, id)
		onStack[id] = true

		for _, dep := range byID[id].DependsOn {
			if dep == id || byID[dep] == nil {
				continue
			}
			if _, seen := indices[dep]; !seen {
				strongConnect(dep)
				if lowlink[dep] < lowlink[id] {
					lowlink[id] = lowlink[dep]
				}
			} else if onStack[dep] && indices[dep] < lowlink[id] {
				lowlink[id] = indices[dep]
			}
		}

		if lowlink[id] != indices[id] {
			return
		}
		var component []string
		for {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[n] = false
			component = append(component, n)
			if n == id {
				break
			}
		}
		if len(component) > 1 {
			sort.Strings(component)
			cycles = append(cycles, component)
		}
	}

	for _, t := range tasks {
		if _, seen := indices[t.ID]; !seen {
			strongConnect(t.ID)
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}
