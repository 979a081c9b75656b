package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// JobInstance is one matrix combination of a job, ready for execution.
type JobInstance struct {
	// ID is the job's key in the workflow jobs map.
	ID string
	// Name renders the instance for display, e.g. "test (3.9)".
	Name string
	// Matrix holds this instance's axis assignment. Empty for jobs without
	// a matrix.
	Matrix map[string]string
	Job    Job
}

// ExpandMatrix produces one JobInstance per combination of the job's matrix
// axes. A job without a matrix yields exactly one instance. Axes are walked
// in sorted name order and values in declaration order, so the result is
// deterministic for a given definition.
func ExpandMatrix(id string, job Job) []JobInstance {
	base := job.Name
	if base == "" {
		base = id
	}

	if job.Strategy == nil || len(job.Strategy.Matrix) == 0 {
		return []JobInstance{{ID: id, Name: base, Job: job}}
	}

	axes := make([]string, 0, len(job.Strategy.Matrix))
	for axis := range job.Strategy.Matrix {
		axes = append(axes, axis)
	}
	sort.Strings(axes)

	combos := []map[string]string{{}}
	for _, axis := range axes {
		next := make([]map[string]string, 0, len(combos)*len(job.Strategy.Matrix[axis]))
		for _, combo := range combos {
			for _, value := range job.Strategy.Matrix[axis] {
				cp := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					cp[k] = v
				}
				cp[axis] = value
				next = append(next, cp)
			}
		}
		combos = next
	}

	instances := make([]JobInstance, 0, len(combos))
	for _, combo := range combos {
		values := make([]string, 0, len(axes))
		for _, axis := range axes {
			values = append(values, combo[axis])
		}
		instances = append(instances, JobInstance{
			ID:     id,
			Name:   fmt.Sprintf("%s (%s)", base, strings.Join(values, ", ")),
			Matrix: combo,
			Job:    job,
		})
	}
	return instances
}

// ExpandAll expands every job in the workflow, in sorted job-ID order.
func (w *Workflow) ExpandAll() []JobInstance {
	var instances []JobInstance
	for _, id := range w.JobIDs() {
		instances = append(instances, ExpandMatrix(id, w.Jobs[id])...)
	}
	return instances
}
