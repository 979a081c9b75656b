package trigger

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"matrixci/internal/workflow"
)

// ShouldRun evaluates a workflow's trigger filters against an event.
//
// Push events run when the workflow declares a push trigger, the branch
// matches the branch filter and at least one changed path matches the path
// filter. Pull requests apply the same rules against the target branch.
// Manual dispatch always runs when declared. An absent trigger never runs;
// an empty filter list matches everything.
func ShouldRun(w *workflow.Workflow, ev Event) bool {
	switch ev.Type {
	case EventPush:
		t := w.On.Push
		if t == nil {
			return false
		}
		return matchBranch(t.Branches, ev.Branch) && matchPaths(t.Paths, ev.ChangedPaths)
	case EventPullRequest:
		t := w.On.PullRequest
		if t == nil {
			return false
		}
		return matchBranch(t.Branches, ev.TargetBranch) && matchPaths(t.Paths, ev.ChangedPaths)
	case EventDispatch:
		return w.On.Dispatch != nil
	}
	return false
}

func matchBranch(filters []string, branch string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if ok, err := doublestar.Match(f, branch); err == nil && ok {
			return true
		}
	}
	return false
}

// matchPaths reports whether any changed path matches any filter glob.
// Filters use doublestar semantics, so `bcpandas/**` covers the whole
// subtree. A leading "./" on a filter is ignored.
func matchPaths(filters []string, changed []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		f = strings.TrimPrefix(f, "./")
		for _, p := range changed {
			p = path.Clean(p)
			if ok, err := doublestar.Match(f, p); err == nil && ok {
				return true
			}
		}
	}
	return false
}
