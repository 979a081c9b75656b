// Package trigger decides whether an incoming event starts a workflow run.
package trigger

// EventType enumerates the trigger surfaces a workflow can listen on.
type EventType string

const (
	EventPush        EventType = "push"
	EventPullRequest EventType = "pull_request"
	EventDispatch    EventType = "workflow_dispatch"
)

// Event is the normalized form of an incoming trigger.
type Event struct {
	Type EventType `json:"type"`
	// Branch is the pushed branch for push events and the source branch
	// for pull requests.
	Branch string `json:"branch,omitempty"`
	// TargetBranch is the branch a pull request targets. Unused for other
	// event types.
	TargetBranch string `json:"target_branch,omitempty"`
	// ChangedPaths lists the files touched by the push or pull request,
	// relative to the repository root.
	ChangedPaths []string `json:"changed_paths,omitempty"`
	// Inputs carries manual-dispatch input values. They have no effect on
	// execution and exist for the run record only.
	Inputs map[string]string `json:"inputs,omitempty"`
	// DeliveryID identifies the upstream delivery, when one exists.
	DeliveryID string `json:"delivery_id,omitempty"`
}

// Valid reports whether the event names a known type.
func (e Event) Valid() bool {
	switch e.Type {
	case EventPush, EventPullRequest, EventDispatch:
		return true
	}
	return false
}
