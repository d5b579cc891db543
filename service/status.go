package service

import "time"

// ModuleKey identifies one of the generated study content types.
type ModuleKey string

const (
	ModuleBrief     ModuleKey = "brief"
	ModuleTopics    ModuleKey = "topics"
	ModuleMCQs      ModuleKey = "mcqs"
	ModuleRapidFire ModuleKey = "rapidfire"
)

// AllModules returns the fixed module set in display order.
func AllModules() []ModuleKey {
	return []ModuleKey{ModuleBrief, ModuleTopics, ModuleMCQs, ModuleRapidFire}
}

// IsValidModule reports whether key names a known module.
func IsValidModule(key ModuleKey) bool {
	switch key {
	case ModuleBrief, ModuleTopics, ModuleMCQs, ModuleRapidFire:
		return true
	default:
		return false
	}
}

// ModuleStatus is the client-visible lifecycle state of one module's
// generation session. Complete and Error are sink states; a retry is a
// fresh session instance.
type ModuleStatus int

const (
	StatusIdle ModuleStatus = iota
	StatusLoading
	StatusStreaming
	StatusComplete
	StatusError
)

func (s ModuleStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusStreaming:
		return "streaming"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// JobState is the server-side generation job state reported by the status
// probe, independent of any particular client connection.
type JobState string

const (
	JobNone      JobState = "none"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobError     JobState = "error"
)

// JobStatus is the status probe response body.
type JobStatus struct {
	State     JobState  `json:"status"`
	StreamID  string    `json:"streamId,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}
