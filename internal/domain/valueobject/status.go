package valueobject

// ProjectStatus - статус проекта.
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusDisputed  ProjectStatus = "disputed"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusDisputed, ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}

// IsTerminal сообщает, что из статуса нет переходов.
func (s ProjectStatus) IsTerminal() bool {
	return s == ProjectStatusCompleted || s == ProjectStatusCancelled
}

func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	return canTransition(projectTransitions, s, next)
}

var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectStatusActive:    {ProjectStatusDisputed, ProjectStatusCompleted},
	ProjectStatusDisputed:  {ProjectStatusActive, ProjectStatusCompleted, ProjectStatusCancelled},
	ProjectStatusCompleted: {},
	ProjectStatusCancelled: {},
}

// DisputeStatus - статус спора.
type DisputeStatus string

const (
	DisputeStatusEvidence  DisputeStatus = "evidence"
	DisputeStatusVoting    DisputeStatus = "voting"
	DisputeStatusFinalized DisputeStatus = "finalized"
)

func (s DisputeStatus) IsValid() bool {
	switch s {
	case DisputeStatusEvidence, DisputeStatusVoting, DisputeStatusFinalized:
		return true
	}
	return false
}

func (s DisputeStatus) CanTransitionTo(next DisputeStatus) bool {
	return canTransition(disputeTransitions, s, next)
}

var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeStatusEvidence:  {DisputeStatusVoting},
	DisputeStatusVoting:    {DisputeStatusFinalized},
	DisputeStatusFinalized: {},
}

// ArbitratorStatus - статус профиля арбитра.
type ArbitratorStatus string

const (
	ArbitratorStatusActive   ArbitratorStatus = "active"
	ArbitratorStatusInactive ArbitratorStatus = "inactive"
)

// JobStatus - статус задания, сообщаемый слою заданий.
type JobStatus string

const (
	JobStatusOpen       JobStatus = "open"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
)

func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusOpen, JobStatusInProgress, JobStatusCompleted, JobStatusCancelled:
		return true
	}
	return false
}

func canTransition[S comparable](table map[S][]S, from, to S) bool {
	allowed, ok := table[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
