// Package factory defines the vocabulary shared by the dispatch and learning
// engine: task types, priorities, lifecycle states, outcomes, agent families
// and skills.
package factory

import (
	"fmt"
	"strings"
)

// TaskType is the classifier's tag for a task description.
type TaskType string

const (
	TypeDebug        TaskType = "debug"
	TypeArchitecture TaskType = "architecture"
	TypeCoaching     TaskType = "coaching"
	TypeKnowledge    TaskType = "knowledge"
	TypePipeline     TaskType = "pipeline"
	TypeGeneral      TaskType = "general"
)

// TaskTypes lists every task type in classifier priority order.
var TaskTypes = []TaskType{TypeDebug, TypeArchitecture, TypeCoaching, TypeKnowledge, TypePipeline, TypeGeneral}

// ParseTaskType returns the task type for s. Unknown values map to general.
func ParseTaskType(s string) TaskType {
	switch t := TaskType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeDebug, TypeArchitecture, TypeCoaching, TypeKnowledge, TypePipeline:
		return t
	default:
		return TypeGeneral
	}
}

// Family is a coarse capability group used to filter dispatch candidates.
type Family string

const (
	FamilyDebugging    Family = "debugging"
	FamilyArchitecture Family = "architecture"
	FamilyTraining     Family = "training"
	FamilyKnowledge    Family = "knowledge"
	FamilyPipeline     Family = "pipeline"
)

// Family returns the agent family that owns tasks of type t. The second
// result is false for general tasks, which have no family.
func (t TaskType) Family() (Family, bool) {
	switch t {
	case TypeDebug:
		return FamilyDebugging, true
	case TypeArchitecture:
		return FamilyArchitecture, true
	case TypeCoaching:
		return FamilyTraining, true
	case TypeKnowledge:
		return FamilyKnowledge, true
	case TypePipeline:
		return FamilyPipeline, true
	case TypeGeneral:
		return "", false
	default:
		return "", false
	}
}

// SkillID names a skill whose level the learning engine adjusts.
type SkillID string

const (
	SkillDebug        SkillID = "debug_skills"
	SkillArchitecture SkillID = "system_architecture"
	SkillTeaching     SkillID = "teaching_skills"
	SkillResearch     SkillID = "knowledge_research"
)

// Skill returns the skill trained by tasks of type t. Pipeline and general
// tasks train no skill.
func (t TaskType) Skill() (SkillID, bool) {
	switch t {
	case TypeDebug:
		return SkillDebug, true
	case TypeArchitecture:
		return SkillArchitecture, true
	case TypeCoaching:
		return SkillTeaching, true
	case TypeKnowledge:
		return SkillResearch, true
	case TypePipeline, TypeGeneral:
		return "", false
	default:
		return "", false
	}
}

// Runner returns the suggested command an operator runs for the task type.
func (t TaskType) Runner() string {
	switch t {
	case TypeDebug:
		return "./hf_run_debug_expert.sh"
	case TypeArchitecture:
		return "./hf_run_system_architect.sh"
	case TypeCoaching:
		return "./hf_run_technical_coach.sh"
	case TypeKnowledge:
		return "./hf_run_knowledge_spider.sh"
	case TypePipeline:
		return "./hf_run_pipeline_manager.sh"
	default:
		return "./hf_smart_decision_engine.sh"
	}
}

// Priority orders queued tasks. The zero value is normal.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
	PriorityLow
)

// Rank is the sort key used when selecting the next queued task. Lower
// ranks dispatch first; values outside the known set rank as normal.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// MarshalText encodes the priority as its label.
func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// ParsePriority parses a priority label. The second result is false when s
// was not a known label and the default (normal) was substituted.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh, true
	case "normal":
		return PriorityNormal, true
	case "low":
		return PriorityLow, true
	case "":
		return PriorityNormal, true
	default:
		return PriorityNormal, false
	}
}

// Status is a task lifecycle state.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusAssigned Status = "assigned"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
)

// Statuses lists every task status in lifecycle order.
var Statuses = []Status{StatusQueued, StatusAssigned, StatusDone, StatusFailed}

var allowedTransitions = map[Status]map[Status]struct{}{
	StatusQueued: {
		StatusAssigned: {},
	},
	StatusAssigned: {
		StatusDone:   {},
		StatusFailed: {},
		StatusQueued: {}, // stale requeue
	},
	StatusDone:   {},
	StatusFailed: {},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to Status) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Outcome is the recorded result of an assignment.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// ParseOutcome accepts "success", "fail" and "failed" (case-insensitive).
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success":
		return OutcomeSuccess, nil
	case "fail", "failed":
		return OutcomeFailed, nil
	default:
		return "", fmt.Errorf("%w: result status %q must be success or fail", ErrInvalidInput, s)
	}
}

// TaskStatus is the task status an outcome moves the task to.
func (o Outcome) TaskStatus() Status {
	if o == OutcomeSuccess {
		return StatusDone
	}
	return StatusFailed
}
