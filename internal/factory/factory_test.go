package factory

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		desc string
		want TaskType
	}{
		{"fix NullPointer crash", TypeDebug},
		{"Traceback in ingestor", TypeDebug},
		{"error in the architecture review", TypeDebug},
		{"system design for billing", TypeArchitecture},
		{"plan the Integration with FFactory", TypeArchitecture},
		{"prepare a course on Go", TypeCoaching},
		{"write docs for the API", TypeKnowledge},
		{"run the crawler on new sources", TypeKnowledge},
		{"restart the ingest pipeline", TypePipeline},
		{"إصلاح خطأ في النظام", TypeDebug},
		{"بحث عن مصادر جديدة", TypeKnowledge},
		{"water the plants", TypeGeneral},
		{"unhandled exception on startup", TypeGeneral},
		{"goroutine panic in worker", TypeGeneral},
		{"training plan for juniors", TypeGeneral},
		{"", TypeGeneral},
	}
	for _, tt := range tests {
		if got := Classify(tt.desc); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.desc, got, tt.want)
		}
	}
}

func TestKeywordSetsDisjoint(t *testing.T) {
	seen := map[string]TaskType{}
	for _, set := range keywordSets {
		for _, kw := range set.keywords {
			if prev, ok := seen[kw]; ok {
				t.Fatalf("keyword %q in both %s and %s", kw, prev, set.taskType)
			}
			seen[kw] = set.taskType
		}
	}
}

func TestTaskTypeMappings(t *testing.T) {
	families := map[TaskType]Family{
		TypeDebug:        FamilyDebugging,
		TypeArchitecture: FamilyArchitecture,
		TypeCoaching:     FamilyTraining,
		TypeKnowledge:    FamilyKnowledge,
		TypePipeline:     FamilyPipeline,
	}
	for _, tt := range TaskTypes {
		fam, ok := tt.Family()
		want, wantOK := families[tt]
		if ok != wantOK || fam != want {
			t.Errorf("%s.Family() = (%q, %v), want (%q, %v)", tt, fam, ok, want, wantOK)
		}
		if tt.Runner() == "" {
			t.Errorf("%s has no runner", tt)
		}
	}

	if s, ok := TypeDebug.Skill(); !ok || s != SkillDebug {
		t.Errorf("debug skill = %q %v", s, ok)
	}
	if _, ok := TypePipeline.Skill(); ok {
		t.Error("pipeline tasks should not train a skill")
	}
	if _, ok := TypeGeneral.Skill(); ok {
		t.Error("general tasks should not train a skill")
	}
	if got := ParseTaskType("ARCHITECTURE"); got != TypeArchitecture {
		t.Errorf("ParseTaskType = %s", got)
	}
	if got := ParseTaskType("cooking"); got != TypeGeneral {
		t.Errorf("ParseTaskType(unknown) = %s", got)
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in    string
		want  Priority
		valid bool
	}{
		{"high", PriorityHigh, true},
		{" Normal ", PriorityNormal, true},
		{"low", PriorityLow, true},
		{"", PriorityNormal, true},
		{"urgent", PriorityNormal, false},
	}
	for _, tt := range tests {
		got, ok := ParsePriority(tt.in)
		if got != tt.want || ok != tt.valid {
			t.Errorf("ParsePriority(%q) = (%s, %v), want (%s, %v)", tt.in, got, ok, tt.want, tt.valid)
		}
	}
	if !(PriorityHigh.Rank() < PriorityNormal.Rank() && PriorityNormal.Rank() < PriorityLow.Rank()) {
		t.Fatal("priority ranks are not ordered high < normal < low")
	}
}

func TestParseOutcome(t *testing.T) {
	for _, in := range []string{"success", "SUCCESS"} {
		if o, err := ParseOutcome(in); err != nil || o != OutcomeSuccess {
			t.Errorf("ParseOutcome(%q) = %q, %v", in, o, err)
		}
	}
	for _, in := range []string{"fail", "failed"} {
		if o, err := ParseOutcome(in); err != nil || o != OutcomeFailed {
			t.Errorf("ParseOutcome(%q) = %q, %v", in, o, err)
		}
	}
	if _, err := ParseOutcome("maybe"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if OutcomeSuccess.TaskStatus() != StatusDone || OutcomeFailed.TaskStatus() != StatusFailed {
		t.Error("outcome task status mapping is wrong")
	}
}

func TestTransitions(t *testing.T) {
	allowed := [][2]Status{
		{StatusQueued, StatusAssigned},
		{StatusAssigned, StatusDone},
		{StatusAssigned, StatusFailed},
		{StatusAssigned, StatusQueued},
	}
	for _, tr := range allowed {
		if !CanTransition(tr[0], tr[1]) {
			t.Errorf("expected %s -> %s to be allowed", tr[0], tr[1])
		}
	}
	denied := [][2]Status{
		{StatusQueued, StatusDone},
		{StatusDone, StatusQueued},
		{StatusFailed, StatusAssigned},
		{StatusDone, StatusFailed},
	}
	for _, tr := range denied {
		if CanTransition(tr[0], tr[1]) {
			t.Errorf("expected %s -> %s to be denied", tr[0], tr[1])
		}
	}
	if !errors.Is(ErrInvalidTransition, ErrInvalidInput) {
		t.Error("ErrInvalidTransition should wrap ErrInvalidInput")
	}
}

func TestCounters(t *testing.T) {
	var c Counters
	if c.SuccessRate() != 0 || c.Total() != 0 {
		t.Fatalf("zero counters: %+v", c)
	}
	c = c.Record(OutcomeSuccess).Record(OutcomeFailed).Record(OutcomeSuccess)
	if c.Total() != 3 || c.SuccessRuns != 2 || c.FailedRuns != 1 {
		t.Fatalf("unexpected counters: %+v", c)
	}
	if got := c.SuccessRate(); got < 0.666 || got > 0.667 {
		t.Fatalf("success rate = %f", got)
	}
}
