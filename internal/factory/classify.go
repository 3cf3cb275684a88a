package factory

import "strings"

// Keyword sets in match order. The first set with a hit wins, so a
// description mentioning both an error and a design topic is debug work.
var keywordSets = []struct {
	taskType TaskType
	keywords []string
}{
	{TypeDebug, []string{"خطأ", "اخطاء", "bug", "error", "traceback", "crash"}},
	{TypeArchitecture, []string{"تصميم", "معماري", "architecture", "system design", "دمج", "integration"}},
	{TypeCoaching, []string{"تعلم", "تعليمي", "مسار", "كورسات", "course", "learning", "track", "تدريب", "coaching"}},
	{TypeKnowledge, []string{"معرفة", "documentation", "docs", "بحث", "research", "spider", "crawler"}},
	{TypePipeline, []string{"pipeline", "ingest", "ingestor", "processor", "analyzer", "reporter"}},
}

// Classify maps a free-text task description to a task type. It is total:
// descriptions matching no keyword are general.
func Classify(description string) TaskType {
	text := strings.ToLower(description)
	for _, set := range keywordSets {
		for _, kw := range set.keywords {
			if strings.Contains(text, kw) {
				return set.taskType
			}
		}
	}
	return TypeGeneral
}
