package embedding

import "strings"

// TaskType is the embedding task hint sent to backends that support one.
// gemini-embedding models tune the vector for the task; Ollama ignores it.
type TaskType string

const (
	TaskRetrievalDocument  TaskType = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery     TaskType = "RETRIEVAL_QUERY"
	TaskQuestionAnswering  TaskType = "QUESTION_ANSWERING"
	TaskSemanticSimilarity TaskType = "SEMANTIC_SIMILARITY"
)

// questionMarkers are Vietnamese interrogative phrases. A query carrying
// one embeds better as QUESTION_ANSWERING than as plain retrieval.
var questionMarkers = []string{
	"bao nhiêu", "là gì", "thế nào", "ra sao",
	"ở đâu", "khi nào", "tại sao", "vì sao",
}

// SelectTaskType picks the embedding task for a piece of text. Document
// chunks always index as RETRIEVAL_DOCUMENT; queries split between plain
// retrieval and question answering.
func SelectTaskType(text string, isQuery bool) TaskType {
	if !isQuery {
		return TaskRetrievalDocument
	}
	if isQuestion(text) {
		return TaskQuestionAnswering
	}
	return TaskRetrievalQuery
}

// isQuestion detects Vietnamese question forms.
func isQuestion(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if strings.HasSuffix(text, "?") {
		return true
	}
	for _, marker := range questionMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	// "có ... không" yes/no questions
	if strings.HasSuffix(text, " không") && strings.Contains(text, " có ") {
		return true
	}
	return false
}

// ParseTaskType validates a configured task override. An empty string
// selects automatic per-call selection. The boolean reports whether the
// value was recognized.
func ParseTaskType(s string) (TaskType, bool) {
	switch t := TaskType(strings.ToUpper(strings.TrimSpace(s))); t {
	case "":
		return "", true
	case TaskRetrievalDocument, TaskRetrievalQuery, TaskQuestionAnswering, TaskSemanticSimilarity:
		return t, true
	default:
		return "", false
	}
}
