package clinical

// Answer is a tri-state response to a clinical follow-up question. Unknown
// means the question has not been answered yet, which is a normal state and
// never an error.
type Answer string

const (
	AnswerYes     Answer = "yes"
	AnswerNo      Answer = "no"
	AnswerUnknown Answer = "unknown"
)

// Known reports whether the answer carries information.
func (a Answer) Known() bool {
	return a == AnswerYes || a == AnswerNo
}

// QuestionState tracks the lifecycle of a conditionally revealed follow-up
// question: it starts unasked, becomes awaiting_answer once the requirement
// engine needs it, and is resolved once answered. Resolved questions are not
// re-asked unless upstream facts change.
type QuestionState string

const (
	QuestionUnasked  QuestionState = "unasked"
	QuestionAwaiting QuestionState = "awaiting_answer"
	QuestionResolved QuestionState = "resolved"
)

// FollowUpState derives the question state from whether the engine currently
// needs the answer and what has been recorded so far.
func FollowUpState(needed bool, answer Answer) QuestionState {
	if answer.Known() {
		return QuestionResolved
	}
	if needed {
		return QuestionAwaiting
	}
	return QuestionUnasked
}
