package domain

// Word is one vocabulary entry as seen by a quiz run. Words are immutable once
// loaded into a session; Checked carries the last-known server state of the
// review flag for the active user.
type Word struct {
	ID        string
	Term      string
	Meaning   string
	GroupID   string
	GroupName string
	Checked   bool
}

// Group is a projection of the loaded word set, grouped by GroupID. It has no
// lifecycle of its own.
type Group struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Option is one multiple-choice answer. Its ID is the ID of the word whose
// meaning it shows; exactly one option per question is correct.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// QuestionStatus is the answer state of the current question.
type QuestionStatus string

const (
	QuestionIdle      QuestionStatus = "idle"
	QuestionCorrect   QuestionStatus = "correct"
	QuestionIncorrect QuestionStatus = "incorrect"
)

// Question is the currently shown word with its option set. Status moves from
// idle to correct/incorrect exactly once, on the first accepted selection.
type Question struct {
	Word       Word           `json:"-"`
	Options    []Option       `json:"options"`
	Status     QuestionStatus `json:"status"`
	SelectedID string         `json:"selectedId,omitempty"`
}

// Attempt is one answered question. Attempts accumulate in answer order and
// form the ledger submitted at finalization.
type Attempt struct {
	WordID    string `json:"wordId"`
	IsCorrect bool   `json:"isCorrect"`
}

// Progress tracks position within the active run.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// CheckSync is the server's summary of a checked-set replacement.
type CheckSync struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Total   int `json:"total"`
}

// WordStat aggregates correct/incorrect answer counts for one word.
type WordStat struct {
	WordID    string `json:"wordId"`
	Correct   int    `json:"correct"`
	Incorrect int    `json:"incorrect"`
}
