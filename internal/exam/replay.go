package exam

// OptionState is how an option renders in the history view.
type OptionState string

const (
	OptionNeutral         OptionState = "neutral"
	OptionCorrect         OptionState = "correct"
	OptionSelectedCorrect OptionState = "selected_correct"
	OptionSelectedWrong   OptionState = "selected_wrong"
)

// OptionView is the render state of one option.
type OptionView struct {
	Index      int         `json:"index"`
	Text       string      `json:"text"`
	State      OptionState `json:"state"`
	IsCorrect  bool        `json:"is_correct"`
	IsSelected bool        `json:"is_selected"`
}

// QuestionReview is one replayed question.
type QuestionReview struct {
	Index         int          `json:"index"`
	Text          string       `json:"text"`
	ImageURL      string       `json:"image_url,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
	Options       []OptionView `json:"options"`
	CorrectIndex  int          `json:"correct_index"`
	Answered      bool         `json:"answered"`
	SelectedIndex int          `json:"selected_index"`
	IsCorrect     bool         `json:"is_correct"`
}

// ClampCorrect maps a stored correct-answer index onto [0, n). Out of range
// indexes fall back to 0; with no options there is no correct index (-1).
func ClampCorrect(idx, n int) int {
	if n <= 0 {
		return -1
	}
	if idx < 0 || idx >= n {
		return 0
	}
	return idx
}

// Replay pairs each question with its recorded answer and computes the
// per-option render state. It does no scoring: correctness comes from the
// recorded answers. Only the first answer recorded for a question counts.
func Replay(questions []Question, answers []Answer) []QuestionReview {
	byIndex := make(map[int]Answer, len(answers))
	for _, a := range answers {
		if _, seen := byIndex[a.QuestionIndex]; !seen {
			byIndex[a.QuestionIndex] = a
		}
	}

	out := make([]QuestionReview, 0, len(questions))
	for i, q := range questions {
		correct := ClampCorrect(q.CorrectAnswer, len(q.Options))
		ans, answered := byIndex[i]

		review := QuestionReview{
			Index:         i,
			Text:          q.Text,
			ImageURL:      q.ImageURL,
			Explanation:   q.Explanation,
			Options:       make([]OptionView, 0, len(q.Options)),
			CorrectIndex:  correct,
			Answered:      answered,
			SelectedIndex: -1,
		}
		if answered {
			review.SelectedIndex = ans.SelectedAnswer
			review.IsCorrect = ans.IsCorrect
		}

		for j, text := range q.Options {
			isCorrect := j == correct
			isSelected := answered && j == ans.SelectedAnswer
			state := OptionNeutral
			switch {
			case isSelected && isCorrect:
				state = OptionSelectedCorrect
			case isSelected:
				state = OptionSelectedWrong
			case isCorrect:
				state = OptionCorrect
			}
			review.Options = append(review.Options, OptionView{
				Index:      j,
				Text:       text,
				State:      state,
				IsCorrect:  isCorrect,
				IsSelected: isSelected,
			})
		}
		out = append(out, review)
	}
	return out
}
