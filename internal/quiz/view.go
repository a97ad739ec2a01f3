package quiz

const (
	PromptName     = "Who is this person?"
	PromptRelation = "What is their relation?"
)

// View is what a client needs to render the quiz screen. It never
// carries the correct answer.
type View struct {
	Status         Status       `json:"status"`
	Round          int          `json:"round,omitempty"`
	Rounds         int          `json:"rounds,omitempty"`
	Kind           QuestionKind `json:"kind"`
	Prompt         string       `json:"prompt,omitempty"`
	PhotoRef       string       `json:"photoRef,omitempty"`
	Placeholder    bool         `json:"placeholder,omitempty"`
	Choices        []string     `json:"choices,omitempty"`
	Score          int          `json:"score"`
	TotalQuestions int          `json:"totalQuestions"`
	Result         *Result      `json:"result,omitempty"`
}

// View renders s. Round is 1-based for display.
func (e *Engine) View(s Session) View {
	v := View{
		Status:         s.Status,
		Kind:           s.Kind,
		Score:          s.Score,
		TotalQuestions: s.TotalQuestions(),
	}
	switch s.Status {
	case StatusRunning:
		item, _ := s.Current()
		v.Round = s.Round + 1
		v.Rounds = len(s.Order)
		v.Prompt = PromptName
		if s.Kind == KindRelation {
			v.Prompt = PromptRelation
		}
		v.PhotoRef = item.PhotoRef
		v.Placeholder = !item.HasPhoto()
		v.Choices = append([]string(nil), s.Choices...)
	case StatusFinished:
		v.Rounds = len(s.Order)
		r := e.Result(s)
		v.Result = &r
	}
	return v
}
