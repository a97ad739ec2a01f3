package quiz

import "remindme-service/internal/domain"

// Status is the lifecycle state of a quiz session.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	default:
		return "idle"
	}
}

// MarshalText renders the status as its lowercase name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// QuestionKind is the question asked within a round. Name always precedes Relation.
type QuestionKind int

const (
	KindName QuestionKind = iota
	KindRelation
)

func (k QuestionKind) String() string {
	if k == KindRelation {
		return "relation"
	}
	return "name"
}

func (k QuestionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Item is a roster entry normalized at quiz start. Empty Relation means
// "no relation"; empty PhotoRef means "use the placeholder".
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Relation string `json:"relation,omitempty"`
	PhotoRef string `json:"photoRef,omitempty"`
}

func (i Item) HasPhoto() bool { return i.PhotoRef != "" }

func newItem(p domain.Person) Item {
	item := Item{ID: p.ID, Name: p.Name}
	if p.Relation != nil {
		item.Relation = *p.Relation
	}
	if p.PhotoURI != nil {
		item.PhotoRef = *p.PhotoURI
	}
	return item
}

// Session is the state of one quiz attempt. Engine transitions take a
// Session and return the next one; Order is shared between successive
// values and must be treated as read-only.
type Session struct {
	Status        Status       `json:"status"`
	Order         []Item       `json:"order,omitempty"`
	Round         int          `json:"round"`
	Kind          QuestionKind `json:"kind"`
	Score         int          `json:"score"`
	Choices       []string     `json:"choices,omitempty"`
	RosterVersion string       `json:"rosterVersion,omitempty"`
}

// Current returns the item for the active round.
func (s Session) Current() (Item, bool) {
	if s.Status == StatusIdle || s.Round < 0 || s.Round >= len(s.Order) {
		return Item{}, false
	}
	return s.Order[s.Round], true
}

// TotalQuestions is two per round, never less than one.
func (s Session) TotalQuestions() int {
	return max(1, 2*len(s.Order))
}
