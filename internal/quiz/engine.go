package quiz

import (
	"fmt"
	"math"
	"math/rand/v2"

	"remindme-service/internal/domain"
)

const (
	DefaultPassThreshold   = 70
	DefaultMaxDistractors  = 3
	DefaultNoRelationLabel = "(no relation)"
)

// Config holds the product knobs of the quiz.
type Config struct {
	// PassThreshold is the minimum percentage that yields a "pass" verdict.
	PassThreshold int
	// MaxDistractors caps the wrong answers shown per question.
	MaxDistractors int
	// NoRelationLabel stands in for a missing relation in questions and choices.
	NoRelationLabel string
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		PassThreshold:   DefaultPassThreshold,
		MaxDistractors:  DefaultMaxDistractors,
		NoRelationLabel: DefaultNoRelationLabel,
	}
}

// Validate reports configuration values the engine cannot honor.
func (c Config) Validate() error {
	if c.PassThreshold < 0 || c.PassThreshold > 100 {
		return fmt.Errorf("pass threshold must be within [0, 100], got %d", c.PassThreshold)
	}
	if c.MaxDistractors < 0 {
		return fmt.Errorf("max distractors must not be negative, got %d", c.MaxDistractors)
	}
	if c.NoRelationLabel == "" {
		return fmt.Errorf("no-relation label must not be empty")
	}
	return nil
}

// Shuffler permutes n elements through swap, with the signature of rand.Shuffle.
type Shuffler func(n int, swap func(i, j int))

// Engine runs the quiz state machine. It holds no session state itself
// and is safe for concurrent use.
type Engine struct {
	cfg     Config
	shuffle Shuffler
}

// Option customizes an Engine.
type Option func(*Engine)

// WithShuffler replaces the uniform random shuffle, e.g. with a deterministic one in tests.
func WithShuffler(s Shuffler) Option {
	return func(e *Engine) {
		if s != nil {
			e.shuffle = s
		}
	}
}

// NewEngine builds an engine. Zero values are honored as given: a zero
// threshold passes everyone and zero distractors shows only the answer.
// Out-of-range values are clamped and an empty label falls back to the default.
func NewEngine(cfg Config, opts ...Option) *Engine {
	cfg.PassThreshold = min(max(cfg.PassThreshold, 0), 100)
	cfg.MaxDistractors = max(cfg.MaxDistractors, 0)
	if cfg.NoRelationLabel == "" {
		cfg.NoRelationLabel = DefaultNoRelationLabel
	}
	e := &Engine{cfg: cfg, shuffle: rand.Shuffle}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Start builds a fresh running session from the roster snapshot. Any
// previous session is simply superseded by the returned value.
func (e *Engine) Start(roster domain.RosterSnapshot) (Session, error) {
	if len(roster.Entries) == 0 {
		return Session{}, domain.ErrEmptyRoster
	}

	order := make([]Item, len(roster.Entries))
	for i, p := range roster.Entries {
		order[i] = newItem(p)
	}
	e.shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	s := Session{
		Status:        StatusRunning,
		Order:         order,
		Round:         0,
		Kind:          KindName,
		Score:         0,
		RosterVersion: roster.Version,
	}
	s.Choices = e.buildChoices(order, order[0], KindName)
	return s, nil
}

// Answer scores choice against the active question and advances. Outside
// StatusRunning it returns s unchanged.
func (e *Engine) Answer(s Session, choice string) Session {
	item, ok := s.Current()
	if s.Status != StatusRunning || !ok {
		return s
	}

	next := s
	if choice == e.answerFor(item, s.Kind) {
		next.Score++
	}

	if s.Kind == KindName {
		next.Kind = KindRelation
		next.Choices = e.buildChoices(s.Order, item, KindRelation)
		return next
	}

	if s.Round+1 >= len(s.Order) {
		next.Status = StatusFinished
		next.Choices = nil
		return next
	}

	next.Round = s.Round + 1
	next.Kind = KindName
	next.Choices = e.buildChoices(s.Order, s.Order[next.Round], KindName)
	return next
}

// Restart starts over with the given roster. On failure s is returned
// unchanged alongside the error.
func (e *Engine) Restart(s Session, roster domain.RosterSnapshot) (Session, error) {
	fresh, err := e.Start(roster)
	if err != nil {
		return s, err
	}
	return fresh, nil
}

// Close discards the session.
func (e *Engine) Close(Session) Session {
	return Session{}
}

// Observe applies a roster version seen by the caller. A running session
// built from a different version is discarded without partial credit.
func (e *Engine) Observe(s Session, rosterVersion string) Session {
	if s.Status == StatusRunning && s.RosterVersion != rosterVersion {
		return Session{}
	}
	return s
}

// Correct reports the expected answer for the active question.
func (e *Engine) Correct(s Session) (string, bool) {
	item, ok := s.Current()
	if !ok {
		return "", false
	}
	return e.answerFor(item, s.Kind), true
}

func (e *Engine) answerFor(item Item, kind QuestionKind) string {
	if kind == KindName {
		return item.Name
	}
	return e.relationLabel(item)
}

func (e *Engine) relationLabel(item Item) string {
	if item.Relation == "" {
		return e.cfg.NoRelationLabel
	}
	return item.Relation
}

// Result summarizes the score of a session.
type Result struct {
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	Percent        int    `json:"percent"`
	Passed         bool   `json:"passed"`
	Verdict        string `json:"verdict"`
}

const (
	VerdictPass      = "pass"
	VerdictEncourage = "encourage"
)

// Result computes the percentage and verdict for s.
func (e *Engine) Result(s Session) Result {
	total := s.TotalQuestions()
	percent := int(math.Round(100 * float64(s.Score) / float64(total)))
	r := Result{
		Score:          s.Score,
		TotalQuestions: total,
		Percent:        percent,
		Passed:         percent >= e.cfg.PassThreshold,
		Verdict:        VerdictEncourage,
	}
	if r.Passed {
		r.Verdict = VerdictPass
	}
	return r
}
