package quiz

// buildChoices returns the correct label for item plus up to MaxDistractors
// labels drawn from roster entries whose label differs, in shuffled order.
// Entries sharing the correct label are excluded by value, not identity.
func (e *Engine) buildChoices(roster []Item, item Item, kind QuestionKind) []string {
	correct := e.answerFor(item, kind)

	pool := make([]string, 0, len(roster))
	for _, other := range roster {
		if label := e.answerFor(other, kind); label != correct {
			pool = append(pool, label)
		}
	}
	e.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	n := min(e.cfg.MaxDistractors, len(pool))
	choices := make([]string, 0, n+1)
	choices = append(choices, pool[:n]...)
	choices = append(choices, correct)
	e.shuffle(len(choices), func(i, j int) { choices[i], choices[j] = choices[j], choices[i] })
	return choices
}
