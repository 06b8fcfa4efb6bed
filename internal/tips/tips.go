package tips

// Tip is a short piece of financial advice. Reading one satisfies the
// read_tip daily task.
type Tip struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body" yaml:"body"`
}

func Default() []Tip {
	return []Tip{
		{ID: "pay-yourself-first", Title: "Pay yourself first", Body: "Move a fixed amount into savings the moment income arrives, before any spending."},
		{ID: "50-30-20", Title: "The 50/30/20 rule", Body: "Aim for 50% needs, 30% wants, 20% savings. Adjust the split, keep the habit."},
		{ID: "track-small-spending", Title: "Small leaks sink ships", Body: "Daily airtime, snacks and transport add up. Track them for one week and see."},
		{ID: "emergency-fund", Title: "Build a cushion", Body: "Three months of expenses in an emergency fund turns a crisis into an inconvenience."},
		{ID: "name-your-goals", Title: "Name your goals", Body: "A goal called 'New laptop - March' gets funded. A goal called 'misc' does not."},
		{ID: "automate-it", Title: "Automate the boring part", Body: "Standing orders beat willpower. Schedule savings transfers on payday."},
	}
}

func Find(all []Tip, id string) (Tip, bool) {
	for _, t := range all {
		if t.ID == id {
			return t, true
		}
	}
	return Tip{}, false
}
