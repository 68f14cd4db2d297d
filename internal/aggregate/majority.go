package aggregate

// MajorityCache resolves the party-majority position per division. One
// cache lives for exactly one aggregator run: tallies are observed while
// votes stream in from the database, majorities are memoized on first ask
// and the whole thing is discarded at the end of the run.
type MajorityCache struct {
	tallies  map[majorityKey]*choiceTally
	resolved map[majorityKey]string
}

type majorityKey struct {
	divisionURI string
	party       string
}

type choiceTally struct {
	ta    int
	nil_  int
	staon int
}

func NewMajorityCache() *MajorityCache {
	return &MajorityCache{
		tallies:  make(map[majorityKey]*choiceTally),
		resolved: make(map[majorityKey]string),
	}
}

// Observe counts one vote toward its party's tally on a division.
// Unknown choices are ignored.
func (c *MajorityCache) Observe(divisionURI, party, choice string) {
	key := majorityKey{divisionURI: divisionURI, party: party}
	tally, ok := c.tallies[key]
	if !ok {
		tally = &choiceTally{}
		c.tallies[key] = tally
	}
	switch choice {
	case "ta":
		tally.ta++
	case "nil":
		tally.nil_++
	case "staon":
		tally.staon++
	}
}

// Majority returns the party's majority choice on a division. Ties resolve
// in the fixed order Ta > Nil > Staon so reruns over identical data always
// agree. Divisions the party never voted on return "".
func (c *MajorityCache) Majority(divisionURI, party string) string {
	key := majorityKey{divisionURI: divisionURI, party: party}
	if choice, ok := c.resolved[key]; ok {
		return choice
	}

	tally, ok := c.tallies[key]
	if !ok {
		return ""
	}

	choice := "ta"
	best := tally.ta
	if tally.nil_ > best {
		choice = "nil"
		best = tally.nil_
	}
	if tally.staon > best {
		choice = "staon"
	}
	c.resolved[key] = choice
	return choice
}
