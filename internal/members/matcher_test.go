package members

import "testing"

func testMatcher(t *testing.T) *Matcher {
	t.Helper()

	m := NewMatcher()
	if err := m.AddMember(Member{
		ID:           1,
		Code:         "Micheál-Martin.D.2020-02-08",
		FullName:     "Micheál Martin",
		FirstName:    "Micheál",
		LastName:     "Martin",
		Party:        "Fianna Fáil",
		Constituency: "Cork South-Central",
	}); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := m.AddMember(Member{
		ID:           2,
		Code:         "Catherine-Murphy.D.2011-03-09",
		FullName:     "Catherine Murphy",
		FirstName:    "Catherine",
		LastName:     "Murphy",
		Party:        "Social Democrats",
		Constituency: "Kildare North",
	}); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := m.AddMember(Member{
		ID:           3,
		Code:         "Paul-Murphy.D.2014-10-11",
		FullName:     "Paul Murphy",
		FirstName:    "Paul",
		LastName:     "Murphy",
		Party:        "People Before Profit-Solidarity",
		Constituency: "Dublin South-West",
	}); err != nil {
		t.Fatalf("add member: %v", err)
	}
	return m
}

func TestMatcher_StandardVariants(t *testing.T) {
	t.Parallel()

	m := testMatcher(t)
	variants := []string{
		"Catherine-Murphy.D.2011-03-09",
		"/ie/oireachtas/member/id/Catherine-Murphy.D.2011-03-09",
		"https://data.oireachtas.ie/ie/oireachtas/member/id/Catherine-Murphy.D.2011-03-09",
		"https://api.oireachtas.ie/v1/members/Catherine-Murphy.D.2011-03-09",
		"Catherine Murphy",
		"Murphy, Catherine",
	}
	for _, variant := range variants {
		member, ok := m.Lookup(variant)
		if !ok {
			t.Fatalf("expected %q to resolve", variant)
		}
		if member.ID != 2 {
			t.Fatalf("expected %q to resolve to member 2, got %d", variant, member.ID)
		}
	}
}

func TestMatcher_FoldsFadas(t *testing.T) {
	t.Parallel()

	m := testMatcher(t)
	member, ok := m.Lookup("Micheal Martin")
	if !ok {
		t.Fatalf("expected fada-less spelling to resolve")
	}
	if member.ID != 1 {
		t.Fatalf("expected member 1, got %d", member.ID)
	}
	if _, ok := m.Lookup("micheal-martin.d.2020-02-08"); !ok {
		t.Fatalf("expected fada-less code to resolve")
	}
}

func TestMatcher_AmbiguousNameNeverResolves(t *testing.T) {
	t.Parallel()

	m := NewMatcher()
	if err := m.AddMember(Member{ID: 1, Code: "A.D.2020", FullName: "John Smith", FirstName: "John", LastName: "Smith"}); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := m.AddMember(Member{ID: 2, Code: "B.D.2020", FullName: "John Smith", FirstName: "John", LastName: "Smith"}); err != nil {
		t.Fatalf("add member: %v", err)
	}

	if _, ok := m.Lookup("John Smith"); ok {
		t.Fatalf("a name shared by two members must not resolve")
	}
	if member, ok := m.Lookup("A.D.2020"); !ok || member.ID != 1 {
		t.Fatalf("codes must keep resolving despite the name clash")
	}
	if member, ok := m.Lookup("B.D.2020"); !ok || member.ID != 2 {
		t.Fatalf("codes must keep resolving despite the name clash")
	}
}

func TestMatcher_DuplicateCodeRejected(t *testing.T) {
	t.Parallel()

	m := testMatcher(t)
	err := m.AddMember(Member{ID: 9, Code: "Catherine-Murphy.D.2011-03-09", FullName: "Someone Else"})
	if err == nil {
		t.Fatalf("expected duplicate code registration to fail")
	}
}

func TestMatcher_BindOffice(t *testing.T) {
	t.Parallel()

	m := testMatcher(t)
	if !m.BindOffice("Taoiseach", "Micheál-Martin.D.2020-02-08") {
		t.Fatalf("expected office binding to a known code to succeed")
	}
	if m.BindOffice("Tánaiste", "Unknown-Code.D.1900") {
		t.Fatalf("expected office binding to an unknown code to fail")
	}

	member, ok := m.Lookup("taoiseach")
	if !ok || member.ID != 1 {
		t.Fatalf("expected office title to resolve to its holder, got %+v ok=%v", member, ok)
	}

	offices := m.Offices()
	if len(offices) != 1 || offices[0].Member.ID != 1 {
		t.Fatalf("unexpected office list: %+v", offices)
	}
}

func TestMatcher_OfficesSortedLongestFirst(t *testing.T) {
	t.Parallel()

	m := testMatcher(t)
	m.BindOffice("Minister for Education", "Catherine-Murphy.D.2011-03-09")
	m.BindOffice("Minister for Further and Higher Education", "Paul-Murphy.D.2014-10-11")

	offices := m.Offices()
	if len(offices) != 2 {
		t.Fatalf("expected 2 offices, got %d", len(offices))
	}
	if offices[0].Member.ID != 3 {
		t.Fatalf("expected the longer title first, got %+v", offices[0])
	}
}

func TestMatcher_UniqueSurname(t *testing.T) {
	t.Parallel()

	m := testMatcher(t)
	if _, ok := m.UniqueSurname("Murphy"); ok {
		t.Fatalf("a surname carried by two members must not resolve")
	}
	member, ok := m.UniqueSurname("Martin")
	if !ok || member.ID != 1 {
		t.Fatalf("expected a unique surname to resolve, got %+v ok=%v", member, ok)
	}
}

func TestMatcher_AddAlias(t *testing.T) {
	t.Parallel()

	m := testMatcher(t)
	if !m.AddAlias("Paul-Murphy.D.2014-10-11", "Deputy Paul Murphy") {
		t.Fatalf("expected alias registration for a known code to succeed")
	}
	if m.AddAlias("Nobody.D.1900", "ghost") {
		t.Fatalf("expected alias registration for an unknown code to fail")
	}

	member, ok := m.Lookup("deputy paul murphy")
	if !ok || member.ID != 3 {
		t.Fatalf("expected alias to resolve, got %+v ok=%v", member, ok)
	}
}
