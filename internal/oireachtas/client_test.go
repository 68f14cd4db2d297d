package oireachtas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func memberItem(code, fullName string, active bool) map[string]any {
	var end any
	if !active {
		end = "2024-11-08"
	}
	return map[string]any{
		"member": map[string]any{
			"memberCode": code,
			"fullName":   fullName,
			"firstName":  "First",
			"lastName":   "Last",
			"memberships": []any{
				map[string]any{
					"membership": map[string]any{
						"house": map[string]any{"houseCode": "dail", "houseNo": "34"},
						"parties": []any{
							map[string]any{"party": map[string]any{"partyCode": "fianna-fail", "showAs": "Fianna Fáil"}},
						},
						"represents": []any{
							map[string]any{"represent": map[string]any{"showAs": "Cork South-Central"}},
						},
						"dateRange": map[string]any{"start": "2024-12-18", "end": end},
					},
				},
			},
		},
	}
}

func writePage(t *testing.T, w http.ResponseWriter, countKey string, total int, results []any) {
	t.Helper()
	payload := map[string]any{
		"head":    map[string]any{"counts": map[string]any{countKey: total}},
		"results": results,
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encoding page: %v", err)
	}
}

func TestMembers_Paginates(t *testing.T) {
	t.Parallel()

	const total = maxPageSize + 2
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != strconv.Itoa(maxPageSize) {
			t.Errorf("unexpected limit %q", got)
		}
		if got := r.URL.Query().Get("chamber"); got != "dail" {
			t.Errorf("unexpected chamber %q", got)
		}
		if got := r.URL.Query().Get("house_no"); got != "34" {
			t.Errorf("unexpected house_no %q", got)
		}

		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		results := make([]any, 0, maxPageSize)
		for i := skip; i < total && i < skip+maxPageSize; i++ {
			code := fmt.Sprintf("Member-%04d.D.2024-12-18", i)
			results = append(results, memberItem(code, fmt.Sprintf("Member %04d", i), true))
		}
		writePage(t, w, "memberCount", total, results)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop())
	members, err := client.Members(context.Background(), 34)
	if err != nil {
		t.Fatalf("Members returned error: %v", err)
	}
	if len(members) != total {
		t.Fatalf("expected %d members across pages, got %d", total, len(members))
	}
	first := members[0]
	if first.PartyName != "Fianna Fáil" || first.Constituency != "Cork South-Central" {
		t.Errorf("membership fields not decoded: %+v", first)
	}
	if !first.Active || first.HouseNo != 34 {
		t.Errorf("expected active house-34 member, got %+v", first)
	}
}

func TestMembers_SkipsMalformed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results := []any{
			map[string]any{"member": map[string]any{"fullName": "No Code"}},
			memberItem("Former-Member.D.2016-03-10", "Former Member", false),
		}
		writePage(t, w, "memberCount", len(results), results)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop())
	members, err := client.Members(context.Background(), 34)
	if err != nil {
		t.Fatalf("Members returned error: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected codeless member skipped, got %d members", len(members))
	}
	if members[0].Active {
		t.Errorf("expected ended membership to mark member inactive")
	}
}

func TestDivisions_FlattensTallies(t *testing.T) {
	t.Parallel()

	division := map[string]any{
		"division": map[string]any{
			"uri":     "/ie/oireachtas/division/dail/34/2025-03-04/12",
			"date":    "2025-03-04",
			"subject": map[string]any{"showAs": "Housing (Standards) Bill 2025: Second Stage"},
			"tallies": map[string]any{
				"taVotes": map[string]any{
					"members": []any{
						map[string]any{"member": map[string]any{"memberCode": "Jack-Chambers.D.2020-02-08"}},
						map[string]any{"member": map[string]any{"uri": "/ie/oireachtas/member/id/Peadar-Tóibín.D.2011-03-09"}},
					},
				},
				"nilVotes": map[string]any{
					"members": []any{
						map[string]any{"member": map[string]any{"showAs": "Paul Murphy"}},
					},
				},
				"staonVotes": map[string]any{
					"members": []any{
						map[string]any{"member": map[string]any{"memberCode": "Catherine-Connolly.D.2016-03-10"}},
					},
				},
			},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("date_start"); got != "2025-01-01" {
			t.Errorf("unexpected date_start %q", got)
		}
		writePage(t, w, "divisionCount", 1, []any{division})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop())
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	votes, err := client.Divisions(context.Background(), 34, since)
	if err != nil {
		t.Fatalf("Divisions returned error: %v", err)
	}
	if len(votes) != 4 {
		t.Fatalf("expected 4 flattened votes, got %d", len(votes))
	}

	byChoice := map[string]int{}
	for _, v := range votes {
		byChoice[v.Choice]++
		if v.DivisionURI == "" || v.MemberRef == "" {
			t.Errorf("vote missing identifiers: %+v", v)
		}
		if v.Date == nil || !v.Date.Equal(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected division date %v", v.Date)
		}
	}
	if byChoice["ta"] != 2 || byChoice["nil"] != 1 || byChoice["staon"] != 1 {
		t.Errorf("unexpected tally split %v", byChoice)
	}
}

func TestQuestions_DefaultsKind(t *testing.T) {
	t.Parallel()

	results := []any{
		map[string]any{"question": map[string]any{
			"uri":    "/ie/oireachtas/debate/question/2025-02-11/101",
			"showAs": "To ask the Minister for Health about waiting lists at Cork University Hospital",
			"date":   "2025-02-11",
			"by":     map[string]any{"memberCode": "Pat-Buckley.D.2016-03-10"},
		}},
		map[string]any{"question": map[string]any{
			"showAs": "question without uri",
			"by":     map[string]any{"memberCode": "Someone.D.2020-02-08"},
		}},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(t, w, "questionCount", len(results), results)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop())
	questions, err := client.Questions(context.Background(), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Questions returned error: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected uriless question skipped, got %d", len(questions))
	}
	if questions[0].Kind != "written" {
		t.Errorf("expected default kind written, got %q", questions[0].Kind)
	}
	if questions[0].MemberRef != "Pat-Buckley.D.2016-03-10" {
		t.Errorf("unexpected member ref %q", questions[0].MemberRef)
	}
}

func TestLegislation_SponsorRoles(t *testing.T) {
	t.Parallel()

	results := []any{
		map[string]any{"bill": map[string]any{
			"uri":          "/ie/oireachtas/bill/2025/17",
			"shortTitleEn": "Planning and Development (Amendment) Bill 2025",
			"year":         "2025",
			"sponsors": []any{
				map[string]any{"sponsor": map[string]any{
					"by":        map[string]any{"showAs": "Minister for Housing"},
					"isPrimary": true,
				}},
				map[string]any{"sponsor": map[string]any{
					"by":        map[string]any{"memberCode": "Eoin-Ó-Broin.D.2016-03-10"},
					"isPrimary": false,
				}},
			},
		}},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(t, w, "billCount", len(results), results)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop())
	roles, err := client.Legislation(context.Background(), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Legislation returned error: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected 2 sponsor roles, got %d", len(roles))
	}
	if roles[0].Role != "sponsor" || roles[0].MemberRef != "Minister for Housing" {
		t.Errorf("unexpected primary sponsor %+v", roles[0])
	}
	if roles[1].Role != "cosponsor" || roles[1].Year != 2025 {
		t.Errorf("unexpected cosponsor %+v", roles[1])
	}
}

func TestGetPage_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop())
	if _, err := client.Members(context.Background(), 34); err == nil {
		t.Fatal("expected error for 503 response")
	}
}
