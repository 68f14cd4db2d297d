// Package oireachtas talks to the Houses of the Oireachtas open-data API
// and syncs members and raw activity facts into the local store.
package oireachtas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// maxPageSize is the API's hard cap; larger limits are silently clamped
	// server-side, so paginate at exactly this size.
	maxPageSize    = 500
	maxPages       = 200
	defaultTimeout = 30 * time.Second
)

// Member is one Dáil member as reported by the API.
type Member struct {
	Code         string
	FullName     string
	FirstName    string
	LastName     string
	PartyCode    string
	PartyName    string
	Constituency string
	HouseNo      int
	Active       bool
}

// DivisionVote is one member's recorded vote in one division. MemberRef is
// the raw identifier from the payload (code, URI or display name) and still
// needs matcher resolution.
type DivisionVote struct {
	DivisionURI string
	MemberRef   string
	Date        *time.Time
	Subject     string
	Choice      string
}

// Question is one parliamentary question.
type Question struct {
	QuestionURI string
	MemberRef   string
	Heading     string
	Kind        string
	AskedAt     *time.Time
}

// SponsorRole is one member's sponsorship of one measure.
type SponsorRole struct {
	MeasureURI string
	MemberRef  string
	Role       string
	Title      string
	Year       int
}

// Client is a paginated reader over the open-data API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

func NewClient(baseURL string, logger zerolog.Logger) *Client {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = "https://api.oireachtas.ie/v1"
	}
	return &Client{
		baseURL: trimmed,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger.With().Str("component", "oireachtas").Logger(),
	}
}

type pageEnvelope struct {
	Head struct {
		Counts map[string]int `json:"counts"`
	} `json:"head"`
	Results []json.RawMessage `json:"results"`
}

type wireRef struct {
	MemberCode string `json:"memberCode"`
	URI        string `json:"uri"`
	ShowAs     string `json:"showAs"`
}

// ref returns the strongest identifier the payload offers. The matcher
// registers all URI variants per member, so any of these can resolve.
func (r wireRef) ref() string {
	if code := strings.TrimSpace(r.MemberCode); code != "" {
		return code
	}
	if uri := strings.TrimSpace(r.URI); uri != "" {
		return uri
	}
	return strings.TrimSpace(r.ShowAs)
}

type wireMember struct {
	MemberCode  string `json:"memberCode"`
	FullName    string `json:"fullName"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Memberships []struct {
		Membership struct {
			House struct {
				HouseCode string `json:"houseCode"`
				HouseNo   string `json:"houseNo"`
			} `json:"house"`
			Parties []struct {
				Party struct {
					PartyCode string `json:"partyCode"`
					ShowAs    string `json:"showAs"`
				} `json:"party"`
			} `json:"parties"`
			Represents []struct {
				Represent struct {
					ShowAs string `json:"showAs"`
				} `json:"represent"`
			} `json:"represents"`
			DateRange struct {
				Start string  `json:"start"`
				End   *string `json:"end"`
			} `json:"dateRange"`
		} `json:"membership"`
	} `json:"memberships"`
}

type wireDivision struct {
	URI     string `json:"uri"`
	Date    string `json:"date"`
	Subject struct {
		ShowAs string `json:"showAs"`
	} `json:"subject"`
	Tallies struct {
		Ta    wireTally `json:"taVotes"`
		Nil   wireTally `json:"nilVotes"`
		Staon wireTally `json:"staonVotes"`
	} `json:"tallies"`
}

type wireTally struct {
	Members []struct {
		Member wireRef `json:"member"`
	} `json:"members"`
}

type wireQuestion struct {
	URI          string  `json:"uri"`
	ShowAs       string  `json:"showAs"`
	QuestionType string  `json:"questionType"`
	Date         string  `json:"date"`
	By           wireRef `json:"by"`
}

type wireBill struct {
	URI          string      `json:"uri"`
	ShortTitleEn string      `json:"shortTitleEn"`
	Year         json.Number `json:"year"`
	Sponsors     []struct {
		Sponsor struct {
			By        wireRef `json:"by"`
			IsPrimary bool    `json:"isPrimary"`
		} `json:"sponsor"`
	} `json:"sponsors"`
}

// Members lists every member of the given Dáil.
func (c *Client) Members(ctx context.Context, houseNo int) ([]Member, error) {
	params := url.Values{}
	params.Set("chamber", "dail")
	params.Set("house_no", strconv.Itoa(houseNo))

	raws, err := c.collect(ctx, "/members", params, "memberCount")
	if err != nil {
		return nil, err
	}

	members := make([]Member, 0, len(raws))
	for _, raw := range raws {
		var item struct {
			Member wireMember `json:"member"`
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			c.logger.Warn().Err(err).Msg("skipping malformed member item")
			continue
		}
		member, ok := c.decodeMember(item.Member, houseNo)
		if !ok {
			continue
		}
		members = append(members, member)
	}
	return members, nil
}

func (c *Client) decodeMember(wire wireMember, houseNo int) (Member, bool) {
	code := strings.TrimSpace(wire.MemberCode)
	fullName := strings.TrimSpace(wire.FullName)
	if code == "" || fullName == "" {
		c.logger.Warn().Str("code", code).Str("name", fullName).Msg("skipping member without code or name")
		return Member{}, false
	}

	member := Member{
		Code:      code,
		FullName:  fullName,
		FirstName: strings.TrimSpace(wire.FirstName),
		LastName:  strings.TrimSpace(wire.LastName),
		HouseNo:   houseNo,
	}

	// Pick the most recent membership of the requested house for party,
	// constituency and active status.
	bestStart := ""
	for _, entry := range wire.Memberships {
		m := entry.Membership
		no, err := strconv.Atoi(strings.TrimSpace(m.House.HouseNo))
		if err != nil || no != houseNo || m.House.HouseCode != "dail" {
			continue
		}
		if m.DateRange.Start < bestStart && bestStart != "" {
			continue
		}
		bestStart = m.DateRange.Start
		member.Active = m.DateRange.End == nil || strings.TrimSpace(*m.DateRange.End) == ""
		if len(m.Parties) > 0 {
			member.PartyCode = strings.TrimSpace(m.Parties[len(m.Parties)-1].Party.PartyCode)
			member.PartyName = strings.TrimSpace(m.Parties[len(m.Parties)-1].Party.ShowAs)
		}
		if len(m.Represents) > 0 {
			member.Constituency = strings.TrimSpace(m.Represents[0].Represent.ShowAs)
		}
	}
	return member, true
}

// Divisions lists per-member votes for divisions of the given Dáil since the
// cutoff date, one row per member per division.
func (c *Client) Divisions(ctx context.Context, houseNo int, since time.Time) ([]DivisionVote, error) {
	params := url.Values{}
	params.Set("chamber_type", "house")
	params.Set("chamber", "dail")
	params.Set("house_no", strconv.Itoa(houseNo))
	params.Set("date_start", since.UTC().Format(time.DateOnly))

	raws, err := c.collect(ctx, "/divisions", params, "divisionCount")
	if err != nil {
		return nil, err
	}

	var votes []DivisionVote
	for _, raw := range raws {
		var item struct {
			Division wireDivision `json:"division"`
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			c.logger.Warn().Err(err).Msg("skipping malformed division item")
			continue
		}
		div := item.Division
		if strings.TrimSpace(div.URI) == "" {
			c.logger.Warn().Msg("skipping division without uri")
			continue
		}
		date := parseAPIDate(div.Date)
		tallies := []struct {
			tally  wireTally
			choice string
		}{
			{div.Tallies.Ta, "ta"},
			{div.Tallies.Nil, "nil"},
			{div.Tallies.Staon, "staon"},
		}
		for _, t := range tallies {
			for _, voter := range t.tally.Members {
				ref := voter.Member.ref()
				if ref == "" {
					continue
				}
				votes = append(votes, DivisionVote{
					DivisionURI: div.URI,
					MemberRef:   ref,
					Date:        date,
					Subject:     strings.TrimSpace(div.Subject.ShowAs),
					Choice:      t.choice,
				})
			}
		}
	}
	return votes, nil
}

// Questions lists parliamentary questions since the cutoff date.
func (c *Client) Questions(ctx context.Context, since time.Time) ([]Question, error) {
	params := url.Values{}
	params.Set("date_start", since.UTC().Format(time.DateOnly))

	raws, err := c.collect(ctx, "/questions", params, "questionCount")
	if err != nil {
		return nil, err
	}

	questions := make([]Question, 0, len(raws))
	for _, raw := range raws {
		var item struct {
			Question wireQuestion `json:"question"`
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			c.logger.Warn().Err(err).Msg("skipping malformed question item")
			continue
		}
		q := item.Question
		if strings.TrimSpace(q.URI) == "" || q.By.ref() == "" {
			c.logger.Warn().Str("uri", q.URI).Msg("skipping question without uri or asker")
			continue
		}
		kind := strings.ToLower(strings.TrimSpace(q.QuestionType))
		if kind == "" {
			kind = "written"
		}
		questions = append(questions, Question{
			QuestionURI: q.URI,
			MemberRef:   q.By.ref(),
			Heading:     strings.TrimSpace(q.ShowAs),
			Kind:        kind,
			AskedAt:     parseAPIDate(q.Date),
		})
	}
	return questions, nil
}

// Legislation lists sponsorship roles on measures introduced since the
// cutoff date, one row per sponsor per measure.
func (c *Client) Legislation(ctx context.Context, since time.Time) ([]SponsorRole, error) {
	params := url.Values{}
	params.Set("date_start", since.UTC().Format(time.DateOnly))

	raws, err := c.collect(ctx, "/legislation", params, "billCount")
	if err != nil {
		return nil, err
	}

	var roles []SponsorRole
	for _, raw := range raws {
		var item struct {
			Bill wireBill `json:"bill"`
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			c.logger.Warn().Err(err).Msg("skipping malformed legislation item")
			continue
		}
		bill := item.Bill
		if strings.TrimSpace(bill.URI) == "" {
			c.logger.Warn().Msg("skipping bill without uri")
			continue
		}
		year := 0
		if y, err := bill.Year.Int64(); err == nil {
			year = int(y)
		}
		for _, entry := range bill.Sponsors {
			ref := entry.Sponsor.By.ref()
			if ref == "" {
				continue
			}
			role := "cosponsor"
			if entry.Sponsor.IsPrimary {
				role = "sponsor"
			}
			roles = append(roles, SponsorRole{
				MeasureURI: bill.URI,
				MemberRef:  ref,
				Role:       role,
				Title:      strings.TrimSpace(bill.ShortTitleEn),
				Year:       year,
			})
		}
	}
	return roles, nil
}

// collect walks offset pagination until a short page or the reported total.
func (c *Client) collect(ctx context.Context, path string, params url.Values, countKey string) ([]json.RawMessage, error) {
	var all []json.RawMessage
	for page := 0; page < maxPages; page++ {
		env, err := c.getPage(ctx, path, params, page*maxPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, env.Results...)
		if len(env.Results) < maxPageSize {
			break
		}
		if total := env.Head.Counts[countKey]; total > 0 && len(all) >= total {
			break
		}
	}
	return all, nil
}

func (c *Client) getPage(ctx context.Context, path string, params url.Values, skip int) (*pageEnvelope, error) {
	query := url.Values{}
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	query.Set("limit", strconv.Itoa(maxPageSize))
	query.Set("skip", strconv.Itoa(skip))

	endpoint := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s skip=%d: %w", path, skip, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s skip=%d: unexpected status %s", path, skip, resp.Status)
	}

	var env pageEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 32<<20)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s page skip=%d: %w", path, skip, err)
	}
	return &env, nil
}

func parseAPIDate(raw string) *time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	parsed, err := time.Parse(time.DateOnly, trimmed)
	if err != nil {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}
