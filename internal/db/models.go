package db

import (
	"encoding/json"
	"time"
)

// PipelineRun maps pulse.pipeline_runs.
type PipelineRun struct {
	RunID        int64           `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID      string          `gorm:"column:run_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Kind         string          `gorm:"column:kind;type:text;not null"`
	StartedAt    time.Time       `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt   *time.Time      `gorm:"column:finished_at;type:timestamptz"`
	Status       string          `gorm:"column:status;type:text;not null;default:running"`
	Report       json.RawMessage `gorm:"column:report;type:jsonb"`
	ErrorMessage *string         `gorm:"column:error_message;type:text"`
	CreatedAt    time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (PipelineRun) TableName() string { return "pulse.pipeline_runs" }

// NewsArticle maps pulse.articles.
type NewsArticle struct {
	ArticleID        int64      `gorm:"column:article_id;primaryKey;autoIncrement"`
	ArticleUUID      string     `gorm:"column:article_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Source           string     `gorm:"column:source;type:text;not null"`
	URL              string     `gorm:"column:url;type:text;not null;unique"`
	Title            string     `gorm:"column:title;type:text;not null"`
	Body             string     `gorm:"column:body;type:text;not null;default:''"`
	Summary          *string    `gorm:"column:summary;type:text"`
	ContentHash      []byte     `gorm:"column:content_hash;type:bytea"`
	Language         string     `gorm:"column:language;type:text;not null;default:en"`
	PublishedAt      *time.Time `gorm:"column:published_at;type:timestamptz"`
	FetchedAt        time.Time  `gorm:"column:fetched_at;type:timestamptz;not null;default:now()"`
	Visible          bool       `gorm:"column:visible;type:boolean;not null;default:false"`
	Importance       *int       `gorm:"column:importance;type:integer"`
	ImportanceReason *string    `gorm:"column:importance_reason;type:text"`
	StoryType        *string    `gorm:"column:story_type;type:text"`
	PrimarySubject   bool       `gorm:"column:primary_subject;type:boolean;not null;default:false"`
	NeedsScoring     bool       `gorm:"column:needs_scoring;type:boolean;not null;default:false"`
	Processed        bool       `gorm:"column:processed;type:boolean;not null;default:false"`
	ProcessedReason  *string    `gorm:"column:processed_reason;type:text"`
	CreatedAt        time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (NewsArticle) TableName() string { return "pulse.articles" }

// Member maps pulse.members.
type Member struct {
	MemberID     int64     `gorm:"column:member_id;primaryKey;autoIncrement"`
	MemberCode   string    `gorm:"column:member_code;type:text;not null;unique"`
	FullName     string    `gorm:"column:full_name;type:text;not null"`
	FirstName    string    `gorm:"column:first_name;type:text;not null;default:''"`
	LastName     string    `gorm:"column:last_name;type:text;not null;default:''"`
	PartyCode    string    `gorm:"column:party_code;type:text;not null;default:''"`
	PartyName    string    `gorm:"column:party_name;type:text;not null;default:''"`
	Constituency string    `gorm:"column:constituency;type:text;not null;default:''"`
	HouseNo      int       `gorm:"column:house_no;type:integer;not null;default:0"`
	Active       bool      `gorm:"column:active;type:boolean;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt    time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Member) TableName() string { return "pulse.members" }

// MemberAlias maps pulse.member_aliases.
type MemberAlias struct {
	AliasID   int64     `gorm:"column:alias_id;primaryKey;autoIncrement"`
	MemberID  int64     `gorm:"column:member_id;type:bigint;not null;index"`
	Alias     string    `gorm:"column:alias;type:text;not null;unique"`
	Kind      string    `gorm:"column:kind;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (MemberAlias) TableName() string { return "pulse.member_aliases" }

// ArticleMention maps pulse.article_mentions.
type ArticleMention struct {
	MentionID  int64     `gorm:"column:mention_id;primaryKey;autoIncrement"`
	ArticleID  int64     `gorm:"column:article_id;type:bigint;not null;uniqueIndex:ux_mention_article_member"`
	MemberID   int64     `gorm:"column:member_id;type:bigint;not null;uniqueIndex:ux_mention_article_member"`
	Confidence float64   `gorm:"column:confidence;type:double precision;not null;default:0"`
	Method     string    `gorm:"column:method;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ArticleMention) TableName() string { return "pulse.article_mentions" }

// ScoreEvent maps pulse.score_events.
type ScoreEvent struct {
	EventID      int64      `gorm:"column:event_id;primaryKey;autoIncrement"`
	EventUUID    string     `gorm:"column:event_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	MemberID     int64      `gorm:"column:member_id;type:bigint;not null;index"`
	ArticleID    *int64     `gorm:"column:article_id;type:bigint"`
	Kind         string     `gorm:"column:kind;type:text;not null"`
	RawDelta     float64    `gorm:"column:raw_delta;type:double precision;not null"`
	AppliedDelta *float64   `gorm:"column:applied_delta;type:double precision"`
	VoteIndex    *int       `gorm:"column:vote_index;type:integer"`
	ScoreBefore  *float64   `gorm:"column:score_before;type:double precision"`
	ScoreAfter   *float64   `gorm:"column:score_after;type:double precision"`
	Status       string     `gorm:"column:status;type:text;not null;default:pending"`
	CreatedAt    time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	AppliedAt    *time.Time `gorm:"column:applied_at;type:timestamptz"`
}

func (ScoreEvent) TableName() string { return "pulse.score_events" }

// MemberScore maps pulse.member_scores, one wide row per member.
type MemberScore struct {
	ScoreID       int64      `gorm:"column:score_id;primaryKey;autoIncrement"`
	MemberID      int64      `gorm:"column:member_id;type:bigint;not null;unique"`
	NewsTrust     float64    `gorm:"column:news_trust;type:double precision;not null;default:50"`
	NewsVoteCount int        `gorm:"column:news_vote_count;type:integer;not null;default:0"`
	Effectiveness float64    `gorm:"column:effectiveness;type:double precision;not null;default:0"`
	Consistency   float64    `gorm:"column:consistency;type:double precision;not null;default:0"`
	Constituency  float64    `gorm:"column:constituency;type:double precision;not null;default:0"`
	Overall       float64    `gorm:"column:overall;type:double precision;not null;default:0"`
	ComputedAt    *time.Time `gorm:"column:computed_at;type:timestamptz"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (MemberScore) TableName() string { return "pulse.member_scores" }

// DivisionVote maps pulse.division_votes, one row per member per division.
type DivisionVote struct {
	VoteID       int64      `gorm:"column:vote_id;primaryKey;autoIncrement"`
	DivisionURI  string     `gorm:"column:division_uri;type:text;not null;uniqueIndex:ux_division_member"`
	MemberID     int64      `gorm:"column:member_id;type:bigint;not null;uniqueIndex:ux_division_member"`
	DivisionDate *time.Time `gorm:"column:division_date;type:timestamptz"`
	Subject      string     `gorm:"column:subject;type:text;not null;default:''"`
	VoteChoice   string     `gorm:"column:vote_choice;type:text;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (DivisionVote) TableName() string { return "pulse.division_votes" }

// MemberQuestion maps pulse.questions.
type MemberQuestion struct {
	QuestionID  int64      `gorm:"column:question_id;primaryKey;autoIncrement"`
	QuestionURI string     `gorm:"column:question_uri;type:text;not null;unique"`
	MemberID    int64      `gorm:"column:member_id;type:bigint;not null;index"`
	Heading     string     `gorm:"column:heading;type:text;not null;default:''"`
	Kind        string     `gorm:"column:kind;type:text;not null;default:written"`
	AskedAt     *time.Time `gorm:"column:asked_at;type:timestamptz"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (MemberQuestion) TableName() string { return "pulse.questions" }

// LegislationRole maps pulse.legislation, one row per member per measure.
type LegislationRole struct {
	LegislationID int64     `gorm:"column:legislation_id;primaryKey;autoIncrement"`
	MeasureURI    string    `gorm:"column:measure_uri;type:text;not null;uniqueIndex:ux_measure_member"`
	MemberID      int64     `gorm:"column:member_id;type:bigint;not null;uniqueIndex:ux_measure_member"`
	Role          string    `gorm:"column:role;type:text;not null"`
	Title         string    `gorm:"column:title;type:text;not null;default:''"`
	Year          int       `gorm:"column:year;type:integer;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (LegislationRole) TableName() string { return "pulse.legislation" }

// AppSetting maps pulse.app_settings.
type AppSetting struct {
	Key       string    `gorm:"column:key;type:text;primaryKey"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (AppSetting) TableName() string { return "pulse.app_settings" }

func autoMigrateModels() []any {
	return []any{
		&PipelineRun{},
		&NewsArticle{},
		&Member{},
		&MemberAlias{},
		&ArticleMention{},
		&ScoreEvent{},
		&MemberScore{},
		&DivisionVote{},
		&MemberQuestion{},
		&LegislationRole{},
		&AppSetting{},
	}
}
