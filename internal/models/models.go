package models

import "strings"

// Profile is the cached copy of the signed-in viewer's account.
type Profile struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	NickName    string   `json:"nickName"`
	Icon        string   `json:"icon,omitempty"`
	Note        string   `json:"note,omitempty"`
	Email       string   `json:"email,omitempty"`
	MemberID    *int64   `json:"memberId"`
	MemberPrice *float64 `json:"memberPrice,omitempty"`
	MemberTags  string   `json:"memberTags,omitempty"`
	Status      int      `json:"status"`
	UserType    int      `json:"userType"`
	CreateTime  string   `json:"createTime,omitempty"`
	LoginTime   string   `json:"loginTime,omitempty"`
	StopDate    string   `json:"stopDate,omitempty"`
}

// IsVIP reports whether the profile carries a membership.
func (p *Profile) IsVIP() bool {
	return p != nil && p.MemberID != nil
}

// Session is the locally persisted credential plus the last-known profile.
type Session struct {
	Token   string   `json:"token"`
	Profile *Profile `json:"userInfo"`
}

// IsZero reports whether the session holds nothing.
func (s Session) IsZero() bool {
	return s.Token == "" && s.Profile == nil
}

// LoginTokens is the payload returned by a successful login.
type LoginTokens struct {
	TokenHead string `json:"tokenHead"`
	Token     string `json:"token"`
}

// Bearer returns the credential stored and replayed in the Authorization header.
func (t LoginTokens) Bearer() string {
	return t.TokenHead + t.Token
}

// VideoSummary is a read-only catalog entry.
type VideoSummary struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Picture     string `json:"picture"`
	ShortURL    string `json:"shortUrl"`
	LongURL     string `json:"longUrl"`
	TotalWatch  int64  `json:"totalWatch"`
	PublishDate string `json:"publishDate"`
	Tags        string `json:"tags"`
	Reduce      string `json:"reduce"`
	Status      int    `json:"status"`
}

// TagList splits the delimited tag string into trimmed, non-empty tags.
func (v VideoSummary) TagList() []string {
	fields := strings.FieldsFunc(v.Tags, func(r rune) bool {
		return r == ',' || r == '，' || r == ';' || r == '|'
	})
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := strings.TrimSpace(f); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// StreamURL returns the long stream when present, falling back to the short one.
func (v VideoSummary) StreamURL() string {
	if v.LongURL != "" {
		return v.LongURL
	}
	return v.ShortURL
}

// Page is one slice of a paginated list resource.
type Page[T any] struct {
	Items      []T
	PageNumber int
	TotalPages int
}

// HistoryEntry records a video the viewer opened.
type HistoryEntry struct {
	ID          int64  `json:"id"`
	VideoID     int64  `json:"videoId"`
	VideoName   string `json:"videoName"`
	VideoReduce string `json:"videoReduce"`
	Picture     string `json:"picture"`
	CreateDate  string `json:"createDate"`
	UserID      int64  `json:"userId"`
	UserName    string `json:"userName"`
}

// Tier enumerates membership durations.
type Tier int

const (
	TierMonthly Tier = iota
	TierQuarterly
	TierYearly
)

func (t Tier) String() string {
	switch t {
	case TierMonthly:
		return "monthly"
	case TierQuarterly:
		return "quarterly"
	case TierYearly:
		return "yearly"
	default:
		return "unknown"
	}
}

// MembershipPlan is a purchasable VIP tier.
type MembershipPlan struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Tier  Tier    `json:"type"`
	Price float64 `json:"price"`
	Note  string  `json:"note,omitempty"`
}
