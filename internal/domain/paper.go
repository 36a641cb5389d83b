package domain

import (
	"fmt"
	"strings"
	"time"
)

// PaperRecord is a core entity describing one paper as returned by the
// source search API. Immutable once fetched.
type PaperRecord struct {
	ID         string
	Title      string
	Authors    []string
	Summary    string
	Published  time.Time
	Updated    time.Time
	Categories []string
	PDFURL     string
}

// SummaryRecord is the durable artifact derived from a PaperRecord:
// the generated digest plus a snapshot of the paper metadata.
type SummaryRecord struct {
	PaperID     string    `json:"paper_id"`
	Title       string    `json:"title"`
	Authors     []string  `json:"authors"`
	Categories  []string  `json:"categories"`
	PDFURL      string    `json:"pdf_url"`
	Digest      string    `json:"summary"`
	ProcessedAt time.Time `json:"processed_at"`
}

// PaperType is the (category, topic) pairing used as the unit of
// scheduling and result caching.
type PaperType struct {
	Category string
	Topic    string
}

// Key renders the canonical "category/topic" form used as map and file key.
func (p PaperType) Key() string {
	cat := p.Category
	if cat == "" {
		cat = "all"
	}
	return fmt.Sprintf("%s/%s", cat, p.Topic)
}

// ParsePaperType reverses Key. Topics may contain slashes; only the first
// separator splits.
func ParsePaperType(key string) PaperType {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 {
		return PaperType{Category: "all", Topic: key}
	}
	return PaperType{Category: parts[0], Topic: parts[1]}
}

// Channel identifies the delivery mechanism of a subscription.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// Subscription binds an owner to one paper-type over one delivery channel.
// The (category, topic) pair is unique per owner.
type Subscription struct {
	OwnerID  string  `json:"owner_id"`
	Channel  Channel `json:"channel"`
	Category string  `json:"category"`
	Topic    string  `json:"topic"`
}

// PaperType returns the scheduling key for this subscription.
func (s Subscription) PaperType() PaperType {
	return PaperType{Category: s.Category, Topic: s.Topic}
}

// Matches reports whether the subscription covers the given pair,
// case-insensitive on both fields.
func (s Subscription) Matches(category, topic string) bool {
	return strings.EqualFold(s.Category, category) && strings.EqualFold(s.Topic, topic)
}
