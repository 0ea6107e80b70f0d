package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the review lifecycle of an opportunity. Transitions are
// permissive: any recognized value may replace any other, because
// operators routinely correct mistakes (including re-opening dismissed
// records). Only the value itself is validated.
type Status string

const (
	StatusNew       Status = "new"
	StatusReviewed  Status = "reviewed"
	StatusImported  Status = "imported"
	StatusDismissed Status = "dismissed"
)

// AllStatuses lists the recognized status values in display order.
var AllStatuses = []Status{StatusNew, StatusReviewed, StatusImported, StatusDismissed}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusReviewed, StatusImported, StatusDismissed:
		return true
	}
	return false
}

type Opportunity struct {
	ID               uuid.UUID  `json:"id"`
	NoticeID         string     `json:"notice_id"`
	SolicitationNum  string     `json:"solicitation_number"`
	Title            string     `json:"title"`
	Description      string     `json:"description"` // Sanitized HTML
	NAICS            string     `json:"naics"`
	PSC              string     `json:"psc"`
	SetAside         string     `json:"set_aside"` // Set-aside code, empty when unrestricted
	ResponseDeadline *time.Time `json:"response_deadline"`
	Score            int        `json:"score"` // 0-100
	MatchedNSNs      []string   `json:"matched_nsns"`
	MatchedClassCode string     `json:"matched_class_code"` // Set only when MatchedNSNs is empty
	Status           Status     `json:"status"`
	DismissedReason  *string    `json:"dismissed_reason,omitempty"`
	IsSentinel       bool       `json:"-"` // Bookkeeping rows, excluded from all counts
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CatalogEntry is one stock number the vendor carries. Reference data,
// maintained outside this service.
type CatalogEntry struct {
	NSN      string   `json:"nsn" yaml:"nsn"`
	FSC      string   `json:"fsc" yaml:"fsc"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// PricingRecord is one historical award. Produced by order ingestion
// elsewhere; read-only here. Empty NSN/PSC/NAICS means the field was
// not captured for that award.
type PricingRecord struct {
	ID        int64     `json:"id"`
	NSN       string    `json:"nsn"`
	PSC       string    `json:"psc"`
	NAICS     string    `json:"naics"`
	Keywords  string    `json:"keywords"`
	UnitPrice float64   `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	AwardDate time.Time `json:"award_date"`
	VendorID  string    `json:"vendor_id"`
}

// OrderLink joins an opportunity to a purchase order that resulted from
// it. Created once when the order is linked, never mutated.
type OrderLink struct {
	OpportunityID uuid.UUID `json:"opportunity_id"`
	OrderID       string    `json:"order_id"`
	CreatedAt     time.Time `json:"created_at"`
}
