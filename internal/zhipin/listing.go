package zhipin

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"
)

const (
	ListingIDField      = "ID"
	ListingCompanyField = "Company"
)

// Listing is one scraped job posting. Score is the only field changed after
// the scrape.
type Listing struct {
	ID                string `json:"job_id"`
	Title             string `json:"title"`
	Company           string `json:"company"`
	Salary            string `json:"salary,omitempty"`
	City              string `json:"city,omitempty"`
	Experience        string `json:"experience,omitempty"`
	Education         string `json:"education,omitempty"`
	Description       string `json:"description,omitempty"`
	Recruiter         string `json:"hr_name,omitempty"`
	RecruiterActivity string `json:"hr_active_status,omitempty"`
	Score             int    `json:"match_score"`

	AI *AIAssessment `json:"ai,omitempty"`
}

// AIAssessment is what the AI matcher said about a listing. Error is set
// instead of the other fields when the evaluation failed.
type AIAssessment struct {
	Fit     bool    `json:"fit"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason,omitempty"`
	Message string  `json:"message,omitempty"`
	Raw     string  `json:"-"`
	Error   string  `json:"error,omitempty"`
}

// URL returns the listing detail page, or "" without an identifier.
func (l *Listing) URL() string {
	if l.ID == "" {
		return ""
	}
	return DetailURL(l.ID)
}

func (l *Listing) GetStringField(name string) string {
	switch name {
	case ListingIDField:
		return l.ID
	case ListingCompanyField:
		return l.Company
	default:
		return ""
	}
}

type Listings struct {
	Items []*Listing
}

func (l *Listings) Len() int {
	return len(l.Items)
}

func (l *Listings) FindByID(id string) *Listing {
	for _, listing := range l.Items {
		if listing.ID == id {
			return listing
		}
	}
	return nil
}

// Exclude drops every listing whose field equals one of targets and returns
// the IDs of the dropped listings. Order of the rest is kept.
func (l *Listings) Exclude(field string, targets []string) []string {
	if len(targets) == 0 {
		return nil
	}

	var excluded []string
	l.Items = slices.DeleteFunc(l.Items, func(listing *Listing) bool {
		if slices.Contains(targets, listing.GetStringField(field)) {
			excluded = append(excluded, listing.ID)
			return true
		}
		return false
	})
	return excluded
}

// Keep retains only the listings for which keep returns true and returns
// the number dropped.
func (l *Listings) Keep(keep func(*Listing) bool) int {
	before := len(l.Items)
	l.Items = slices.DeleteFunc(l.Items, func(listing *Listing) bool {
		return !keep(listing)
	})
	return before - len(l.Items)
}

// ReportByEmployer groups listings under "company (n)" keys.
func (l *Listings) ReportByEmployer() map[string][]map[string]string {
	counts := make(map[string]int)
	for _, listing := range l.Items {
		counts[listing.Company]++
	}

	report := make(map[string][]map[string]string)
	for _, listing := range l.Items {
		key := fmt.Sprintf("%s (%d)", listing.Company, counts[listing.Company])
		entry := map[string]string{
			"title":      listing.Title,
			"url":        listing.URL(),
			"city":       listing.City,
			"salary":     listing.Salary,
			"experience": listing.Experience,
			"education":  listing.Education,
			"recruiter":  listing.Recruiter,
			"activity":   listing.RecruiterActivity,
			"score":      strconv.Itoa(listing.Score),
		}
		if listing.AI != nil {
			if listing.AI.Error != "" {
				entry["ai_error"] = listing.AI.Error
			} else {
				entry["ai_fit"] = strconv.FormatBool(listing.AI.Fit)
				entry["ai_score"] = strconv.FormatFloat(listing.AI.Score, 'f', -1, 64)
				entry["ai_reason"] = listing.AI.Reason
				entry["ai_message"] = listing.AI.Message
			}
		}
		report[key] = append(report[key], entry)
	}
	return report
}

func (l *Listings) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "listings_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func (l *Listings) ToExcluded() *ExcludedListings {
	excluded := &ExcludedListings{}
	for _, listing := range l.Items {
		if listing.ID == "" {
			continue
		}
		excluded.Items = append(excluded.Items, &ExcludedListing{
			ID:         listing.ID,
			URL:        listing.URL(),
			Company:    listing.Company,
			ExcludedAt: time.Now().UTC(),
		})
	}
	return excluded
}

type ExcludedListings struct {
	Items []*ExcludedListing
}

type ExcludedListing struct {
	ID         string
	URL        string
	Company    string
	ExcludedAt time.Time
}

// GetExcludedListingsFromFile reads an exclude file. A missing or empty file
// yields an empty list.
func GetExcludedListingsFromFile(path string) (*ExcludedListings, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ExcludedListings{}, nil
		}
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedListings{}, nil
	}

	var excluded ExcludedListings
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, fmt.Errorf("decode exclude file %s: %w", path, err)
	}
	return &excluded, nil
}

func (e *ExcludedListings) Append(s *ExcludedListings) {
	e.Items = append(e.Items, s.Items...)
}

func (e *ExcludedListings) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, listing := range e.Items {
		ids = append(ids, listing.ID)
	}
	return ids
}

func (e *ExcludedListings) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
