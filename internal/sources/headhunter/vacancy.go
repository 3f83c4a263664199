package headhunter

import (
	"strings"
	"time"

	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/sources"
)

type Named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type Salary struct {
	From     int    `json:"from,omitempty"`
	To       int    `json:"to,omitempty"`
	Currency string `json:"currency,omitempty"`
	Gross    bool   `json:"gross,omitempty"`
}

type Employer struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	Trusted      bool   `json:"trusted,omitempty"`
}

type Snippet struct {
	Requirement    string `json:"requirement,omitempty"`
	Responsibility string `json:"responsibility,omitempty"`
}

type Address struct {
	City   string `json:"city,omitempty"`
	Street string `json:"street,omitempty"`
}

type Vacancy struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name,omitempty"`
	Area         Named    `json:"area,omitempty"`
	Address      *Address `json:"address,omitempty"`
	Salary       *Salary  `json:"salary,omitempty"`
	Experience   Named    `json:"experience,omitempty"`
	Schedule     Named    `json:"schedule,omitempty"`
	Employment   Named    `json:"employment,omitempty"`
	Employer     Employer `json:"employer,omitempty"`
	AlternateURL string   `json:"alternate_url,omitempty"`
	Snippet      Snippet  `json:"snippet,omitempty"`
	KeySkills    []Named  `json:"key_skills,omitempty"`
	Archived     bool     `json:"archived,omitempty"`
	PublishedAt  string   `json:"published_at,omitempty"`
}

// ToRecord maps the vacancy onto a listing record of source.
func (v *Vacancy) ToRecord(source string, fetchedAt time.Time) listing.Record {
	location := v.Area.Name
	if v.Address != nil && v.Address.City != "" && !strings.EqualFold(v.Address.City, location) {
		location = v.Address.City + ", " + location
	}

	var salary listing.Salary
	if v.Salary != nil {
		if v.Salary.From > 0 {
			from := float64(v.Salary.From)
			salary.Min = &from
		}
		if v.Salary.To > 0 {
			to := float64(v.Salary.To)
			salary.Max = &to
		}
		if !salary.IsZero() {
			salary.Currency = v.Salary.Currency
		}
	}

	parts := []string{v.Snippet.Requirement, v.Snippet.Responsibility}
	if len(v.KeySkills) > 0 {
		skills := make([]string, 0, len(v.KeySkills))
		for _, s := range v.KeySkills {
			skills = append(skills, s.Name)
		}
		parts = append(parts, "Key skills: "+strings.Join(skills, ", "))
	}

	return listing.Record{
		SourceID:       source,
		ExternalID:     v.ID,
		Title:          strings.TrimSpace(v.Name),
		Company:        strings.TrimSpace(v.Employer.Name),
		Location:       strings.TrimSpace(location),
		Salary:         salary,
		EmploymentType: v.Employment.ID,
		Description:    sources.HTMLText(strings.Join(parts, " ")),
		URL:            v.AlternateURL,
		Remote:         v.Schedule.ID == "remote",
		PostedAt:       sources.ParsePostedAt(v.PublishedAt, fetchedAt),
		FetchedAt:      fetchedAt,
	}
}
