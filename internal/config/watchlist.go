package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"jobmate/careerwatch-service/internal/model"
)

// Watchlist is the per-sweep input: ordered entries and one filter spec.
type Watchlist struct {
	Entries []model.WatchEntry
	Filters model.FilterSpec
}

// Provider supplies the watchlist. It is asked once per sweep so edits to
// the file take effect without a restart.
type Provider interface {
	Load(ctx context.Context) (*Watchlist, error)
}

// FileProvider reads the watchlist from a YAML file.
type FileProvider struct {
	Path string
}

// NewFileProvider returns a provider for path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{Path: path}
}

type watchlistFile struct {
	Companies []companyEntry `yaml:"companies"`
	Filters   filtersBlock   `yaml:"filters"`
}

type companyEntry struct {
	Name       string `yaml:"name"`
	CareersURL string `yaml:"careers_url"`
	ATSType    string `yaml:"ats_type"`
	BoardID    string `yaml:"board_id"`
}

// filtersBlock uses pointers so an absent key can be told from an empty one:
// absent keys take the defaults, an explicit empty list stays empty.
type filtersBlock struct {
	Locations                 *[]string `yaml:"locations"`
	LevelKeywords             *[]string `yaml:"level_keywords"`
	TitleKeywords             *[]string `yaml:"title_keywords"`
	ExcludeKeywords           *[]string `yaml:"exclude_keywords"`
	MaxDaysSincePosted        *int      `yaml:"max_days_since_posted"`
	AllowEmptyLocation        *bool     `yaml:"allow_empty_location"`
	RequireLocationFieldMatch *bool     `yaml:"require_location_field_match"`
}

// Load implements Provider. A missing or unparseable file is an error.
func (p *FileProvider) Load(_ context.Context) (*Watchlist, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist %s: %w", p.Path, err)
	}
	return ParseWatchlist(data)
}

// ParseWatchlist decodes watchlist YAML and applies filter defaults.
func ParseWatchlist(data []byte) (*Watchlist, error) {
	var f watchlistFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse watchlist: %w", err)
	}

	wl := &Watchlist{Filters: f.Filters.spec()}
	seen := make(map[string]struct{}, len(f.Companies))
	var errs []error
	for i, c := range f.Companies {
		entry, err := c.entry()
		if err != nil {
			errs = append(errs, fmt.Errorf("companies[%d]: %w", i, err))
			continue
		}
		if _, dup := seen[entry.Name]; dup {
			errs = append(errs, fmt.Errorf("companies[%d]: duplicate name %q", i, entry.Name))
			continue
		}
		seen[entry.Name] = struct{}{}
		wl.Entries = append(wl.Entries, entry)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return wl, nil
}

func (c companyEntry) entry() (model.WatchEntry, error) {
	e := model.WatchEntry{
		Name:       strings.TrimSpace(c.Name),
		CareersURL: strings.TrimSpace(c.CareersURL),
		BoardID:    strings.TrimSpace(c.BoardID),
	}
	if e.Name == "" {
		return e, errors.New("name is required")
	}
	if e.CareersURL == "" {
		return e, fmt.Errorf("%s: careers_url is required", e.Name)
	}
	if t := strings.ToLower(strings.TrimSpace(c.ATSType)); t != "" {
		kind, err := model.ParseKind(t)
		if err != nil {
			return e, fmt.Errorf("%s: %w", e.Name, err)
		}
		e.Kind = kind
	}
	return e, nil
}

func (b filtersBlock) spec() model.FilterSpec {
	s := DefaultFilterSpec()
	if b.Locations != nil {
		s.Locations = *b.Locations
	}
	if b.LevelKeywords != nil {
		s.LevelKeywords = *b.LevelKeywords
	}
	if b.TitleKeywords != nil {
		s.TitleKeywords = *b.TitleKeywords
	}
	if b.ExcludeKeywords != nil {
		s.ExcludeKeywords = *b.ExcludeKeywords
	}
	if b.MaxDaysSincePosted != nil {
		s.MaxDaysSincePosted = *b.MaxDaysSincePosted
	}
	if b.AllowEmptyLocation != nil {
		s.AllowEmptyLocation = *b.AllowEmptyLocation
	}
	if b.RequireLocationFieldMatch != nil {
		s.RequireLocationFieldMatch = *b.RequireLocationFieldMatch
	}
	return s
}

// DefaultFilterSpec targets Canadian new-grad and intern software roles.
func DefaultFilterSpec() model.FilterSpec {
	return model.FilterSpec{
		Locations: []string{
			"Canada", "Toronto", "Greater Toronto Area", "GTA", "Ontario", "ON",
			"Remote - Canada", "Vancouver", "British Columbia", "BC", "Montreal",
			"Quebec", "QC", "Alberta", "Calgary", "Ottawa",
		},
		LevelKeywords: []string{
			"intern", "internship", "new grad", "new graduate", "SWE I",
			"Software Engineer I", "entry level", "entry-level",
		},
		TitleKeywords: []string{
			"software", "backend", "full stack", "fullstack", "developer", "engineer",
		},
		ExcludeKeywords: []string{
			"senior", "staff", "principal", "lead ", "lead,", "architect", "director",
			"distinguished", "fellow", "head of", "vp ", "vp,", "vice president",
			"sr.", "sr ", "sr,", "manager", "l5", "l6", "l7", "engineer ii",
			"engineer iii", "engineer 2", "engineer 3", "tech lead",
		},
		MaxDaysSincePosted: 30,
	}
}
