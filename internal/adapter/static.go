package adapter

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/veridex-labs/trustpipe/internal/model"
)

// staticSeed is the on-disk shape of a static adapter fixture.
type staticSeed struct {
	Candidates []struct {
		OrgNumber   string `yaml:"org_number"`
		LegalName   string `yaml:"legal_name"`
		CountryCode string `yaml:"country_code"`
		Domain      string `yaml:"domain"`
	} `yaml:"candidates"`
	Registry map[string]*seedRegistryEntry `yaml:"registry"` // key "CC/orgnum"
}

// seedRegistryEntry mirrors model.RegistryData with yaml tags.
type seedRegistryEntry struct {
	CompanyStatus  string   `yaml:"company_status"`
	Address        string   `yaml:"address"`
	City           string   `yaml:"city"`
	PostalCode     string   `yaml:"postal_code"`
	IndustryCodes  []string `yaml:"industry_codes"`
	EmployeeCount  int      `yaml:"employee_count"`
	VATRegistered  bool     `yaml:"vat_registered"`
	VATActive      bool     `yaml:"vat_active"`
	RegisteredDate string   `yaml:"registered_date"`
}

func (e *seedRegistryEntry) toModel() *model.RegistryData {
	if e == nil {
		return nil
	}
	return &model.RegistryData{
		CompanyStatus:  e.CompanyStatus,
		Address:        e.Address,
		City:           e.City,
		PostalCode:     e.PostalCode,
		IndustryCodes:  e.IndustryCodes,
		EmployeeCount:  e.EmployeeCount,
		VATRegistered:  e.VATRegistered,
		VATActive:      e.VATActive,
		RegisteredDate: e.RegisteredDate,
	}
}

// StaticAdapter serves candidates and registry snapshots from a local
// YAML file. Used for seeding local environments and integration runs
// without touching external registries.
type StaticAdapter struct {
	name string
	seed staticSeed
}

// NewStaticAdapter loads a seed file. The adapter is immutable after
// load.
func NewStaticAdapter(name, path string) (*StaticAdapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "adapter: read seed file %s", path)
	}
	var seed staticSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, eris.Wrapf(err, "adapter: parse seed file %s", path)
	}
	if name == "" {
		name = "static"
	}
	return &StaticAdapter{name: name, seed: seed}, nil
}

func (a *StaticAdapter) Name() string { return a.name }

// Discover filters the seed candidates by country, industry-agnostic.
// A query string matches as a case-insensitive substring of the legal
// name.
func (a *StaticAdapter) Discover(_ context.Context, q DiscoverQuery) ([]model.CandidateRecord, error) {
	var out []model.CandidateRecord
	needle := strings.ToLower(q.Query)
	for _, c := range a.seed.Candidates {
		if q.CountryCode != "" && c.CountryCode != q.CountryCode {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(c.LegalName), needle) {
			continue
		}
		out = append(out, model.CandidateRecord{
			OrgNumber:   c.OrgNumber,
			LegalName:   c.LegalName,
			CountryCode: c.CountryCode,
			Domain:      c.Domain,
		})
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// FetchRegistry looks up the seeded snapshot for countryCode/orgNumber.
func (a *StaticAdapter) FetchRegistry(_ context.Context, countryCode, orgNumber string) (*model.RegistryData, error) {
	return a.seed.Registry[countryCode+"/"+orgNumber].toModel(), nil
}
