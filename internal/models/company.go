package models

import "strings"

// CompanyType is the kind of subsoil-use operation a license covers.
type CompanyType string

const (
	// TypeExtraction covers production licenses.
	TypeExtraction CompanyType = "extraction"
	// TypeExploration covers exploration licenses.
	TypeExploration CompanyType = "exploration"
)

// Feed values as delivered by the regional registry.
const (
	feedTypeExtraction  = "добыча"
	feedTypeExploration = "разведка"
)

// ParseCompanyType maps a feed value onto a CompanyType. Unknown values are
// kept verbatim; they are not an error and simply fall outside both buckets
// during aggregation.
func ParseCompanyType(raw string) CompanyType {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case feedTypeExtraction, string(TypeExtraction):
		return TypeExtraction
	case feedTypeExploration, string(TypeExploration):
		return TypeExploration
	default:
		return CompanyType(strings.TrimSpace(raw))
	}
}

// Known reports whether t is extraction or exploration.
func (t CompanyType) Known() bool {
	return t == TypeExtraction || t == TypeExploration
}

// Company is a subsoil user holding a license. Location is the registry key
// of the license parcel and is unique per company record; CompanyTitle is not
// unique, one company may hold several parcels.
type Company struct {
	Location     string      `json:"location"`
	CompanyTitle string      `json:"company_title"`
	Type         CompanyType `json:"type"`
	Category     string      `json:"category"`
}

// LicenseInfo is the license detail the registry returns alongside a parcel
// geometry. All fields are optional strings as delivered.
type LicenseInfo struct {
	ID                string `json:"id,omitempty"`
	ParcelType        string `json:"parcel_type,omitempty"`
	ParcelArea        string `json:"parcel_area,omitempty"`
	LicenseNumber     string `json:"license_number,omitempty"`
	ContractNumber    string `json:"contract_number,omitempty"`
	OblastID          string `json:"oblast_id,omitempty"`
	OblastName        string `json:"oblast_name,omitempty"`
	OblastNameKK      string `json:"oblast_name_kk,omitempty"`
	MineralDeveloper  string `json:"mineral_developer,omitempty"`
	Minerals          string `json:"minerals,omitempty"`
	Deposit           string `json:"deposit,omitempty"`
	ParcelDepth       string `json:"parcel_depth,omitempty"`
	ContractBeginDate string `json:"contract_begin_date,omitempty"`
	ContractEndDate   string `json:"contract_end_date,omitempty"`
	ParcelDate        string `json:"parcel_date,omitempty"`
}
