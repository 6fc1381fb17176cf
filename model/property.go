package model

import (
	"time"
)

// ManagementType is the legal administration form of a property
type ManagementType string

const (
	// ManagementWEG is a condominium owners' association (Wohnungseigentümergemeinschaft)
	ManagementWEG ManagementType = "WEG"
	// ManagementMV is rental management (Mietverwaltung)
	ManagementMV ManagementType = "MV"
)

// UnitType classifies a unit inside a building
type UnitType string

const (
	UnitApartment UnitType = "Apartment"
	UnitOffice    UnitType = "Office"
	UnitGarden    UnitType = "Garden"
	UnitParking   UnitType = "Parking"
)

// ManagementTypes lists every accepted management type
var ManagementTypes = []ManagementType{ManagementWEG, ManagementMV}

// UnitTypes lists every accepted unit type
var UnitTypes = []UnitType{UnitApartment, UnitOffice, UnitGarden, UnitParking}

// Property is the root of the property -> buildings -> units tree
type Property struct {
	ID              string         `json:"id"`
	Tenant          string         `json:"-"`
	Name            string         `json:"name"`
	PropertyNumber  string         `json:"propertyNumber"`
	ManagementType  ManagementType `json:"managementType"`
	PropertyManager string         `json:"propertyManager"`
	Accountant      string         `json:"accountant"`
	SourceDocument  *string        `json:"sourceDocument"`
	Buildings       []Building     `json:"buildings"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Building belongs to exactly one property. Deleting the property deletes its buildings.
type Building struct {
	ID          string    `json:"id"`
	PropertyID  string    `json:"propertyId"`
	Name        string    `json:"name"`
	Street      string    `json:"street"`
	HouseNumber string    `json:"houseNumber"`
	ZipCode     string    `json:"zipCode"`
	City        string    `json:"city"`
	Units       []Unit    `json:"units"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PropertySummary is the list view of a property
type PropertySummary struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	PropertyNumber  string            `json:"propertyNumber"`
	ManagementType  ManagementType    `json:"managementType"`
	PropertyManager string            `json:"propertyManager"`
	Accountant      string            `json:"accountant"`
	Buildings       []BuildingSummary `json:"buildings"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// BuildingSummary carries the building columns shown in property lists
type BuildingSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Street      string `json:"street"`
	HouseNumber string `json:"houseNumber"`
}

// Unit belongs to exactly one building. Deleting the building deletes its units.
type Unit struct {
	ID               string    `json:"id"`
	BuildingID       string    `json:"buildingId"`
	UnitNumber       string    `json:"unitNumber"`
	UnitType         UnitType  `json:"unitType"`
	Floor            string    `json:"floor"`
	Entrance         *string   `json:"entrance"`
	SizeM2           float64   `json:"sizeM2"`
	CoOwnershipShare string    `json:"coOwnershipShare"`
	ConstructionYear *int      `json:"constructionYear"`
	RoomCount        float64   `json:"roomCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

// UnitCount returns the number of units over all buildings
func (p *Property) UnitCount() int {
	n := 0
	for _, b := range p.Buildings {
		n += len(b.Units)
	}
	return n
}
