package model

import (
	"errors"
	"fmt"
)

// ErrBuildingIndexOutOfRange is returned when an extracted unit points at a building that does not exist
var ErrBuildingIndexOutOfRange = errors.New("unit building index out of range")

// LegalData is the structured content of a declaration of division (Teilungserklärung)
// as returned by the extraction pipeline. Buildings and units arrive as flat parallel
// lists; units reference their building by position.
type LegalData struct {
	Property  LegalProperty   `json:"property"`
	Buildings []LegalBuilding `json:"buildings"`
	Units     []LegalUnit     `json:"units"`
}

type LegalProperty struct {
	Name            string         `json:"name"`
	PropertyNumber  string         `json:"propertyNumber"`
	ManagementType  ManagementType `json:"managementType"`
	PropertyManager string         `json:"propertyManager"`
	Accountant      string         `json:"accountant"`
}

type LegalBuilding struct {
	Name        string `json:"name"`
	Street      string `json:"street"`
	HouseNumber string `json:"houseNumber"`
	ZipCode     string `json:"zipCode"`
	City        string `json:"city"`
}

type LegalUnit struct {
	UnitNumber       string   `json:"unitNumber"`
	UnitType         UnitType `json:"unitType"`
	Floor            string   `json:"floor"`
	Entrance         string   `json:"entrance"`
	SizeM2           float64  `json:"sizeM2"`
	CoOwnershipShare string   `json:"coOwnershipShare"`
	RoomCount        float64  `json:"roomCount"`
	ConstructionYear *int     `json:"constructionYear"`
	BuildingIndex    int      `json:"buildingIndex"`
}

// ToPropertyInput nests the extracted units under their buildings so the result
// can be persisted as a property tree. Unit order within a building follows the
// order of the extracted unit list.
func (d *LegalData) ToPropertyInput() (*PropertyInput, error) {
	in := &PropertyInput{
		Name:            d.Property.Name,
		PropertyNumber:  d.Property.PropertyNumber,
		ManagementType:  d.Property.ManagementType,
		PropertyManager: d.Property.PropertyManager,
		Accountant:      d.Property.Accountant,
		Buildings:       make([]BuildingInput, len(d.Buildings)),
	}

	for i, b := range d.Buildings {
		in.Buildings[i] = BuildingInput{
			Name:        b.Name,
			Street:      b.Street,
			HouseNumber: b.HouseNumber,
			ZipCode:     b.ZipCode,
			City:        b.City,
			Units:       []UnitInput{},
		}
	}

	for i, u := range d.Units {
		if u.BuildingIndex < 0 || u.BuildingIndex >= len(in.Buildings) {
			return nil, fmt.Errorf("%w: unit %d (%q) references building %d of %d",
				ErrBuildingIndexOutOfRange, i, u.UnitNumber, u.BuildingIndex, len(in.Buildings))
		}

		unit := UnitInput{
			UnitNumber:       u.UnitNumber,
			UnitType:         u.UnitType,
			Floor:            u.Floor,
			SizeM2:           u.SizeM2,
			CoOwnershipShare: u.CoOwnershipShare,
			ConstructionYear: u.ConstructionYear,
			RoomCount:        u.RoomCount,
		}
		if u.Entrance != "" {
			entrance := u.Entrance
			unit.Entrance = &entrance
		}

		b := &in.Buildings[u.BuildingIndex]
		b.Units = append(b.Units, unit)
	}

	return in, nil
}
