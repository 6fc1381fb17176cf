package model

// PropertyInput is the create/update payload for a property tree.
// On update a nil Buildings slice leaves the existing buildings untouched,
// while a non-nil slice (even empty) replaces them.
type PropertyInput struct {
	Name            string          `json:"name"`
	PropertyNumber  string          `json:"propertyNumber"`
	ManagementType  ManagementType  `json:"managementType"`
	PropertyManager string          `json:"propertyManager"`
	Accountant      string          `json:"accountant"`
	SourceDocument  *string         `json:"sourceDocument,omitempty"`
	Buildings       []BuildingInput `json:"buildings"`
}

type BuildingInput struct {
	Name        string      `json:"name"`
	Street      string      `json:"street"`
	HouseNumber string      `json:"houseNumber"`
	ZipCode     string      `json:"zipCode"`
	City        string      `json:"city"`
	Units       []UnitInput `json:"units"`
}

type UnitInput struct {
	UnitNumber       string   `json:"unitNumber"`
	UnitType         UnitType `json:"unitType"`
	Floor            string   `json:"floor"`
	Entrance         *string  `json:"entrance"`
	SizeM2           float64  `json:"sizeM2"`
	CoOwnershipShare string   `json:"coOwnershipShare"`
	ConstructionYear *int     `json:"constructionYear"`
	RoomCount        float64  `json:"roomCount"`
}
