package service

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/model"
)

const (
	propertySheet = "Property"
	unitsSheet    = "Units"
)

// PropertyWorkbook renders a property tree as an XLSX workbook with a
// property sheet and one row per unit.
func PropertyWorkbook(p *model.Property) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", propertySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(unitsSheet); err != nil {
		return nil, err
	}

	fields := [][2]any{
		{"Name", p.Name},
		{"Property Number", p.PropertyNumber},
		{"Management Type", string(p.ManagementType)},
		{"Property Manager", p.PropertyManager},
		{"Accountant", p.Accountant},
		{"Buildings", len(p.Buildings)},
		{"Units", p.UnitCount()},
		{"Created", p.CreatedAt.Format("2006-01-02")},
	}
	for i, field := range fields {
		if err := f.SetSheetRow(propertySheet, fmt.Sprintf("A%d", i+1), &[]any{field[0], field[1]}); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(propertySheet, "A", "A", 20)
	_ = f.SetColWidth(propertySheet, "B", "B", 40)

	headers := []any{
		"Building", "Street", "House Number", "Zip Code", "City",
		"Unit Number", "Unit Type", "Floor", "Entrance", "Size (m²)",
		"Co-ownership Share", "Construction Year", "Rooms",
	}
	if err := f.SetSheetRow(unitsSheet, "A1", &headers); err != nil {
		return nil, err
	}

	row := 2
	for _, b := range p.Buildings {
		for _, u := range b.Units {
			values := []any{
				b.Name, b.Street, b.HouseNumber, b.ZipCode, b.City,
				u.UnitNumber, string(u.UnitType), u.Floor, derefString(u.Entrance), u.SizeM2,
				u.CoOwnershipShare, derefInt(u.ConstructionYear), u.RoomCount,
			}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(unitsSheet, cell, &values); err != nil {
				return nil, err
			}
			row++
		}
	}
	_ = f.SetColWidth(unitsSheet, "A", "E", 16)
	_ = f.SetColWidth(unitsSheet, "F", "M", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func derefString(s *string) any {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) any {
	if i == nil {
		return ""
	}
	return *i
}
