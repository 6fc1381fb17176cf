package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/model"
)

var (
	ErrPropertyNotFound        = errors.New("property not found")
	ErrDuplicatePropertyNumber = errors.New("property number already exists")
	ErrDocumentInUse           = errors.New("source document belongs to another property")
)

// PropertyStore persists property trees (property -> buildings -> units) per tenant
type PropertyStore interface {
	CreateProperty(ctx context.Context, tenant string, in *model.PropertyInput) (*model.Property, error)
	ListProperties(ctx context.Context, tenant string) ([]model.PropertySummary, error)
	GetProperty(ctx context.Context, tenant, id string) (*model.Property, error)
	// UpdateProperty replaces the top-level fields. Buildings, and their units,
	// are replaced only when in.Buildings is non-nil.
	UpdateProperty(ctx context.Context, tenant, id string, in *model.PropertyInput) (*model.Property, error)
	DeleteProperty(ctx context.Context, tenant, id string) (*model.Property, error)
}

// SQLStore implements PropertyStore on database/sql
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLStore(db *Database) *SQLStore {
	return &SQLStore{
		db:      db.DB,
		dialect: db.Dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

const propertyColumns = `id, tenant, name, property_number, management_type, property_manager, accountant, source_document, created_at, updated_at`

func (s *SQLStore) CreateProperty(ctx context.Context, tenant string, in *model.PropertyInput) (*model.Property, error) {
	id := uuid.New().String()
	now := s.now()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.dialect.rebind(`INSERT INTO properties (`+propertyColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			id, tenant, in.Name, in.PropertyNumber, string(in.ManagementType), in.PropertyManager, in.Accountant,
			nullString(in.SourceDocument), now, now)
		if err != nil {
			if uerr := uniqueViolation(err, in); uerr != nil {
				return uerr
			}
			return fmt.Errorf("failed to insert property: %w", err)
		}
		return s.insertBuildings(ctx, tx, id, in.Buildings, now)
	})
	if err != nil {
		return nil, err
	}

	return s.GetProperty(ctx, tenant, id)
}

func (s *SQLStore) ListProperties(ctx context.Context, tenant string) ([]model.PropertySummary, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`SELECT id, name, property_number, management_type,
		property_manager, accountant, created_at, updated_at
		FROM properties WHERE tenant = ? ORDER BY created_at DESC, id`), tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}

	summaries := []model.PropertySummary{}
	index := make(map[string]int)
	for rows.Next() {
		var p model.PropertySummary
		var managementType string
		if err := rows.Scan(&p.ID, &p.Name, &p.PropertyNumber, &managementType,
			&p.PropertyManager, &p.Accountant, &p.CreatedAt, &p.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		p.ManagementType = model.ManagementType(managementType)
		p.Buildings = []model.BuildingSummary{}
		index[p.ID] = len(summaries)
		summaries = append(summaries, p)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}

	if len(summaries) == 0 {
		return summaries, nil
	}

	rows, err = s.db.QueryContext(ctx, s.dialect.rebind(`SELECT b.id, b.property_id, b.name, b.street, b.house_number
		FROM buildings b JOIN properties p ON p.id = b.property_id
		WHERE p.tenant = ? ORDER BY b.property_id, b.position`), tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list buildings: %w", err)
	}
	for rows.Next() {
		var b model.BuildingSummary
		var propertyID string
		if err := rows.Scan(&b.ID, &propertyID, &b.Name, &b.Street, &b.HouseNumber); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan building: %w", err)
		}
		if i, ok := index[propertyID]; ok {
			summaries[i].Buildings = append(summaries[i].Buildings, b)
		}
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("failed to list buildings: %w", err)
	}

	return summaries, nil
}

func (s *SQLStore) GetProperty(ctx context.Context, tenant, id string) (*model.Property, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+propertyColumns+`
		FROM properties WHERE id = ? AND tenant = ?`), id, tenant)

	var (
		p              model.Property
		managementType string
		sourceDocument sql.NullString
	)
	err := row.Scan(&p.ID, &p.Tenant, &p.Name, &p.PropertyNumber, &managementType,
		&p.PropertyManager, &p.Accountant, &sourceDocument, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPropertyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	p.ManagementType = model.ManagementType(managementType)
	p.SourceDocument = stringPtr(sourceDocument)

	if err := s.loadBuildings(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLStore) loadBuildings(ctx context.Context, p *model.Property) error {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`SELECT id, property_id, name, street, house_number,
		zip_code, city, created_at
		FROM buildings WHERE property_id = ? ORDER BY position`), p.ID)
	if err != nil {
		return fmt.Errorf("failed to get buildings: %w", err)
	}

	p.Buildings = []model.Building{}
	index := make(map[string]int)
	for rows.Next() {
		var b model.Building
		if err := rows.Scan(&b.ID, &b.PropertyID, &b.Name, &b.Street, &b.HouseNumber,
			&b.ZipCode, &b.City, &b.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan building: %w", err)
		}
		b.Units = []model.Unit{}
		index[b.ID] = len(p.Buildings)
		p.Buildings = append(p.Buildings, b)
	}
	if err := closeRows(rows); err != nil {
		return fmt.Errorf("failed to get buildings: %w", err)
	}

	if len(p.Buildings) == 0 {
		return nil
	}

	rows, err = s.db.QueryContext(ctx, s.dialect.rebind(`SELECT u.id, u.building_id, u.unit_number, u.unit_type,
		u.floor, u.entrance, u.size_m2, u.co_ownership_share, u.construction_year, u.room_count, u.created_at
		FROM units u JOIN buildings b ON b.id = u.building_id
		WHERE b.property_id = ? ORDER BY b.position, u.position`), p.ID)
	if err != nil {
		return fmt.Errorf("failed to get units: %w", err)
	}
	for rows.Next() {
		var (
			u                model.Unit
			unitType         string
			entrance         sql.NullString
			constructionYear sql.NullInt64
		)
		if err := rows.Scan(&u.ID, &u.BuildingID, &u.UnitNumber, &unitType, &u.Floor, &entrance,
			&u.SizeM2, &u.CoOwnershipShare, &constructionYear, &u.RoomCount, &u.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan unit: %w", err)
		}
		u.UnitType = model.UnitType(unitType)
		u.Entrance = stringPtr(entrance)
		if constructionYear.Valid {
			year := int(constructionYear.Int64)
			u.ConstructionYear = &year
		}
		if i, ok := index[u.BuildingID]; ok {
			p.Buildings[i].Units = append(p.Buildings[i].Units, u)
		}
	}
	if err := closeRows(rows); err != nil {
		return fmt.Errorf("failed to get units: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateProperty(ctx context.Context, tenant, id string, in *model.PropertyInput) (*model.Property, error) {
	now := s.now()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.dialect.rebind(`UPDATE properties SET name = ?, property_number = ?,
			management_type = ?, property_manager = ?, accountant = ?,
			source_document = COALESCE(?, source_document), updated_at = ?
			WHERE id = ? AND tenant = ?`),
			in.Name, in.PropertyNumber, string(in.ManagementType), in.PropertyManager, in.Accountant,
			nullString(in.SourceDocument), now, id, tenant)
		if err != nil {
			if uerr := uniqueViolation(err, in); uerr != nil {
				return uerr
			}
			return fmt.Errorf("failed to update property: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to update property: %w", err)
		} else if n == 0 {
			return ErrPropertyNotFound
		}

		if in.Buildings == nil {
			return nil
		}
		if err := s.deleteBuildings(ctx, tx, id); err != nil {
			return err
		}
		return s.insertBuildings(ctx, tx, id, in.Buildings, now)
	})
	if err != nil {
		return nil, err
	}

	return s.GetProperty(ctx, tenant, id)
}

func (s *SQLStore) DeleteProperty(ctx context.Context, tenant, id string) (*model.Property, error) {
	p, err := s.GetProperty(ctx, tenant, id)
	if err != nil {
		return nil, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.deleteBuildings(ctx, tx, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM properties WHERE id = ? AND tenant = ?`), id, tenant)
		if err != nil {
			return fmt.Errorf("failed to delete property: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrPropertyNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLStore) insertBuildings(ctx context.Context, tx *sql.Tx, propertyID string, buildings []model.BuildingInput, now time.Time) error {
	insertBuilding := s.dialect.rebind(`INSERT INTO buildings (id, property_id, position, name, street,
		house_number, zip_code, city, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	insertUnit := s.dialect.rebind(`INSERT INTO units (id, building_id, position, unit_number, unit_type, floor,
		entrance, size_m2, co_ownership_share, construction_year, room_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	for i, b := range buildings {
		buildingID := uuid.New().String()
		if _, err := tx.ExecContext(ctx, insertBuilding, buildingID, propertyID, i, b.Name, b.Street,
			b.HouseNumber, b.ZipCode, b.City, now); err != nil {
			return fmt.Errorf("failed to insert building %d: %w", i, err)
		}

		for j, u := range b.Units {
			if _, err := tx.ExecContext(ctx, insertUnit, uuid.New().String(), buildingID, j, u.UnitNumber,
				string(u.UnitType), u.Floor, nullString(u.Entrance), u.SizeM2, u.CoOwnershipShare,
				nullInt(u.ConstructionYear), u.RoomCount, now); err != nil {
				return fmt.Errorf("failed to insert unit %d of building %d: %w", j, i, err)
			}
		}
	}
	return nil
}

// deleteBuildings removes a property's buildings and units explicitly so the
// result does not depend on foreign key enforcement being enabled.
func (s *SQLStore) deleteBuildings(ctx context.Context, tx *sql.Tx, propertyID string) error {
	if _, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM units WHERE building_id IN
		(SELECT id FROM buildings WHERE property_id = ?)`), propertyID); err != nil {
		return fmt.Errorf("failed to delete units: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM buildings WHERE property_id = ?`), propertyID); err != nil {
		return fmt.Errorf("failed to delete buildings: %w", err)
	}
	return nil
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		if uerr := uniqueViolation(err, nil); uerr != nil {
			return uerr
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}

// uniqueViolation maps a unique constraint failure to its store error, nil for any other error
func uniqueViolation(err error, in *model.PropertyInput) error {
	var constraint string
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != "23505" {
			return nil
		}
		constraint = pgErr.ConstraintName
	} else {
		msg := err.Error()
		if !strings.Contains(msg, "UNIQUE constraint failed") {
			return nil
		}
		constraint = msg
	}

	if strings.Contains(constraint, "source_document") {
		if in != nil && in.SourceDocument != nil {
			return fmt.Errorf("%w: %s", ErrDocumentInUse, *in.SourceDocument)
		}
		return ErrDocumentInUse
	}
	if in != nil {
		return fmt.Errorf("%w: %s", ErrDuplicatePropertyNumber, in.PropertyNumber)
	}
	return ErrDuplicatePropertyNumber
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
