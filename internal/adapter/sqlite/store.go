package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/hollowbrook/stablekeep/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time check: Store implements domain.FacilityStore.
var _ domain.FacilityStore = (*Store)(nil)

// Store implements domain.FacilityStore using SQLite. The two occupancy
// mutations run inside a single transaction each, with the guards
// re-evaluated on the rows read in that transaction, so the check and the
// mutation are one atomic unit.
type Store struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready store.
func New(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Serialize writers; with an embedded job queue sharing the file this
	// also avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and
// returns a ready store. Use this when the *sql.DB has been pre-configured
// (e.g. with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*Store, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other adapters
// (e.g. river).
func (s *Store) DB() *sql.DB {
	return s.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"

// --- Rooms ---

func (s *Store) CreateRoom(ctx context.Context, room domain.Room) error {
	var dailyRate, monthlyRate, currency any
	if room.Pricing != nil {
		dailyRate = room.Pricing.DailyRate.String()
		monthlyRate = room.Pricing.MonthlyRate.String()
		currency = room.Pricing.Currency
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, number, name, type, building, size_sqm, capacity,
		                    current_occupancy, status, daily_rate, monthly_rate, currency,
		                    created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		room.ID, room.Number, room.Name, string(room.Type), room.Building, room.SizeSqm,
		room.Capacity, room.CurrentOccupancy, string(room.Status),
		dailyRate, monthlyRate, currency,
		room.CreatedAt.Format(timeFormat), room.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting room: %w", err)
	}
	return nil
}

const roomColumns = `id, number, name, type, building, size_sqm, capacity,
	current_occupancy, status, daily_rate, monthly_rate, currency, created_at, updated_at`

func (s *Store) GetRoom(ctx context.Context, id string) (domain.Room, error) {
	room, err := s.getRoomQ(ctx, s.db, id)
	if err != nil {
		return domain.Room{}, err
	}
	room.Occupants, err = s.occupantsQ(ctx, s.db, id)
	if err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// querier is the subset of *sql.DB and *sql.Tx the read helpers need.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) getRoomQ(ctx context.Context, q querier, id string) (domain.Room, error) {
	return scanRoom(q.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id,
	))
}

func (s *Store) occupantsQ(ctx context.Context, q querier, roomID string) ([]domain.EntityRef, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT entity_id, entity_name FROM assignments
		 WHERE room_id = ? AND status = ? ORDER BY created_at`,
		roomID, string(domain.AssignmentActive),
	)
	if err != nil {
		return nil, fmt.Errorf("listing occupants: %w", err)
	}
	defer rows.Close()

	var refs []domain.EntityRef
	for rows.Next() {
		var ref domain.EntityRef
		if err := rows.Scan(&ref.EntityID, &ref.EntityName); err != nil {
			return nil, fmt.Errorf("scanning occupant: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *Store) ListRooms(ctx context.Context, filter domain.RoomFilter) ([]domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms`
	var conds []string
	var args []any

	if filter.Status != nil {
		conds = append(conds, `status = ?`)
		args = append(args, string(*filter.Status))
	}
	if filter.Type != nil {
		conds = append(conds, `type = ?`)
		args = append(args, string(*filter.Type))
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range rooms {
		rooms[i].Occupants, err = s.occupantsQ(ctx, s.db, rooms[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return rooms, nil
}

func (s *Store) UpdateRoom(ctx context.Context, room domain.Room) error {
	var dailyRate, monthlyRate, currency any
	if room.Pricing != nil {
		dailyRate = room.Pricing.DailyRate.String()
		monthlyRate = room.Pricing.MonthlyRate.String()
		currency = room.Pricing.Currency
	}

	// Occupancy is owned by the placement/termination paths; the capacity
	// bound is re-checked against the live count inside the statement.
	result, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET number = ?, name = ?, type = ?, building = ?, size_sqm = ?,
		        capacity = ?, status = ?, daily_rate = ?, monthly_rate = ?, currency = ?,
		        updated_at = ?
		 WHERE id = ? AND ? >= current_occupancy`,
		room.Number, room.Name, string(room.Type), room.Building, room.SizeSqm,
		room.Capacity, string(room.Status), dailyRate, monthlyRate, currency,
		time.Now().UTC().Format(timeFormat),
		room.ID, room.Capacity,
	)
	if err != nil {
		return fmt.Errorf("updating room: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		// Either the room is missing or the capacity shrink lost a race
		// with a placement; distinguish for the caller.
		current, err := s.GetRoom(ctx, room.ID)
		if err != nil {
			return err
		}
		return &domain.CapacityReductionError{
			RoomID:    room.ID,
			Requested: room.Capacity,
			Occupancy: current.CurrentOccupancy,
		}
	}
	return nil
}

func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	room, err := s.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	if room.CurrentOccupancy > 0 {
		return &domain.RoomOccupiedError{RoomID: id, Occupancy: room.CurrentOccupancy}
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM rooms WHERE id = ? AND current_occupancy = 0`, id)
	if err != nil {
		return fmt.Errorf("deleting room: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.RoomOccupiedError{RoomID: id, Occupancy: room.CurrentOccupancy}
	}
	return nil
}

// --- Assignments ---

const assignmentColumns = `id, room_id, entity_id, entity_name, entity_type,
	assigned_date, expected_vacate, actual_vacate, status, assigned_by,
	daily_rate, currency, total_cost, created_at, updated_at`

func (s *Store) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	return scanAssignment(s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id,
	))
}

func (s *Store) ListAssignments(ctx context.Context, filter domain.AssignmentFilter) ([]domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments`
	var conds []string
	var args []any

	if filter.Status != nil {
		conds = append(conds, `status = ?`)
		args = append(args, string(*filter.Status))
	}
	if filter.EntityType != nil {
		conds = append(conds, `entity_type = ?`)
		args = append(args, string(*filter.EntityType))
	}
	if filter.RoomID != "" {
		conds = append(conds, `room_id = ?`)
		args = append(args, filter.RoomID)
	}
	if filter.Search != "" {
		conds = append(conds, `(LOWER(entity_name) LIKE ? OR LOWER(room_id) LIKE ?)`)
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY created_at, id`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}
	defer rows.Close()

	var assignments []domain.Assignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}

func (s *Store) ActiveAssignment(ctx context.Context, entityID string) (domain.Assignment, error) {
	return scanAssignment(s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE entity_id = ? AND status = ?`,
		entityID, string(domain.AssignmentActive),
	))
}

func (s *Store) PlaceAssignment(ctx context.Context, assignment domain.Assignment) (domain.Assignment, domain.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Assignment{}, domain.Room{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	room, err := s.getRoomQ(ctx, tx, assignment.RoomID)
	if err != nil {
		return domain.Assignment{}, domain.Room{}, err
	}
	room.Occupants, err = s.occupantsQ(ctx, tx, room.ID)
	if err != nil {
		return domain.Assignment{}, domain.Room{}, err
	}

	var hasActive bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM assignments WHERE entity_id = ? AND status = ?)`,
		assignment.EntityID, string(domain.AssignmentActive),
	).Scan(&hasActive)
	if err != nil {
		return domain.Assignment{}, domain.Room{}, fmt.Errorf("checking active assignment: %w", err)
	}

	if err := domain.ValidatePlacement(room, assignment.EntityID, hasActive); err != nil {
		return domain.Assignment{}, domain.Room{}, err
	}

	var expectedVacate any
	if assignment.ExpectedVacate != nil {
		expectedVacate = assignment.ExpectedVacate.Format(timeFormat)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO assignments (id, room_id, entity_id, entity_name, entity_type,
		                          assigned_date, expected_vacate, status, assigned_by,
		                          daily_rate, currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		assignment.ID, assignment.RoomID, assignment.EntityID, assignment.EntityName,
		string(assignment.EntityType), assignment.AssignedDate.Format(timeFormat),
		expectedVacate, string(assignment.Status), assignment.AssignedBy,
		assignment.DailyRate.String(), assignment.Currency,
		assignment.CreatedAt.Format(timeFormat), assignment.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Assignment{}, domain.Room{}, &domain.DuplicateAssignmentError{EntityID: assignment.EntityID}
		}
		return domain.Assignment{}, domain.Room{}, fmt.Errorf("inserting assignment: %w", err)
	}

	room = domain.PlaceInRoom(room, domain.EntityRef{
		EntityID:   assignment.EntityID,
		EntityName: assignment.EntityName,
	})
	if err := updateOccupancy(ctx, tx, room); err != nil {
		return domain.Assignment{}, domain.Room{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Assignment{}, domain.Room{}, fmt.Errorf("committing placement: %w", err)
	}
	return assignment, room, nil
}

func (s *Store) CompleteTermination(ctx context.Context, commit domain.TerminationCommit) (domain.Assignment, domain.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Assignment{}, domain.Room{}, &domain.CommitError{AssignmentID: commit.AssignmentID, Err: err}
	}
	defer tx.Rollback()

	assignment, err := scanAssignment(tx.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, commit.AssignmentID,
	))
	if err != nil {
		return domain.Assignment{}, domain.Room{}, err
	}
	if assignment.Status != domain.AssignmentActive {
		return domain.Assignment{}, domain.Room{}, &domain.CommitError{
			AssignmentID: commit.AssignmentID,
			Err:          errors.New("assignment is not active"),
		}
	}

	room, err := s.getRoomQ(ctx, tx, assignment.RoomID)
	if err != nil {
		return domain.Assignment{}, domain.Room{}, &domain.CommitError{AssignmentID: commit.AssignmentID, Err: err}
	}
	room.Occupants, err = s.occupantsQ(ctx, tx, room.ID)
	if err != nil {
		return domain.Assignment{}, domain.Room{}, &domain.CommitError{AssignmentID: commit.AssignmentID, Err: err}
	}

	now := time.Now().UTC()
	vacate := commit.ActualVacate
	result, err := tx.ExecContext(ctx,
		`UPDATE assignments
		 SET status = ?, actual_vacate = ?, total_cost = ?,
		     termination_reason = ?, termination_category = ?, termination_notes = ?,
		     updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(domain.AssignmentCompleted), vacate.Format(timeFormat), commit.TotalCost.String(),
		commit.Reason, string(commit.Category), commit.Notes,
		now.Format(timeFormat),
		commit.AssignmentID, string(domain.AssignmentActive),
	)
	if err != nil {
		return domain.Assignment{}, domain.Room{}, &domain.CommitError{AssignmentID: commit.AssignmentID, Err: err}
	}
	if rows, err := result.RowsAffected(); err != nil || rows == 0 {
		return domain.Assignment{}, domain.Room{}, &domain.CommitError{
			AssignmentID: commit.AssignmentID,
			Err:          errors.New("assignment row not updated"),
		}
	}

	room = domain.ReleaseFromRoom(room, assignment.EntityID)
	if err := updateOccupancy(ctx, tx, room); err != nil {
		return domain.Assignment{}, domain.Room{}, &domain.CommitError{AssignmentID: commit.AssignmentID, Err: err}
	}

	// Both writes land together or not at all.
	if err := tx.Commit(); err != nil {
		return domain.Assignment{}, domain.Room{}, &domain.CommitError{AssignmentID: commit.AssignmentID, Err: err}
	}

	assignment.Status = domain.AssignmentCompleted
	assignment.ActualVacate = &vacate
	assignment.Cost = &domain.Cost{
		DailyRate: assignment.DailyRate,
		TotalCost: commit.TotalCost,
		Currency:  assignment.Currency,
	}
	assignment.UpdatedAt = now
	return assignment, room, nil
}

func updateOccupancy(ctx context.Context, tx *sql.Tx, room domain.Room) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE rooms SET current_occupancy = ?, status = ?, updated_at = ? WHERE id = ?`,
		room.CurrentOccupancy, string(room.Status),
		time.Now().UTC().Format(timeFormat), room.ID,
	)
	if err != nil {
		return fmt.Errorf("updating room occupancy: %w", err)
	}
	return nil
}

// --- Scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (domain.Room, error) {
	var room domain.Room
	var roomType, status, createdAt, updatedAt string
	var dailyRate, monthlyRate, currency sql.NullString

	err := row.Scan(&room.ID, &room.Number, &room.Name, &roomType, &room.Building,
		&room.SizeSqm, &room.Capacity, &room.CurrentOccupancy, &status,
		&dailyRate, &monthlyRate, &currency, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Room{}, domain.ErrRoomNotFound
		}
		return domain.Room{}, fmt.Errorf("scanning room: %w", err)
	}

	room.Type = domain.RoomType(roomType)
	room.Status = domain.RoomStatus(status)
	if room.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return domain.Room{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if room.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return domain.Room{}, fmt.Errorf("parsing updated_at: %w", err)
	}

	if dailyRate.Valid {
		pricing := domain.Pricing{Currency: currency.String}
		if pricing.DailyRate, err = decimal.NewFromString(dailyRate.String); err != nil {
			return domain.Room{}, fmt.Errorf("parsing daily rate: %w", err)
		}
		if monthlyRate.Valid {
			if pricing.MonthlyRate, err = decimal.NewFromString(monthlyRate.String); err != nil {
				return domain.Room{}, fmt.Errorf("parsing monthly rate: %w", err)
			}
		}
		room.Pricing = &pricing
	}

	return room, nil
}

func scanAssignment(row rowScanner) (domain.Assignment, error) {
	var a domain.Assignment
	var entityType, status, assignedDate, createdAt, updatedAt, dailyRate string
	var expectedVacate, actualVacate, currency, totalCost sql.NullString

	err := row.Scan(&a.ID, &a.RoomID, &a.EntityID, &a.EntityName, &entityType,
		&assignedDate, &expectedVacate, &actualVacate, &status, &a.AssignedBy,
		&dailyRate, &currency, &totalCost, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Assignment{}, domain.ErrAssignmentNotFound
		}
		return domain.Assignment{}, fmt.Errorf("scanning assignment: %w", err)
	}

	a.EntityType = domain.EntityType(entityType)
	a.Status = domain.AssignmentStatus(status)
	a.Currency = currency.String
	if a.AssignedDate, err = time.Parse(timeFormat, assignedDate); err != nil {
		return domain.Assignment{}, fmt.Errorf("parsing assigned_date: %w", err)
	}
	if a.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return domain.Assignment{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return domain.Assignment{}, fmt.Errorf("parsing updated_at: %w", err)
	}

	if a.DailyRate, err = decimal.NewFromString(dailyRate); err != nil {
		return domain.Assignment{}, fmt.Errorf("parsing daily rate: %w", err)
	}
	if expectedVacate.Valid {
		v, err := time.Parse(timeFormat, expectedVacate.String)
		if err != nil {
			return domain.Assignment{}, fmt.Errorf("parsing expected_vacate: %w", err)
		}
		a.ExpectedVacate = &v
	}
	if actualVacate.Valid {
		v, err := time.Parse(timeFormat, actualVacate.String)
		if err != nil {
			return domain.Assignment{}, fmt.Errorf("parsing actual_vacate: %w", err)
		}
		a.ActualVacate = &v
	}
	if totalCost.Valid {
		total, err := decimal.NewFromString(totalCost.String)
		if err != nil {
			return domain.Assignment{}, fmt.Errorf("parsing total cost: %w", err)
		}
		a.Cost = &domain.Cost{DailyRate: a.DailyRate, TotalCost: total, Currency: a.Currency}
	}

	return a, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
