// README: Repository backed by PostgreSQL. Booking transitions are a
// compare-and-set on status_version inside one transaction that also flips
// the driver's availability and appends the audit event.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridecore/internal/modules/booking"
	"ridecore/internal/modules/driver"
	"ridecore/internal/modules/passenger"
	"ridecore/internal/storage"
	"ridecore/internal/types"
)

var _ storage.Repository = (*Store)(nil)

const uniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ---- drivers ----

const driverColumns = `id, name, phone_number, vehicle_type, vehicle_number,
	is_online, is_available, lat, lng, location_at, created_at, updated_at`

func scanDriver(row pgx.Row) (*driver.Driver, error) {
	var d driver.Driver
	var id, vt string
	var lat, lng *float64
	var at *time.Time
	err := row.Scan(&id, &d.Name, &d.PhoneNumber, &vt, &d.VehicleNumber,
		&d.IsOnline, &d.IsAvailable, &lat, &lng, &at, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.ID = types.ID(id)
	d.VehicleType = types.VehicleType(vt)
	d.Location = locationFrom(lat, lng, at)
	return &d, nil
}

func (s *Store) GetDriver(ctx context.Context, id types.ID) (*driver.Driver, error) {
	return getDriver(ctx, s.db, id, false)
}

func getDriver(ctx context.Context, q querier, id types.ID, forUpdate bool) (*driver.Driver, error) {
	sql := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	d, err := scanDriver(q.QueryRow(ctx, sql, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: driver %s", types.ErrNotFound, id)
	}
	return d, err
}

func (s *Store) CreateDriver(ctx context.Context, d *driver.Driver) error {
	lat, lng, at := locationArgs(d.Location)
	_, err := s.db.Exec(ctx, `
		INSERT INTO drivers (`+driverColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(d.ID), d.Name, d.PhoneNumber, string(d.VehicleType), d.VehicleNumber,
		d.IsOnline, d.IsAvailable, lat, lng, at, d.CreatedAt, d.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: driver %s already exists", types.ErrInvalidState, d.ID)
	}
	return err
}

func (s *Store) UpdateDriverLocation(ctx context.Context, id types.ID, loc types.Location) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET lat = $2, lng = $3, location_at = $4, updated_at = NOW()
		WHERE id = $1`,
		string(id), loc.Lat, loc.Lng, timeArg(loc.CapturedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: driver %s", types.ErrNotFound, id)
	}
	return nil
}

func (s *Store) SetDriverAvailability(ctx context.Context, id types.ID, available bool) error {
	return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := getDriver(ctx, tx, id, true); err != nil {
			return err
		}
		if available {
			var busy bool
			err := tx.QueryRow(ctx, `
				SELECT EXISTS (SELECT 1 FROM bookings WHERE driver_id = $1 AND status = $2)`,
				string(id), string(booking.StatusInProgress),
			).Scan(&busy)
			if err != nil {
				return err
			}
			if busy {
				return fmt.Errorf("%w: driver %s has a ride in progress", types.ErrInvalidState, id)
			}
		}
		_, err := tx.Exec(ctx, `
			UPDATE drivers SET is_online = $2, is_available = $2, updated_at = NOW()
			WHERE id = $1`, string(id), available)
		return err
	})
}

func (s *Store) ListDrivers(ctx context.Context, f driver.Filter) ([]driver.Driver, error) {
	var where []string
	var args []any
	if f.Online != nil {
		args = append(args, *f.Online)
		where = append(where, fmt.Sprintf("is_online = $%d", len(args)))
	}
	if f.Available != nil {
		args = append(args, *f.Available)
		where = append(where, fmt.Sprintf("is_available = $%d", len(args)))
	}
	if f.VehicleType != "" {
		args = append(args, string(f.VehicleType))
		where = append(where, fmt.Sprintf("vehicle_type = $%d", len(args)))
	}
	sql := `SELECT ` + driverColumns + ` FROM drivers`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY id`

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []driver.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ---- passengers ----

const passengerColumns = `id, name, phone_number, vehicle_preference,
	lat, lng, location_at, created_at, updated_at`

func (s *Store) GetPassenger(ctx context.Context, id types.ID) (*passenger.Passenger, error) {
	var p passenger.Passenger
	var pid string
	var pref *string
	var lat, lng *float64
	var at *time.Time
	err := s.db.QueryRow(ctx, `SELECT `+passengerColumns+` FROM passengers WHERE id = $1`, string(id)).
		Scan(&pid, &p.Name, &p.PhoneNumber, &pref, &lat, &lng, &at, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: passenger %s", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	p.ID = types.ID(pid)
	if pref != nil {
		vt := types.VehicleType(*pref)
		p.VehiclePreference = &vt
	}
	p.Location = locationFrom(lat, lng, at)
	return &p, nil
}

func (s *Store) CreatePassenger(ctx context.Context, p *passenger.Passenger) error {
	lat, lng, at := locationArgs(p.Location)
	_, err := s.db.Exec(ctx, `
		INSERT INTO passengers (`+passengerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(p.ID), p.Name, p.PhoneNumber, vehicleArg(p.VehiclePreference),
		lat, lng, at, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: passenger %s already exists", types.ErrInvalidState, p.ID)
	}
	return err
}

func (s *Store) UpdatePassenger(ctx context.Context, id types.ID, patch passenger.Patch) error {
	lat, lng, at := locationArgs(patch.Location)
	tag, err := s.db.Exec(ctx, `
		UPDATE passengers SET
			name = COALESCE($2, name),
			phone_number = COALESCE($3, phone_number),
			vehicle_preference = COALESCE($4, vehicle_preference),
			lat = COALESCE($5, lat),
			lng = COALESCE($6, lng),
			location_at = COALESCE($7, location_at),
			updated_at = NOW()
		WHERE id = $1`,
		string(id), patch.Name, patch.PhoneNumber, vehicleArg(patch.VehiclePreference), lat, lng, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: passenger %s", types.ErrNotFound, id)
	}
	return nil
}

func (s *Store) CountPassengers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM passengers`).Scan(&n)
	return n, err
}

// ---- bookings ----

var bookingColumns = []string{
	"id", "passenger_id", "driver_id",
	"pickup_lat", "pickup_lng", "pickup_at",
	"dropoff_lat", "dropoff_lng", "dropoff_at",
	"vehicle_type", "status", "status_version",
	"fare", "distance_km", "duration_min", "surge_multiplier",
	"cancellation_fee", "cancellation_fee_before_gst", "cancelled_by",
	"driver_accepted", "passenger_confirmed",
	"created_at", "accepted_at", "confirmed_at", "started_at", "completed_at", "cancelled_at",
}

var (
	bookingSelect = `SELECT ` + strings.Join(bookingColumns, ", ") + ` FROM bookings`
	bookingInsert = buildBookingInsert()
	bookingUpdate = buildBookingUpdate()
)

func buildBookingInsert() string {
	ph := make([]string, len(bookingColumns))
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return `INSERT INTO bookings (` + strings.Join(bookingColumns, ", ") + `) VALUES (` + strings.Join(ph, ", ") + `)`
}

// immutableBookingColumns are written once at insert.
var immutableBookingColumns = map[string]bool{"id": true, "passenger_id": true, "driver_id": true}

// buildBookingUpdate writes every mutable column, guarded by id ($1) and the
// expected status and version (the last two placeholders).
func buildBookingUpdate() string {
	var set []string
	n := 1
	for _, c := range bookingColumns {
		if immutableBookingColumns[c] {
			continue
		}
		n++
		set = append(set, fmt.Sprintf("%s = $%d", c, n))
	}
	return fmt.Sprintf(`UPDATE bookings SET %s WHERE id = $1 AND status = $%d AND status_version = $%d`,
		strings.Join(set, ", "), n+1, n+2)
}

func bookingUpdateArgs(b *booking.Booking, fromStatus booking.Status, fromVersion int) []any {
	all := bookingArgs(b)
	args := []any{all[0]}
	for i, c := range bookingColumns {
		if !immutableBookingColumns[c] {
			args = append(args, all[i])
		}
	}
	return append(args, string(fromStatus), fromVersion)
}

func bookingArgs(b *booking.Booking) []any {
	var driverID, cancelledBy *string
	if b.DriverID != nil {
		v := string(*b.DriverID)
		driverID = &v
	}
	if b.CancelledBy != nil {
		v := string(*b.CancelledBy)
		cancelledBy = &v
	}
	dlat, dlng, dat := locationArgs(b.Dropoff)
	return []any{
		string(b.ID), string(b.PassengerID), driverID,
		b.Pickup.Lat, b.Pickup.Lng, timeArg(b.Pickup.CapturedAt),
		dlat, dlng, dat,
		string(b.VehicleType), string(b.Status), b.Version,
		b.Fare, b.DistanceKm, b.DurationMin, b.SurgeMultiplier,
		b.CancellationFee, b.CancellationFeeBeforeGST, cancelledBy,
		b.DriverAccepted, b.PassengerConfirmed,
		b.CreatedAt, b.AcceptedAt, b.ConfirmedAt, b.StartedAt, b.CompletedAt, b.CancelledAt,
	}
}

func scanBooking(row pgx.Row) (*booking.Booking, error) {
	var b booking.Booking
	var id, passengerID, vt, status string
	var driverID, cancelledBy *string
	var pickupAt, dropoffAt *time.Time
	var dlat, dlng *float64
	err := row.Scan(
		&id, &passengerID, &driverID,
		&b.Pickup.Lat, &b.Pickup.Lng, &pickupAt,
		&dlat, &dlng, &dropoffAt,
		&vt, &status, &b.Version,
		&b.Fare, &b.DistanceKm, &b.DurationMin, &b.SurgeMultiplier,
		&b.CancellationFee, &b.CancellationFeeBeforeGST, &cancelledBy,
		&b.DriverAccepted, &b.PassengerConfirmed,
		&b.CreatedAt, &b.AcceptedAt, &b.ConfirmedAt, &b.StartedAt, &b.CompletedAt, &b.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	b.ID = types.ID(id)
	b.PassengerID = types.ID(passengerID)
	b.VehicleType = types.VehicleType(vt)
	b.Status = booking.Status(status)
	if driverID != nil {
		d := types.ID(*driverID)
		b.DriverID = &d
	}
	if cancelledBy != nil {
		a := booking.ActorType(*cancelledBy)
		b.CancelledBy = &a
	}
	if pickupAt != nil {
		b.Pickup.CapturedAt = *pickupAt
	}
	b.Dropoff = locationFrom(dlat, dlng, dropoffAt)
	return &b, nil
}

func (s *Store) GetBooking(ctx context.Context, id types.ID) (*booking.Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, bookingSelect+` WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, booking.NotFoundError(id)
	}
	return b, err
}

func (s *Store) CreateBooking(ctx context.Context, b *booking.Booking, ev *booking.Event) error {
	return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if b.DriverID != nil {
			d, err := getDriver(ctx, tx, *b.DriverID, true)
			if err != nil {
				return err
			}
			if !d.IsOnline || !d.IsAvailable {
				return booking.DriverUnavailableError(d.ID)
			}
		}
		if _, err := tx.Exec(ctx, bookingInsert, bookingArgs(b)...); err != nil {
			if isUniqueViolation(err) {
				return booking.ActiveBookingError(b.PassengerID)
			}
			return err
		}
		return insertEvent(ctx, tx, ev)
	})
}

func (s *Store) ApplyTransition(ctx context.Context, t booking.Transition) error {
	return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		next := t.Next
		if next.DriverID != nil && (t.RequireDriverAvailable || t.DriverAvailable != nil) {
			d, err := getDriver(ctx, tx, *next.DriverID, true)
			if err != nil {
				return err
			}
			if t.RequireDriverAvailable && (!d.IsOnline || !d.IsAvailable) {
				return booking.DriverUnavailableError(d.ID)
			}
		} else if t.RequireDriverAvailable {
			return booking.DriverUnavailableError("")
		}

		tag, err := tx.Exec(ctx, bookingUpdate, bookingUpdateArgs(next, t.FromStatus, t.FromVersion)...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, string(next.ID)).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return booking.NotFoundError(next.ID)
			}
			return types.ErrConflict
		}

		if next.DriverID != nil && t.DriverAvailable != nil {
			if _, err := tx.Exec(ctx, `
				UPDATE drivers SET is_available = ($2 AND is_online AND NOT EXISTS (
					SELECT 1 FROM bookings WHERE driver_id = $1 AND status = $3 AND id <> $4
				)), updated_at = NOW()
				WHERE id = $1`,
				string(*next.DriverID), *t.DriverAvailable, string(booking.StatusInProgress), string(next.ID),
			); err != nil {
				return err
			}
		}
		return insertEvent(ctx, tx, t.Event)
	})
}

func (s *Store) ListBookings(ctx context.Context, f booking.Filter) ([]booking.Booking, error) {
	var where []string
	var args []any
	if f.PassengerID != "" {
		args = append(args, string(f.PassengerID))
		where = append(where, fmt.Sprintf("passenger_id = $%d", len(args)))
	}
	if f.DriverID != "" {
		args = append(args, string(f.DriverID))
		where = append(where, fmt.Sprintf("driver_id = $%d", len(args)))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	sql := bookingSelect
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at DESC, id`

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *Store) ListEvents(ctx context.Context, bookingID types.ID) ([]booking.Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, booking_id, operation, COALESCE(from_status, ''), to_status, actor_type, actor_id, created_at
		FROM booking_events WHERE booking_id = $1
		ORDER BY created_at, id`, string(bookingID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []booking.Event
	for rows.Next() {
		var e booking.Event
		var id, bid, from, to, actor, actorID string
		if err := rows.Scan(&id, &bid, &e.Operation, &from, &to, &actor, &actorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ID, e.BookingID, e.ActorID = types.ID(id), types.ID(bid), types.ID(actorID)
		e.FromStatus, e.ToStatus = booking.Status(from), booking.Status(to)
		e.ActorType = booking.ActorType(actor)
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertEvent(ctx context.Context, q querier, ev *booking.Event) error {
	if ev == nil {
		return nil
	}
	var from *string
	if ev.FromStatus != "" {
		v := string(ev.FromStatus)
		from = &v
	}
	_, err := q.Exec(ctx, `
		INSERT INTO booking_events (id, booking_id, operation, from_status, to_status, actor_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(ev.ID), string(ev.BookingID), ev.Operation, from, string(ev.ToStatus),
		string(ev.ActorType), string(ev.ActorID), ev.CreatedAt,
	)
	return err
}

// ---- helpers ----

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func locationArgs(loc *types.Location) (lat, lng *float64, at *time.Time) {
	if loc == nil {
		return nil, nil, nil
	}
	la, ln := loc.Lat, loc.Lng
	return &la, &ln, timeArg(loc.CapturedAt)
}

func locationFrom(lat, lng *float64, at *time.Time) *types.Location {
	if lat == nil || lng == nil {
		return nil
	}
	loc := types.Location{Lat: *lat, Lng: *lng}
	if at != nil {
		loc.CapturedAt = *at
	}
	return &loc
}

func timeArg(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func vehicleArg(v *types.VehicleType) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
