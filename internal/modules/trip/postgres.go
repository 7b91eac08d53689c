// README: Postgres store; trip-row locking makes each mutation indivisible.
package trip

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"unipool/internal/types"
)

// uniqueViolation is the Postgres error code backing the one-active-request-
// per-(trip, rider) invariant.
const uniqueViolation = "23505"

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const tripColumns = `id, driver_id, origin_addr, dest_addr,
	origin_lat, origin_lng, dest_lat, dest_lng,
	departure_time, max_seats, booked_seats, status,
	created_at, completed_at, cancelled_at`

const requestColumns = `id, trip_id, rider_id,
	pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	status, fare_amount, fare_currency,
	rider_pickup_confirmed_at, accepted_at, picked_up_at,
	completed_at, cancelled_at, created_at`

func (s *PostgresStore) CreateTrip(ctx context.Context, t *Trip) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trips (
			id, driver_id, origin_addr, dest_addr,
			origin_lat, origin_lng, dest_lat, dest_lng,
			departure_time, max_seats, booked_seats, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		string(t.ID), string(t.DriverID), t.OriginAddress, t.DestinationAddress,
		t.Origin.Lat, t.Origin.Lng, t.Destination.Lat, t.Destination.Lng,
		t.DepartureTime, t.MaxSeats, t.BookedSeats, string(t.Status), t.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetTrip(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, string(id))
	return scanTrip(row)
}

func (s *PostgresStore) ListOpenTrips(ctx context.Context, from, to time.Time) ([]*Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips
		WHERE status IN ('pending', 'active')
		  AND departure_time BETWEEN $1 AND $2
		ORDER BY id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (s *PostgresStore) GetRequest(ctx context.Context, id types.ID) (*TripRequest, error) {
	row := s.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM trip_requests WHERE id = $1`, string(id))
	return scanRequest(row)
}

func (s *PostgresStore) ListRequests(ctx context.Context, tripID types.ID) ([]*TripRequest, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM trip_requests
		WHERE trip_id = $1
		ORDER BY created_at, id`, string(tripID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []*TripRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

func (s *PostgresStore) CreateRequest(ctx context.Context, r *TripRequest) error {
	var dropLat, dropLng *float64
	if r.Dropoff != nil {
		dropLat, dropLng = &r.Dropoff.Lat, &r.Dropoff.Lng
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO trip_requests (
			id, trip_id, rider_id,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			status, fare_amount, fare_currency, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		string(r.ID), string(r.TripID), string(r.RiderID),
		r.Pickup.Lat, r.Pickup.Lng, dropLat, dropLng,
		string(r.Status), r.Fare.Amount, r.Fare.Currency, r.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateRequest
	}
	return err
}

func (s *PostgresStore) AcceptRequest(ctx context.Context, requestID, driverID types.ID) (*TripRequest, error) {
	var out *TripRequest
	err := s.withTripLock(ctx, requestID, func(tx pgx.Tx, t *Trip, r *TripRequest) error {
		if t.DriverID != driverID {
			return ErrForbidden
		}
		if t.Status != StatusPending && t.Status != StatusActive {
			return ErrInvalidTransition
		}
		if r.Status != RequestPending {
			return ErrInvalidTransition
		}
		if t.BookedSeats >= t.MaxSeats {
			return ErrSeatsFull
		}
		// clock_timestamp() runs while the trip row is held, so accepted_at
		// is monotone with the commit order of accepts on this trip.
		var acceptedAt time.Time
		if err := tx.QueryRow(ctx, `
			UPDATE trip_requests
			SET status = 'accepted', accepted_at = clock_timestamp()
			WHERE id = $1
			RETURNING accepted_at`, string(r.ID),
		).Scan(&acceptedAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE trips SET booked_seats = booked_seats + 1 WHERE id = $1`,
			string(t.ID),
		); err != nil {
			return err
		}
		r.Status = RequestAccepted
		r.AcceptedAt = &acceptedAt
		out = r
		return nil
	})
	return out, err
}

func (s *PostgresStore) RejectRequest(ctx context.Context, requestID, driverID types.ID) (*TripRequest, error) {
	var out *TripRequest
	err := s.withTripLock(ctx, requestID, func(tx pgx.Tx, t *Trip, r *TripRequest) error {
		if t.DriverID != driverID {
			return ErrForbidden
		}
		if r.Status != RequestPending {
			return ErrInvalidTransition
		}
		if _, err := tx.Exec(ctx, `
			UPDATE trip_requests SET status = 'rejected' WHERE id = $1`, string(r.ID),
		); err != nil {
			return err
		}
		r.Status = RequestRejected
		out = r
		return nil
	})
	return out, err
}

func (s *PostgresStore) CancelRequest(ctx context.Context, requestID, actorID types.ID) (*TripRequest, error) {
	var out *TripRequest
	err := s.withTripLock(ctx, requestID, func(tx pgx.Tx, t *Trip, r *TripRequest) error {
		if actorID != r.RiderID && actorID != t.DriverID {
			return ErrForbidden
		}
		switch r.Status {
		case RequestCancelled:
			return ErrAlreadyCancelled
		case RequestPending, RequestAccepted:
		default:
			return ErrInvalidTransition
		}
		wasAccepted := r.Status == RequestAccepted
		var cancelledAt time.Time
		if err := tx.QueryRow(ctx, `
			UPDATE trip_requests
			SET status = 'cancelled', cancelled_at = clock_timestamp()
			WHERE id = $1
			RETURNING cancelled_at`, string(r.ID),
		).Scan(&cancelledAt); err != nil {
			return err
		}
		if wasAccepted {
			if _, err := tx.Exec(ctx, `
				UPDATE trips SET booked_seats = booked_seats - 1 WHERE id = $1`,
				string(t.ID),
			); err != nil {
				return err
			}
		}
		r.Status = RequestCancelled
		r.CancelledAt = &cancelledAt
		out = r
		return nil
	})
	return out, err
}

func (s *PostgresStore) ConfirmRiderPickup(ctx context.Context, requestID, riderID types.ID) (*TripRequest, error) {
	var out *TripRequest
	err := s.withTripLock(ctx, requestID, func(tx pgx.Tx, t *Trip, r *TripRequest) error {
		if r.RiderID != riderID {
			return ErrForbidden
		}
		if r.Status != RequestAccepted {
			return ErrInvalidTransition
		}
		if r.RiderPickupConfirmedAt != nil {
			out = r // repeat confirmation is a no-op
			return nil
		}
		var confirmedAt time.Time
		if err := tx.QueryRow(ctx, `
			UPDATE trip_requests
			SET rider_pickup_confirmed_at = clock_timestamp()
			WHERE id = $1
			RETURNING rider_pickup_confirmed_at`, string(r.ID),
		).Scan(&confirmedAt); err != nil {
			return err
		}
		r.RiderPickupConfirmedAt = &confirmedAt
		out = r
		return nil
	})
	return out, err
}

func (s *PostgresStore) AdvancePickup(ctx context.Context, tripID, requestID, driverID types.ID) (*TripRequest, error) {
	var out *TripRequest
	err := s.withTripLock(ctx, requestID, func(tx pgx.Tx, t *Trip, r *TripRequest) error {
		if t.ID != tripID {
			return ErrNotFound
		}
		if t.DriverID != driverID {
			return ErrForbidden
		}
		if t.Status != StatusActive && t.Status != StatusInProgress {
			return ErrInvalidTransition
		}
		if r.Status != RequestAccepted {
			return ErrInvalidTransition
		}
		if r.RiderPickupConfirmedAt == nil {
			return ErrRiderNotConfirmed
		}
		var pickedUpAt time.Time
		if err := tx.QueryRow(ctx, `
			UPDATE trip_requests
			SET status = 'on_trip', picked_up_at = clock_timestamp()
			WHERE id = $1
			RETURNING picked_up_at`, string(r.ID),
		).Scan(&pickedUpAt); err != nil {
			return err
		}
		if t.Status == StatusActive {
			// first pickup starts the in-progress phase
			if _, err := tx.Exec(ctx, `
				UPDATE trips SET status = 'in_progress' WHERE id = $1`, string(t.ID),
			); err != nil {
				return err
			}
		}
		r.Status = RequestOnTrip
		r.PickedUpAt = &pickedUpAt
		out = r
		return nil
	})
	return out, err
}

func (s *PostgresStore) AdvanceDropoff(ctx context.Context, tripID, requestID, driverID types.ID) (*TripRequest, bool, error) {
	var (
		out       *TripRequest
		completed bool
	)
	err := s.withTripLock(ctx, requestID, func(tx pgx.Tx, t *Trip, r *TripRequest) error {
		if t.ID != tripID {
			return ErrNotFound
		}
		if t.DriverID != driverID {
			return ErrForbidden
		}
		if t.Status != StatusInProgress {
			return ErrInvalidTransition
		}
		if r.Status != RequestOnTrip {
			return ErrInvalidTransition
		}
		var completedAt time.Time
		if err := tx.QueryRow(ctx, `
			UPDATE trip_requests
			SET status = 'completed', completed_at = clock_timestamp()
			WHERE id = $1
			RETURNING completed_at`, string(r.ID),
		).Scan(&completedAt); err != nil {
			return err
		}
		r.Status = RequestCompleted
		r.CompletedAt = &completedAt
		out = r

		var remaining int
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM trip_requests
			WHERE trip_id = $1 AND status IN ('pending', 'accepted', 'on_trip')`,
			string(t.ID),
		).Scan(&remaining); err != nil {
			return err
		}
		if remaining == 0 {
			tag, err := tx.Exec(ctx, `
				UPDATE trips SET status = 'completed', completed_at = clock_timestamp()
				WHERE id = $1 AND status = 'in_progress'`, string(t.ID))
			if err != nil {
				return err
			}
			completed = tag.RowsAffected() == 1
		}
		return nil
	})
	return out, completed, err
}

func (s *PostgresStore) UpdateTripStatus(ctx context.Context, tripID, driverID types.ID, from, to Status) (*Trip, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := lockTrip(ctx, tx, tripID)
	if err != nil {
		return nil, err
	}
	if t.DriverID != driverID {
		return nil, ErrForbidden
	}
	if t.Status != from {
		if !CanTransition(t.Status, to) {
			return nil, ErrInvalidTransition
		}
		return nil, ErrConflict
	}
	if !CanTransition(from, to) {
		return nil, ErrInvalidTransition
	}
	var completedAt sql.NullTime
	if err := tx.QueryRow(ctx, `
		UPDATE trips
		SET status = $1,
		    completed_at = CASE WHEN $1 = 'completed' THEN clock_timestamp() ELSE completed_at END
		WHERE id = $2
		RETURNING completed_at`, string(to), string(tripID),
	).Scan(&completedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	t.Status = to
	t.CompletedAt = timePtr(completedAt)
	return t, nil
}

func (s *PostgresStore) CancelTrip(ctx context.Context, tripID, driverID types.ID) (*Trip, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := lockTrip(ctx, tx, tripID)
	if err != nil {
		return nil, err
	}
	if t.DriverID != driverID {
		return nil, ErrForbidden
	}
	if t.Status != StatusPending && t.Status != StatusActive {
		return nil, ErrInvalidTransition
	}
	var cancelledAt time.Time
	if err := tx.QueryRow(ctx, `
		UPDATE trips
		SET status = 'cancelled', booked_seats = 0, cancelled_at = clock_timestamp()
		WHERE id = $1
		RETURNING cancelled_at`, string(tripID),
	).Scan(&cancelledAt); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE trip_requests
		SET status = 'cancelled', cancelled_at = clock_timestamp()
		WHERE trip_id = $1 AND status IN ('pending', 'accepted')`, string(tripID),
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	t.Status = StatusCancelled
	t.BookedSeats = 0
	t.CancelledAt = &cancelledAt
	return t, nil
}

func (s *PostgresStore) AppendEvent(ctx context.Context, e *Event) error {
	var requestID, actorID *string
	if e.RequestID != nil {
		v := string(*e.RequestID)
		requestID = &v
	}
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actorID = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO trip_events (
			trip_id, request_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		string(e.TripID), requestID, e.FromStatus, e.ToStatus, e.ActorType, actorID, e.CreatedAt,
	)
	return err
}

// withTripLock resolves the request's trip, then locks the trip row followed
// by the request row (always in that order, so concurrent mutations on one
// trip serialize without deadlocking) and runs fn inside the transaction.
func (s *PostgresStore) withTripLock(ctx context.Context, requestID types.ID, fn func(tx pgx.Tx, t *Trip, r *TripRequest) error) error {
	var tripID string
	err := s.db.QueryRow(ctx, `
		SELECT trip_id FROM trip_requests WHERE id = $1`, string(requestID),
	).Scan(&tripID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := lockTrip(ctx, tx, types.ID(tripID))
	if err != nil {
		return err
	}
	r, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if err := fn(tx, t, r); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func lockTrip(ctx context.Context, tx pgx.Tx, id types.ID) (*Trip, error) {
	row := tx.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1 FOR UPDATE`, string(id))
	return scanTrip(row)
}

func lockRequest(ctx context.Context, tx pgx.Tx, id types.ID) (*TripRequest, error) {
	row := tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM trip_requests WHERE id = $1 FOR UPDATE`, string(id))
	return scanRequest(row)
}

func scanTrip(row pgx.Row) (*Trip, error) {
	var t Trip
	var completedAt, cancelledAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.DriverID, &t.OriginAddress, &t.DestinationAddress,
		&t.Origin.Lat, &t.Origin.Lng, &t.Destination.Lat, &t.Destination.Lng,
		&t.DepartureTime, &t.MaxSeats, &t.BookedSeats, &t.Status,
		&t.CreatedAt, &completedAt, &cancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.CompletedAt = timePtr(completedAt)
	t.CancelledAt = timePtr(cancelledAt)
	return &t, nil
}

func scanRequest(row pgx.Row) (*TripRequest, error) {
	var r TripRequest
	var dropLat, dropLng sql.NullFloat64
	var confirmedAt, acceptedAt, pickedUpAt, completedAt, cancelledAt sql.NullTime
	err := row.Scan(
		&r.ID, &r.TripID, &r.RiderID,
		&r.Pickup.Lat, &r.Pickup.Lng, &dropLat, &dropLng,
		&r.Status, &r.Fare.Amount, &r.Fare.Currency,
		&confirmedAt, &acceptedAt, &pickedUpAt,
		&completedAt, &cancelledAt, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if dropLat.Valid && dropLng.Valid {
		r.Dropoff = &types.Point{Lat: dropLat.Float64, Lng: dropLng.Float64}
	}
	r.RiderPickupConfirmedAt = timePtr(confirmedAt)
	r.AcceptedAt = timePtr(acceptedAt)
	r.PickedUpAt = timePtr(pickedUpAt)
	r.CompletedAt = timePtr(completedAt)
	r.CancelledAt = timePtr(cancelledAt)
	return &r, nil
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
