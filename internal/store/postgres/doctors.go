package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"clinic-booking-api/internal/model"
)

type doctors struct{ s *Store }

// slot ids are derived from the slot ledger, never stored on the doctor row
const doctorQuery = `
	SELECT d.id, d.name, d.specialization, d.email, d.phone,
	       COALESCE(array_agg(s.id ORDER BY s.start_time) FILTER (WHERE s.id IS NOT NULL), '{}')
	FROM doctors d
	LEFT JOIN appointment_slots s ON s.doctor_id = d.id`

func (r doctors) CreateDoctor(ctx context.Context, d *model.Doctor) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	_, err := r.s.pool.Exec(ctx,
		`INSERT INTO doctors (id, name, specialization, email, phone) VALUES ($1,$2,$3,$4,$5)`,
		d.ID, d.Name, d.Specialization, d.Email, d.Phone,
	)
	return mapErr(err)
}

func (r doctors) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	rows, err := r.s.pool.Query(ctx, doctorQuery+` GROUP BY d.id ORDER BY d.created_at, d.id`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, *d)
	}
	return out, mapErr(rows.Err())
}

func (r doctors) DoctorByID(ctx context.Context, id string) (*model.Doctor, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	d, err := scanDoctor(r.s.pool.QueryRow(ctx, doctorQuery+` WHERE d.id = $1 GROUP BY d.id`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return d, nil
}

func (r doctors) CountDoctors(ctx context.Context) (int64, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	var n int64
	err := r.s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM doctors`).Scan(&n)
	return n, mapErr(err)
}

func scanDoctor(row pgx.Row) (*model.Doctor, error) {
	d := &model.Doctor{}
	if err := row.Scan(&d.ID, &d.Name, &d.Specialization, &d.Email, &d.Phone, &d.SlotIDs); err != nil {
		return nil, err
	}
	return d, nil
}

type slots struct{ s *Store }

func (r slots) CreateSlot(ctx context.Context, sl *model.Slot) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	_, err := r.s.pool.Exec(ctx,
		`INSERT INTO appointment_slots (id, doctor_id, start_time, end_time, booked) VALUES ($1,$2,$3,$4,$5)`,
		sl.ID, sl.DoctorID, sl.StartTime, sl.EndTime, sl.Booked,
	)
	return mapErr(err)
}

func (r slots) SlotByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	sl := &model.Slot{}
	err := r.s.pool.QueryRow(ctx,
		`SELECT id, doctor_id, start_time, end_time, booked FROM appointment_slots WHERE id = $1`, id,
	).Scan(&sl.ID, &sl.DoctorID, &sl.StartTime, &sl.EndTime, &sl.Booked)
	if err != nil {
		return nil, mapErr(err)
	}
	return sl, nil
}

func (r slots) AvailableSlots(ctx context.Context, doctorID string) ([]model.Slot, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	rows, err := r.s.pool.Query(ctx,
		`SELECT id, doctor_id, start_time, end_time, booked
		 FROM appointment_slots
		 WHERE doctor_id = $1 AND NOT booked
		 ORDER BY start_time, id`, doctorID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.Slot
	for rows.Next() {
		var sl model.Slot
		if err := rows.Scan(&sl.ID, &sl.DoctorID, &sl.StartTime, &sl.EndTime, &sl.Booked); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, sl)
	}
	return out, mapErr(rows.Err())
}

func (r slots) CountSlots(ctx context.Context) (int64, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	var n int64
	err := r.s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appointment_slots`).Scan(&n)
	return n, mapErr(err)
}
