package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/store"
)

type appointments struct{ s *Store }

func (r appointments) Book(ctx context.Context, a *model.Appointment) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// claim the slot; concurrent claimers block on the row lock and then
		// see booked = true
		tag, err := tx.Exec(ctx,
			`UPDATE appointment_slots SET booked = TRUE WHERE id = $1 AND NOT booked`, a.SlotID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return missingOr(ctx, tx, `SELECT EXISTS(SELECT 1 FROM appointment_slots WHERE id = $1)`, a.SlotID)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO appointments (id, patient_id, doctor_id, slot_id, status, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			a.ID, a.PatientID, a.DoctorID, a.SlotID, a.Status, a.CreatedAt, a.UpdatedAt,
		)
		if field, ok := store.Duplicate(mapErr(err)); ok && field == "slot" {
			return store.ErrConflict
		}
		return err
	})
}

func (r appointments) Cancel(ctx context.Context, id string, at time.Time) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var slotID string
		err := tx.QueryRow(ctx,
			`UPDATE appointments SET status = 'CANCELLED', updated_at = $2
			 WHERE id = $1 AND status = 'BOOKED'
			 RETURNING slot_id`, id, at,
		).Scan(&slotID)
		if err == pgx.ErrNoRows {
			return missingOr(ctx, tx, `SELECT EXISTS(SELECT 1 FROM appointments WHERE id = $1)`, id)
		}
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `UPDATE appointment_slots SET booked = FALSE WHERE id = $1`, slotID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// missingOr tells a lost conditional update apart from a missing row.
func missingOr(ctx context.Context, tx pgx.Tx, existsQuery, id string) error {
	var exists bool
	if err := tx.QueryRow(ctx, existsQuery, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

const appointmentColumns = `id, patient_id, doctor_id, slot_id, status, created_at, updated_at`

func (r appointments) AppointmentByID(ctx context.Context, id string) (*model.Appointment, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	a := &model.Appointment{}
	err := r.s.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id,
	).Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.SlotID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

func (r appointments) AppointmentsByPatient(ctx context.Context, patientID string) ([]model.Appointment, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	rows, err := r.s.pool.Query(ctx,
		`SELECT `+appointmentColumns+` FROM appointments
		 WHERE patient_id = $1
		 ORDER BY created_at, id`, patientID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.SlotID, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, a)
	}
	return out, mapErr(rows.Err())
}
