package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/store"
)

// Seed adds two doctors when there are none, and four one-hour slots over
// the next four days when there are no slots.
func Seed(ctx context.Context, st store.Store, now time.Time, logger *slog.Logger) error {
	n, err := st.Doctors().CountDoctors(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		for _, d := range []model.Doctor{
			{Name: "Dr. John Doe", Specialization: "Cardiology", Email: "john.doe@clinic.local", Phone: "555-0101"},
			{Name: "Dr. Jane Smith", Specialization: "Dermatology", Email: "jane.smith@clinic.local", Phone: "555-0102"},
		} {
			d.ID = uuid.New().String()
			if err := st.Doctors().CreateDoctor(ctx, &d); err != nil {
				return err
			}
		}
		logger.Info("seeded doctors", "count", 2)
	}

	n, err = st.Slots().CountSlots(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	doctors, err := st.Doctors().ListDoctors(ctx)
	if err != nil || len(doctors) < 2 {
		return err
	}

	now = now.UTC().Truncate(time.Hour)
	created := 0
	for day := 1; day <= 4; day++ {
		start := now.AddDate(0, 0, day)
		sl := &model.Slot{
			ID:        uuid.New().String(),
			DoctorID:  doctors[(day-1)/2].ID,
			StartTime: start,
			EndTime:   start.Add(time.Hour),
		}
		if err := st.Slots().CreateSlot(ctx, sl); err != nil {
			return err
		}
		created++
	}
	logger.Info("seeded slots", "count", created)
	return nil
}
