package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clinic-booking-api/internal/logx"
	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/store"
)

type appointments struct{ s *Store }

func (r appointments) Book(ctx context.Context, a *model.Appointment) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()

	slotsCol := r.s.col(colSlots)
	res, err := slotsCol.UpdateOne(ctx,
		bson.M{"_id": a.SlotID, "booked": false},
		bson.M{"$set": bson.M{"booked": true}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return r.missingOr(ctx, slotsCol, a.SlotID)
	}

	_, err = r.s.col(colAppointments).InsertOne(ctx, appointmentDoc{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		SlotID:    a.SlotID,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	})
	if err != nil {
		r.compensate(ctx, "release slot after failed booking", colSlots,
			bson.M{"_id": a.SlotID}, bson.M{"$set": bson.M{"booked": false}})
		if field, ok := store.Duplicate(mapErr(err)); ok && field == "slot" {
			return store.ErrConflict
		}
		return mapErr(err)
	}
	return nil
}

func (r appointments) Cancel(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()

	apptCol := r.s.col(colAppointments)
	var doc appointmentDoc
	err := apptCol.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": string(model.StatusBooked)},
		bson.M{"$set": bson.M{"status": string(model.StatusCancelled), "updated_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return r.missingOr(ctx, apptCol, id)
	}
	if err != nil {
		return mapErr(err)
	}

	res, err := r.s.col(colSlots).UpdateOne(ctx,
		bson.M{"_id": doc.SlotID}, bson.M{"$set": bson.M{"booked": false}})
	if err == nil && res.MatchedCount == 0 {
		err = store.ErrNotFound
	}
	if err != nil {
		// put the appointment back so the cancel can be retried
		r.compensate(ctx, "restore appointment after failed slot release", colAppointments,
			bson.M{"_id": id, "status": string(model.StatusCancelled)},
			bson.M{"$set": bson.M{"status": string(model.StatusBooked), "updated_at": doc.UpdatedAt}})
		return mapErr(err)
	}
	return nil
}

// compensate undoes the first half of a two-document write. It runs on a
// fresh context so a timed-out ctx cannot strand the record.
func (r appointments) compensate(ctx context.Context, what, col string, filter, update bson.M) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.s.timeout)
	defer cancel()
	if _, err := r.s.col(col).UpdateOne(cctx, filter, update); err != nil {
		logx.FromContext(ctx).Error("mongo compensation failed", "op", what, "filter", filter, "error", err)
	}
}

// missingOr tells a lost conditional update apart from a missing document.
func (r appointments) missingOr(ctx context.Context, col *mongo.Collection, id string) error {
	n, err := col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

func (r appointments) AppointmentByID(ctx context.Context, id string) (*model.Appointment, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	var doc appointmentDoc
	if err := r.s.col(colAppointments).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	a := doc.model()
	return &a, nil
}

func (r appointments) AppointmentsByPatient(ctx context.Context, patientID string) ([]model.Appointment, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	cur, err := r.s.col(colAppointments).Find(ctx, bson.M{"patient_id": patientID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, mapErr(err)
	}
	var docs []appointmentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapErr(err)
	}
	out := make([]model.Appointment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}
