package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clinic-booking-api/internal/model"
)

type doctors struct{ s *Store }

func (r doctors) CreateDoctor(ctx context.Context, d *model.Doctor) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	_, err := r.s.col(colDoctors).InsertOne(ctx, doctorDoc{
		ID:             d.ID,
		Name:           d.Name,
		Specialization: d.Specialization,
		Email:          d.Email,
		Phone:          d.Phone,
		CreatedAt:      time.Now().UTC(),
	})
	return mapErr(err)
}

func (r doctors) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()

	cur, err := r.s.col(colDoctors).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, mapErr(err)
	}
	var docs []doctorDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapErr(err)
	}

	slotIDs, err := r.slotIDs(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	out := make([]model.Doctor, 0, len(docs))
	for _, d := range docs {
		out = append(out, doctorModel(d, slotIDs[d.ID]))
	}
	return out, nil
}

func (r doctors) DoctorByID(ctx context.Context, id string) (*model.Doctor, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()

	var doc doctorDoc
	if err := r.s.col(colDoctors).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	slotIDs, err := r.slotIDs(ctx, bson.M{"doctor_id": id})
	if err != nil {
		return nil, err
	}
	d := doctorModel(doc, slotIDs[id])
	return &d, nil
}

func (r doctors) CountDoctors(ctx context.Context) (int64, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	n, err := r.s.col(colDoctors).CountDocuments(ctx, bson.M{})
	return n, mapErr(err)
}

// slotIDs groups the ids of the matching slots by doctor, in start order.
func (r doctors) slotIDs(ctx context.Context, filter bson.M) (map[string][]string, error) {
	cur, err := r.s.col(colSlots).Find(ctx, filter,
		options.Find().
			SetProjection(bson.M{"_id": 1, "doctor_id": 1}).
			SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, mapErr(err)
	}
	var docs []slotDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapErr(err)
	}
	out := make(map[string][]string)
	for _, sl := range docs {
		out[sl.DoctorID] = append(out[sl.DoctorID], sl.ID)
	}
	return out, nil
}

func doctorModel(d doctorDoc, slotIDs []string) model.Doctor {
	if slotIDs == nil {
		slotIDs = []string{}
	}
	return model.Doctor{
		ID:             d.ID,
		Name:           d.Name,
		Specialization: d.Specialization,
		Email:          d.Email,
		Phone:          d.Phone,
		SlotIDs:        slotIDs,
	}
}

type slots struct{ s *Store }

func (r slots) CreateSlot(ctx context.Context, sl *model.Slot) error {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	_, err := r.s.col(colSlots).InsertOne(ctx, slotDoc{
		ID:        sl.ID,
		DoctorID:  sl.DoctorID,
		StartTime: sl.StartTime,
		EndTime:   sl.EndTime,
		Booked:    sl.Booked,
	})
	return mapErr(err)
}

func (r slots) SlotByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	var doc slotDoc
	if err := r.s.col(colSlots).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapErr(err)
	}
	sl := doc.model()
	return &sl, nil
}

func (r slots) AvailableSlots(ctx context.Context, doctorID string) ([]model.Slot, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	cur, err := r.s.col(colSlots).Find(ctx, bson.M{"doctor_id": doctorID, "booked": false},
		options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, mapErr(err)
	}
	var docs []slotDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapErr(err)
	}
	out := make([]model.Slot, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (r slots) CountSlots(ctx context.Context) (int64, error) {
	ctx, cancel := r.s.bound(ctx)
	defer cancel()
	n, err := r.s.col(colSlots).CountDocuments(ctx, bson.M{})
	return n, mapErr(err)
}
