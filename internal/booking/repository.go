package booking

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Insert(ctx context.Context, b Booking) error
	GetByID(ctx context.Context, id string) (Booking, error)
	GetBySessionID(ctx context.Context, sessionID string) (Booking, error)
	List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Booking, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	ListApproved(ctx context.Context) ([]Booking, error)
	ListRecent(ctx context.Context, limit int64) ([]Booking, error)
	Delete(ctx context.Context, id string) error

	// UpdateStatusFrom flips status from->to only when the booking still
	// holds the expected status. The store executes the compare atomically,
	// so concurrent admin actions cannot both win.
	UpdateStatusFrom(ctx context.Context, id, from, to string) (Booking, bool, error)
	SetStatusIfNotTerminal(ctx context.Context, id, status string) (Booking, bool, error)
	UpdateDetails(ctx context.Context, id string, dates []string, notes *string) (Booking, error)

	AttachDeposit(ctx context.Context, id string, dep Deposit) (Booking, error)
	// MarkDepositPaid settles the deposit bound to sessionID only while it
	// is still pending, which makes webhook redelivery a no-op.
	MarkDepositPaid(ctx context.Context, sessionID, paymentIntentID string, now time.Time) (Booking, bool, error)

	FindExpiredDeposits(ctx context.Context, now time.Time) ([]Booking, error)
	// CancelExpired re-checks the expiry conditions inside the update
	// filter, so two overlapping sweeps cancel each booking at most once.
	CancelExpired(ctx context.Context, id string, now time.Time) (Booking, bool, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Insert(ctx context.Context, b Booking) error {
	_, err := r.col.InsertOne(ctx, b)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Booking, error) {
	var b Booking
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		return Booking{}, err
	}
	return b, nil
}

func (r *MongoRepository) GetBySessionID(ctx context.Context, sessionID string) (Booking, error) {
	var b Booking
	if err := r.col.FindOne(ctx, bson.M{"deposit.stripeSessionId": sessionID}).Decode(&b); err != nil {
		return Booking{}, err
	}
	return b, nil
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Booking, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)
	return r.find(ctx, r.filterToBSON(filter), opts)
}

func (r *MongoRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return r.col.CountDocuments(ctx, r.filterToBSON(filter))
}

func (r *MongoRepository) ListApproved(ctx context.Context) ([]Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, bson.M{"status": StatusApproved}, opts)
}

func (r *MongoRepository) ListRecent(ctx context.Context, limit int64) ([]Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	return r.find(ctx, bson.M{}, opts)
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRepository) UpdateStatusFrom(ctx context.Context, id, from, to string) (Booking, bool, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": id, "status": from}
	update := bson.M{"$set": bson.M{"status": to}}

	var updated Booking
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return Booking{}, false, nil
	}
	if err != nil {
		return Booking{}, false, err
	}
	return updated, true, nil
}

func (r *MongoRepository) SetStatusIfNotTerminal(ctx context.Context, id, status string) (Booking, bool, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$nin": bson.A{StatusDeclined, StatusCancelled, StatusCompleted}},
	}
	update := bson.M{"$set": bson.M{"status": status}}

	var updated Booking
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return Booking{}, false, nil
	}
	if err != nil {
		return Booking{}, false, err
	}
	return updated, true, nil
}

func (r *MongoRepository) UpdateDetails(ctx context.Context, id string, dates []string, notes *string) (Booking, error) {
	set := bson.M{}
	if len(dates) > 0 {
		set["dates"] = dates
	}
	if notes != nil {
		set["notes"] = *notes
	}
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}

	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$nin": bson.A{StatusDeclined, StatusCancelled, StatusCompleted}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Booking
	if err := r.col.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		return Booking{}, err
	}
	return updated, nil
}

func (r *MongoRepository) AttachDeposit(ctx context.Context, id string, dep Deposit) (Booking, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Booking
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"deposit": dep}}, opts).Decode(&updated); err != nil {
		return Booking{}, err
	}
	return updated, nil
}

func (r *MongoRepository) MarkDepositPaid(ctx context.Context, sessionID, paymentIntentID string, now time.Time) (Booking, bool, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{
		"deposit.stripeSessionId": sessionID,
		"deposit.status":          DepositPending,
		"status":                  StatusApproved,
	}
	update := bson.M{"$set": bson.M{
		"deposit.status":                DepositPaid,
		"deposit.paidAt":                now,
		"deposit.stripePaymentIntentId": paymentIntentID,
	}}

	var updated Booking
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return Booking{}, false, nil
	}
	if err != nil {
		return Booking{}, false, err
	}
	return updated, true, nil
}

func expiredFilter(now time.Time) bson.M {
	return bson.M{
		"status":           StatusApproved,
		"deposit.status":   DepositPending,
		"deposit.deadline": bson.M{"$lt": now},
	}
}

func (r *MongoRepository) FindExpiredDeposits(ctx context.Context, now time.Time) ([]Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "deposit.deadline", Value: 1}})
	return r.find(ctx, expiredFilter(now), opts)
}

func (r *MongoRepository) CancelExpired(ctx context.Context, id string, now time.Time) (Booking, bool, error) {
	filter := expiredFilter(now)
	filter["_id"] = id
	update := bson.M{"$set": bson.M{
		"status":             StatusCancelled,
		"deposit.status":     DepositExpired,
		"cancelledAt":        now,
		"cancellationReason": ExpiredDepositReason,
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Booking
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return Booking{}, false, nil
	}
	if err != nil {
		return Booking{}, false, err
	}
	return updated, true, nil
}

func (r *MongoRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]Booking, error) {
	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Booking, 0)
	for cursor.Next(ctx) {
		var b Booking
		if err := cursor.Decode(&b); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) filterToBSON(filter ListFilter) bson.M {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	return query
}
