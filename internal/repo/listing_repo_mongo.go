package repo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"easyrent/internal/domain"
	"easyrent/internal/query"
)

type ListingMongoRepo struct{ c *mongo.Collection }

func NewListingMongoRepo(db *mongo.Database) *ListingMongoRepo {
	return &ListingMongoRepo{c: db.Collection("appartments")}
}

var _ domain.ListingRepository = (*ListingMongoRepo)(nil)

func (r *ListingMongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}}},
		{Keys: bson.D{{Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "dateUploaded", Value: -1}}},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "lga", Value: 1}}},
	})
	return err
}

func (r *ListingMongoRepo) Create(ctx context.Context, l *domain.Listing) error {
	now := time.Now().UTC()
	if l.DateUploaded.IsZero() {
		l.DateUploaded = now
	}
	l.UpdatedAt = now
	_, err := r.c.InsertOne(ctx, l)
	return err
}

func (r *ListingMongoRepo) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	var l domain.Listing
	err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *ListingMongoRepo) List(ctx context.Context, q *query.Query) ([]domain.Listing, int64, error) {
	filter := query.MongoFilter(q)
	total, err := r.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.c.Find(ctx, filter, query.MongoFind(q))
	if err != nil {
		return nil, 0, err
	}
	out := []domain.Listing{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *ListingMongoRepo) Update(ctx context.Context, l *domain.Listing) error {
	l.UpdatedAt = time.Now().UTC()
	_, err := r.c.ReplaceOne(ctx, bson.M{"_id": l.ID}, l)
	return err
}
