package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"easyrent/internal/domain"
	"easyrent/internal/query"
	"easyrent/pkg/apperrors"
)

type UserMongoRepo struct{ c *mongo.Collection }

func NewUserMongoRepo(db *mongo.Database) *UserMongoRepo {
	return &UserMongoRepo{c: db.Collection("users")}
}

var _ domain.UserRepository = (*UserMongoRepo)(nil)

func (r *UserMongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "passwordResetToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	return err
}

func (r *UserMongoRepo) Create(ctx context.Context, u *domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if _, err := r.c.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrEmailTaken.WithError(err)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserMongoRepo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var u domain.User
	err := r.c.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserMongoRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserMongoRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserMongoRepo) FindByResetToken(ctx context.Context, tokenHash string) (*domain.User, error) {
	if tokenHash == "" {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"passwordResetToken": tokenHash})
}

func (r *UserMongoRepo) List(ctx context.Context, q *query.Query) ([]domain.User, int64, error) {
	filter := query.MongoFilter(q)
	total, err := r.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.c.Find(ctx, filter, query.MongoFind(q))
	if err != nil {
		return nil, 0, err
	}
	out := []domain.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *UserMongoRepo) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()
	_, err := r.c.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if mongo.IsDuplicateKeyError(err) {
		return apperrors.ErrEmailTaken.WithError(err)
	}
	return err
}

func (r *UserMongoRepo) SetResetToken(ctx context.Context, id, tokenHash string, expires *time.Time) error {
	update := bson.M{"$set": bson.M{"updatedAt": time.Now().UTC()}}
	if tokenHash == "" || expires == nil {
		update["$unset"] = bson.M{"passwordResetToken": "", "passwordResetExpires": ""}
	} else {
		update["$set"] = bson.M{
			"passwordResetToken":   tokenHash,
			"passwordResetExpires": expires.UTC(),
			"updatedAt":            time.Now().UTC(),
		}
	}
	_, err := r.c.UpdateByID(ctx, id, update)
	return err
}

func (r *UserMongoRepo) RedeemResetToken(ctx context.Context, id, tokenHash, passwordHash string, changedAt time.Time) (bool, error) {
	res, err := r.c.UpdateOne(ctx,
		bson.M{"_id": id, "passwordResetToken": tokenHash},
		bson.M{
			"$set": bson.M{
				"password":          passwordHash,
				"passwordChangedAt": changedAt.UTC(),
				"updatedAt":         time.Now().UTC(),
			},
			"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}
