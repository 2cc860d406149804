package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/mfontes/shortlink/internal/infrastructure/db"
	"github.com/mfontes/shortlink/internal/shortener"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LinksRepository struct {
	coll *mongo.Collection
}

type linkDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Code      string             `bson:"code"`
	TargetURL string             `bson:"targetUrl"`
	CreatedAt time.Time          `bson:"createdAt"`
	ExpiresAt *time.Time         `bson:"expiresAt,omitempty"`
	Clicks    int64              `bson:"clicks,omitempty"`
}

func NewLinksRepository(m *db.Mongo) (*LinksRepository, error) {
	repo := &LinksRepository{coll: m.Collection("links")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_code"),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("expiresAt_asc"),
		},
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

// Insert is the uniqueness enforcement point: the unique index on code
// makes concurrent inserts for the same code lose with a duplicate key.
func (r *LinksRepository) Insert(ctx context.Context, record *shortener.LinkRecord) error {
	doc := linkDoc{
		Code:      record.Code,
		TargetURL: record.TargetURL,
		CreatedAt: record.CreatedAt.UTC(),
		ExpiresAt: record.ExpiresAt,
	}

	_, err := r.coll.InsertOne(ctx, doc)
	if err == nil {
		return nil
	}

	if mongo.IsDuplicateKeyError(err) {
		return shortener.ErrCodeTaken
	}

	return err
}

func (r *LinksRepository) FindByCode(ctx context.Context, code string) (*shortener.LinkRecord, error) {
	var doc linkDoc
	err := r.coll.FindOne(ctx, bson.M{"code": code}).Decode(&doc)
	if err == nil {
		return mapLinkDoc(doc), nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, shortener.ErrNotFound
	}

	return nil, err
}

func (r *LinksRepository) FindActiveByCode(ctx context.Context, code string, at time.Time) (*shortener.LinkRecord, error) {
	now := at.UTC()

	filter := bson.M{
		"code": code,
		"$or": bson.A{
			bson.M{"expiresAt": bson.M{"$exists": false}},
			bson.M{"expiresAt": nil},
			bson.M{"expiresAt": bson.M{"$gte": now}},
		},
	}

	var doc linkDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if err == nil {
		return mapLinkDoc(doc), nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		existing, findErr := r.FindByCode(ctx, code)
		if findErr == nil && existing != nil {
			return nil, shortener.ErrExpired
		}
		if findErr != nil {
			return nil, findErr
		}
		return nil, shortener.ErrNotFound
	}

	return nil, err
}

// IncrementClicks is a single $inc, never read-modify-write.
func (r *LinksRepository) IncrementClicks(ctx context.Context, code string, delta int64) error {
	res, err := r.coll.UpdateOne(
		ctx,
		bson.M{"code": code},
		bson.M{"$inc": bson.M{"clicks": delta}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return shortener.ErrNotFound
	}
	return nil
}

// DeleteExpired removes up to limit expired records. It claims a bounded
// batch of ids first so the sweeper never issues an unbounded delete.
func (r *LinksRepository) DeleteExpired(ctx context.Context, cutoff time.Time, limit int64) (int64, error) {
	if limit <= 0 {
		limit = 100
	}

	filter := bson.M{"expiresAt": bson.M{"$lte": cutoff.UTC()}}
	cur, err := r.coll.Find(ctx, filter,
		options.Find().
			SetLimit(limit).
			SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return 0, err
		}
		ids = append(ids, doc.ID)
	}
	if err := cur.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := r.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func mapLinkDoc(doc linkDoc) *shortener.LinkRecord {
	return &shortener.LinkRecord{
		Code:      doc.Code,
		TargetURL: doc.TargetURL,
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
		Clicks:    doc.Clicks,
	}
}
