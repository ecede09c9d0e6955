package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// PaperStore persists papers in MongoDB.
type PaperStore struct {
	collection *mongo.Collection
}

func NewPaperStore(db *mongo.Database) *PaperStore {
	return &PaperStore{collection: db.Collection("papers")}
}

// PaperFilter narrows ListPapers results. Zero values mean "no filter".
type PaperFilter struct {
	Category string
	Favorite *bool
	Indexed  *bool
	Limit    int64
	Skip     int64
}

// AddPaper inserts a paper if its id is not already present. Returns true
// when a new document was inserted.
func (s *PaperStore) AddPaper(ctx context.Context, paper models.Paper) (bool, error) {
	paper.CreatedAt = time.Now()

	filter := bson.M{"_id": paper.ID}
	update := bson.M{"$setOnInsert": paper}
	opts := options.Update().SetUpsert(true)

	result, err := s.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return false, err
	}
	return result.UpsertedCount > 0, nil
}

// ListPapers returns papers newest first, honoring the filter.
func (s *PaperStore) ListPapers(ctx context.Context, f PaperFilter) ([]models.Paper, error) {
	filter := bson.M{}
	if f.Category != "" {
		filter["categories"] = bson.M{"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(f.Category)}}
	}
	if f.Favorite != nil {
		filter["favorite"] = *f.Favorite
	}
	if f.Indexed != nil {
		filter["indexed"] = *f.Indexed
	}

	opts := options.Find().SetSort(bson.D{{Key: "published", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	papers := []models.Paper{}
	if err := cursor.All(ctx, &papers); err != nil {
		return nil, err
	}
	return papers, nil
}

func (s *PaperStore) GetPaper(ctx context.Context, id string) (*models.Paper, error) {
	var paper models.Paper
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&paper)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &paper, nil
}

// SearchPapers does a case-insensitive substring match over title and
// summary.
func (s *PaperStore) SearchPapers(ctx context.Context, text string, limit int64) ([]models.Paper, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(text), Options: "i"}
	filter := bson.M{"$or": []bson.M{
		{"title": bson.M{"$regex": pattern}},
		{"summary": bson.M{"$regex": pattern}},
	}}

	opts := options.Find().SetSort(bson.D{{Key: "published", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	papers := []models.Paper{}
	if err := cursor.All(ctx, &papers); err != nil {
		return nil, err
	}
	return papers, nil
}

// UnindexedPapers returns papers not yet present in the vector index,
// oldest first so the backlog drains in arrival order.
func (s *PaperStore) UnindexedPapers(ctx context.Context, limit int64) ([]models.Paper, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.collection.Find(ctx, bson.M{"indexed": false}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	papers := []models.Paper{}
	if err := cursor.All(ctx, &papers); err != nil {
		return nil, err
	}
	return papers, nil
}

func (s *PaperStore) MarkIndexed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"indexed": true}},
	)
	return err
}

// ClearIndexed marks every paper as unindexed so the next indexing pass
// rebuilds the whole index.
func (s *PaperStore) ClearIndexed(ctx context.Context) error {
	_, err := s.collection.UpdateMany(ctx,
		bson.M{"indexed": true},
		bson.M{"$set": bson.M{"indexed": false}},
	)
	return err
}

func (s *PaperStore) SetFavorite(ctx context.Context, id string, favorite bool) error {
	result, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"favorite": favorite}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePaper removes a paper document. The caller is responsible for
// removing the paper's index entry as well.
func (s *PaperStore) DeletePaper(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// PapersSince returns papers first seen after the given time, newest first.
func (s *PaperStore) PapersSince(ctx context.Context, since time.Time) ([]models.Paper, error) {
	opts := options.Find().SetSort(bson.D{{Key: "published", Value: -1}})

	cursor, err := s.collection.Find(ctx, bson.M{"created_at": bson.M{"$gte": since}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	papers := []models.Paper{}
	if err := cursor.All(ctx, &papers); err != nil {
		return nil, err
	}
	return papers, nil
}

func (s *PaperStore) CountPapers(ctx context.Context) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.M{})
}

func (s *PaperStore) CountUnindexed(ctx context.Context) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.M{"indexed": false})
}
