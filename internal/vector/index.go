package vector

import (
	"context"
	"math"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
)

// Index ranks stored paper chunks against a query embedding.
type Index interface {
	Upsert(ctx context.Context, chunks []models.PaperChunk) error
	Query(ctx context.Context, embedding []float32, topK int) ([]models.RetrievedPaper, error)
	Remove(ctx context.Context, paperID string) error
	Reset(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// MongoIndex stores chunk vectors in the paper_chunks collection and ranks
// them in process by cosine similarity. The corpus is abstract sized
// (thousands of papers), so a full scan per query is acceptable.
type MongoIndex struct {
	collection *mongo.Collection
}

func NewMongoIndex(db *mongo.Database) *MongoIndex {
	return &MongoIndex{collection: db.Collection("paper_chunks")}
}

// Upsert writes chunks keyed by paper id, replacing any existing vector for
// the same paper.
func (idx *MongoIndex) Upsert(ctx context.Context, chunks []models.PaperChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(chunks))
	for _, chunk := range chunks {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"paper_id": chunk.PaperID}).
			SetReplacement(chunk).
			SetUpsert(true))
	}

	_, err := idx.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}

// Query returns the topK most similar chunks, highest similarity first.
func (idx *MongoIndex) Query(ctx context.Context, embedding []float32, topK int) ([]models.RetrievedPaper, error) {
	cursor, err := idx.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	chunks := []models.PaperChunk{}
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}

	return Rank(embedding, chunks, topK), nil
}

func (idx *MongoIndex) Remove(ctx context.Context, paperID string) error {
	_, err := idx.collection.DeleteOne(ctx, bson.M{"paper_id": paperID})
	return err
}

// Reset drops every chunk, starting a new index generation.
func (idx *MongoIndex) Reset(ctx context.Context) error {
	_, err := idx.collection.DeleteMany(ctx, bson.M{})
	return err
}

func (idx *MongoIndex) Count(ctx context.Context) (int64, error) {
	return idx.collection.CountDocuments(ctx, bson.M{})
}

// Rank scores chunks against the query embedding and returns the topK best,
// highest similarity first. Chunks with mismatched or zero vectors are
// skipped.
func Rank(embedding []float32, chunks []models.PaperChunk, topK int) []models.RetrievedPaper {
	if topK <= 0 {
		return []models.RetrievedPaper{}
	}

	hits := make([]models.RetrievedPaper, 0, len(chunks))
	for _, chunk := range chunks {
		score, ok := Cosine(embedding, chunk.Vector)
		if !ok {
			continue
		}
		hits = append(hits, models.RetrievedPaper{
			PaperID: chunk.PaperID,
			Title:   chunk.Title,
			Text:    chunk.Text,
			Score:   score,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// Cosine computes cosine similarity between two vectors. ok is false when
// the vectors differ in length or either has zero magnitude.
func Cosine(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
