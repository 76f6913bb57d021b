// Package store implements the Result Store Adapter (MongoDB-backed) and
// the Blob Store Adapter (local directory plus an optional cloud
// dual-write), grounded on the teacher's internal/storage/mongodb.go
// connection and query idiom.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicate is returned by Store when job_id already has a record,
// per the Result Store's store() contract.
var ErrDuplicate = errors.New("store: job_id already has a result record")

// ErrNotFound is returned by Get when no record matches.
var ErrNotFound = errors.New("store: no matching result record")

// ResultStore is the MongoDB-backed Result Store Adapter.
type ResultStore struct {
	collection *mongo.Collection
}

// Connect opens a MongoDB connection and ensures the Result Store's
// index set exists: unique on job_id, secondary on submitter_id,
// created_at, and overall_confidence.
func Connect(ctx context.Context, uri, dbName string) (*ResultStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(dbName).Collection("ocr_results")
	rs := &ResultStore{collection: collection}
	if err := rs.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	log.Println("connected to MongoDB result store")
	return rs, nil
}

// Ping checks result-store connectivity for the health check surface.
func (rs *ResultStore) Ping(ctx context.Context) error {
	return rs.collection.Database().Client().Ping(ctx, nil)
}

func (rs *ResultStore) ensureIndexes(ctx context.Context) error {
	_, err := rs.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "job_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "submitter_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "overall_confidence", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create result store indexes: %w", err)
	}
	return nil
}

// Store persists result, failing with ErrDuplicate if job_id already has
// a record.
func (rs *ResultStore) Store(ctx context.Context, result *job.OCRResult) error {
	if result.CreatedAt == 0 {
		result.CreatedAt = time.Now().UTC().Unix()
	}
	_, err := rs.collection.InsertOne(ctx, result)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// Get retrieves a result by job_id.
func (rs *ResultStore) Get(ctx context.Context, jobID string) (*job.OCRResult, error) {
	var result job.OCRResult
	err := rs.collection.FindOne(ctx, bson.M{"job_id": jobID}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return &result, nil
}

// Update applies a partial patch to an existing result record.
func (rs *ResultStore) Update(ctx context.Context, jobID string, patch map[string]interface{}) error {
	res, err := rs.collection.UpdateOne(ctx, bson.M{"job_id": jobID}, bson.M{"$set": patch})
	if err != nil {
		return fmt.Errorf("failed to update result: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// QueryBySubmitter returns every result submitted by submitterID, newest
// first.
func (rs *ResultStore) QueryBySubmitter(ctx context.Context, submitterID string, limit int64) ([]job.OCRResult, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := rs.collection.Find(ctx, bson.M{"submitter_id": submitterID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by submitter: %w", err)
	}
	defer cursor.Close(ctx)

	var results []job.OCRResult
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode submitter query results: %w", err)
	}
	return results, nil
}

// QueryByTimeRange returns every result created within [from, to).
func (rs *ResultStore) QueryByTimeRange(ctx context.Context, from, to time.Time) ([]job.OCRResult, error) {
	filter := bson.M{"created_at": bson.M{"$gte": from.Unix(), "$lt": to.Unix()}}
	cursor, err := rs.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query by time range: %w", err)
	}
	defer cursor.Close(ctx)

	var results []job.OCRResult
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode time-range query results: %w", err)
	}
	return results, nil
}

// Stats is the Result Store's aggregate summary.
type Stats struct {
	TotalResults      int64   `json:"total_results"`
	AverageConfidence float64 `json:"average_confidence"`
}

// Stats aggregates the total record count and the mean overall
// confidence across every stored result.
func (rs *ResultStore) Stats(ctx context.Context) (*Stats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avg_confidence", Value: bson.D{{Key: "$avg", Value: "$overall_confidence"}}},
		}}},
	}
	cursor, err := rs.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate result stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total         int64   `bson:"total"`
		AvgConfidence float64 `bson:"avg_confidence"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode result stats: %w", err)
	}
	if len(rows) == 0 {
		return &Stats{}, nil
	}
	return &Stats{TotalResults: rows[0].Total, AverageConfidence: rows[0].AvgConfidence}, nil
}
