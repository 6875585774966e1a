// internal/app/store/usage/usagestore.go
package usagestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding daily usage documents.
const CollectionName = "usage_stats"

// Stat types.
const (
	TypeDashboard = "dashboard"
	TypeUpstream  = "upstream"
)

// DailyUsage holds one stat type's counters for one UTC day.
type DailyUsage struct {
	ID        primitive.ObjectID `bson:"_id"`
	Date      time.Time          `bson:"date"` // UTC midnight
	StatType  string             `bson:"stat_type"`
	Counters  map[string]int64   `bson:"counters"`
	Gauges    map[string]float64 `bson:"gauges"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// ErrNotFound is returned when no document exists for a day.
var ErrNotFound = errors.New("usage stats not found")

// Store persists daily usage.
type Store struct {
	c *mongo.Collection
}

// New creates a Store on db.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dayFilter(date time.Time, statType string) bson.M {
	return bson.M{"date": truncateToDay(date), "stat_type": statType}
}

func rangeFilter(start, end time.Time, statType string) bson.M {
	return bson.M{
		"date":      bson.M{"$gte": truncateToDay(start), "$lt": truncateToDay(end).Add(24 * time.Hour)},
		"stat_type": statType,
	}
}

// FieldKey maps a counter or gauge name to the key stored under counters
// or gauges. MongoDB reads "." as a path separator and "$" as an operator,
// so dots become underscores and leading dollars are dropped.
func FieldKey(name string) string {
	return strings.ReplaceAll(strings.TrimLeft(name, "$"), ".", "_")
}

// IncrementCounters adds every delta in counters to the day's document,
// creating it if needed.
func (s *Store) IncrementCounters(ctx context.Context, date time.Time, statType string, counters map[string]int64) error {
	if len(counters) == 0 {
		return nil
	}
	merged := make(map[string]int64, len(counters))
	for k, v := range counters {
		merged["counters."+FieldKey(k)] += v
	}
	inc := bson.M{}
	for k, v := range merged {
		inc[k] = v
	}
	_, err := s.c.UpdateOne(ctx, dayFilter(date, statType), bson.M{
		"$inc":         inc,
		"$set":         bson.M{"updated_at": time.Now()},
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
	}, options.Update().SetUpsert(true))
	return err
}

// IncrementCounter adds delta to one counter.
func (s *Store) IncrementCounter(ctx context.Context, date time.Time, statType, counter string, delta int64) error {
	return s.IncrementCounters(ctx, date, statType, map[string]int64{counter: delta})
}

// SetGauge overwrites one gauge for the day.
func (s *Store) SetGauge(ctx context.Context, date time.Time, statType, gauge string, value float64) error {
	_, err := s.c.UpdateOne(ctx, dayFilter(date, statType), bson.M{
		"$set": bson.M{
			"gauges." + FieldKey(gauge): value,
			"updated_at":                 time.Now(),
		},
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
	}, options.Update().SetUpsert(true))
	return err
}

// GetForDate returns the document for one day and type.
func (s *Store) GetForDate(ctx context.Context, date time.Time, statType string) (*DailyUsage, error) {
	var u DailyUsage
	err := s.c.FindOne(ctx, dayFilter(date, statType)).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetRange returns the documents of one type between start and end
// inclusive, oldest first.
func (s *Store) GetRange(ctx context.Context, start, end time.Time, statType string) ([]DailyUsage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cur, err := s.c.Find(ctx, rangeFilter(start, end, statType), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []DailyUsage
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SumCounters totals every counter of one type across the range.
func (s *Store) SumCounters(ctx context.Context, start, end time.Time, statType string) (map[string]int64, error) {
	pipeline := []bson.M{
		{"$match": rangeFilter(start, end, statType)},
		{"$project": bson.M{"counters": bson.M{"$objectToArray": "$counters"}}},
		{"$unwind": "$counters"},
		{"$group": bson.M{"_id": "$counters.k", "total": bson.M{"$sum": "$counters.v"}}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	result := make(map[string]int64)
	for cur.Next(ctx) {
		var doc struct {
			Key   string `bson:"_id"`
			Total int64  `bson:"total"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		result[doc.Key] = doc.Total
	}
	return result, cur.Err()
}

// CounterPoint is one day's value of a counter.
type CounterPoint struct {
	Date  time.Time `json:"date"`
	Value int64     `json:"value"`
}

// GetCounterTimeSeries returns one counter per day over the range. Days
// without a document are omitted.
func (s *Store) GetCounterTimeSeries(ctx context.Context, start, end time.Time, statType, counter string) ([]CounterPoint, error) {
	days, err := s.GetRange(ctx, start, end, statType)
	if err != nil {
		return nil, err
	}
	out := make([]CounterPoint, 0, len(days))
	for _, d := range days {
		out = append(out, CounterPoint{Date: d.Date, Value: d.Counters[FieldKey(counter)]})
	}
	return out, nil
}

// DeleteOlderThan removes documents dated before cutoff's day.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"date": bson.M{"$lt": truncateToDay(cutoff)}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
