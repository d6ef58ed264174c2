package repository

import (
	"context"
	"errors"
	"time"

	"github.com/authorstack/authorstack/internal/user/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "users"

type preferencesDocument struct {
	EmailNotifications bool   `bson:"email_notifications"`
	WeeklyDigest       bool   `bson:"weekly_digest"`
	Theme              string `bson:"theme"`
	Timezone           string `bson:"timezone"`
	Currency           string `bson:"currency"`
}

type document struct {
	ID               string              `bson:"_id"`
	Email            string              `bson:"email"`
	Name             string              `bson:"name"`
	SubscriptionTier string              `bson:"subscription_tier"`
	Credits          int64               `bson:"credits"`
	Preferences      preferencesDocument `bson:"preferences"`
	CreatedAt        time.Time           `bson:"created_at"`
	UpdatedAt        time.Time           `bson:"updated_at"`
}

type repo struct {
	users *mongo.Collection
}

func Provide(db *mongo.Database) domain.Repository {
	return &repo{users: db.Collection(collectionName)}
}

func (r *repo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var doc document
	err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromDocument(&doc), nil
}

func (r *repo) UpdateProfile(ctx context.Context, id string, req domain.UpdateRequest, now time.Time) (*domain.User, error) {
	set := profileSet(req)
	set["updated_at"] = now
	update := bson.M{
		"$set":         set,
		"$setOnInsert": insertDefaults(now, set),
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, update, true)
}

func (r *repo) IncCredits(ctx context.Context, id string, amount int64, now time.Time) (*domain.User, error) {
	update := bson.M{
		"$inc": bson.M{"credits": amount},
		"$set": bson.M{"updated_at": now},
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, update, false)
}

// DeductCredits checks the balance and decrements it in one document update,
// so concurrent deductions can never take the balance below zero.
func (r *repo) DeductCredits(ctx context.Context, id string, amount int64, now time.Time) (*domain.User, error) {
	filter := bson.M{"_id": id, "credits": bson.M{"$gte": amount}}
	update := bson.M{
		"$inc": bson.M{"credits": -amount},
		"$set": bson.M{"updated_at": now},
	}
	return r.findOneAndUpdate(ctx, filter, update, false)
}

func (r *repo) SetTier(ctx context.Context, id string, tier domain.Tier, now time.Time) error {
	set := bson.M{"subscription_tier": string(tier), "updated_at": now}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": insertDefaults(now, set),
	}
	_, err := r.users.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	return err
}

func (r *repo) findOneAndUpdate(ctx context.Context, filter, update bson.M, upsert bool) (*domain.User, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetUpsert(upsert)

	var doc document
	err := r.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromDocument(&doc), nil
}

// EnsureIndexes creates the email lookup index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(collectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetSparse(true),
	})
	return err
}

// profileSet flattens a partial update into dotted $set paths so untouched
// preferences keep their stored values.
func profileSet(req domain.UpdateRequest) bson.M {
	set := bson.M{}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Email != nil {
		set["email"] = *req.Email
	}
	if p := req.Preferences; p != nil {
		if p.EmailNotifications != nil {
			set["preferences.email_notifications"] = *p.EmailNotifications
		}
		if p.WeeklyDigest != nil {
			set["preferences.weekly_digest"] = *p.WeeklyDigest
		}
		if p.Theme != nil {
			set["preferences.theme"] = *p.Theme
		}
		if p.Timezone != nil {
			set["preferences.timezone"] = *p.Timezone
		}
		if p.Currency != nil {
			set["preferences.currency"] = *p.Currency
		}
	}
	return set
}

// insertDefaults fills a new profile, skipping any path already in set:
// Mongo rejects an update that names the same path in $set and
// $setOnInsert.
func insertDefaults(now time.Time, set bson.M) bson.M {
	prefs := domain.DefaultPreferences()
	defaults := bson.M{
		"email":                           "",
		"name":                            "",
		"subscription_tier":               string(domain.TierFree),
		"credits":                         int64(0),
		"created_at":                      now,
		"preferences.email_notifications": prefs.EmailNotifications,
		"preferences.weekly_digest":       prefs.WeeklyDigest,
		"preferences.theme":               prefs.Theme,
		"preferences.timezone":            prefs.Timezone,
		"preferences.currency":            prefs.Currency,
	}
	for path := range set {
		delete(defaults, path)
	}
	return defaults
}

func fromDocument(doc *document) *domain.User {
	return &domain.User{
		ID:               doc.ID,
		Email:            doc.Email,
		Name:             doc.Name,
		SubscriptionTier: domain.Tier(doc.SubscriptionTier),
		Credits:          doc.Credits,
		Preferences: domain.Preferences{
			EmailNotifications: doc.Preferences.EmailNotifications,
			WeeklyDigest:       doc.Preferences.WeeklyDigest,
			Theme:              doc.Preferences.Theme,
			Timezone:           doc.Preferences.Timezone,
			Currency:           doc.Preferences.Currency,
		},
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
}
