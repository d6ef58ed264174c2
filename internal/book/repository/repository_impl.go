package repository

import (
	"context"
	"errors"
	"time"

	"github.com/authorstack/authorstack/internal/book/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "books"

type document struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	UserID        string             `bson:"user_id"`
	Title         string             `bson:"title"`
	Slug          string             `bson:"slug"`
	Subtitle      *string            `bson:"subtitle"`
	Author        string             `bson:"author"`
	Description   *string            `bson:"description"`
	ISBN          *string            `bson:"isbn"`
	ASIN          *string            `bson:"asin"`
	CoverURL      *string            `bson:"cover_url"`
	Genres        []string           `bson:"genres"`
	Platforms     []string           `bson:"platforms"`
	PublishedDate *time.Time         `bson:"published_date"`
	Status        string             `bson:"status"`
	Metadata      bson.M             `bson:"metadata"`
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`
}

type repo struct {
	books *mongo.Collection
}

func Provide(db *mongo.Database) domain.Repository {
	return &repo{books: db.Collection(collectionName)}
}

func (r *repo) Insert(ctx context.Context, book *domain.Book) error {
	doc := toDocument(book)
	doc.ID = primitive.NewObjectID()
	if _, err := r.books.InsertOne(ctx, doc); err != nil {
		return err
	}
	book.ID = doc.ID.Hex()
	return nil
}

func (r *repo) FindByID(ctx context.Context, userID, id string) (*domain.Book, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var doc document
	err = r.books.FindOne(ctx, bson.M{"_id": oid, "user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromDocument(&doc), nil
}

func (r *repo) ListByUser(ctx context.Context, userID string) ([]domain.Book, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.books.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Book, 0, len(docs))
	for i := range docs {
		out = append(out, *fromDocument(&docs[i]))
	}
	return out, nil
}

func (r *repo) Replace(ctx context.Context, book *domain.Book) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(book.ID)
	if err != nil {
		return false, nil
	}
	doc := toDocument(book)
	doc.ID = oid

	res, err := r.books.ReplaceOne(ctx, bson.M{"_id": oid, "user_id": book.UserID}, doc)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *repo) Delete(ctx context.Context, userID, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	res, err := r.books.DeleteOne(ctx, bson.M{"_id": oid, "user_id": userID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

// EnsureIndexes creates the per-user listing index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(collectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func toDocument(book *domain.Book) document {
	metadata := bson.M{}
	for k, v := range book.Metadata {
		metadata[k] = v
	}
	return document{
		UserID:        book.UserID,
		Title:         book.Title,
		Slug:          book.Slug,
		Subtitle:      book.Subtitle,
		Author:        book.Author,
		Description:   book.Description,
		ISBN:          book.ISBN,
		ASIN:          book.ASIN,
		CoverURL:      book.CoverURL,
		Genres:        nonNil(book.Genres),
		Platforms:     nonNil(book.Platforms),
		PublishedDate: book.PublishedDate,
		Status:        string(book.Status),
		Metadata:      metadata,
		CreatedAt:     book.CreatedAt,
		UpdatedAt:     book.UpdatedAt,
	}
}

func fromDocument(doc *document) *domain.Book {
	metadata := map[string]any{}
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	book := &domain.Book{
		ID:            doc.ID.Hex(),
		UserID:        doc.UserID,
		Title:         doc.Title,
		Slug:          doc.Slug,
		Subtitle:      doc.Subtitle,
		Author:        doc.Author,
		Description:   doc.Description,
		ISBN:          doc.ISBN,
		ASIN:          doc.ASIN,
		CoverURL:      doc.CoverURL,
		Genres:        nonNil(doc.Genres),
		Platforms:     nonNil(doc.Platforms),
		PublishedDate: doc.PublishedDate,
		Status:        domain.Status(doc.Status),
		Metadata:      metadata,
		CreatedAt:     doc.CreatedAt.UTC(),
		UpdatedAt:     doc.UpdatedAt.UTC(),
	}
	if book.PublishedDate != nil {
		t := book.PublishedDate.UTC()
		book.PublishedDate = &t
	}
	return book
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
