package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stackseed/auth-service/internal/models"
	"github.com/stackseed/auth-service/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// userDoc — документ коллекции users. _id хранится строковым UUID.
type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	RefreshToken string    `bson:"refresh_token,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d *userDoc) toModel() (*models.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("bad user id %q: %w", d.ID, err)
	}

	return &models.User{
		ID:           id,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		RefreshToken: d.RefreshToken,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}, nil
}

// MongoDB DateTime хранит миллисекунды.
func toMS(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

// CreateUser создаёт пользователя; дубликат email -> storage.ErrAlreadyExists.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	const op = "storage.mongo.CreateUser"

	now := toMS(time.Now())
	doc := userDoc{
		ID:           uuid.NewString(),
		Name:         user.Name,
		Email:        strings.ToLower(user.Email),
		PasswordHash: user.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	u, err := doc.toModel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// UserByEmail находит пользователя по email вместе с хэшем пароля.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.mongo.UserByEmail"

	var doc userDoc
	err := s.users.FindOne(ctx, bson.D{{Key: "email", Value: strings.ToLower(email)}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: find: %w", op, err)
	}

	u, err := doc.toModel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// UserByID находит пользователя по ID; password_hash исключается проекцией.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.mongo.UserByID"

	opts := options.FindOne().SetProjection(bson.D{{Key: "password_hash", Value: 0}})

	var doc userDoc
	err := s.users.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: find: %w", op, err)
	}

	u, err := doc.toModel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// UpdateUser частично обновляет пользователя и возвращает новую версию документа.
// Пустой RefreshToken удаляет поле ($unset).
func (s *Storage) UpdateUser(ctx context.Context, id uuid.UUID, upd models.UserUpdate) (*models.User, error) {
	const op = "storage.mongo.UpdateUser"

	set := bson.D{{Key: "updated_at", Value: toMS(time.Now())}}
	update := bson.D{}

	if upd.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *upd.Name})
	}

	if upd.Email != nil {
		set = append(set, bson.E{Key: "email", Value: strings.ToLower(*upd.Email)})
	}

	if upd.RefreshToken != nil {
		if *upd.RefreshToken == "" {
			update = append(update, bson.E{Key: "$unset", Value: bson.D{{Key: "refresh_token", Value: ""}}})
		} else {
			set = append(set, bson.E{Key: "refresh_token", Value: *upd.RefreshToken})
		}
	}

	update = append(update, bson.E{Key: "$set", Value: set})

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: "password_hash", Value: 0}})

	var doc userDoc
	err := s.users.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id.String()}}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		if mongodriver.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return nil, fmt.Errorf("%s: update: %w", op, err)
	}

	u, err := doc.toModel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}
