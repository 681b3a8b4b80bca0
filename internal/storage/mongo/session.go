package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stackseed/auth-service/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
)

// SetRefreshToken перезаписывает refresh-токен пользователя.
func (s *Storage) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	const op = "storage.mongo.SetRefreshToken"

	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "refresh_token", Value: token},
			{Key: "updated_at", Value: toMS(time.Now())},
		}}},
	)
	if err != nil {
		return fmt.Errorf("%s: update: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// RotateRefreshToken — условное обновление одного документа: фильтр по _id и текущему
// refresh_token. Обновление документа в MongoDB атомарно, поэтому из параллельных
// попыток с одинаковым expected совпадёт ровно одна.
func (s *Storage) RotateRefreshToken(ctx context.Context, id uuid.UUID, expected, next string) error {
	const op = "storage.mongo.RotateRefreshToken"

	if expected == "" {
		return fmt.Errorf("%s: %w", op, storage.ErrTokenMismatch)
	}

	res, err := s.users.UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: id.String()},
			{Key: "refresh_token", Value: expected},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "refresh_token", Value: next},
			{Key: "updated_at", Value: toMS(time.Now())},
		}}},
	)
	if err != nil {
		return fmt.Errorf("%s: update: %w", op, err)
	}

	if res.MatchedCount == 1 {
		return nil
	}

	n, err := s.users.CountDocuments(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return fmt.Errorf("%s: count: %w", op, err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return fmt.Errorf("%s: %w", op, storage.ErrTokenMismatch)
}

// ClearRefreshToken удаляет поле refresh_token. Повторный вызов не ошибка.
func (s *Storage) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	const op = "storage.mongo.ClearRefreshToken"

	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}},
		bson.D{
			{Key: "$unset", Value: bson.D{{Key: "refresh_token", Value: ""}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: toMS(time.Now())}}},
		},
	)
	if err != nil {
		return fmt.Errorf("%s: update: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
