package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/stackseed/auth-service/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection = "users"
	defaultDBName   = "auth"
)

// Storage — тонкий адаптер MongoDB для учётных записей.
type Storage struct {
	client *mongodriver.Client
	db     *mongodriver.Database
	users  *mongodriver.Collection
}

// New подключается к MongoDB, проверяет соединение и создаёт индексы.
// Имя БД берётся из пути URI (mongodb://host/dbname), иначе — "auth".
func New(ctx context.Context, uri string) (*Storage, error) {
	const op = "storage.mongo.New"

	if uri == "" {
		return nil, fmt.Errorf("%s: empty uri", op)
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := cli.Database(databaseFromURI(uri))

	s := &Storage{
		client: cli,
		db:     db,
		users:  db.Collection(usersCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s, nil
}

// Close отключает клиента.
func (s *Storage) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = s.client.Disconnect(ctx)
}

// ensureIndexes создаёт уникальный индекс по email.
// Email хранится в нижнем регистре, поэтому индекс регистронезависим по факту.
func (s *Storage) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("users_email_unique").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}

	return nil
}

// databaseFromURI извлекает имя базы данных из URI-пути mongodb.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}

	return defaultDBName
}

// Проверка на соответствие интерфейсу Storage.
var _ storage.Storage = (*Storage)(nil)
