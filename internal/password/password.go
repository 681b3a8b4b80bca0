// password — одностороннее хэширование паролей (bcrypt).
//
// Соль генерируется bcrypt на каждый вызов и хранится внутри хэша,
// поэтому два хэша одного пароля различаются. Сравнение выполняется
// bcrypt.CompareHashAndPassword за постоянное время.
//
// bcrypt принимает не более 72 байт; более длинные пароли перед хэшированием
// сворачиваются SHA-256 (одинаково в Hash и Verify).
package password

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultCost — стоимость bcrypt по умолчанию (2^10 раундов).
const DefaultCost = 10

const maxBcryptInput = 72

// ErrInvalidCost — стоимость вне диапазона bcrypt.
var ErrInvalidCost = errors.New("invalid bcrypt cost")

// Verify сравнивает пароль с хэшем. Некорректный хэш даёт false.
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prepare(plain)) == nil
}

func hashWithCost(plain string, cost int) (string, error) {
	const op = "password.hashWithCost"

	b, err := bcrypt.GenerateFromPassword(prepare(plain), cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(b), nil
}

func prepare(plain string) []byte {
	if len(plain) <= maxBcryptInput {
		return []byte(plain)
	}

	sum := sha256.Sum256([]byte(plain))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// Hasher ограничивает число одновременных bcrypt-вычислений и хранит
// фиктивный хэш для выравнивания времени ответа при входе.
type Hasher struct {
	cost  int
	sem   *semaphore.Weighted
	dummy string
}

// NewHasher создаёт Hasher. maxConcurrent <= 0 — по числу CPU.
func NewHasher(cost, maxConcurrent int) (*Hasher, error) {
	const op = "password.NewHasher"

	if cost == 0 {
		cost = DefaultCost
	}

	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%s: %w: %d", op, ErrInvalidCost, cost)
	}

	if maxConcurrent <= 0 {
		maxConcurrent = runtime.GOMAXPROCS(0)
	}

	dummy, err := hashWithCost("dummy-password-for-timing", cost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Hasher{
		cost:  cost,
		sem:   semaphore.NewWeighted(int64(maxConcurrent)),
		dummy: dummy,
	}, nil
}

// Hash хэширует пароль. Ожидание слота прерывается отменой ctx.
func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	const op = "password.Hasher.Hash"

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer h.sem.Release(1)

	return hashWithCost(plain, h.cost)
}

// Verify сравнивает пароль с хэшем.
// Ошибка возвращается только при отмене ctx; несовпадение и битый хэш — (false, nil).
func (h *Hasher) Verify(ctx context.Context, plain, hash string) (bool, error) {
	const op = "password.Hasher.Verify"

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer h.sem.Release(1)

	return Verify(plain, hash), nil
}

// VerifyDummy выполняет сравнение с фиктивным хэшем той же стоимости.
// Нужен, чтобы ветка «пользователь не найден» стоила столько же, сколько
// ветка «неверный пароль».
func (h *Hasher) VerifyDummy(ctx context.Context, plain string) error {
	_, err := h.Verify(ctx, plain, h.dummy)
	return err
}

// Cost возвращает стоимость bcrypt.
func (h *Hasher) Cost() int { return h.cost }
