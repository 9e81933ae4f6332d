package account

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/doora-app/doora/password"
)

// Errors returned by the store. Token-consumption failures are deliberately
// coarse: a wrong, expired, or already-consumed token all surface as
// [ErrTokenMismatch].
var (
	ErrNotFound          = errors.New("account not found")
	ErrDuplicateIdentity = errors.New("email or phone already registered")
	ErrRefreshMismatch   = errors.New("refresh token hash mismatch")
	ErrTokenMismatch     = errors.New("single-use token mismatch")
	ErrConflict          = errors.New("account modified concurrently")
)

// createScript claims both identity indexes and writes the record in one
// atomic step. An empty phone claims no phone index. Returns 1 on success,
// 0 when either identity is already taken.
var createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
if ARGV[3] ~= "" and redis.call("EXISTS", KEYS[3]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SET", KEYS[2], ARGV[2])
if ARGV[3] ~= "" then
	redis.call("SET", KEYS[3], ARGV[2])
end
return 1
`)

// casRetries bounds optimistic-transaction retries under contention.
const casRetries = 4

// Store persists account records in Redis. It hashes passwords on create so
// a plaintext password cannot reach storage through any code path.
type Store struct {
	client *redis.Client
	prefix string
	hasher *password.Hasher
	now    func() time.Time
}

// NewStore wires a store to a Redis client. The prefix namespaces all keys.
func NewStore(client *redis.Client, prefix string, hasher *password.Hasher) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		hasher: hasher,
		now:    time.Now,
	}
}

func (s *Store) recordKey(id string) string {
	return s.prefix + ":acc:" + id
}

func (s *Store) emailKey(email string) string {
	return s.prefix + ":idx:email:" + email
}

func (s *Store) phoneKey(phone string) string {
	return s.prefix + ":idx:phone:" + phone
}

// Create hashes the draft password, claims the email and phone indexes, and
// writes the record atomically. Returns ErrDuplicateIdentity when either
// identity is already taken, regardless of which.
func (s *Store) Create(ctx context.Context, draft Draft) (*Record, error) {
	hash, err := s.hasher.Hash(draft.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	email := NormalizeEmail(draft.Email)
	phone := NormalizePhone(draft.Phone)
	role := draft.Role
	if role == "" {
		role = RoleUser
	}
	now := s.now().Unix()

	rec := &Record{
		ID:             uuid.NewString(),
		Email:          email,
		Phone:          phone,
		Firstname:      draft.Firstname,
		Lastname:       draft.Lastname,
		PasswordHash:   hash,
		Role:           role,
		AvatarURL:      draft.AvatarURL,
		AvatarPublicID: draft.AvatarPublicID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	raw, err := encodeRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	keys := []string{s.recordKey(rec.ID), s.emailKey(email), s.phoneKey(phone)}
	res, err := createScript.Run(ctx, s.client, keys, raw, rec.ID, phone).Int()
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	if res == 0 {
		return nil, ErrDuplicateIdentity
	}
	return rec, nil
}

// FindByID loads a record or returns ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string) (*Record, error) {
	raw, err := s.client.Get(ctx, s.recordKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	return decodeRecord(raw)
}

// FindByEmail resolves an email through its index and loads the record.
func (s *Store) FindByEmail(ctx context.Context, email string) (*Record, error) {
	return s.findByIndex(ctx, s.emailKey(NormalizeEmail(email)))
}

// FindByPhone resolves a phone number through its index and loads the record.
func (s *Store) FindByPhone(ctx context.Context, phone string) (*Record, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return nil, ErrNotFound
	}
	return s.findByIndex(ctx, s.phoneKey(phone))
}

// FindByEmailOrPhone returns the first record matching either identity. Used
// as the advisory duplicate pre-check before Create; the Lua script remains
// the authoritative gate.
func (s *Store) FindByEmailOrPhone(ctx context.Context, email, phone string) (*Record, error) {
	rec, err := s.FindByEmail(ctx, email)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.FindByPhone(ctx, phone)
}

func (s *Store) findByIndex(ctx context.Context, idxKey string) (*Record, error) {
	id, err := s.client.Get(ctx, idxKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve index: %w", err)
	}
	return s.FindByID(ctx, id)
}

// Delete removes a record and its identity indexes. Used by registration
// compensation and account teardown; deleting an absent account is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	rec, err := s.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	keys := []string{s.recordKey(id), s.emailKey(rec.Email)}
	if rec.Phone != "" {
		keys = append(keys, s.phoneKey(rec.Phone))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// mutate runs fn against the current record inside a WATCH transaction and
// persists the result. fn may return an error to abort without writing. The
// transaction retries a bounded number of times on concurrent modification.
func (s *Store) mutate(ctx context.Context, id string, fn func(rec *Record) error) (*Record, error) {
	key := s.recordKey(id)
	var out *Record

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		rec.UpdatedAt = s.now().Unix()
		updated, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		if err != nil {
			return err
		}
		out = rec
		return nil
	}

	for i := 0; i < casRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, ErrConflict
}

// SetRefreshHash unconditionally installs a new refresh-token hash. Used on
// login, where any previously issued refresh token is superseded.
func (s *Store) SetRefreshHash(ctx context.Context, id string, hash [32]byte) error {
	_, err := s.mutate(ctx, id, func(rec *Record) error {
		rec.RefreshTokenHash = hex.EncodeToString(hash[:])
		return nil
	})
	return err
}

// RotateRefreshHash swaps the stored refresh hash only while it still equals
// oldHash. A stale oldHash means the presented token was already rotated or
// revoked and yields ErrRefreshMismatch; of two racing rotations exactly one
// wins.
func (s *Store) RotateRefreshHash(ctx context.Context, id string, oldHash, newHash [32]byte) (*Record, error) {
	want := hex.EncodeToString(oldHash[:])
	return s.mutate(ctx, id, func(rec *Record) error {
		if rec.RefreshTokenHash == "" || subtle.ConstantTimeCompare([]byte(rec.RefreshTokenHash), []byte(want)) != 1 {
			return ErrRefreshMismatch
		}
		rec.RefreshTokenHash = hex.EncodeToString(newHash[:])
		return nil
	})
}

// ClearRefresh drops the stored refresh hash. Idempotent: clearing an
// account with no active session succeeds.
func (s *Store) ClearRefresh(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, func(rec *Record) error {
		rec.RefreshTokenHash = ""
		return nil
	})
	return err
}

// SetVerification installs a verification token hash and expiry, replacing
// any pending one.
func (s *Store) SetVerification(ctx context.Context, id string, hash [32]byte, expiresAt time.Time) error {
	_, err := s.mutate(ctx, id, func(rec *Record) error {
		rec.VerifyTokenHash = hex.EncodeToString(hash[:])
		rec.VerifyTokenExpiry = expiresAt.Unix()
		return nil
	})
	return err
}

// ConsumeVerification validates the provided hash against the pending
// verification pair and, in the same transaction, marks the account verified
// and clears the pair. Wrong, expired, and absent tokens are
// indistinguishable to the caller.
func (s *Store) ConsumeVerification(ctx context.Context, id string, provided [32]byte) (*Record, error) {
	return s.mutate(ctx, id, func(rec *Record) error {
		if err := s.checkSingleUse(rec.VerifyTokenHash, rec.VerifyTokenExpiry, provided); err != nil {
			return err
		}
		rec.IsVerified = true
		rec.VerifyTokenHash = ""
		rec.VerifyTokenExpiry = 0
		return nil
	})
}

// SetReset installs a password-reset token hash and expiry, replacing any
// pending one.
func (s *Store) SetReset(ctx context.Context, id string, hash [32]byte, expiresAt time.Time) error {
	_, err := s.mutate(ctx, id, func(rec *Record) error {
		rec.ResetTokenHash = hex.EncodeToString(hash[:])
		rec.ResetTokenExpiry = expiresAt.Unix()
		return nil
	})
	return err
}

// ConsumeReset validates the provided hash against the pending reset pair
// and, in the same transaction, installs the new password hash, clears the
// pair, and revokes any active refresh session.
func (s *Store) ConsumeReset(ctx context.Context, id string, provided [32]byte, newPasswordHash string) (*Record, error) {
	return s.mutate(ctx, id, func(rec *Record) error {
		if err := s.checkSingleUse(rec.ResetTokenHash, rec.ResetTokenExpiry, provided); err != nil {
			return err
		}
		rec.PasswordHash = newPasswordHash
		rec.ResetTokenHash = ""
		rec.ResetTokenExpiry = 0
		rec.RefreshTokenHash = ""
		return nil
	})
}

// SetPassword replaces the password hash outside the reset flow, e.g. a
// transparent cost upgrade after a successful login.
func (s *Store) SetPassword(ctx context.Context, id, newHash string) error {
	_, err := s.mutate(ctx, id, func(rec *Record) error {
		rec.PasswordHash = newHash
		return nil
	})
	return err
}

func (s *Store) checkSingleUse(storedHex string, expiry int64, provided [32]byte) error {
	if storedHex == "" || expiry == 0 {
		return ErrTokenMismatch
	}
	stored, err := hex.DecodeString(storedHex)
	if err != nil || len(stored) != len(provided) {
		return ErrTokenMismatch
	}
	if subtle.ConstantTimeCompare(stored, provided[:]) != 1 {
		return ErrTokenMismatch
	}
	if s.now().Unix() > expiry {
		return ErrTokenMismatch
	}
	return nil
}
