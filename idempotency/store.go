// Package idempotency deduplicates side-effecting requests. The first request
// for a (user, key) pair claims the key inside a transaction; the response it
// produces is stored in that same transaction, so a concurrent or later
// duplicate either waits for the claim to resolve or replays the stored
// response byte for byte.
package idempotency

import (
	"bytes"
	"context"
	"errors"
	"time"

	"newsletter-backend/apperror"
	"newsletter-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrResponseNotReady is returned when a stored record is observed
	// without its response. Claims and responses commit together, so this
	// indicates a record written by something other than Store.
	ErrResponseNotReady = errors.New("idempotency record has no saved response")
	ErrHandleResolved   = errors.New("idempotency handle already committed or rolled back")
	ErrRecordMissing    = errors.New("idempotency record missing inside its own claim")
	errEmptyUserID      = errors.New("user id cannot be empty")
)

// claimAttempts bounds how often a claim is retried when the record it
// conflicted with was rolled back before it could be read.
const claimAttempts = 3

type Outcome int

const (
	// Processing means the caller owns the key and must run the operation.
	Processing Outcome = iota + 1
	// Replay means the key was already used and Response holds the result.
	Replay
)

func (o Outcome) String() string {
	switch o {
	case Processing:
		return "processing"
	case Replay:
		return "replay"
	default:
		return "unknown"
	}
}

// Claim is the result of ClaimOrReplay. Handle is set for Processing,
// Response for Replay.
type Claim struct {
	Outcome  Outcome
	Handle   *Handle
	Response Response
}

// Handle owns the transaction that inserted an in-flight record. Writes that
// must commit atomically with the cached response go through Tx. A Handle is
// resolved exactly once, by Store.CommitResponse or Rollback.
type Handle struct {
	tx     *gorm.DB
	userID string
	key    Key
	done   bool
}

func (h *Handle) Tx() *gorm.DB { return h.tx }

func (h *Handle) UserID() string { return h.userID }

func (h *Handle) Key() Key { return h.key }

// Resolved reports whether the handle has been committed or rolled back.
func (h *Handle) Resolved() bool { return h.done }

// Rollback abandons the claim. The record disappears and the key can be
// claimed again. Rolling back a resolved handle is a no-op.
func (h *Handle) Rollback() error {
	if h == nil || h.done {
		return nil
	}
	h.done = true
	if err := h.tx.Rollback().Error; err != nil {
		return apperror.Storage("rollback claim", err)
	}
	return nil
}

type Store struct {
	db    *gorm.DB
	codec Codec[HeaderCollection]
	now   func() time.Time
}

type Option func(*Store)

// WithHeaderCodec replaces the JSON encoding of stored headers. The column
// is binary, so any byte format works.
func WithHeaderCodec(c Codec[HeaderCollection]) Option {
	return func(s *Store) { s.codec = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		codec: JSONCodec[HeaderCollection]{},
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClaimOrReplay tries to claim key for userID. The insert blocks while
// another transaction holds an uncommitted claim on the same pair, so a
// Replay always carries a complete response.
func (s *Store) ClaimOrReplay(ctx context.Context, key Key, userID string) (Claim, error) {
	if key.String() == "" {
		return Claim{}, apperror.Validation("idempotency_key", "", ErrEmptyKey)
	}
	if userID == "" {
		return Claim{}, apperror.Validation("user_id", "", errEmptyUserID)
	}

	for attempt := 1; ; attempt++ {
		handle, err := s.tryClaim(ctx, key, userID)
		if err != nil {
			return Claim{}, err
		}
		if handle != nil {
			return Claim{Outcome: Processing, Handle: handle}, nil
		}

		resp, err := s.savedResponse(ctx, key, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) && attempt < claimAttempts {
			continue
		}
		if err != nil {
			return Claim{}, apperror.Storage("read saved response", err)
		}
		return Claim{Outcome: Replay, Response: resp}, nil
	}
}

// tryClaim returns a nil handle when the pair is already taken.
func (s *Store) tryClaim(ctx context.Context, key Key, userID string) (*Handle, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperror.Storage("begin claim", tx.Error)
	}

	rec := models.IdempotencyRecord{
		UserID:         userID,
		IdempotencyKey: key.String(),
		CreatedAt:      s.now(),
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		tx.Rollback()
		return nil, apperror.Storage("insert idempotency record", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, nil
	}
	return &Handle{tx: tx, userID: userID, key: key}, nil
}

func (s *Store) savedResponse(ctx context.Context, key Key, userID string) (Response, error) {
	var rec models.IdempotencyRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key.String()).
		Take(&rec).Error
	if err != nil {
		return Response{}, err
	}
	if !rec.Completed() {
		return Response{}, ErrResponseNotReady
	}

	headers, err := s.decodeHeaders(rec.ResponseHeaders)
	if err != nil {
		return Response{}, err
	}
	return Response{
		StatusCode: *rec.ResponseStatusCode,
		Headers:    headers,
		Body:       rec.ResponseBody,
	}, nil
}

// CommitResponse stores resp in the record claimed by h and commits the claim
// transaction, together with everything else written through h.Tx(). The
// returned Response is decoded from the bytes that were stored, so it is
// identical to what a later replay returns. On any error the transaction is
// rolled back.
func (s *Store) CommitResponse(ctx context.Context, h *Handle, resp Response) (Response, error) {
	if h == nil || h.done {
		return Response{}, apperror.Storage("commit response", ErrHandleResolved)
	}

	encoded, err := s.codec.Encode(resp.Headers)
	if err != nil {
		_ = h.Rollback()
		return Response{}, apperror.Storage("encode headers", err)
	}
	body := resp.Body
	if body == nil {
		body = []byte{}
	}

	res := h.tx.WithContext(ctx).
		Model(&models.IdempotencyRecord{}).
		Where("user_id = ? AND idempotency_key = ?", h.userID, h.key.String()).
		Updates(map[string]any{
			"response_status_code": resp.StatusCode,
			"response_headers":     encoded,
			"response_body":        body,
		})
	if res.Error != nil {
		_ = h.Rollback()
		return Response{}, apperror.Storage("update idempotency record", res.Error)
	}
	if res.RowsAffected != 1 {
		_ = h.Rollback()
		return Response{}, apperror.Storage("update idempotency record", ErrRecordMissing)
	}

	h.done = true
	if err := h.tx.Commit().Error; err != nil {
		return Response{}, apperror.Storage("commit claim", err)
	}

	headers, err := s.decodeHeaders(encoded)
	if err != nil {
		return Response{}, apperror.Storage("decode headers", err)
	}
	return Response{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       bytes.Clone(body),
	}, nil
}

func (s *Store) decodeHeaders(raw []byte) (HeaderCollection, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	return s.codec.Decode(raw)
}
