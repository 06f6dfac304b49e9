package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/careconnect-platform/internal/wizard"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ReceiptRepository persists issued receipts keyed by idempotency key.
type ReceiptRepository struct {
	pool rowQuerier
}

func NewReceiptRepository(pool *pgxpool.Pool) *ReceiptRepository {
	if pool == nil {
		panic("submission: pgx pool required")
	}
	return &ReceiptRepository{pool: pool}
}

func newReceiptRepositoryWithExec(exec rowQuerier) *ReceiptRepository {
	if exec == nil {
		panic("submission: exec required")
	}
	return &ReceiptRepository{pool: exec}
}

// FindByIdempotencyKey returns the stored receipt or nil when none exists.
func (r *ReceiptRepository) FindByIdempotencyKey(ctx context.Context, key string) (*wizard.Receipt, error) {
	query := `
		SELECT receipt_id, flow, session_id, reference, total_cents, details, submitted_at
		FROM submission_receipts
		WHERE idempotency_key = $1
	`
	var (
		receipt wizard.Receipt
		details []byte
	)
	err := r.pool.QueryRow(ctx, query, key).Scan(
		&receipt.ID,
		&receipt.Flow,
		&receipt.SessionID,
		&receipt.Reference,
		&receipt.TotalCents,
		&details,
		&receipt.SubmittedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("submission: find receipt: %w", err)
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &receipt.Details); err != nil {
			return nil, fmt.Errorf("submission: decode receipt details: %w", err)
		}
	}
	return &receipt, nil
}

// Insert stores a receipt, returning false if the key was already recorded.
func (r *ReceiptRepository) Insert(ctx context.Context, key string, receipt *wizard.Receipt) (bool, error) {
	details, err := json.Marshal(receipt.Details)
	if err != nil {
		return false, fmt.Errorf("submission: encode receipt details: %w", err)
	}
	query := `
		INSERT INTO submission_receipts
			(idempotency_key, receipt_id, flow, session_id, reference, total_cents, details, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	ct, err := r.pool.Exec(ctx, query,
		key,
		receipt.ID,
		receipt.Flow,
		receipt.SessionID,
		receipt.Reference,
		receipt.TotalCents,
		details,
		receipt.SubmittedAt,
	)
	if err != nil {
		return false, fmt.Errorf("submission: insert receipt: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

type receiptStore interface {
	FindByIdempotencyKey(ctx context.Context, key string) (*wizard.Receipt, error)
	Insert(ctx context.Context, key string, receipt *wizard.Receipt) (bool, error)
}

// Recording wraps a submitter with the receipt log. A submission whose
// idempotency key was already recorded returns the stored receipt without
// calling the wrapped submitter again.
type Recording[T any] struct {
	next   wizard.Submitter[T]
	store  receiptStore
	clock  func() time.Time
	logger *logging.Logger
}

func NewRecording[T any](next wizard.Submitter[T], repo *ReceiptRepository, logger *logging.Logger) *Recording[T] {
	if repo == nil {
		panic("submission: receipt repository required")
	}
	return newRecording(next, receiptStore(repo), logger)
}

func newRecording[T any](next wizard.Submitter[T], store receiptStore, logger *logging.Logger) *Recording[T] {
	if next == nil {
		panic("submission: wrapped submitter required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Recording[T]{
		next:   next,
		store:  store,
		clock:  func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Budget passes through the wrapped submitter's budget.
func (r *Recording[T]) Budget() time.Duration {
	if b, ok := r.next.(wizard.Budgeter); ok {
		return b.Budget()
	}
	return 0
}

func (r *Recording[T]) Submit(ctx context.Context, req wizard.SubmitRequest[T]) (*wizard.Receipt, error) {
	existing, err := r.store.FindByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", wizard.ErrNetwork, err)
	}
	if existing != nil {
		r.logger.Info("submission replayed from receipt log", "flow", req.Flow, "session_id", req.SessionID, "receipt_id", existing.ID)
		return existing, nil
	}

	receipt, err := r.next.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("%w: submitter returned no receipt", wizard.ErrNetwork)
	}
	if receipt.ID == "" {
		receipt.ID = uuid.NewString()
	}
	if receipt.Flow == "" {
		receipt.Flow = req.Flow
	}
	if receipt.SessionID == "" {
		receipt.SessionID = req.SessionID
	}
	if receipt.TotalCents == 0 {
		receipt.TotalCents = req.TotalCents
	}
	if receipt.SubmittedAt.IsZero() {
		receipt.SubmittedAt = r.clock()
	}

	inserted, err := r.store.Insert(ctx, req.IdempotencyKey, receipt)
	if err != nil {
		r.logger.Error("failed to record receipt", "flow", req.Flow, "session_id", req.SessionID, "error", err)
		return receipt, nil
	}
	if !inserted {
		// A concurrent submit recorded first; its receipt wins.
		if stored, err := r.store.FindByIdempotencyKey(ctx, req.IdempotencyKey); err == nil && stored != nil {
			return stored, nil
		}
	}
	return receipt, nil
}
