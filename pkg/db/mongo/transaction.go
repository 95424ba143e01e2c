package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	apperrors "trimly/pkg/errors"
)

const (
	transientTransactionLabel = "TransientTransactionError"
	unknownCommitLabel        = "UnknownTransactionCommitResult"

	// commit results labelled unknown are safe to re-issue; everything else
	// restarts the whole transaction body.
	maxCommitAttempts = 3
)

// ErrRetriesExhausted is returned once the transient-retry budget is spent.
// Callers map it to their transient-conflict error kind.
var ErrRetriesExhausted = errors.New("transaction retry budget exhausted")

// TransactionFunc runs with a context that carries the session, so
// repository methods invoked inside it join the transaction transparently.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	Execute(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client      *mongo.Client
	maxAttempts int
}

func NewTransactionManager(client *mongo.Client, maxAttempts int) TransactionManager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &mongoTransactionManager{
		client:      client,
		maxAttempts: maxAttempts,
	}
}

// Execute runs fn inside a multi-document transaction with snapshot reads
// and majority writes. When the server invalidates the read snapshot under
// a concurrent commit it raises a TransientTransactionError; the whole body
// is then re-run against a fresh snapshot, at most maxAttempts times.
// Domain errors (AppError) abort immediately and pass through untouched.
func (m *mongoTransactionManager) Execute(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	sessCtx := mongo.NewSessionContext(ctx, session)
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if err := session.StartTransaction(txnOpts); err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if err := fn(sessCtx); err != nil {
			_ = session.AbortTransaction(sessCtx)
			if apperrors.IsAppError(err) {
				return err
			}
			if IsTransient(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("transaction failed: %w", err)
		}

		err := commitWithRetry(sessCtx, session)
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			lastErr = err
			continue
		}
		return fmt.Errorf("transaction commit failed: %w", err)
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, m.maxAttempts, lastErr)
}

func commitWithRetry(ctx context.Context, session mongo.Session) error {
	var err error
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		err = session.CommitTransaction(ctx)
		if err == nil || !hasErrorLabel(err, unknownCommitLabel) {
			return err
		}
	}
	return err
}

// IsTransient reports whether the server asked for the transaction to be
// retried from scratch (snapshot invalidated by a concurrent commit, write
// conflict, primary failover).
func IsTransient(err error) bool {
	return hasErrorLabel(err, transientTransactionLabel)
}

func hasErrorLabel(err error, label string) bool {
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.HasErrorLabel(label)
	}
	return false
}
