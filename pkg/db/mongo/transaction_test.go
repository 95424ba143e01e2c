package mongo

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsTransient(t *testing.T) {
	transient := mongo.CommandError{
		Code:   112,
		Name:   "WriteConflict",
		Labels: []string{"TransientTransactionError"},
	}
	if !IsTransient(transient) {
		t.Error("expected TransientTransactionError label to be transient")
	}

	wrapped := errors.Join(errors.New("tx attempt 2"), transient)
	if !IsTransient(wrapped) {
		t.Error("expected label detection through wrapped errors")
	}

	permanent := mongo.CommandError{Code: 121, Name: "DocumentValidationFailure"}
	if IsTransient(permanent) {
		t.Error("validation failures must not be transient")
	}

	if IsTransient(nil) {
		t.Error("nil is not transient")
	}
	if IsTransient(errors.New("plain")) {
		t.Error("plain errors are not transient")
	}
}
