package kafka

import (
	"errors"
	"testing"
	"time"
)

func TestMessageBuilder(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	msg, err := NewMessage().
		WithKey("barber-1").
		WithValue(payload{Name: "test"}).
		WithEventType("reservation.created").
		WithSource("reservations").
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.Key != "barber-1" {
		t.Errorf("expected key barber-1, got %q", msg.Key)
	}
	if msg.GetEventID() == "" {
		t.Error("expected generated event id")
	}
	if msg.GetEventType() != "reservation.created" {
		t.Errorf("unexpected event type %q", msg.GetEventType())
	}
	if _, ok := msg.GetHeader(HeaderTimestamp); !ok {
		t.Error("expected timestamp header")
	}

	var decoded payload
	if err := msg.DecodeValue(&decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Name != "test" {
		t.Errorf("round trip lost value, got %q", decoded.Name)
	}
}

func TestMessageBuilder_EncodingError(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	if err == nil {
		t.Fatal("expected encoding error")
	}
}

func TestRetryCount(t *testing.T) {
	msg := Message{Headers: map[string]string{}, Timestamp: time.Now()}

	if got := msg.GetRetryCount(); got != 0 {
		t.Errorf("expected 0 retries, got %d", got)
	}
	for i := 1; i <= 12; i++ {
		msg.IncrementRetryCount()
		if got := msg.GetRetryCount(); got != i {
			t.Fatalf("after %d increments got %d", i, got)
		}
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error must not be transient")
	}
	if !IsTransient(errors.New("dial tcp: connection refused")) {
		t.Error("connection refused should be transient")
	}
	if IsTransient(errors.New("invalid message format")) {
		t.Error("decode errors must not be transient")
	}
}

func TestShouldRetry(t *testing.T) {
	err := errors.New("i/o timeout")
	if !ShouldRetry(err, 0, 3) {
		t.Error("expected retry under budget")
	}
	if ShouldRetry(err, 3, 3) {
		t.Error("expected no retry at budget")
	}
	if ShouldRetry(errors.New("bad payload"), 0, 3) {
		t.Error("permanent errors must not retry")
	}
}
