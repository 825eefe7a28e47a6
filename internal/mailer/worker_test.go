package mailer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
)

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) SendOTP(to, code string, expiresAt time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

func TestWorkDeliversCode(t *testing.T) {
	sender := &fakeSender{}
	w := NewSendOTPEmailWorker(sender, nil)

	job := &river.Job[SendOTPEmailArgs]{Args: SendOTPEmailArgs{
		Email:     "user@example.com",
		Code:      "123456",
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}}
	if err := w.Work(context.Background(), job); err != nil {
		t.Fatalf("work: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "user@example.com" {
		t.Errorf("sent = %v", sender.sent)
	}
}

func TestWorkDropsExpiredCode(t *testing.T) {
	sender := &fakeSender{}
	w := NewSendOTPEmailWorker(sender, nil)

	job := &river.Job[SendOTPEmailArgs]{Args: SendOTPEmailArgs{
		Email:     "user@example.com",
		Code:      "123456",
		ExpiresAt: time.Now().Add(-time.Second),
	}}
	if err := w.Work(context.Background(), job); err != nil {
		t.Fatalf("work: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("expired code was delivered to %v", sender.sent)
	}
}

func TestWorkReturnsDeliveryError(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	w := NewSendOTPEmailWorker(sender, nil)

	job := &river.Job[SendOTPEmailArgs]{Args: SendOTPEmailArgs{
		Email:     "user@example.com",
		Code:      "123456",
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}}
	if err := w.Work(context.Background(), job); err == nil {
		t.Fatal("expected delivery error to propagate for retry")
	}
}
