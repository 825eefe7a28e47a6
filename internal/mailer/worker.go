package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

type SendOTPEmailArgs struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (SendOTPEmailArgs) Kind() string { return "send_otp_email" }

// Sender is the delivery contract the worker needs.
type Sender interface {
	SendOTP(to, code string, expiresAt time.Time) error
}

type SendOTPEmailWorker struct {
	river.WorkerDefaults[SendOTPEmailArgs]
	sender Sender
	log    *slog.Logger
}

func NewSendOTPEmailWorker(sender Sender, log *slog.Logger) *SendOTPEmailWorker {
	if log == nil {
		log = slog.Default()
	}
	return &SendOTPEmailWorker{sender: sender, log: log}
}

func (w *SendOTPEmailWorker) Work(ctx context.Context, job *river.Job[SendOTPEmailArgs]) error {
	args := job.Args
	if args.ExpiresAt.Before(time.Now()) {
		// The code already lapsed while the job sat in the queue; a mail
		// would only confuse the user.
		w.log.Warn("dropping expired OTP delivery", "email", args.Email)
		return nil
	}
	if err := w.sender.SendOTP(args.Email, args.Code, args.ExpiresAt); err != nil {
		return fmt.Errorf("sending OTP mail to %s: %w", args.Email, err)
	}
	return nil
}
