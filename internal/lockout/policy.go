// Package lockout decides whether an account may attempt authentication and
// what its attempt state becomes after a success or failure. The same policy
// gates logins and password-reset requests.
package lockout

import "time"

const (
	// MaxAttempts is the number of consecutive failures that trigger a lock.
	MaxAttempts = 5
	// LockDuration is how long a locked account rejects all attempts.
	LockDuration = 10 * time.Minute
)

// State is the lockout state of a single account. Exactly one of the two
// variants holds: unlocked with a failure count below MaxAttempts, or locked
// until a point in time.
type State struct {
	locked   bool
	attempts int
	until    time.Time
}

// Unlocked returns an unlocked state carrying the given failure count.
func Unlocked(attempts int) State {
	return State{attempts: attempts}
}

// LockedUntil returns a locked state expiring at until.
func LockedUntil(until time.Time) State {
	return State{locked: true, until: until}
}

// Evaluate derives the current state from the persisted attempt counter and
// lock timestamp. Expiry is lazy: a lock whose deadline has passed reads as
// Unlocked(0), and the caller is expected to persist that transition.
func Evaluate(attempts int, lockUntil *time.Time, now time.Time) State {
	if lockUntil != nil {
		if now.Before(*lockUntil) {
			return LockedUntil(*lockUntil)
		}
		return Unlocked(0)
	}
	return Unlocked(attempts)
}

// Locked reports whether attempts are currently rejected, and if so, how
// long until the lock expires.
func (s State) Locked(now time.Time) (bool, time.Duration) {
	if !s.locked {
		return false, 0
	}
	return true, s.until.Sub(now)
}

// Attempts returns the consecutive failure count. Zero while locked; the
// counter is untouched until the lock expires.
func (s State) Attempts() int {
	if s.locked {
		return 0
	}
	return s.attempts
}

// Remaining returns how many failures are left before a lock.
func (s State) Remaining() int {
	if s.locked {
		return 0
	}
	return MaxAttempts - s.attempts
}

// Fail transitions the state after a failed attempt. Reaching MaxAttempts
// locks the account for LockDuration from now. Failing while locked is a
// no-op: rejected attempts do not consume the counter.
func (s State) Fail(now time.Time) State {
	if s.locked {
		return s
	}
	if s.attempts+1 >= MaxAttempts {
		return LockedUntil(now.Add(LockDuration))
	}
	return Unlocked(s.attempts + 1)
}

// Succeed transitions the state after a successful authentication: the
// counter and any lock are cleared.
func (s State) Succeed() State {
	return Unlocked(0)
}

// Persist flattens the state back into the account's stored fields.
func (s State) Persist() (attempts int, lockUntil *time.Time) {
	if s.locked {
		u := s.until
		return 0, &u
	}
	return s.attempts, nil
}
