package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/npratt/linkwatch/internal/driver"
	"github.com/npratt/linkwatch/internal/events"
	"github.com/npratt/linkwatch/internal/metrics"
	"github.com/npratt/linkwatch/internal/notify"
)

type attemptKind string

const (
	kindReconnect   attemptKind = "reconnect"
	kindAutoConnect attemptKind = "auto_connect"
)

var errNoCredentials = errors.New("no saved credentials")

// attempt is the handle of the single in-flight connect attempt.
type attempt struct {
	ssid   string
	kind   attemptKind
	number int
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type attemptResult struct {
	result     string
	err        error
	connectDur time.Duration
}

// startAttemptLocked starts an attempt for ssid unless one is already
// running or the reconnect budget is spent. Auto-connect attempts are
// not counted against the budget.
func (s *Supervisor) startAttemptLocked(ctx context.Context, ssid string, kind attemptKind) bool {
	if s.attempt != nil {
		s.logger.Debug("attempt already in flight", "ssid", ssid, "running", s.attempt.ssid)
		return false
	}
	if kind == kindReconnect {
		if s.attempts >= s.opts.MaxAttempts {
			s.logger.Warn("reconnect attempts exhausted", "ssid", ssid, "attempts", s.attempts)
			return false
		}
		s.attempts++
		if s.episodeID == "" {
			s.episodeID = newEpisodeID()
		}
	}

	actx, cancel := context.WithCancel(ctx)
	a := &attempt{
		ssid:   ssid,
		kind:   kind,
		number: s.attempts,
		ctx:    actx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.attempt = a
	s.metrics.SetAttemptInFlight(true)

	if kind == kindReconnect {
		s.deps.Notifier.Notify(notify.KindReconnecting, ssid)
		s.emit(&events.ReconnectScheduledEvent{
			BaseEvent:   events.NewSupervisorEvent(events.EventReconnectScheduled),
			EpisodeID:   s.episodeID,
			SSID:        ssid,
			Attempt:     a.number,
			MaxAttempts: s.opts.MaxAttempts,
			DelayMs:     s.opts.ReconnectDelay.Milliseconds(),
		})
		s.logger.Info("reconnect scheduled", "ssid", ssid, "attempt", a.number, "max", s.opts.MaxAttempts)
	}
	s.setStateLocked(StateReconnecting)

	go s.runAttempt(a)
	return true
}

func (s *Supervisor) runAttempt(a *attempt) {
	defer close(a.done)
	defer a.cancel()

	res := s.performAttempt(a)
	s.finishAttempt(a, res)
}

// performAttempt waits the reconnect delay, resolves credentials and runs
// one connect call. It never holds mu.
func (s *Supervisor) performAttempt(a *attempt) (res attemptResult) {
	defer func() {
		if r := recover(); r != nil {
			res = attemptResult{result: metrics.ResultFailed, err: fmt.Errorf("connect panicked: %v", r)}
		}
	}()

	if !sleepCtx(a.ctx, s.opts.ReconnectDelay) {
		return attemptResult{result: metrics.ResultCanceled, err: a.ctx.Err()}
	}

	auth, ok := s.deps.Credentials.LookupCredential(a.ssid)
	if !ok {
		return attemptResult{result: metrics.ResultNoCredentials, err: errNoCredentials}
	}

	cctx := a.ctx
	if s.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(a.ctx, s.opts.ConnectTimeout)
		defer cancel()
	}

	start := time.Now()
	err := s.deps.Connector.Connect(cctx, driver.Request{
		SSID:          a.ssid,
		Auth:          auth,
		AutoInitiated: true,
		SaveOnSuccess: false,
	})
	dur := time.Since(start)

	switch {
	case err == nil:
		return attemptResult{result: metrics.ResultSucceeded, connectDur: dur}
	case a.ctx.Err() != nil:
		return attemptResult{result: metrics.ResultCanceled, err: a.ctx.Err(), connectDur: dur}
	case errors.Is(cctx.Err(), context.DeadlineExceeded):
		return attemptResult{
			result:     metrics.ResultTimeout,
			err:        fmt.Errorf("connect timed out after %s: %w", s.opts.ConnectTimeout, err),
			connectDur: dur,
		}
	default:
		return attemptResult{result: metrics.ResultFailed, err: err, connectDur: dur}
	}
}

func (s *Supervisor) finishAttempt(a *attempt, res attemptResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attempt == a {
		s.attempt = nil
	}
	s.metrics.SetAttemptInFlight(false)
	s.metrics.ObserveReconnect(res.result, res.connectDur.Seconds())

	switch res.result {
	case metrics.ResultSucceeded:
		s.logger.Info("connect attempt succeeded", "ssid", a.ssid, "kind", a.kind, "attempt", a.number)
		s.attempts = 0
		// A poll may already have opened the session and announced it.
		if s.session == nil || s.session.SSID != a.ssid {
			s.expectAuto = a.ssid
			s.deps.Notifier.Notify(notify.KindConnected, a.ssid, notify.WithAutoInitiated())
		}
		if a.kind == kindReconnect {
			s.emit(&events.ReconnectSucceededEvent{
				BaseEvent: events.NewSupervisorEvent(events.EventReconnectSucceeded),
				EpisodeID: s.episodeID,
				SSID:      a.ssid,
				Attempt:   a.number,
			})
		}
		s.episodeID = ""

	case metrics.ResultCanceled:
		s.logger.Debug("connect attempt canceled", "ssid", a.ssid)

	case metrics.ResultNoCredentials:
		s.logger.Error("cannot reconnect without saved credentials", "ssid", a.ssid)
		s.recordAttemptFailureLocked(a, res.err, true)

	default:
		s.logger.Error("connect attempt failed", "ssid", a.ssid, "attempt", a.number, "error", res.err)
		s.deps.Notifier.Notify(notify.KindConnectionFailed, a.ssid, notify.WithReason(res.err.Error()))
		s.recordAttemptFailureLocked(a, res.err, s.attempts >= s.opts.MaxAttempts)
	}

	if s.session == nil {
		s.setStateLocked(StateIdle)
	}
}

func (s *Supervisor) recordAttemptFailureLocked(a *attempt, err error, terminal bool) {
	if s.opts.RecordReconnectFailures {
		s.deps.History.RecordFailure(a.ssid, err.Error())
	}
	if a.kind != kindReconnect {
		return
	}
	s.emit(&events.ReconnectFailedEvent{
		BaseEvent: events.NewSupervisorEvent(events.EventReconnectFailed),
		EpisodeID: s.episodeID,
		SSID:      a.ssid,
		Attempt:   a.number,
		Error:     err.Error(),
		Terminal:  terminal,
	})
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
