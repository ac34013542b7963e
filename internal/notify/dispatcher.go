package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/gatehousehq/gatehouse/internal/model"
	"github.com/gatehousehq/gatehouse/internal/store"
)

// Dispatcher delivers notifications off the request path. Every send runs in
// its own goroutine with fibonacci backoff; delivery failures are logged and
// never surfaced to the caller.
type Dispatcher struct {
	client  *Client
	rewards *store.RewardStore
	logger  *slog.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

func NewDispatcher(client *Client, rewards *store.RewardStore, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:  client,
		rewards: rewards,
		logger:  logger.With("component", "notify"),
		timeout: 30 * time.Second,
	}
}

// RewardEarned emails a milestone reward and marks the event notified once
// the send sticks.
func (d *Dispatcher) RewardEarned(guest model.Guest, event model.RewardEvent) {
	d.dispatch("reward", guest.Email, func() error {
		if err := d.client.SendReward(guest, event.Milestone); err != nil {
			return err
		}
		return d.rewards.MarkNotified(event.ID)
	})
}

// TermsRenewed emails a guest whose terms acceptance was auto-renewed at
// check-in.
func (d *Dispatcher) TermsRenewed(guest model.Guest) {
	d.dispatch("terms-renewal", guest.Email, func() error {
		return d.client.SendTermsRenewal(guest)
	})
}

// InvitationIssued emails the check-in credential for an activated invitation.
func (d *Dispatcher) InvitationIssued(guest model.Guest, host model.Host, visitDate time.Time, credential string) {
	d.dispatch("invitation", guest.Email, func() error {
		return d.client.SendInvitation(guest, host, visitDate, credential)
	})
}

// Wait blocks until all in-flight sends finish. Used on shutdown and in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(kind, email string, send func() error) {
	if !d.client.Configured() {
		d.logger.Debug("notification skipped, email not configured", "kind", kind, "to", email)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		backoff := retry.WithMaxRetries(4, retry.NewFibonacci(500*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := send(); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			d.logger.Error("notification delivery failed", "kind", kind, "to", email, "error", err)
			return
		}
		d.logger.Info("notification sent", "kind", kind, "to", email)
	}()
}
