package admission

import "github.com/gatehousehq/gatehouse/internal/model"

// triggerReward fires after a committed visit. The milestone count uses
// completed visits, the store's unique constraint keeps retries idempotent,
// and nothing here can unwind the visit.
func (e *Engine) triggerReward(guest model.Guest) {
	milestone := e.cfg.RewardMilestone
	if milestone <= 0 {
		return
	}

	count, err := e.visits.CountCompleted(guest.ID)
	if err != nil {
		e.logger.Error("reward trigger: count visits", "guest", guest.Email, "error", err)
		return
	}
	if count != milestone {
		return
	}

	existing, err := e.rewards.Get(guest.ID, milestone)
	if err != nil {
		e.logger.Error("reward trigger: lookup", "guest", guest.Email, "error", err)
		return
	}
	if existing != nil {
		return
	}

	event, err := e.rewards.Create(guest.ID, milestone, e.now())
	if err != nil {
		e.logger.Error("reward trigger: create", "guest", guest.Email, "error", err)
		return
	}
	if event == nil {
		// Lost a race with a concurrent trigger; the other one notifies.
		return
	}

	e.logger.Info("reward earned", "guest", guest.Email, "milestone", milestone)
	if e.notifier != nil {
		e.notifier.RewardEarned(guest, *event)
	}
}
