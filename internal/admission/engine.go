package admission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gatehousehq/gatehouse/internal/auth"
	"github.com/gatehousehq/gatehouse/internal/model"
	"github.com/gatehousehq/gatehouse/internal/store"
)

// errCapacityRace marks a commit that lost the race for the host's last
// slot: another check-in landed between evaluation and the in-transaction
// recount.
var errCapacityRace = errors.New("host capacity filled concurrently")

// errReentryRace marks a commit that found an active visit for the guest:
// a concurrent attempt for the same guest committed after the pre-commit
// re-entry read.
var errReentryRace = errors.New("guest checked in concurrently")

// Notifier is the external notification sink. Implementations never block
// the admission path and never surface failures back into it.
type Notifier interface {
	RewardEarned(guest model.Guest, event model.RewardEvent)
	TermsRenewed(guest model.Guest)
}

// Config holds the engine's fixed parameters. Tunable limits live in the
// policy store and are read fresh per decision.
type Config struct {
	// NightCutoffHour closes the building from this local hour on; 0 disables.
	NightCutoffHour int
	Location        *time.Location
	// VisitTTL bounds how long a visit stays active without checkout.
	VisitTTL time.Duration
	// RollingWindow is the guest-limit window (30 days).
	RollingWindow time.Duration
	// AcceptanceValidity is how long a terms acceptance lasts (365 days).
	AcceptanceValidity time.Duration
	// TermsVersion and AgreementVersion stamp auto-renewed acceptances.
	TermsVersion     string
	AgreementVersion string
	// DecisionTimeout bounds the read/decision phase; exceeding it fails
	// closed with a retryable denial.
	DecisionTimeout time.Duration
	// RewardMilestone is the lifetime visit count that fires a reward.
	RewardMilestone int
}

// Engine orchestrates re-entry resolution, eligibility, overrides, and the
// atomic check-in commit.
type Engine struct {
	db          *sql.DB
	guests      *store.GuestStore
	acceptances *store.AcceptanceStore
	invitations *store.InvitationStore
	visits      *store.VisitStore
	policies    *store.PolicyStore
	rewards     *store.RewardStore
	reentry     *ReentryResolver
	authority   *Authority
	evaluator   Evaluator
	notifier    Notifier
	cfg         Config
	logger      *slog.Logger

	now func() time.Time
}

func NewEngine(
	db *sql.DB,
	guests *store.GuestStore,
	acceptances *store.AcceptanceStore,
	invitations *store.InvitationStore,
	visits *store.VisitStore,
	policies *store.PolicyStore,
	rewards *store.RewardStore,
	hosts *store.HostStore,
	authority *Authority,
	notifier Notifier,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		db:          db,
		guests:      guests,
		acceptances: acceptances,
		invitations: invitations,
		visits:      visits,
		policies:    policies,
		rewards:     rewards,
		reentry:     NewReentryResolver(visits, hosts),
		authority:   authority,
		evaluator: Evaluator{
			NightCutoffHour:    cfg.NightCutoffHour,
			Location:           cfg.Location,
			RollingWindow:      cfg.RollingWindow,
			AcceptanceValidity: cfg.AcceptanceValidity,
		},
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Attempt is one guest's admission request, already decoded from whatever
// credential form carried it.
type Attempt struct {
	Email    string
	Name     string
	HostID   int64
	Location string
	// VisitDate anchors the invitation lookup; zero means now.
	VisitDate time.Time
	// InvitationID is set when a single-guest credential named one.
	InvitationID int64
	// CredentialExpiresAt is set only for the signed single-guest form.
	CredentialExpiresAt *time.Time
	Override            *OverrideRequest
	Identity            auth.Identity
}

// Admit runs the attempt through the full sequence: re-entry, eligibility
// (with at most one terms auto-renewal), override authorization, and the
// atomic commit. It fails closed on storage errors and deadline expiry.
func (e *Engine) Admit(ctx context.Context, a Attempt) Result {
	if e.cfg.DecisionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.DecisionTimeout)
		defer cancel()
	}

	now := e.now()
	email := strings.ToLower(strings.TrimSpace(a.Email))
	name := strings.TrimSpace(a.Name)
	res := Result{GuestEmail: email, GuestName: name}

	guest, err := e.guests.Upsert(email, name)
	if err != nil {
		return e.failClosed(res, "upsert guest", err)
	}

	re, err := e.reentry.Resolve(guest.ID, a.HostID, now)
	if err != nil {
		return e.failClosed(res, "re-entry check", err)
	}
	if re != nil {
		return e.reentryResult(res, re, a.HostID)
	}

	verdict, renewed, err := e.evaluateWithRenewal(ctx, guest, a, now)
	if err != nil {
		return e.failClosed(res, "eligibility", err)
	}
	res.AcceptanceRenewed = renewed

	overridden := false
	var authorizedBy string
	if !verdict.OK {
		if verdict.Reason != ReasonHostAtCapacity {
			res.Outcome = OutcomeDenied
			res.Reason = verdict.Reason
			res.Message = verdict.Message
			res.NextEligibleAt = verdict.NextEligibleAt
			return res
		}

		if a.Override == nil {
			res.Outcome = OutcomeOverrideRequired
			res.Reason = ReasonHostAtCapacity
			res.Message = verdict.Message
			res.Capacity = verdict.Capacity
			return res
		}

		decision := e.authority.Authorize(*a.Override, a.Identity)
		if !decision.Authorized() {
			res.Outcome = OutcomeOverrideRejected
			res.Reason = ReasonHostAtCapacity
			res.OverrideCode = decision.Code
			res.Message = decision.Message
			res.Capacity = verdict.Capacity
			return res
		}
		overridden = true
		authorizedBy = AuthorizerLabel(a.Identity)
	}

	maxCount := 0
	if p, err := e.policies.Get(); err == nil {
		maxCount = p.HostConcurrentLimit
	} else {
		return e.failClosed(res, "read policy", err)
	}

	visit, err := e.commit(ctx, guest, a, now, maxCount, overridden, authorizedBy)
	if errors.Is(err, errReentryRace) {
		re, rerr := e.reentry.Resolve(guest.ID, a.HostID, now)
		if rerr != nil || re == nil {
			return e.failClosed(res, "re-entry recheck", rerr)
		}
		return e.reentryResult(res, re, a.HostID)
	}
	if errors.Is(err, errCapacityRace) {
		count, _ := e.visits.CountActiveByHost(a.HostID, now)
		res.Outcome = OutcomeOverrideRequired
		res.Reason = ReasonHostAtCapacity
		res.Message = fmt.Sprintf("Host already has %d of %d guests checked in.", count, maxCount)
		res.Capacity = &Capacity{Current: count, Max: maxCount}
		return res
	}
	if err != nil {
		return e.failClosed(res, "commit", err)
	}

	res.Outcome = OutcomeAdmitted
	res.Visit = visit
	res.Message = "Checked in."
	if overridden {
		e.logger.Info("capacity override used",
			"guest", email, "host", a.HostID, "authorized_by", authorizedBy)
	}

	e.triggerReward(*guest)
	return res
}

func (e *Engine) reentryResult(res Result, re *Reentry, scanningHostID int64) Result {
	res.Outcome = OutcomeReentry
	res.Visit = re.Visit
	if re.CrossHost {
		res.CrossHostName = re.OtherHostName
		res.Message = fmt.Sprintf("Guest is already checked in with %s.", re.OtherHostName)
		e.logger.Warn("cross-host re-entry",
			"guest", res.GuestEmail, "scanning_host", scanningHostID, "visit_host", re.Visit.HostID)
	} else {
		res.Message = "Welcome back."
	}
	return res
}

// evaluateWithRenewal runs the eligibility sequence, auto-renewing a lapsed
// acceptance at most once per attempt before re-running the full sequence.
func (e *Engine) evaluateWithRenewal(ctx context.Context, guest *model.Guest, a Attempt, now time.Time) (Verdict, bool, error) {
	renewed := false
	for {
		if err := ctx.Err(); err != nil {
			return Verdict{}, renewed, err
		}

		in, err := e.gatherInput(guest, a, now)
		if err != nil {
			return Verdict{}, renewed, err
		}

		verdict := e.evaluator.Evaluate(in)
		if verdict.RenewalEligible && !renewed {
			if _, err := e.acceptances.Create(guest.ID, now, e.cfg.TermsVersion, e.cfg.AgreementVersion); err != nil {
				return Verdict{}, renewed, fmt.Errorf("renew acceptance: %w", err)
			}
			renewed = true
			e.logger.Info("terms acceptance auto-renewed", "guest", guest.Email)
			if e.notifier != nil {
				e.notifier.TermsRenewed(*guest)
			}
			continue
		}
		if verdict.RenewalEligible {
			// Renewal already happened this attempt and the acceptance is
			// somehow still stale: treat as a hard terms denial.
			verdict = Verdict{Reason: ReasonTermsRequired,
				Message: "Guest must accept the visitor terms. Resend the terms email."}
		}
		return verdict, renewed, nil
	}
}

func (e *Engine) gatherInput(guest *model.Guest, a Attempt, now time.Time) (EvalInput, error) {
	// Fresh guest row: the blacklist marker may have changed since upsert.
	g, err := e.guests.GetByID(guest.ID)
	if err != nil {
		return EvalInput{}, fmt.Errorf("reload guest: %w", err)
	}
	if g == nil {
		return EvalInput{}, errors.New("guest row disappeared during decision")
	}

	policy, err := e.policies.Get()
	if err != nil {
		return EvalInput{}, fmt.Errorf("read policy: %w", err)
	}

	hostCount, err := e.visits.CountActiveByHost(a.HostID, now)
	if err != nil {
		return EvalInput{}, err
	}

	recent, err := e.visits.RecentCheckIns(g.ID, now.Add(-e.cfg.RollingWindow), policy.GuestMonthlyLimit)
	if err != nil {
		return EvalInput{}, err
	}

	latest, err := e.acceptances.LatestByGuest(g.ID)
	if err != nil {
		return EvalInput{}, err
	}

	return EvalInput{
		Guest:               g,
		Policy:              *policy,
		CredentialExpiresAt: a.CredentialExpiresAt,
		HostActiveCount:     hostCount,
		RecentCheckIns:      recent,
		LatestAcceptance:    latest,
		Now:                 now,
	}, nil
}

// commit performs the atomic state transition: recount capacity, insert the
// visit, consume the best-matching invitation. One unit; any failure rolls
// everything back.
func (e *Engine) commit(ctx context.Context, guest *model.Guest, a Attempt, now time.Time, maxCount int, overridden bool, authorizedBy string) (*model.Visit, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	// Same-guest attempts serialize here: the re-entry read before
	// evaluation ran in autocommit, so a concurrent commit may have landed
	// a visit for this guest since.
	active, err := e.visits.CountActiveByGuestTx(tx, guest.ID, now)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, errReentryRace
	}

	if !overridden {
		count, err := e.visits.CountActiveByHostTx(tx, a.HostID, now)
		if err != nil {
			return nil, err
		}
		if count >= maxCount {
			return nil, errCapacityRace
		}
	}

	visitDate := a.VisitDate
	if visitDate.IsZero() {
		visitDate = now
	}

	// A signed credential names its invitation; that one wins over the
	// date-window search as long as it is still consumable.
	var inv *model.Invitation
	if a.InvitationID != 0 {
		inv, err = e.invitations.FindByIDForCheckInTx(tx, a.InvitationID, guest.ID)
		if err != nil {
			return nil, err
		}
	}
	if inv == nil {
		inv, err = e.invitations.FindForCheckInTx(tx, guest.ID, a.HostID, visitDate)
		if err != nil {
			return nil, err
		}
	}
	if inv == nil {
		inv, err = e.invitations.FindForCheckInAnyHostTx(tx, guest.ID, visitDate)
		if err != nil {
			return nil, err
		}
		if inv != nil {
			e.logger.Warn("consuming invitation from another host",
				"guest", guest.Email, "scanning_host", a.HostID, "invitation_host", inv.HostID)
		}
	}

	nv := store.NewVisit{
		GuestID:     guest.ID,
		HostID:      a.HostID,
		Location:    a.Location,
		CheckedInAt: now,
		ExpiresAt:   now.Add(e.cfg.VisitTTL),
	}
	if inv != nil {
		nv.InvitationID = &inv.ID
	}
	if overridden {
		reason := strings.TrimSpace(a.Override.Reason)
		nv.OverrideReason = &reason
		nv.OverrideAuthorizedBy = &authorizedBy
		nv.OverrideAt = &now
	}

	visit, err := e.visits.InsertTx(tx, nv)
	if err != nil {
		return nil, err
	}

	if inv != nil {
		if err := e.invitations.MarkCheckedInTx(tx, inv.ID, visit.ID); err != nil {
			// An admitted guest with an inconsistent invitation record is
			// not an acceptable end state; the visit insert unwinds too.
			return nil, err
		}
	} else {
		e.logger.Info("walk-in visit", "guest", guest.Email, "host", a.HostID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit check-in: %w", err)
	}
	return visit, nil
}

func (e *Engine) failClosed(res Result, step string, err error) Result {
	e.logger.Error("admission failed closed", "step", step, "guest", res.GuestEmail, "error", err)
	res.Outcome = OutcomeFailed
	res.Reason = ReasonServiceUnavailable
	res.Message = "Check-in is temporarily unavailable. Try again."
	res.Retryable = true
	return res
}
