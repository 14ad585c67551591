// Package orchestrator is the single place every governed action flows
// through: execute, transmit, export, and seal all resolve the caller's
// permission, dry-run the proposed state transition, consume a
// confirmation, hold the single-request slot for the outbound effect,
// and record the outcome to the audit chain before committing the state
// transition. Recovery never bypasses authorization — a failure is
// classified and recorded, not quietly retried.
package orchestrator

import (
	"context"
	"time"

	"github.com/sentryline/guardcore/pkg/action"
	"github.com/sentryline/guardcore/pkg/audit"
	"github.com/sentryline/guardcore/pkg/config"
	"github.com/sentryline/guardcore/pkg/confirm"
	"github.com/sentryline/guardcore/pkg/enforcer"
	"github.com/sentryline/guardcore/pkg/guarderr"
	"github.com/sentryline/guardcore/pkg/identity"
	"github.com/sentryline/guardcore/pkg/statemachine"
)

// Operation names the governed entry points an actor's role is checked
// against.
type Operation string

const (
	OpExecute  Operation = "EXECUTE"
	OpTransmit Operation = "TRANSMIT"
	OpExport   Operation = "EXPORT"
	OpSeal     Operation = "SEAL"
)

// permissions is the closed operation table: which roles may call which
// entry point. OPERATOR drives day-to-day action execution but cannot
// seal an export; AUDITOR is read-only and can call none of these;
// ADMINISTRATOR and REVIEWER cover sealing and export review.
var permissions = map[identity.Role]map[Operation]bool{
	identity.RoleOperator: {
		OpExecute:  true,
		OpTransmit: true,
	},
	identity.RoleReviewer: {
		OpExport: true,
	},
	identity.RoleAdministrator: {
		OpExecute:  true,
		OpTransmit: true,
		OpExport:   true,
		OpSeal:     true,
	},
	identity.RoleAuditor: {},
}

// Permitted reports whether actor's role may call op.
func Permitted(role identity.Role, op Operation) bool {
	return permissions[role][op]
}

// Outcome summarizes one dispatch's result for the caller.
type Outcome struct {
	FinalState    string
	ApprovedEntry audit.Entry
	OutcomeEntry  audit.Entry
}

// Orchestrator wires together the subsystems every governed action must
// pass through, in the fixed order the governance core requires.
// ActionPolicy is an optional, strictly-narrowing overlay on top of the
// hardcoded action.Validate gate below: a nil ActionPolicy still
// enforces the full allow/deny enumeration, since that enforcement does
// not live in ActionPolicy at all.
type Orchestrator struct {
	Confirm      *confirm.Registry
	Enforce      *enforcer.Enforcer
	AuditLog     *audit.Registry
	ActionPolicy *config.ActionPolicy
	Clock        func() time.Time
}

// New constructs an Orchestrator from already-built subsystem instances.
func New(confirmReg *confirm.Registry, enforce *enforcer.Enforcer, auditReg *audit.Registry) *Orchestrator {
	return &Orchestrator{Confirm: confirmReg, Enforce: enforce, AuditLog: auditReg, Clock: time.Now}
}

// Dispatch is the shared core of execute/transmit/export/seal. subsystem
// is the audit log this op's entries belong to (never another
// subsystem's). machine is dry-run-checked against successState before
// anything irreversible happens; on side-effect failure the machine
// instead moves to failureState. actionRequest carries the browser
// action_type and parameters for an EXECUTE call; it is ignored for
// every other operation and must be non-nil for EXECUTE.
func (o *Orchestrator) Dispatch(
	ctx context.Context,
	actor identity.Actor,
	op Operation,
	subsystem string,
	machine *statemachine.Machine,
	successState, failureState string,
	token confirm.Token,
	actionPayload interface{},
	actionRequest *action.Request,
	sideEffect func(ctx context.Context) error,
) (Outcome, error) {
	if !Permitted(actor.Role(), op) {
		return Outcome{}, guarderr.New(guarderr.KindInsufficientPermission,
			string(actor.Role())+" may not call "+string(op))
	}

	if !machine.CanTransition(successState) {
		// A consumed confirmation means an earlier Dispatch with this token
		// already moved the machine on: report the replay, not the edge.
		if o.Confirm.IsConsumed(token.ConfirmationID) {
			if _, logErr := o.AuditLog.AppendTo(subsystem, subsystem, audit.Seed{
				ActorID: actor.ID(),
				Role:    string(actor.Role()),
				Action:  string(op),
				Outcome: audit.OutcomeReplayAttempt,
				Refs:    audit.Refs{ConfirmationID: token.ConfirmationID},
			}); logErr != nil {
				return Outcome{}, logErr
			}
			return Outcome{}, guarderr.New(guarderr.KindReplayAttempt, "confirmation already consumed")
		}
		return Outcome{}, guarderr.New(guarderr.KindInvalidTransition,
			machine.State()+" -> "+successState+" is not permitted for a "+string(op)+" dry-run")
	}

	if op == OpExecute {
		if err := o.checkActionRequest(actionRequest); err != nil {
			return Outcome{}, err
		}
	}

	now := o.Clock()
	var sideEffectRan bool
	effectErr := o.Enforce.Call(ctx, o.Confirm, token, actionPayload, now, func(ctx context.Context) error {
		sideEffectRan = true
		return sideEffect(ctx)
	})

	if effectErr != nil && !sideEffectRan {
		// The failure happened in E's own validate-then-consume sequence,
		// before the side effect ever ran — the confirmation itself was
		// rejected, not the outbound call.
		if _, logErr := o.AuditLog.AppendTo(subsystem, subsystem, audit.Seed{
			ActorID: actor.ID(),
			Role:    string(actor.Role()),
			Action:  string(op),
			Outcome: outcomeForConsumeError(effectErr),
			Refs:    audit.Refs{ConfirmationID: token.ConfirmationID},
		}); logErr != nil {
			return Outcome{}, logErr
		}
		return Outcome{}, effectErr
	}

	approved, err := o.AuditLog.AppendTo(subsystem, subsystem, audit.Seed{
		ActorID: actor.ID(),
		Role:    string(actor.Role()),
		Action:  string(op),
		Outcome: audit.OutcomeConsumed,
		Refs:    audit.Refs{ConfirmationID: token.ConfirmationID},
	})
	if err != nil {
		return Outcome{}, err
	}

	toState := successState
	outcomeTag := audit.OutcomeOK
	if effectErr != nil {
		toState = failureState
		outcomeTag = audit.OutcomeError
	}

	outcomeEntry, err := o.AuditLog.AppendTo(subsystem, subsystem, audit.Seed{
		ActorID: actor.ID(),
		Role:    string(actor.Role()),
		Action:  string(op) + "_OUTCOME",
		Outcome: outcomeTag,
		Refs:    audit.Refs{ConfirmationID: token.ConfirmationID},
	})
	if err != nil {
		return Outcome{}, err
	}

	// The state transition is committed last and unconditionally recorded,
	// even on failure: a failed side effect still moves the machine to its
	// terminal failure state rather than leaving it stuck in-flight.
	if transErr := machine.Transition(toState, string(outcomeTag)); transErr != nil {
		return Outcome{}, transErr
	}

	result := Outcome{FinalState: machine.State(), ApprovedEntry: approved, OutcomeEntry: outcomeEntry}
	if effectErr != nil {
		// The original failure is propagated unchanged; recovery never
		// substitutes a softer error for what actually happened.
		return result, effectErr
	}
	return result, nil
}

// checkActionRequest runs the action_type allow/deny gate and, when an
// ActionPolicy is configured, its parameter schema on top. This runs
// before the enforcer ever sees the token, so a forbidden or malformed
// action never reaches consume — no confirmation is spent rejecting it.
func (o *Orchestrator) checkActionRequest(req *action.Request) error {
	if req == nil {
		return guarderr.New(guarderr.KindForbiddenAction, "EXECUTE requires a typed action request")
	}
	if err := action.Validate(req.ActionType); err != nil {
		return err
	}
	if o.ActionPolicy == nil {
		return nil
	}
	if !o.ActionPolicy.IsAllowed(string(req.ActionType)) {
		return guarderr.New(guarderr.KindForbiddenAction,
			string(req.ActionType)+" is not allowed by the configured action policy")
	}
	if err := o.ActionPolicy.ValidateParameters(string(req.ActionType), req.Parameters); err != nil {
		return guarderr.Wrap(guarderr.KindGovernanceViolation, "action parameters failed schema validation", err)
	}
	return nil
}

func outcomeForConsumeError(err error) audit.Outcome {
	if k, ok := guarderr.KindOf(err); ok {
		switch k {
		case guarderr.KindReplayAttempt:
			return audit.OutcomeReplayAttempt
		case guarderr.KindTokenTampered:
			return audit.OutcomeTamperDetected
		}
	}
	return audit.OutcomeDenied
}
