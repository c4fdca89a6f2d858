// Package receivepack implements the push (receive-pack) engine, spec
// §4.8 — the state machine that parses an incoming command list and
// packfile, stages objects into an odb.Txn, resolves ref/ofs deltas, and
// applies ref updates with report-status feedback.
package receivepack

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/GitDataAI/git-inner/capability"
	"github.com/GitDataAI/git-inner/giterr"
	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/log"
	"github.com/GitDataAI/git-inner/odb"
	"github.com/GitDataAI/git-inner/pktline"
	"github.com/GitDataAI/git-inner/refs"
)

// State names a point in the receive-pack state machine (spec §4.8).
type State int

const (
	WaitingCommands State = iota
	WaitingPackHeader
	StreamingObjects
	ResolvingDeltas
	CommittingOdb
	UpdatingRefs
	Reporting
	Done
)

func (s State) String() string {
	switch s {
	case WaitingCommands:
		return "WaitingCommands"
	case WaitingPackHeader:
		return "WaitingPackHeader"
	case StreamingObjects:
		return "StreamingObjects"
	case ResolvingDeltas:
		return "ResolvingDeltas"
	case CommittingOdb:
		return "CommittingOdb"
	case UpdatingRefs:
		return "UpdatingRefs"
	case Reporting:
		return "Reporting"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Engine runs one receive-pack request against a repository's backends.
type Engine struct {
	DB   odb.DB
	Refs refs.Store
}

// NewEngine builds an Engine bound to the given backends.
func NewEngine(db odb.DB, store refs.Store) *Engine {
	return &Engine{DB: db, Refs: store}
}

// commandOutcome pairs a parsed command with its eventual apply result.
type commandOutcome struct {
	cmd    ReceiveCommand
	failed bool
	reason string
}

// Serve drives the full receive-pack state machine over r, writing the
// report-status section to w. It never returns a transport-level error for
// a client-caused failure (missing base object, ref update rejection): it
// reports those over the wire per spec §7's propagation policy and
// returns nil. A non-nil return indicates an engine/backend fault that
// prevented any report from being written at all.
func (e *Engine) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	logger := log.FromContext(ctx)
	state := WaitingCommands

	pr := pktline.NewReader(r)
	commands, caps, err := ParseCommands(pr)
	if err != nil {
		return fmt.Errorf("receivepack: %w", err)
	}
	state = transition(logger, state, WaitingPackHeader)

	sideBand := caps.Has(capability.SideBand) || caps.Has(capability.SideBand64k)
	report := newReportWriter(w, sideBand)

	header, err := readPackHeader(pr.Underlying())
	if err != nil {
		return fmt.Errorf("receivepack: %w", err)
	}
	state = transition(logger, state, StreamingObjects)

	txn, err := e.DB.BeginTxn(ctx)
	if err != nil {
		return fmt.Errorf("receivepack: opening transaction: %w", err)
	}

	_, decodeErr := decodeObjects(ctx, txn, e.DB.HashVersion(), pr.Underlying(), header, func(done, total int) {
		state = transition(logger, state, ResolvingDeltas)
		if perr := report.progressLine(done, total); perr != nil {
			logger.Warn("receivepack: writing progress", "error", perr)
		}
	})
	if decodeErr != nil {
		logger.Error("receivepack: decoding pack failed", "error", decodeErr)
		_ = txn.Abort(ctx)
		if err := report.unpackError(decodeErr.Error()); err != nil {
			return fmt.Errorf("receivepack: writing unpack error: %w", err)
		}
		return report.flush()
	}

	state = transition(logger, state, CommittingOdb)
	if err := txn.Commit(ctx); err != nil {
		logger.Error("receivepack: commit failed", "error", err)
		if rerr := report.unpackError(err.Error()); rerr != nil {
			return fmt.Errorf("receivepack: writing unpack error: %w", rerr)
		}
		return report.flush()
	}

	if err := report.unpackOK(); err != nil {
		return fmt.Errorf("receivepack: writing unpack ok: %w", err)
	}

	state = transition(logger, state, UpdatingRefs)
	outcomes := e.applyCommands(ctx, commands, caps.Has(capability.Atomic))

	state = transition(logger, state, Reporting)
	for _, o := range outcomes {
		var err error
		if o.failed {
			err = report.commandFailed(o.cmd.RefName, o.reason)
		} else {
			err = report.commandOK(o.cmd.RefName)
		}
		if err != nil {
			return fmt.Errorf("receivepack: writing command report: %w", err)
		}
	}

	state = transition(logger, state, Done)
	return report.flush()
}

func transition(logger log.Logger, from, to State) State {
	logger.Debug("receivepack: state transition", "from", from.String(), "to", to.String())
	return to
}

// applyCommands applies every parsed ref command. Under atomic, all
// commands are validated first and either all apply or none do (with a
// best-effort reverse-apply rollback of whatever already landed); without
// atomic, each command is attempted independently (spec §4.8).
func (e *Engine) applyCommands(ctx context.Context, commands []ReceiveCommand, atomic bool) []commandOutcome {
	if !atomic {
		outcomes := make([]commandOutcome, len(commands))
		for i, cmd := range commands {
			if err := e.Refs.Update(ctx, cmd.RefName, cmd.Old, cmd.New); err != nil {
				outcomes[i] = commandOutcome{cmd: cmd, failed: true, reason: reasonFor(err)}
				continue
			}
			outcomes[i] = commandOutcome{cmd: cmd}
		}
		return outcomes
	}

	// Validate every command before applying any: new-object existence and
	// the ref's current value both, per spec §4.8's atomic semantics ("all
	// ref commands are validated first (existence of new object, old-value
	// check), and either all apply or none apply"). A command that would
	// fail this check must never reach refs.Store.Update.
	if reason, err := e.validateAtomicCommands(ctx, commands); err != nil {
		outcomes := make([]commandOutcome, len(commands))
		for i, c := range commands {
			outcomes[i] = commandOutcome{cmd: c, failed: true, reason: reason}
		}
		return outcomes
	}

	applied := make([]ReceiveCommand, 0, len(commands))
	for _, cmd := range commands {
		if err := e.Refs.Update(ctx, cmd.RefName, cmd.Old, cmd.New); err != nil {
			// Roll back everything already applied, best-effort, and fail
			// every command uniformly (spec §4.8's atomic semantics).
			for i := len(applied) - 1; i >= 0; i-- {
				a := applied[i]
				_ = e.Refs.Update(ctx, a.RefName, a.New, a.Old)
			}
			reason := reasonFor(err)
			outcomes := make([]commandOutcome, len(commands))
			for i, c := range commands {
				outcomes[i] = commandOutcome{cmd: c, failed: true, reason: reason}
			}
			return outcomes
		}
		applied = append(applied, cmd)
	}

	outcomes := make([]commandOutcome, len(commands))
	for i, cmd := range commands {
		outcomes[i] = commandOutcome{cmd: cmd}
	}
	return outcomes
}

// validateAtomicCommands checks, without mutating anything, that every
// command in an atomic batch could succeed: its new object (when not a
// delete) actually exists in the object database, and its old value
// matches the ref's current state. Returns the report-status reason for
// the first command that fails either check.
func (e *Engine) validateAtomicCommands(ctx context.Context, commands []ReceiveCommand) (string, error) {
	for _, cmd := range commands {
		if cmd.Kind() != KindDelete {
			exists, err := objectExists(ctx, e.DB, cmd.New)
			if err != nil {
				return reasonFor(err), err
			}
			if !exists {
				err := fmt.Errorf("%w: %s", odb.ErrNotFound, cmd.New)
				return reasonFor(err), err
			}
		}

		current, err := e.Refs.Get(ctx, cmd.RefName)
		if cmd.Old.IsZero() {
			if err == nil {
				staleErr := fmt.Errorf("%w: %s", refs.ErrAlreadyExists, cmd.RefName)
				return reasonFor(staleErr), staleErr
			}
			continue
		}
		if err != nil || !current.Hash.Is(cmd.Old) {
			staleErr := fmt.Errorf("%w: %s", refs.ErrStaleValue, cmd.RefName)
			return reasonFor(staleErr), staleErr
		}
	}
	return "", nil
}

// objectExists reports whether h names any real object in db, regardless
// of kind, mirroring packfile.go's findBaseByHash probe pattern.
func objectExists(ctx context.Context, db odb.DB, h hash.Hash) (bool, error) {
	for _, has := range []func(context.Context, hash.Hash) (bool, error){
		db.HasCommit, db.HasTree, db.HasBlob, db.HasTag,
	} {
		ok, err := has(ctx, h)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, refs.ErrDefaultBranchDelete):
		return "DefaultBranchCannotBeDeleted"
	default:
		return giterr.NewPayloadError(err.Error()).Error()
	}
}
