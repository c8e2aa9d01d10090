package engine

import (
	"context"
	"log/slog"

	"github.com/mtessier/reactsync/internal/chat"
)

// reconcilePageSize is how many reactors are fetched per page while
// sweeping a message's existing reactions.
const reconcilePageSize = 100

// Progress is an incremental reconciliation update, emitted after each
// page of reactors so a slow sweep over thousands of reactions stays
// observable.
type Progress struct {
	// Checked is the number of reactors examined so far.
	Checked int

	// Total is the expected number of member reactions on the message
	// (the engine's own markers excluded).
	Total int

	// Reactions is the number of distinct symbols seen so far.
	Reactions int
}

// Report is the final tally of a reconciliation sweep.
type Report struct {
	// Checked is the total number of reactors examined.
	Checked int

	// Granted is the number of roles actually granted.
	Granted int

	// Skipped counts reactors that could not be processed (for
	// example, reactors who have since left the server).
	Skipped int
}

// Reconcile sweeps a message's existing reactions and grants the bound
// role to every reactor who is missing it. A one-time bulk convergence
// pass: grants go directly through the membership store, bypassing the
// mutation queue. Idempotent - a second run with no new reactions
// performs zero grants.
//
// Fails with CannotReconcileLinked if the message is part of a link
// group, where the mere presence of a reaction cannot disambiguate
// which of several mutually exclusive roles to grant.
//
// Per-reactor failures are skipped and counted, not fatal; a failure
// to list reactions or page reactors aborts the sweep with the partial
// report.
func (e *Engine) Reconcile(ctx context.Context, ref chat.MessageRef, progress func(Progress)) (Report, error) {
	if e.links.Linked(ref) {
		return Report{}, newCannotReconcileLinked(ref)
	}

	summaries, err := e.reactions.ListReactions(ctx, ref)
	if err != nil {
		return Report{}, err
	}

	// Expected member reactions: every symbol's count minus the
	// engine's own marker on each.
	total := 0
	for _, r := range summaries {
		total += r.Count
	}
	total -= len(summaries)

	var report Report
	reactions := 0
	emit := func() {
		if progress != nil {
			progress(Progress{Checked: report.Checked, Total: total, Reactions: reactions})
		}
	}

	for _, summary := range summaries {
		reactions++

		role, bound := e.bindings.Lookup(ref, summary.Symbol)
		if !bound {
			// Unbound symbol: nothing to grant, but its reactors
			// still count as checked.
			report.Checked += summary.Count
			emit()
			continue
		}

		after := chat.MemberID("")
		for {
			page, err := e.reactions.ListReactors(ctx, ref, summary.Symbol, after, reconcilePageSize)
			if err != nil {
				return report, err
			}
			if len(page) == 0 {
				break
			}

			for _, member := range page {
				report.Checked++
				if member == e.self {
					continue
				}
				if granted, err := e.grantIfMissing(ctx, ref.Server, member, role); err != nil {
					slog.Warn("skipping reactor during reconcile",
						"message", ref,
						"symbol", summary.Symbol,
						"member", member,
						"error", err,
					)
					report.Skipped++
				} else if granted {
					report.Granted++
				}
			}

			after = page[len(page)-1]
			emit()
			if len(page) < reconcilePageSize {
				break
			}
		}
	}

	slog.Info("reconcile finished",
		"message", ref,
		"checked", report.Checked,
		"granted", report.Granted,
		"skipped", report.Skipped,
	)
	return report, nil
}

// grantIfMissing grants the role to the member unless already held.
// Returns whether a grant was written. The read-modify-write is safe
// here because the sweep is itself sequential and targets members by
// direct admin request, not by live toggles.
func (e *Engine) grantIfMissing(ctx context.Context, server chat.ServerID, member chat.MemberID, role chat.RoleID) (bool, error) {
	key := chat.MemberKey{Server: server, Member: member}
	current, err := e.members.GetRoles(ctx, key)
	if err != nil {
		return false, err
	}
	if current.Contains(role) {
		return false, nil
	}

	final := current.Clone()
	final.Add(role)
	if err := e.members.ReplaceRoles(ctx, key, final); err != nil {
		return false, err
	}
	return true, nil
}
