package stf

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/safe-solver/internal/grammar"
	"github.com/safe-solver/internal/logging"
	"github.com/safe-solver/internal/types"
)

// RuleSet is an immutable mapping from action tag to handler
type RuleSet struct {
	handlers map[types.Action]Handler
}

// NewRuleSet copies handlers into a new rule set
func NewRuleSet(handlers map[types.Action]Handler) *RuleSet {
	m := make(map[types.Action]Handler, len(handlers))
	for action, h := range handlers {
		if h != nil {
			m[action] = h
		}
	}
	return &RuleSet{handlers: m}
}

// DefaultRules is the current Safe Solver rule set
func DefaultRules() *RuleSet {
	return NewRuleSet(map[types.Action]Handler{
		types.ActionSetName:       SetNameHandler,
		types.ActionDelegate:      DelegateHandler,
		types.ActionInitLevel:     InitLevelHandler,
		types.ActionCheckSafe:     CheckSafeHandler,
		types.ActionSubmitScore:   SubmitScoreHandler,
		types.ActionCreateAccount: CreateAccountHandler,
	})
}

// Handler returns the handler registered for action
func (r *RuleSet) Handler(action types.Action) (Handler, bool) {
	h, ok := r.handlers[action]
	return h, ok
}

// Actions lists the registered actions, sorted
func (r *RuleSet) Actions() []types.Action {
	out := make([]types.Action, 0, len(r.handlers))
	for a := range r.handlers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Version activates a rule set from a block height onwards
type Version struct {
	FromHeight int64
	Rules      *RuleSet
}

// Router dispatches inputs to the rule set active at their block height
type Router struct {
	versions []Version
}

// NewRouter validates and orders versions. Heights must be unique.
func NewRouter(versions ...Version) (*Router, error) {
	if len(versions) == 0 {
		return nil, errors.New("router needs at least one rule set version")
	}
	sorted := make([]Version, len(versions))
	copy(sorted, versions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FromHeight < sorted[j].FromHeight })

	for i, v := range sorted {
		if v.Rules == nil {
			return nil, fmt.Errorf("rule set for height %d is nil", v.FromHeight)
		}
		if i > 0 && sorted[i-1].FromHeight == v.FromHeight {
			return nil, fmt.Errorf("duplicate rule set version at height %d", v.FromHeight)
		}
	}
	return &Router{versions: sorted}, nil
}

// DefaultRouter serves DefaultRules from genesis
func DefaultRouter() *Router {
	r, _ := NewRouter(Version{FromHeight: 0, Rules: DefaultRules()})
	return r
}

// RulesAt returns the rule set with the greatest FromHeight not above height
func (r *Router) RulesAt(height int64) *RuleSet {
	i := sort.Search(len(r.versions), func(i int) bool { return r.versions[i].FromHeight > height })
	if i == 0 {
		return nil
	}
	return r.versions[i-1].Rules
}

// Transition claims the input in the processed-input ledger, decodes it and
// applies the handler of the active rule set. A duplicate input is a no-op.
func (r *Router) Transition(ctx context.Context, s Store, in Input) (Outcome, error) {
	logger := logging.FromContext(ctx).WithBlock(in.BlockHeight)

	action, payload, parseErr := grammar.Parse(in.Raw)
	logger = logger.WithInput(in.ID, string(action), in.SignerAddress)
	ctx = logging.WithLogger(ctx, logger)

	if in.ID != "" {
		claimed, err := s.ClaimInput(ctx, in.ID, in.BlockHeight, string(action))
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to claim input %s: %w", in.ID, err)
		}
		if !claimed {
			logger.Warn("input already processed")
			return finish(in, action, skipped(ReasonDuplicate)), nil
		}
	}

	if parseErr != nil {
		reason := ReasonMalformed
		if errors.Is(parseErr, grammar.ErrUnknownAction) {
			reason = ReasonUnknownAction
		}
		logger.WithError(parseErr).Info("input rejected by grammar")
		return finish(in, action, skipped(reason)), nil
	}

	rules := r.RulesAt(in.BlockHeight)
	if rules == nil {
		logger.Warn("no rule set active at this height")
		return finish(in, action, skipped(ReasonNoRules)), nil
	}
	handler, ok := rules.Handler(action)
	if !ok {
		logger.Info("action not handled by active rule set")
		return finish(in, action, skipped(ReasonUnknownAction)), nil
	}

	out, err := handler(ctx, s, &in, payload)
	if err != nil {
		return Outcome{}, err
	}
	return finish(in, action, out), nil
}

func finish(in Input, action types.Action, out Outcome) Outcome {
	out.InputID = in.ID
	out.Action = action
	return out
}
