// Package documents compiles stored policy definitions into voters. The
// compiler decides the evaluation tier per document: a definition without
// matchers and conditions settles into a constant vote, one that only reads
// the subscription becomes a pure voter, and one with dynamic conditions
// subscribes to the attribute bus and becomes a streaming voter.
package documents

import (
	"context"
	"sort"

	"github.com/dev-sgill/arbiter/api/model"
	pdpmodel "github.com/dev-sgill/arbiter/api/pdp/model"
)

const (
	EffectPermit = "permit"
	EffectDeny   = "deny"
)

// Compile turns a policy definition into a compiled document. The second
// return value is false when the definition can never vote: inactive
// definitions are eliminated here, before classification ever sees them.
func Compile(def model.PolicyDefinition, pdpID, configurationID string) (pdpmodel.CompiledDocument, bool) {
	if !def.Active {
		return nil, false
	}

	meta := pdpmodel.VoterMetadata{
		Name:            def.Name,
		PDPID:           pdpID,
		ConfigurationID: configurationID,
		Outcome:         effectOutcome(def.Effect),
		HasConstraints:  len(def.Obligations) > 0 || len(def.Advice) > 0 || def.ResourceReplacement != nil,
	}

	decision, ok := effectDecision(def.Effect)
	if !ok {
		return pdpmodel.ConstantDocument{
			Meta: meta,
			Vote: pdpmodel.NewErrorVote(pdpmodel.NewError("policy %q has unknown effect %q", def.Name, def.Effect), meta),
		}, true
	}

	obligations := toObjectValues(def.Obligations)
	advice := toObjectValues(def.Advice)
	var resource pdpmodel.Value
	if def.ResourceReplacement != nil {
		resource = pdpmodel.ObjectValue(def.ResourceReplacement)
	}
	grant := func(attrs []pdpmodel.AttributeRecord) pdpmodel.Vote {
		v := pdpmodel.NewVote(decision, obligations, advice, resource, meta, nil)
		v.ContributingAttributes = attrs
		return v
	}

	hasTarget := len(def.Subjects) > 0 || len(def.Resources) > 0 || len(def.Actions) > 0
	dynamic := dynamicAttributes(def.Conditions)

	if !hasTarget && len(def.Conditions) == 0 {
		return pdpmodel.ConstantDocument{Meta: meta, Vote: grant(nil)}, true
	}

	evaluate := func(ectx *pdpmodel.EvaluationContext, live map[string]pdpmodel.Value) pdpmodel.Vote {
		if !matchesTarget(def, ectx.Subscription) {
			return pdpmodel.Abstain(meta)
		}
		attrs := liveRecords(live)
		matched, err := evalConditions(def.Conditions, ectx, live)
		if err != nil {
			v := pdpmodel.NewErrorVote(pdpmodel.NewError("policy %q: %s", def.Name, err.Message), meta)
			v.ContributingAttributes = attrs
			return v
		}
		if !matched {
			v := pdpmodel.Abstain(meta)
			v.ContributingAttributes = attrs
			return v
		}
		return grant(attrs)
	}

	if len(dynamic) == 0 {
		return pdpmodel.PureDocument{
			Meta: meta,
			Evaluate: func(ectx *pdpmodel.EvaluationContext) pdpmodel.Vote {
				return evaluate(ectx, nil)
			},
		}, true
	}

	return pdpmodel.StreamDocument{
		Meta: meta,
		Subscribe: func(ectx *pdpmodel.EvaluationContext) pdpmodel.VoteStream {
			if !matchesTarget(def, ectx.Subscription) {
				single := pdpmodel.Abstain(meta)
				return func(ctx context.Context) <-chan pdpmodel.Vote {
					out := make(chan pdpmodel.Vote, 1)
					out <- single
					close(out)
					return out
				}
			}
			return func(ctx context.Context) <-chan pdpmodel.Vote {
				out := make(chan pdpmodel.Vote)
				go func() {
					defer close(out)
					if ectx.Attributes == nil {
						v := pdpmodel.NewErrorVote(pdpmodel.NewError("policy %q needs live attributes but no attribute source is configured", def.Name), meta)
						select {
						case out <- v:
						case <-ctx.Done():
						}
						return
					}
					for snapshot := range observeAll(ctx, ectx.Attributes, dynamic) {
						select {
						case out <- evaluate(ectx, snapshot):
						case <-ctx.Done():
							return
						}
					}
				}()
				return out
			}
		},
	}, true
}

// CompileAll compiles every definition of a configuration, dropping the
// eliminated ones and preserving order.
func CompileAll(defs []model.PolicyDefinition, pdpID, configurationID string) []pdpmodel.CompiledDocument {
	docs := make([]pdpmodel.CompiledDocument, 0, len(defs))
	for _, def := range defs {
		if doc, ok := Compile(def, pdpID, configurationID); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

func effectDecision(effect string) (pdpmodel.Decision, bool) {
	switch effect {
	case EffectPermit:
		return pdpmodel.Permit, true
	case EffectDeny:
		return pdpmodel.Deny, true
	default:
		return pdpmodel.Indeterminate, false
	}
}

func effectOutcome(effect string) pdpmodel.Outcome {
	switch effect {
	case EffectPermit:
		return pdpmodel.OutcomePermit
	case EffectDeny:
		return pdpmodel.OutcomeDeny
	default:
		return pdpmodel.OutcomePermitOrDeny
	}
}

func toObjectValues(in []map[string]interface{}) []pdpmodel.Value {
	if len(in) == 0 {
		return nil
	}
	out := make([]pdpmodel.Value, 0, len(in))
	for _, m := range in {
		out = append(out, pdpmodel.ObjectValue(m))
	}
	return out
}

func liveRecords(live map[string]pdpmodel.Value) []pdpmodel.AttributeRecord {
	if len(live) == 0 {
		return nil
	}
	names := make([]string, 0, len(live))
	for name := range live {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]pdpmodel.AttributeRecord, 0, len(names))
	for _, name := range names {
		out = append(out, pdpmodel.AttributeRecord{Name: name, Value: live[name]})
	}
	return out
}

// observeAll subscribes to all named attributes and emits a snapshot of
// the latest values on every update, once every attribute has delivered at
// least one value.
func observeAll(ctx context.Context, src pdpmodel.AttributeSource, names []string) <-chan map[string]pdpmodel.Value {
	out := make(chan map[string]pdpmodel.Value)
	go func() {
		defer close(out)

		type update struct {
			name  string
			value pdpmodel.Value
		}
		mux := make(chan update)
		done := make(chan struct{})
		defer close(done)
		for _, name := range names {
			go func(name string) {
				for v := range src.Observe(ctx, name) {
					select {
					case mux <- update{name: name, value: v}:
					case <-done:
						return
					case <-ctx.Done():
						return
					}
				}
			}(name)
		}

		latest := make(map[string]pdpmodel.Value, len(names))
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-mux:
				latest[u.name] = u.value
				if len(latest) < len(names) {
					continue
				}
				snapshot := make(map[string]pdpmodel.Value, len(latest))
				for k, v := range latest {
					snapshot[k] = v
				}
				select {
				case out <- snapshot:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
