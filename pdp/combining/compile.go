package combining

import (
	arbiter_errors "github.com/dev-sgill/arbiter/api/errors"
	"github.com/dev-sgill/arbiter/api/pdp/model"
	"github.com/dev-sgill/arbiter/api/pdp/stream"
)

// CompileVoter compiles the documents of a configuration into the cheapest
// voter shape that still honors the algorithm's semantics: a settled Vote
// when everything folds at compile time, a PureVoter when no document
// depends on live attributes, and a StreamVoter otherwise.
func CompileVoter(p Parameters, docs []model.CompiledDocument, meta model.VoterMetadata) (model.Voter, error) {
	c, err := combinerFor(p)
	if err != nil {
		return nil, err
	}
	if p.Algorithm == AlgorithmFirst {
		return compileFirst(c, docs, meta), nil
	}
	return compileUnordered(c, docs, meta), nil
}

// compileUnordered handles the algorithms whose result does not depend on
// document order. Constant votes fold at compile time; if that already
// settles the accumulator the remaining tiers are never evaluated.
func compileUnordered(c Combiner, docs []model.CompiledDocument, meta model.VoterMetadata) model.Voter {
	st := Classify(docs)

	var constAcc model.Vote
	haveConst := len(st.ConstantVotes) > 0
	if haveConst {
		constAcc = FoldVotes(c, st.ConstantVotes, meta)
	}

	if len(st.PureDocs) == 0 && len(st.StreamDocs) == 0 {
		if !haveConst {
			return model.Abstain(meta)
		}
		return constAcc
	}
	if haveConst && c.IsTerminal(constAcc) {
		return constAcc
	}

	if len(st.StreamDocs) == 0 {
		return model.PureVoter(func(ectx *model.EvaluationContext) model.Vote {
			acc, _ := evalAndFold(c, constAcc, haveConst, st.PureDocs, ectx, meta)
			return acc
		})
	}

	return model.StreamVoter(func(ectx *model.EvaluationContext) model.VoteStream {
		acc, have := evalAndFold(c, constAcc, haveConst, st.PureDocs, ectx, meta)
		if have && c.IsTerminal(acc) {
			return stream.Just(acc)
		}
		streams := make([]model.VoteStream, len(st.StreamDocs))
		for i, d := range st.StreamDocs {
			streams[i] = d.Voter().(model.StreamVoter)(ectx)
		}
		combine := func(votes []model.Vote) model.Vote {
			if have {
				return FoldInto(c, acc, votes, meta)
			}
			return FoldVotes(c, votes, meta)
		}
		return model.VoteStream(stream.CombineLatest(streams, combine))
	})
}

// evalAndFold folds the settled constant accumulator with the pure
// documents, evaluating them one at a time and stopping as soon as the
// accumulator is terminal.
func evalAndFold(c Combiner, acc model.Vote, have bool, pureDocs []model.CompiledDocument, ectx *model.EvaluationContext, meta model.VoterMetadata) (model.Vote, bool) {
	for _, d := range pureDocs {
		if have && c.IsTerminal(acc) {
			return acc, true
		}
		v := d.Voter().(model.PureVoter)(ectx)
		if !have {
			acc = AccumulatorFrom(v, meta)
			have = true
			continue
		}
		acc = c.Combine(acc, v, meta)
	}
	if !have {
		return model.Abstain(meta), true
	}
	return acc, true
}

// compileFirst handles first-applicable, where document order is the
// algorithm. Evaluation is lazy in every tier: a document is only looked
// at when all documents before it abstained.
func compileFirst(c Combiner, docs []model.CompiledDocument, meta model.VoterMetadata) model.Voter {
	hasPure, hasStream := false, false
	for _, d := range docs {
		switch d.Voter().(type) {
		case model.PureVoter:
			hasPure = true
		case model.StreamVoter:
			hasStream = true
		}
	}

	if !hasPure && !hasStream {
		votes := make([]model.Vote, 0, len(docs))
		for _, d := range docs {
			votes = append(votes, d.Voter().(model.Vote))
		}
		return FoldVotes(c, votes, meta)
	}

	if !hasStream {
		return model.PureVoter(func(ectx *model.EvaluationContext) model.Vote {
			var acc model.Vote
			have := false
			for _, d := range docs {
				if have && c.IsTerminal(acc) {
					break
				}
				v := evalOrdered(d, ectx)
				if !have {
					acc = AccumulatorFrom(v, meta)
					have = true
					continue
				}
				acc = c.Combine(acc, v, meta)
			}
			if !have {
				return model.Abstain(meta)
			}
			return acc
		})
	}

	return model.StreamVoter(func(ectx *model.EvaluationContext) model.VoteStream {
		return firstChain(c, docs, ectx, meta)
	})
}

func evalOrdered(d model.CompiledDocument, ectx *model.EvaluationContext) model.Vote {
	switch v := d.Voter().(type) {
	case model.Vote:
		return v
	case model.PureVoter:
		return v(ectx)
	default:
		return model.NewErrorVote(model.NewError("streaming document in synchronous evaluation"), d.Metadata())
	}
}

// firstChain builds the reverse-chained streaming pipeline for
// first-applicable. Each streaming document switches on its own emissions:
// an applicable vote settles the result, an abstention subscribes the tail
// covering the remaining documents. Re-emission upstream tears the tail
// down and rebuilds it.
func firstChain(c Combiner, docs []model.CompiledDocument, ectx *model.EvaluationContext, meta model.VoterMetadata) model.VoteStream {
	settle := func(prefix []model.Vote) model.VoteStream {
		return stream.Just(FoldVotes(c, prefix, meta))
	}

	var chain func(i int, prefix []model.Vote) model.VoteStream
	chain = func(i int, prefix []model.Vote) model.VoteStream {
		if i == len(docs) {
			return settle(prefix)
		}
		switch v := docs[i].Voter().(type) {
		case model.Vote:
			if v.Decision() != model.NotApplicable {
				return settle(appendVote(prefix, v))
			}
			return chain(i+1, appendVote(prefix, v))
		case model.PureVoter:
			vote := v(ectx)
			if vote.Decision() != model.NotApplicable {
				return settle(appendVote(prefix, vote))
			}
			return chain(i+1, appendVote(prefix, vote))
		case model.StreamVoter:
			return stream.SwitchMap(v(ectx), func(vote model.Vote) model.VoteStream {
				if vote.Decision() != model.NotApplicable {
					return settle(appendVote(prefix, vote))
				}
				return chain(i+1, appendVote(prefix, vote))
			})
		default:
			return settle(appendVote(prefix, model.NewErrorVote(model.NewError("unsupported voter shape"), docs[i].Metadata())))
		}
	}
	return chain(0, nil)
}

// MustCompile is a convenience for configurations known to be valid.
func MustCompile(p Parameters, docs []model.CompiledDocument, meta model.VoterMetadata) model.Voter {
	v, err := CompileVoter(p, docs, meta)
	if err != nil {
		panic(arbiter_errors.ErrUnknownAlgorithm)
	}
	return v
}
