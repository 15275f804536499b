package actor

// Replay folds inputs through a reducer without a loop or runtime and returns
// the final state together with every effect produced along the way.
//
// It is meant for reducer-level tests that need to check a sequence of
// transitions rather than a single step.
func Replay[S any](state S, reducer ReducerFunc[S], inputs ...Input) (S, []Effect) {
	var all []Effect
	for _, in := range inputs {
		var effects []Effect
		state, effects = reducer(state, in)
		all = append(all, effects...)
	}
	return state, all
}
