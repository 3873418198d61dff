// Package srs is the review-scheduling engine: three interchangeable
// spaced-repetition policies (FSRS, SM-2, Leitner) behind a common Scheduler
// interface, an Engine that dispatches by algorithm tag, mastery scoring, and
// an ELO competence estimator that runs independently of due-date scheduling.
//
// Everything here is a pure function of state, review and clock. Callers are
// responsible for persisting states and for serializing updates to the same
// item.
//
//	engine := srs.DefaultEngine()
//	state := engine.InitializeState(srs.AlgorithmFSRS)
//	state = engine.UpdateSpacedRepetition(state, srs.ReviewResult{Confidence: 4, Correct: true}, srs.AlgorithmFSRS)
//	mastery := srs.CalculateMastery(state)
package srs
