// Package sequence implements sequential modelling of frame wise state
// evidence: constructors for row stochastic transition matrices and
// Viterbi decoding https://en.wikipedia.org/wiki/Viterbi_algorithm in
// both generative and discriminative form. All inputs and outputs are
// gonum matrices and vectors whose dimensions are checked at the API
// boundary.
package sequence
