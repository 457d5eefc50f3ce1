// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coinselect implements the wallet's coin selection
// algorithm: a stochastic subset-sum search biased toward a single
// matching output and toward leaving no sub-cent change, mirroring
// Wallet::SelectCoinsMinConf/SelectCoins.
package coinselect

import "sort"

// CENT is the domain constant the selection heuristics bucket around:
// candidates within CENT of the target are treated as "small enough
// to combine", and the subset-sum search is biased to avoid leaving
// less than a CENT of change.
const CENT = 1_000_000

// trials is the number of stochastic subset-sum attempts per call, as
// reproduced from the original implementation.
const trials = 1000

// Coin is a candidate output for spending. Confirmed, Final, Depth,
// and BlocksToMaturity are expected to already reflect the wallet's
// chain facade at the time of selection; this package does not
// consult the chain itself.
type Coin struct {
	// Index identifies the coin among the set passed to Select; it
	// is opaque to this package and is only used to report back
	// which coins were chosen.
	Index int

	Value int64

	// Depth is the number of confirmations, 0 if unconfirmed.
	Depth int32

	// FromMe is true if this wallet created the transaction that
	// produced the coin.
	FromMe bool

	// BlocksToMaturity is greater than zero for an immature coinbase
	// output; such coins are never selectable.
	BlocksToMaturity int32

	Final     bool
	Confirmed bool
}

// RandSource is the randomness seam Select uses for both the
// candidate shuffle and the per-bit coin tosses in the subset-sum
// search. *rand.Rand satisfies this interface; callers construct
// their own so selection is deterministic under test and seeded from
// crypto/rand in production.
type RandSource interface {
	Intn(n int) int
}

// eligible reports whether c passes the unspent/mine (already implied
// by its presence in candidates)/final/confirmed/maturity/depth
// filters for the given confirmation thresholds.
func eligible(c Coin, confMine, confTheirs int32) bool {
	if !c.Final || !c.Confirmed {
		return false
	}
	if c.BlocksToMaturity > 0 {
		return false
	}
	if c.Value <= 0 {
		return false
	}
	required := confTheirs
	if c.FromMe {
		required = confMine
	}
	return c.Depth >= required
}

// SelectMinConf implements Wallet::SelectCoinsMinConf: it attempts to
// cover target using candidates that meet the confMine/confTheirs
// depth thresholds, returning the chosen subset and its total value.
// ok is false if no combination of eligible candidates reaches
// target.
func SelectMinConf(rng RandSource, candidates []Coin, target int64, confMine, confTheirs int32) (selected []Coin, total int64, ok bool) {
	shuffled := make([]Coin, len(candidates))
	copy(shuffled, candidates)
	shuffleInPlace(rng, shuffled)

	var smalls []Coin
	var lowestLarger *Coin
	var lowerTotal int64

	for _, c := range shuffled {
		if !eligible(c, confMine, confTheirs) {
			continue
		}

		if c.Value == target {
			return []Coin{c}, c.Value, true
		}

		if c.Value < target+CENT {
			smalls = append(smalls, c)
			lowerTotal += c.Value
			continue
		}

		if lowestLarger == nil || c.Value < lowestLarger.Value {
			cc := c
			lowestLarger = &cc
		}
	}

	if lowerTotal == target || lowerTotal == target+CENT {
		return smalls, lowerTotal, true
	}

	threshold := target
	if lowestLarger != nil {
		threshold += CENT
	}
	if lowerTotal < threshold {
		if lowestLarger == nil {
			return nil, 0, false
		}
		return []Coin{*lowestLarger}, lowestLarger.Value, true
	}

	searchTarget := target
	if lowerTotal >= target+CENT {
		searchTarget = target + CENT
	}

	best, bestTotal := subsetSum(rng, smalls, lowerTotal, searchTarget)

	if lowestLarger != nil && abs(lowestLarger.Value-target) <= abs(bestTotal-target) {
		return []Coin{*lowestLarger}, lowestLarger.Value, true
	}
	return best, bestTotal, true
}

// subsetSum performs the 1000-trial stochastic search for the
// smallest subset of smalls (sorted descending, as in the original)
// whose sum is at least target. It always returns a result: the
// worst case is every small coin included, whose sum is
// initialTotal.
func subsetSum(rng RandSource, smalls []Coin, initialTotal, target int64) ([]Coin, int64) {
	sorted := make([]Coin, len(smalls))
	copy(sorted, smalls)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	bestIncluded := make([]bool, len(sorted))
	for i := range bestIncluded {
		bestIncluded[i] = true
	}
	best := initialTotal

	included := make([]bool, len(sorted))
	for rep := 0; rep < trials && best != target; rep++ {
		for i := range included {
			included[i] = false
		}

		var total int64
		reached := false
		for pass := 0; pass < 2 && !reached; pass++ {
			for i := range sorted {
				var take bool
				if pass == 0 {
					take = rng.Intn(2) == 1
				} else {
					take = !included[i]
				}
				if !take {
					continue
				}

				total += sorted[i].Value
				included[i] = true
				if total >= target {
					reached = true
					if total < best {
						best = total
						copy(bestIncluded, included)
					}
					total -= sorted[i].Value
					included[i] = false
				}
			}
		}
	}

	var result []Coin
	var sum int64
	for i, inc := range bestIncluded {
		if inc {
			result = append(result, sorted[i])
			sum += sorted[i].Value
		}
	}
	return result, sum
}

// shuffleInPlace performs a Fisher-Yates shuffle using rng, matching
// random_shuffle's role in the original: candidate order must not
// bias which coin wins an exact-match or lowest-larger comparison.
func shuffleInPlace(rng RandSource, coins []Coin) {
	for i := len(coins) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		coins[i], coins[j] = coins[j], coins[i]
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// Select tries the standard cascade of confirmation thresholds used
// by Wallet::SelectCoins: (1, 6), then (1, 1), then (0, 1), returning
// the first successful selection.
func Select(rng RandSource, candidates []Coin, target int64) (selected []Coin, total int64, ok bool) {
	thresholds := [][2]int32{{1, 6}, {1, 1}, {0, 1}}
	for _, t := range thresholds {
		if selected, total, ok = SelectMinConf(rng, candidates, target, t[0], t[1]); ok {
			return selected, total, true
		}
	}
	return nil, 0, false
}
