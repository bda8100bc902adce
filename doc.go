// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rsaledger implements a proof-of-work linked ledger in which every block carries
// one transaction signed with textbook RSA (see the rsakeys package).
//
// A block commits to the hash of its predecessor, its transaction and a seed; the seed is
// searched for until the sha256 hash of the block falls below 2^(HashBits-DifficultyBits).
// A Chain is an append-only sequence of such blocks starting at a genesis block that has no
// predecessor. See chain_test.go on how to use the library.
package rsaledger
