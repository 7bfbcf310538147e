// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package cache

import "strings"

// PhraseSet is a case-insensitive multi-pattern substring matcher built
// on an Aho-Corasick automaton. The quality gate runs every candidate
// overview and title through one; with the automaton the scan is
// O(len(text)) regardless of how many phrases are configured.
type PhraseSet struct {
	root     *phraseNode
	patterns []string
}

type phraseNode struct {
	children map[rune]*phraseNode
	failure  *phraseNode
	output   []int
}

func newPhraseNode() *phraseNode {
	return &phraseNode{children: make(map[rune]*phraseNode)}
}

// NewPhraseSet builds the automaton from the given phrases. Empty
// phrases are ignored. The set is immutable once built and safe for
// concurrent use.
func NewPhraseSet(phrases []string) *PhraseSet {
	ps := &PhraseSet{root: newPhraseNode()}
	for _, p := range phrases {
		if p == "" {
			continue
		}
		ps.insert(strings.ToLower(p))
	}
	ps.buildFailureLinks()
	return ps
}

func (ps *PhraseSet) insert(pattern string) {
	node := ps.root
	for _, ch := range pattern {
		child := node.children[ch]
		if child == nil {
			child = newPhraseNode()
			node.children[ch] = child
		}
		node = child
	}
	ps.patterns = append(ps.patterns, pattern)
	node.output = append(node.output, len(ps.patterns)-1)
}

// buildFailureLinks wires suffix fallbacks breadth-first.
func (ps *PhraseSet) buildFailureLinks() {
	var queue []*phraseNode
	for _, child := range ps.root.children {
		child.failure = ps.root
		queue = append(queue, child)
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for ch, child := range current.children {
			queue = append(queue, child)
			fail := current.failure
			for fail != nil && fail.children[ch] == nil {
				fail = fail.failure
			}
			if fail == nil {
				child.failure = ps.root
			} else {
				child.failure = fail.children[ch]
				child.output = append(child.output, child.failure.output...)
			}
		}
	}
}

// Match returns the first phrase found as a substring of text, with
// found=false when no phrase occurs. Matching is case-insensitive.
func (ps *PhraseSet) Match(text string) (phrase string, found bool) {
	if len(ps.patterns) == 0 {
		return "", false
	}
	node := ps.root
	for _, ch := range strings.ToLower(text) {
		for node != nil && node.children[ch] == nil {
			node = node.failure
		}
		if node == nil {
			node = ps.root
			continue
		}
		node = node.children[ch]
		if len(node.output) > 0 {
			return ps.patterns[node.output[0]], true
		}
	}
	return "", false
}

// Contains reports whether any phrase occurs in text.
func (ps *PhraseSet) Contains(text string) bool {
	_, found := ps.Match(text)
	return found
}

// Size returns the number of phrases in the set.
func (ps *PhraseSet) Size() int {
	return len(ps.patterns)
}
