package dict

import (
	"slices"
	"unicode/utf8"
)

// rootState is the index of the root node. Slot 0 is never used so that a
// zero check value always means "free".
const rootState = 1

// Trie is a frozen double-array trie over a dense rune alphabet.
//   - Transition: t := base[s] + code; valid if check[t] == s.
//   - base[s] == 0 means s has no children.
//   - terminal[s] marks nodes that end an entry.
//
// Runes map to dense codes 1..len(alphabet); 0 means "not in alphabet", which
// is always a dead end.
type Trie struct {
	base     []int32
	check    []int32
	terminal []bool

	alphabet []rune
	codes    map[rune]int32
	entries  int
}

// walk follows s from the root. It returns false as soon as a transition is
// missing. Entries are valid UTF-8, so an invalid query never matches.
func (t *Trie) walk(s string) (int32, bool) {
	if !utf8.ValidString(s) {
		return 0, false
	}
	state := int32(rootState)
	for _, r := range s {
		code, ok := t.codes[r]
		if !ok {
			return 0, false
		}
		next, ok := t.transition(state, code)
		if !ok {
			return 0, false
		}
		state = next
	}
	return state, true
}

func (t *Trie) transition(state, code int32) (int32, bool) {
	b := t.base[state]
	if b == 0 {
		return 0, false
	}
	next := b + code
	if next <= 0 || int(next) >= len(t.check) || t.check[next] != state {
		return 0, false
	}
	return next, true
}

func (t *Trie) ExactMatch(s string) bool {
	state, ok := t.walk(s)
	return ok && t.terminal[state]
}

func (t *Trie) CanContinue(s string) bool {
	state, ok := t.walk(s)
	return ok && t.base[state] != 0
}

// Len returns the number of entries compiled into the trie.
func (t *Trie) Len() int { return t.entries }

// NStates returns the number of allocated slots.
func (t *Trie) NStates() int { return len(t.base) }

// Entries lists every entry in code order.
func (t *Trie) Entries() []string {
	out := make([]string, 0, t.entries)
	var prefix []rune
	var visit func(state int32)
	visit = func(state int32) {
		if t.terminal[state] {
			out = append(out, string(prefix))
		}
		for code := int32(1); code <= int32(len(t.alphabet)); code++ {
			next, ok := t.transition(state, code)
			if !ok {
				continue
			}
			prefix = append(prefix, t.alphabet[code-1])
			visit(next)
			prefix = prefix[:len(prefix)-1]
		}
	}
	visit(rootState)
	return out
}

type buildNode struct {
	children map[int32]*buildNode
	terminal bool
}

// Build compiles entries into a Trie. Duplicates are ignored; empty or
// invalid UTF-8 entries are rejected.
func Build(entries []string) (*Trie, error) {
	seen := make(map[rune]struct{})
	for _, e := range entries {
		if err := checkEntry(e); err != nil {
			return nil, err
		}
		for _, r := range e {
			seen[r] = struct{}{}
		}
	}

	alphabet := make([]rune, 0, len(seen))
	for r := range seen {
		alphabet = append(alphabet, r)
	}
	slices.Sort(alphabet)
	codes := make(map[rune]int32, len(alphabet))
	for i, r := range alphabet {
		codes[r] = int32(i + 1)
	}

	root := &buildNode{children: make(map[int32]*buildNode)}
	count := 0
	for _, e := range entries {
		n := root
		for _, r := range e {
			c := codes[r]
			child, ok := n.children[c]
			if !ok {
				child = &buildNode{children: make(map[int32]*buildNode)}
				n.children[c] = child
			}
			n = child
		}
		if !n.terminal {
			n.terminal = true
			count++
		}
	}

	b := &arrayBuilder{
		base:     make([]int32, rootState+1),
		check:    make([]int32, rootState+1),
		terminal: make([]bool, rootState+1),
		used:     make([]bool, rootState+1),
	}
	b.used[rootState] = true
	b.place(root)

	return &Trie{
		base:     b.base,
		check:    b.check,
		terminal: b.terminal,
		alphabet: alphabet,
		codes:    codes,
		entries:  count,
	}, nil
}

type arrayBuilder struct {
	base     []int32
	check    []int32
	terminal []bool
	used     []bool
}

func (b *arrayBuilder) grow(n int) {
	for len(b.base) <= n {
		b.base = append(b.base, 0)
		b.check = append(b.check, 0)
		b.terminal = append(b.terminal, false)
		b.used = append(b.used, false)
	}
}

func (b *arrayBuilder) free(slot int32) bool {
	return int(slot) >= len(b.used) || !b.used[slot]
}

// place lays out the trie breadth first, giving each node the first base at
// which all of its children land on free slots.
func (b *arrayBuilder) place(root *buildNode) {
	type item struct {
		state int32
		node  *buildNode
	}
	queue := []item{{rootState, root}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if len(it.node.children) == 0 {
			continue
		}

		codes := make([]int32, 0, len(it.node.children))
		for c := range it.node.children {
			codes = append(codes, c)
		}
		slices.Sort(codes)

		base := int32(1)
		for !b.fits(base, codes) {
			base++
		}
		b.base[it.state] = base
		for _, c := range codes {
			slot := base + c
			b.grow(int(slot))
			child := it.node.children[c]
			b.used[slot] = true
			b.check[slot] = it.state
			b.terminal[slot] = child.terminal
			queue = append(queue, item{slot, child})
		}
	}
}

func (b *arrayBuilder) fits(base int32, codes []int32) bool {
	for _, c := range codes {
		if !b.free(base + c) {
			return false
		}
	}
	return true
}
