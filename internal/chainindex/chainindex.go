// Package chainindex implements ChainBuilder: it accumulates the header
// graph ReadDetect discovers and, once the input is fully drained, walks
// back from the heaviest tip to assign a height to every canonical block.
package chainindex

import (
	"blockstream/internal/blockmodel"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// HeaderNode is the interior representation of one block in the header
// graph: just enough to walk the tree, never the block bytes.
type HeaderNode struct {
	Hash     chainhash.Hash
	PrevHash chainhash.Hash
}

// Builder accumulates HeaderNodes and their reverse (prevHash -> children)
// index. It holds no transaction or output data; PrevoutJoiner works from
// the original BlockRecords, not from the Builder.
type Builder struct {
	nodes    map[chainhash.Hash]HeaderNode
	children map[chainhash.Hash]map[chainhash.Hash]struct{}
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes:    make(map[chainhash.Hash]HeaderNode),
		children: make(map[chainhash.Hash]map[chainhash.Hash]struct{}),
	}
}

// Add records one (hash, prevHash) link. Adding the same hash twice is
// fine (ReadDetect may see the same block in two files); adding it twice
// with two different prevHash values is a ChainError, since a content-
// addressed block hash can only have one true parent.
func (b *Builder) Add(hash, prevHash chainhash.Hash) error {
	if existing, ok := b.nodes[hash]; ok {
		if existing.PrevHash != prevHash {
			return &blockmodel.ChainError{
				Hash: hash.String(),
				Msg:  "duplicate block seen with conflicting prev_hash",
			}
		}
		return nil
	}
	b.nodes[hash] = HeaderNode{Hash: hash, PrevHash: prevHash}
	set, ok := b.children[prevHash]
	if !ok {
		set = make(map[chainhash.Hash]struct{})
		b.children[prevHash] = set
	}
	set[hash] = struct{}{}
	return nil
}

// Result is the outcome of Build: the canonical chain's heights, the
// emission cutoff imposed by max_reorg, and the next-hash links a
// BlockExtra needs.
type Result struct {
	// Heights maps every canonical hash (genesis through the tip) to its
	// assigned height, independent of the max_reorg cutoff below.
	Heights map[chainhash.Hash]uint32
	// Order holds the canonical hashes by height, Order[h] having
	// height h, truncated to EmitHeight.
	Order []chainhash.Hash
	// NextHash maps each canonical hash (except the tip) to its
	// canonical child.
	NextHash map[chainhash.Hash]chainhash.Hash
	// TipHeight is the height of the canonical tip before any max_reorg
	// cutoff is applied.
	TipHeight uint32
	// EmitHeight is the highest height that should actually be emitted
	// (TipHeight - maxReorg, floored at 0).
	EmitHeight uint32
}

// Build selects the canonical tip among the accumulated leaves (longest
// chain to genesis; ties broken by the numerically smallest terminating
// hash), walks it back to genesis, and assigns heights. It returns a
// ChainError if no leaf reaches genesis, or if the canonical walk hits a
// hash with no recorded node (a dangling prev_hash).
func (b *Builder) Build(genesis chainhash.Hash, maxReorg uint32) (*Result, error) {
	if len(b.nodes) == 0 {
		return &Result{
			Heights:  map[chainhash.Hash]uint32{},
			NextHash: map[chainhash.Hash]chainhash.Hash{},
		}, nil
	}

	var leaves []chainhash.Hash
	for h := range b.nodes {
		if len(b.children[h]) == 0 {
			leaves = append(leaves, h)
		}
	}

	depth := make(map[chainhash.Hash]int)
	visiting := make(map[chainhash.Hash]bool)
	var depthOf func(h chainhash.Hash) int
	depthOf = func(h chainhash.Hash) int {
		if h == genesis {
			return 0
		}
		if d, ok := depth[h]; ok {
			return d
		}
		node, ok := b.nodes[h]
		if !ok || visiting[h] {
			return -1
		}
		visiting[h] = true
		pd := depthOf(node.PrevHash)
		visiting[h] = false
		if pd < 0 {
			depth[h] = -1
			return -1
		}
		depth[h] = pd + 1
		return depth[h]
	}

	var tip chainhash.Hash
	tipDepth := -1
	haveTip := false
	for _, leaf := range leaves {
		d := depthOf(leaf)
		if d < 0 {
			continue // side branch that never reaches genesis
		}
		// String is the fixed-width big-endian hex form, so comparing it
		// lexically compares the hashes numerically.
		if !haveTip || d > tipDepth || (d == tipDepth && leaf.String() < tip.String()) {
			tip, tipDepth, haveTip = leaf, d, true
		}
	}
	if !haveTip {
		return nil, &blockmodel.ChainError{Hash: genesis.String(), Msg: "genesis not reachable from any tip"}
	}

	heights := make(map[chainhash.Hash]uint32, tipDepth+1)
	order := make([]chainhash.Hash, tipDepth+1)
	nextHash := make(map[chainhash.Hash]chainhash.Hash, tipDepth)

	cur, h := tip, tipDepth
	for {
		heights[cur] = uint32(h)
		order[h] = cur
		if cur == genesis {
			break
		}
		node, ok := b.nodes[cur]
		if !ok {
			return nil, &blockmodel.ChainError{Hash: cur.String(), Msg: "dangling prev_hash in canonical walk"}
		}
		nextHash[node.PrevHash] = cur
		cur, h = node.PrevHash, h-1
	}

	tipHeight := uint32(tipDepth)
	emitHeight := uint32(0)
	if tipHeight > maxReorg {
		emitHeight = tipHeight - maxReorg
	}

	return &Result{
		Heights:    heights,
		Order:      order[:emitHeight+1],
		NextHash:   nextHash,
		TipHeight:  tipHeight,
		EmitHeight: emitHeight,
	}, nil
}
