package prevout_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"blockstream/internal/blockmodel"
	"blockstream/internal/blocktest"
	"blockstream/internal/prevout"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreResolvesCrossBlockSpend(t *testing.T) {
	s := prevout.NewMemoryStore()

	genesis := blocktest.NewBlock(blocktest.GenesisHash(), 0, []byte{0x00})
	_, err := s.Join(genesis)
	require.NoError(t, err)

	cbTxid := genesis.Transactions[0].TxHash()
	spendBlock := blocktest.NewBlock(genesis.BlockHash(), 1, []byte{0x01})
	blocktest.AddTx(spendBlock, blocktest.Spend(cbTxid, 0, 4999999000))

	values, err := s.Join(spendBlock)
	require.NoError(t, err)
	require.Len(t, values, 1)
	for op, out := range values {
		require.Equal(t, cbTxid, op.Txid)
		require.Equal(t, uint32(0), op.Vout)
		require.Equal(t, int64(5000000000), out.Value)
	}
}

func TestMemoryStoreResolvesIntraBlockSpend(t *testing.T) {
	s := prevout.NewMemoryStore()

	blk := blocktest.NewBlock(blocktest.GenesisHash(), 0, []byte{0x02})
	cbTxid := blk.Transactions[0].TxHash()
	blocktest.AddTx(blk, blocktest.Spend(cbTxid, 0, 4999999000))

	values, err := s.Join(blk)
	require.NoError(t, err)
	require.Len(t, values, 1)
}

func TestMemoryStoreMissingPrevoutIsFatal(t *testing.T) {
	s := prevout.NewMemoryStore()
	blk := blocktest.NewBlock(blocktest.GenesisHash(), 0, []byte{0x03})
	var bogusTxid [32]byte
	blocktest.AddTx(blk, blocktest.Spend(bogusTxid, 0, 1))

	_, err := s.Join(blk)
	require.Error(t, err)
}

// spendWithScript builds a transaction spending outpoint (txid, vout) and
// creating one new output with an arbitrary script, for fixtures that need
// a specific output shape (e.g. a P2PK script) rather than blocktest's
// default OP_TRUE stand-in.
func spendWithScript(txid chainhash.Hash, vout uint32, outValue int64, script []byte) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: txid, Index: vout},
		SignatureScript:  []byte{0x51},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{Value: outValue, PkScript: script})
	return tx
}

func TestDiskStoreMatchesMemoryStore(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	p2pkScript := append(append([]byte{0x21}, priv.PubKey().SerializeCompressed()...), 0xac)

	genesis := blocktest.NewBlock(blocktest.GenesisHash(), 0, []byte{0x04})
	cbTxid := genesis.Transactions[0].TxHash()

	// spendBlock pays the coinbase output into a compressed-key P2PK
	// output, so spendBlock2's resolution of it below exercises the
	// script-compaction round trip, not just the satoshi amount.
	spendBlock := blocktest.NewBlock(genesis.BlockHash(), 1, []byte{0x05})
	p2pkTx := spendWithScript(cbTxid, 0, 4999999000, p2pkScript)
	blocktest.AddTx(spendBlock, p2pkTx)

	spendBlock2 := blocktest.NewBlock(spendBlock.BlockHash(), 2, []byte{0x06})
	blocktest.AddTx(spendBlock2, blocktest.Spend(p2pkTx.TxHash(), 0, 4999998000))

	blocks := []*wire.MsgBlock{genesis, spendBlock, spendBlock2}

	mem := prevout.NewMemoryStore()
	memResults := make([]map[string]txoutFields, 0, len(blocks))
	for _, b := range blocks {
		v, err := mem.Join(b)
		require.NoError(t, err)
		memResults = append(memResults, simplify(v))
	}

	disk, err := prevout.OpenDiskStore(filepath.Join(t.TempDir(), "utxo.db"))
	require.NoError(t, err)
	defer disk.Close()
	for _, b := range blocks {
		require.NoError(t, disk.IndexBlock(b))
	}
	diskResults := make([]map[string]txoutFields, 0, len(blocks))
	for _, b := range blocks {
		v, err := disk.Join(b)
		require.NoError(t, err)
		diskResults = append(diskResults, simplify(v))
	}

	require.Equal(t, memResults, diskResults)

	// the P2PK resolution in spendBlock2 must carry the exact 35-byte
	// compressed script memStore stored it with, not a recompacted or
	// re-expanded variant.
	for op, fields := range diskResults[2] {
		if op == fmt.Sprintf("%s:%d", p2pkTx.TxHash(), 0) {
			require.Equal(t, string(p2pkScript), fields.script)
		}
	}
}

type txoutFields struct {
	value  int64
	script string
}

func simplify(v map[blockmodel.OutPoint]blockmodel.TxOut) map[string]txoutFields {
	out := make(map[string]txoutFields, len(v))
	for op, txout := range v {
		out[fmt.Sprintf("%s:%d", op.Txid, op.Vout)] = txoutFields{value: txout.Value, script: string(txout.ScriptPubkey)}
	}
	return out
}
