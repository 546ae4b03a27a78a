package prevout

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func TestCompactScriptP2PKH(t *testing.T) {
	script := append(append([]byte{0x76, 0xa9, 0x14}, make([]byte, 20)...), 0x88, 0xac)
	tag, payload := compactScript(script)
	require.Equal(t, byte(0x00), tag)
	require.Len(t, payload, 20)

	got, err := expandScript(tag, payload)
	require.NoError(t, err)
	require.Equal(t, script, got)
}

func TestCompactScriptP2SH(t *testing.T) {
	script := append(append([]byte{0xa9, 0x14}, make([]byte, 20)...), 0x87)
	tag, payload := compactScript(script)
	require.Equal(t, byte(0x01), tag)
	require.Len(t, payload, 20)

	got, err := expandScript(tag, payload)
	require.NoError(t, err)
	require.Equal(t, script, got)
}

func TestCompactScriptP2PKCompressed(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	compressed := priv.PubKey().SerializeCompressed()

	script := append(append([]byte{0x21}, compressed...), 0xac)
	tag, payload := compactScript(script)
	require.Contains(t, []byte{0x02, 0x03}, tag)
	require.Equal(t, compressed[1:], payload)

	got, err := expandScript(tag, payload)
	require.NoError(t, err)
	require.Equal(t, script, got) // must round-trip to the exact 35-byte compressed script
}

func TestCompactScriptP2PKUncompressedRecompresses(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	uncompressed := priv.PubKey().SerializeUncompressed()
	compressed := priv.PubKey().SerializeCompressed()

	script := append(append([]byte{0x41}, uncompressed...), 0xac)
	tag, payload := compactScript(script)
	require.Contains(t, []byte{0x04, 0x05}, tag)
	require.Equal(t, compressed[1:], payload)

	// tags 0x04/0x05 record that the source script was uncompressed, so
	// expanding recomputes the same 67-byte uncompressed form.
	got, err := expandScript(tag, payload)
	require.NoError(t, err)
	require.Equal(t, script, got)
}

func TestCompactScriptPassesThroughUnknownShapes(t *testing.T) {
	script := []byte{0x6a, 0x04, 0xde, 0xad, 0xbe, 0xef} // OP_RETURN push
	tag, payload := compactScript(script)
	require.Equal(t, byte(0xff), tag)

	got, err := expandScript(tag, payload)
	require.NoError(t, err)
	require.Equal(t, script, got)
}
