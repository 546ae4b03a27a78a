package blockmodel

// Options configures a pipeline run. It is the library-level equivalent of
// the CLI surface in cmd/blockstream.
type Options struct {
	// BlocksDir is the directory holding blocksNNNNN.dat files.
	BlocksDir string
	// Network selects magic bytes, genesis hash, and the default MaxReorg.
	// One of "mainnet", "testnet", "signet", "regtest".
	Network string
	// MaxReorg overrides the network's default reorg safety margin. Zero
	// means "use the network default".
	MaxReorg uint32
	// SkipPrevout disables PrevoutJoiner; OutpointValues stays empty.
	SkipPrevout bool
	// UTXODBPath enables the two-phase on-disk UTXO store at this path
	// instead of the default in-memory map. Empty means in-memory.
	UTXODBPath string
	// StopAtHeight truncates the emitted stream at this height, inclusive.
	// Zero means "no limit".
	StopAtHeight uint32
	// ReadWorkers bounds how many blocksNNNNN.dat files are scanned
	// concurrently. Zero means "one per CPU".
	ReadWorkers int
	// QueueCapacity sizes the bounded channels between pipeline stages.
	// Zero means a small built-in default.
	QueueCapacity int
}

// Validate checks that the options are internally consistent, without
// touching the filesystem (ConfigError is for syntactic problems; IOError
// is raised later if BlocksDir turns out not to exist).
func (o Options) Validate() error {
	if o.BlocksDir == "" {
		return &ConfigError{Field: "BlocksDir", Msg: "must not be empty"}
	}
	switch o.Network {
	case "mainnet", "testnet", "signet", "regtest":
	default:
		return &ConfigError{Field: "Network", Msg: "must be one of mainnet, testnet, signet, regtest"}
	}
	return nil
}
