// Command blockstream walks a Bitcoin Core blocks directory, reconstructs
// the canonical chain, and writes the resulting height-ordered,
// prevout-enriched block stream to stdout using the pipe framing
// documented in internal/wireformat, so other processes can consume it
// without re-parsing the block files themselves.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"blockstream/internal/blockmodel"
	"blockstream/internal/wireformat"

	"blockstream"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "blockstream: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	app := &cli.App{
		Name:  "blockstream",
		Usage: "stream the canonical Bitcoin chain from a blocks directory, prevouts attached",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "blocks-dir", Required: true, Usage: "path to the blocksNNNNN.dat directory"},
			&cli.StringFlag{Name: "network", Required: true, Usage: "mainnet, testnet, signet, or regtest"},
			&cli.UintFlag{Name: "max-reorg", Usage: "safety margin from the tip (default: network-dependent)"},
			&cli.BoolFlag{Name: "skip-prevout", Usage: "disable PrevoutJoiner; OutpointValues stays empty"},
			&cli.StringFlag{Name: "utxo-db", Usage: "enable the two-phase on-disk UTXO store at this path"},
			&cli.UintFlag{Name: "stop-at-height", Usage: "truncate the emitted stream at this height, inclusive"},
		},
		Action: action,
	}
	return app.Run(args)
}

func action(c *cli.Context) error {
	log := newLogger()

	opts := blockmodel.Options{
		BlocksDir:    c.String("blocks-dir"),
		Network:      c.String("network"),
		MaxReorg:     uint32(c.Uint("max-reorg")),
		SkipPrevout:  c.Bool("skip-prevout"),
		UTXODBPath:   c.String("utxo-db"),
		StopAtHeight: uint32(c.Uint("stop-at-height")),
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	it, err := blockstream.Open(ctx, opts, log)
	if err != nil {
		return err
	}
	defer it.Close()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	writer := wireformat.NewWriter(w)

	var count uint64
	for {
		be, err := it.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info().Uint64("blocks_emitted", count).Msg("end of stream")
				return w.Flush()
			}
			return err
		}
		if err := writer.WriteBlockExtra(be); err != nil {
			return fmt.Errorf("write pipe frame: %w", err)
		}
		count++
	}
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}
