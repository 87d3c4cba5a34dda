package cmd

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/3leaps/gosheets/internal/observability"
	"github.com/3leaps/gosheets/internal/source"
	"github.com/3leaps/gosheets/pkg/kvstore"
)

var dbmCmd = &cobra.Command{
	Use:   "dbm",
	Short: "Read and write key-value databases",
	Long: `Read and write entries in a key-value database.

The database argument accepts the same forms as 'gosheets open':
a dbm:// URL or a plain path. Missing databases are created.

Examples:
  gosheets dbm put ./cache.db greeting hello
  gosheets dbm get dbm://./cache.db greeting`,
}

var dbmPutCmd = &cobra.Command{
	Use:   "put <database> <key> <value>",
	Short: "Store a value under a key",
	Args:  cobra.ExactArgs(3),
	RunE:  runDBMPut,
}

var dbmGetCmd = &cobra.Command{
	Use:   "get <database> <key>",
	Short: "Print the value stored under a key",
	Args:  cobra.ExactArgs(2),
	RunE:  runDBMGet,
}

var dbmGetEncoding string

func init() {
	rootCmd.AddCommand(dbmCmd)
	dbmCmd.AddCommand(dbmPutCmd)
	dbmCmd.AddCommand(dbmGetCmd)

	dbmGetCmd.Flags().StringVarP(&dbmGetEncoding, "encoding", "e", "", "Text encoding of the stored value (default utf-8)")
}

func runDBMPut(cmd *cobra.Command, args []string) (err error) {
	store, err := openStore(args[0])
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(store))

	if err := store.Put([]byte(args[1]), []byte(args[2])); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write entry", err)
	}
	observability.CLILogger.Debug("Stored entry",
		zap.String("path", store.Path()),
		zap.String("key", args[1]))
	return nil
}

func runDBMGet(cmd *cobra.Command, args []string) (err error) {
	encoding := dbmGetEncoding
	if !cmd.Flags().Changed("encoding") && appConfig != nil {
		encoding = appConfig.DBM.Encoding
	}
	dec, err := kvstore.NewDecoder(encoding)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid encoding", err)
	}

	store, err := openStore(args[0])
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(store))

	raw, err := store.Get([]byte(args[1]))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return exitError(foundry.ExitFileNotFound, "Key not found", err)
	}
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read entry", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), dec.Decode(raw))
	return err
}

func openStore(raw string) (*kvstore.Store, error) {
	src, err := source.Parse(raw)
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Unsupported database", err)
	}
	if src.Kind != source.KindKeyValue {
		return nil, exitError(foundry.ExitInvalidArgument, "Not a key-value database",
			fmt.Errorf("%w: %s", source.ErrUnsupportedResource, raw))
	}

	store, err := kvstore.Open(src.Path)
	if err != nil {
		return nil, exitError(foundry.ExitFileReadError, "Failed to open database", err)
	}
	return store, nil
}
