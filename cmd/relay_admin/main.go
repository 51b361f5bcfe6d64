package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/solvernet/swap_relay/relay"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	logFormat  string
	configPath string
	dbPath     string
	filePath   string
	chainName  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "relay_admin",
		Short: "A tool for inspecting and backfilling relay state",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Set the logging level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Set the log output format (json or text)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "relay_data.db", "Path to the db file")

	// Replay command
	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay captured events from a file through the state machine",
		Run: func(cmd *cobra.Command, args []string) {
			store, coordinator := setupCoordinator()
			defer store.Close()
			coordinator.ReplayFromFile(context.Background(), filePath)
		},
	}
	replayCmd.Flags().StringVar(&filePath, "file", "", "Replay events from file")
	replayCmd.Flags().StringVar(&chainName, "chain", "ethereum", "Source chain of the captured events (ethereum or near)")
	replayCmd.MarkFlagRequired("file")

	// Inspect command
	inspectCmd := &cobra.Command{
		Use:   "inspect [order_id]",
		Short: "Print the cached state of one order",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()
			defer store.Close()
			order, err := store.GetOrderStatus(args[0])
			if err != nil {
				log.Fatal().Err(err).Send()
			}
			printJSON(order)
		},
	}

	// Checkpoints command
	checkpointsCmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "Print the per-chain poll checkpoints",
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()
			defer store.Close()
			out := map[string]int64{}
			for _, chain := range []relay.Chain{relay.ChainEthereum, relay.ChainNear} {
				height, err := store.GetCheckpoint(chain)
				if err != nil {
					log.Fatal().Err(err).Send()
				}
				out[string(chain)] = height
			}
			printJSON(out)
		},
	}

	// Errors command
	errorsCmd := &cobra.Command{
		Use:   "errors",
		Short: "List orders parked in the Error state",
		Run: func(cmd *cobra.Command, args []string) {
			store := openStore()
			defer store.Close()
			orders, err := store.ListOrdersByStatus(relay.StatusError)
			if err != nil {
				log.Fatal().Err(err).Send()
			}
			printJSON(orders)
		},
	}

	rootCmd.AddCommand(replayCmd, inspectCmd, checkpointsCmd, errorsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	// Set up logging
	if logFormat == "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		output.FormatLevel = func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		}
		output.FormatMessage = func(i interface{}) string {
			return fmt.Sprintf("message: %s", i)
		}
		output.FormatFieldName = func(i interface{}) string {
			return fmt.Sprintf("%s:", i)
		}
		output.FormatFieldValue = func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("%s", i))
		}
		log.Logger = log.Output(output)

	}

	// Set log level
	switch strings.TrimSpace(strings.ToUpper(logLevel)) {
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "INFO":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "WARN":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "ERROR":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func openStore() *relay.Store {
	store, err := relay.OpenStore(dbPath, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
	return store
}

// setupCoordinator wires one chain direction for replay. The destination
// collaborators are live: replaying events with unsettled actions will submit
// real transactions.
func setupCoordinator() (*relay.Store, *relay.Coordinator) {
	cfg := relay.MustLoadConfig(configPath)
	store := openStore()

	ctx := context.Background()
	ethClient, err := ethclient.DialContext(ctx, cfg.Ethereum.RpcUrl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to ethereum rpc")
	}
	nearClient := relay.NewNearClient(cfg.Near.RpcUrl, &log.Logger)

	ethRegistry := relay.NewEthRegistry(ethClient, cfg.Ethereum.EscrowAddr)
	nearRegistry := relay.NewNearRegistry(nearClient, cfg.Near.EscrowAddr)

	pricer := relay.NewPricer(cfg.Auction)
	codec := relay.NewAmountCodec(cfg.MaxWholeUnits)
	channel := relay.LogChannel{Logger: &log.Logger}

	if relay.Chain(chainName) == relay.ChainNear {
		ethSigner, err := relay.NewEthSigner(ctx, ethClient, cfg.Ethereum.PrivateKey)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up ethereum signer")
		}
		source := relay.NewNearEventSource(nearClient, cfg.Near.EscrowAddr, store, cfg.MaxBlocksPerPoll, &log.Logger)
		mutator := relay.NewEthMutator(ethClient, cfg.Ethereum.EscrowAddr, ethSigner, cfg.TxTimeout(), &log.Logger)
		scanner := relay.NewEthSecretScanner(ethClient, cfg.Ethereum.EscrowAddr, cfg.MaxBlocksPerPoll)
		return store, relay.NewCoordinator(source, nearRegistry, ethRegistry, mutator, scanner, pricer, codec, store, channel, cfg, &log.Logger)
	}

	nearSigner := relay.NewNearHttpSigner(cfg.Near.SignerUrl, cfg.Near.RelayAddr)
	source := relay.NewEthEventSource(ethClient, cfg.Ethereum.EscrowAddr, store, cfg.MaxBlocksPerPoll, &log.Logger)
	mutator := relay.NewNearMutator(nearClient, cfg.Near.EscrowAddr, nearSigner, cfg.Near.RelayAddr, cfg.TxTimeout(), &log.Logger)
	scanner := relay.NewNearSecretScanner(nearClient, cfg.Near.EscrowAddr)
	return store, relay.NewCoordinator(source, ethRegistry, nearRegistry, mutator, scanner, pricer, codec, store, channel, cfg, &log.Logger)
}

func printJSON(v any) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Send()
	}
	fmt.Println(string(raw))
}
