package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/solvernet/swap_relay/relay"
)

func main() {
	logLevel := flag.String("log-level", "INFO", "Set the logging level")
	logFormat := flag.String("log-format", "json", "Set the log output format")
	configPath := flag.String("config", "config.toml", "Path to the config file")
	dbPath := flag.String("db", "relay_data.db", "Path to the db file")
	balanceInterval := flag.Int("balance-interval", 5, "Balance snapshot interval in minutes")
	flag.Parse()

	// Set up logging
	if *logFormat == "json" {
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
	switch strings.TrimSpace(strings.ToUpper(*logLevel)) {
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

	cfg := relay.MustLoadConfig(*configPath)

	store, err := relay.OpenStore(*dbPath, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ethClient, err := ethclient.DialContext(ctx, cfg.Ethereum.RpcUrl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to ethereum rpc")
	}
	defer ethClient.Close()
	nearClient := relay.NewNearClient(cfg.Near.RpcUrl, &log.Logger)

	ethSigner, err := relay.NewEthSigner(ctx, ethClient, cfg.Ethereum.PrivateKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up ethereum signer")
	}
	nearSigner := relay.NewNearHttpSigner(cfg.Near.SignerUrl, cfg.Near.RelayAddr)

	ethSource := relay.NewEthEventSource(ethClient, cfg.Ethereum.EscrowAddr, store, cfg.MaxBlocksPerPoll, &log.Logger)
	nearSource := relay.NewNearEventSource(nearClient, cfg.Near.EscrowAddr, store, cfg.MaxBlocksPerPoll, &log.Logger)

	ethRegistry := relay.NewEthRegistry(ethClient, cfg.Ethereum.EscrowAddr)
	nearRegistry := relay.NewNearRegistry(nearClient, cfg.Near.EscrowAddr)

	ethMutator := relay.NewEthMutator(ethClient, cfg.Ethereum.EscrowAddr, ethSigner, cfg.TxTimeout(), &log.Logger)
	nearMutator := relay.NewNearMutator(nearClient, cfg.Near.EscrowAddr, nearSigner, cfg.Near.RelayAddr, cfg.TxTimeout(), &log.Logger)

	ethScanner := relay.NewEthSecretScanner(ethClient, cfg.Ethereum.EscrowAddr, cfg.MaxBlocksPerPoll)
	nearScanner := relay.NewNearSecretScanner(nearClient, cfg.Near.EscrowAddr)

	pricer := relay.NewPricer(cfg.Auction)
	codec := relay.NewAmountCodec(cfg.MaxWholeUnits)
	channel := relay.LogChannel{Logger: &log.Logger}

	// eth deposits are mirrored on near, and the other way round
	ethToNear := relay.NewCoordinator(ethSource, ethRegistry, nearRegistry, nearMutator, nearScanner, pricer, codec, store, channel, cfg, &log.Logger)
	nearToEth := relay.NewCoordinator(nearSource, nearRegistry, ethRegistry, ethMutator, ethScanner, pricer, codec, store, channel, cfg, &log.Logger)

	tracker := relay.NewBalanceTracker(ethClient, nearClient, cfg, store, &log.Logger)
	server := relay.NewServer(store, pricer, cfg, &log.Logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ethToNear.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		nearToEth.Run(ctx)
	}()

	go func() {
		if err := server.RunWithContext(ctx, cfg.ListenAddr); err != nil {
			log.Error().Err(err).Msg("status server exited")
		}
	}()

	log.Info().Str("listen_addr", cfg.ListenAddr).Msg("relay started")
	tracker.RunOnce(ctx)

	ticker := time.NewTicker(time.Duration(*balanceInterval) * time.Minute)
	defer ticker.Stop()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			log.Debug().Msg("interval tick -- snapshotting balances")
			tracker.RunOnce(ctx)
		case <-sigs:
			log.Info().Msg("shutdown signal received")
			cancel()
			log.Info().Msg("waiting for ongoing operations to complete...")
			wg.Wait()
			return
		case <-ctx.Done():
			log.Info().Msg("context cancelled")
			wg.Wait()
			return
		}
	}
}
