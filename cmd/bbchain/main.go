package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bbchain/config"
	"bbchain/native/lockup"
	"bbchain/observability"
	"bbchain/observability/logging"
	lockupstate "bbchain/state/lockup"
	"bbchain/storage"
)

func main() {
	fs := flag.NewFlagSet("bbchain", flag.ExitOnError)
	configPath := fs.String("config", "config.toml", "path to the TOML configuration file")
	block := fs.Uint64("block", 0, "block height for queries; 0 means the latest checkpoint")
	listen := fs.String("listen", ":9464", "listen address for the metrics server")
	fs.Usage = printUsage
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	args := fs.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	db, err := openDatabase(cfg)
	if err != nil {
		fatal(err)
	}
	defer db.Close()

	store := lockupstate.NewStore(db)
	engine, head, err := openEngine(cfg, store, *block)
	if err != nil {
		fatal(err)
	}

	switch args[0] {
	case "supply":
		total, err := engine.TotalSupply()
		if err != nil {
			fatal(err)
		}
		locked, err := store.Supply()
		if err != nil {
			fatal(err)
		}
		fmt.Printf("block:   %d\n", head)
		fmt.Printf("supply:  %s\n", total)
		fmt.Printf("locked:  %s\n", locked)
	case "position":
		if len(args) < 2 {
			fatal(fmt.Errorf("position: missing id"))
		}
		id, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			fatal(fmt.Errorf("position: invalid id %q", args[1]))
		}
		position, ok, err := store.PositionGet(id)
		if err != nil {
			fatal(err)
		}
		if !ok {
			fatal(fmt.Errorf("position %d does not exist", id))
		}
		balance, err := engine.BalanceOfPosition(id)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("owner:   0x%s\n", hex.EncodeToString(position.Owner[:]))
		fmt.Printf("amount:  %s\n", position.Amount)
		fmt.Printf("end:     %d\n", position.End)
		fmt.Printf("balance: %s\n", balance)
	case "balance":
		if len(args) < 2 {
			fatal(fmt.Errorf("balance: missing address"))
		}
		who, err := parseAddress(args[1])
		if err != nil {
			fatal(err)
		}
		balance, err := engine.BalanceOf(who)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("block:   %d\n", head)
		fmt.Printf("balance: %s\n", balance)
	case "serve-metrics":
		logger := logging.Setup("bbchain-lockup", "")
		engine.SetMetrics(observability.Lockup())
		http.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics server listening", "addr", *listen)
		if err := http.ListenAndServe(*listen, nil); err != nil {
			fatal(err)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

// openEngine wires a read-only engine over the store. Queries run as of the
// requested block, defaulting to the last checkpointed block.
func openEngine(cfg *config.Config, store *lockupstate.Store, block uint64) (*lockup.Engine, uint64, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, 0, err
	}
	head := block
	if head == 0 {
		epoch, err := store.Epoch()
		if err != nil {
			return nil, 0, err
		}
		if epoch > 0 {
			point, err := store.GlobalPoint(epoch)
			if err != nil {
				return nil, 0, err
			}
			head = point.Block
		}
	}
	engine := lockup.NewEngine(params)
	engine.SetState(store)
	engine.SetBlockFunc(func() uint64 { return head })
	return engine, head, nil
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Database)) {
	case "memory":
		return storage.NewMemDB(), nil
	case "leveldb":
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "lockup"))
	case "bolt":
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "lockup.db"))
	}
	return nil, fmt.Errorf("unknown database backend %q", cfg.Database)
}

func parseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	decoded, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil || len(decoded) != 20 {
		return addr, fmt.Errorf("invalid address %q", raw)
	}
	copy(addr[:], decoded)
	return addr, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`Usage: bbchain [flags] <command>

Commands:
  supply                  Print the voting-escrow supply at the query block.
  position <id>           Print one position and its decayed balance.
  balance <address>       Print an account's decayed voting balance.
  serve-metrics           Serve Prometheus metrics over HTTP.

Flags:
  --config <path>         TOML configuration file (default config.toml)
  --block <height>        Query block; 0 means the latest checkpoint
  --listen <addr>         Metrics listen address (default :9464)`)
}
