package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/NicolasHaas/matchadmin/pkg/crypto"
	"github.com/NicolasHaas/matchadmin/pkg/datastore"
	"github.com/NicolasHaas/matchadmin/pkg/logging"
	"github.com/NicolasHaas/matchadmin/pkg/moderation"
	"github.com/NicolasHaas/matchadmin/pkg/server"
	"github.com/NicolasHaas/matchadmin/pkg/version"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	configPath := flag.String("config", os.Getenv(server.EnvPrefix+"CONFIG"), "YAML config file")
	bridgeAddr := flag.String("bridge", "", "Host bridge bind address")
	httpAddr := flag.String("http", "", "HTTP API bind address (\"off\" to disable)")
	dbPath := flag.String("db", "", "SQLite database file path")
	dataDir := flag.String("data", "", "Data directory for generated files")
	adminsFile := flag.String("admins-file", "", "YAML file with groups and admins imported on startup")
	logLevel := flag.String("log-level", "", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "", "Log format: text or json")
	insecure := flag.Bool("insecure", false, "Serve the bridge over plain TCP")

	exportAdmins := flag.Bool("export-admins", false, "Export all groups and admins as YAML and exit")
	importAdmins := flag.String("import-admins", "", "Import groups and admins from a YAML file and exit")
	hashSecret := flag.Bool("hash-secret", false, "Read a bridge secret from stdin, print its hash and exit")
	newSecret := flag.Bool("new-secret", false, "Generate a random bridge secret, print it with its hash and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}
	if *newSecret {
		if err := printNewSecret(); err != nil {
			fmt.Fprintf(os.Stderr, "new secret: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if *hashSecret {
		if err := printSecretHash(); err != nil {
			fmt.Fprintf(os.Stderr, "hash secret: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	override(&cfg.BridgeAddr, *bridgeAddr)
	override(&cfg.DBPath, *dbPath)
	override(&cfg.DataDir, *dataDir)
	override(&cfg.AdminsFile, *adminsFile)
	override(&cfg.LogLevel, *logLevel)
	override(&cfg.LogFormat, *logFormat)
	if *httpAddr == "off" {
		cfg.HTTPAddr = ""
	} else {
		override(&cfg.HTTPAddr, *httpAddr)
	}
	if *insecure {
		cfg.BridgeTLS = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			slog.Error("create database directory", "dir", dir, "err", err)
			os.Exit(1)
		}
	}
	st, err := datastore.NewProviderFactory(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}

	// Handle admin export and import (run and exit)
	if *exportAdmins || *importAdmins != "" {
		defer func() { _ = st.Close() }()
		ledger := moderation.New(st, moderation.Options{
			AuditEnabled: cfg.Plugin.EnableLogging,
			Logger:       logging.Component("moderation"),
		})
		if *importAdmins != "" {
			if err := server.LoadAdminsFromYAML(*importAdmins, ledger); err != nil {
				slog.Error("import admins", "err", err)
				os.Exit(1)
			}
		}
		if *exportAdmins {
			data, err := server.ExportAdminsYAML(ledger)
			if err != nil {
				slog.Error("export admins", "err", err)
				os.Exit(1)
			}
			fmt.Print(string(data))
		}
		return
	}

	slog.Info("starting matchadmin", "version", version.String())
	srv := server.New(cfg, server.Dependencies{Store: st})
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func printSecretHash() error {
	fmt.Fprint(os.Stderr, "bridge secret: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return err
	}
	secret := strings.TrimSpace(line)
	if secret == "" {
		return errors.New("empty secret")
	}
	hash, err := crypto.HashSecret(secret)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func printNewSecret() error {
	secret, err := crypto.GenerateToken()
	if err != nil {
		return err
	}
	hash, err := crypto.HashSecret(secret)
	if err != nil {
		return err
	}
	fmt.Println("secret:", secret)
	fmt.Println("bridge_secret_hash:", hash)
	return nil
}
