// klingsign-cli drives the signer from the command line: seeding,
// public key export, digest signing and backup.
package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/Klingon-tech/klingsign/config"
	"github.com/Klingon-tech/klingsign/internal/commander"
	"github.com/Klingon-tech/klingsign/internal/device"
	"github.com/Klingon-tech/klingsign/internal/log"
	"github.com/Klingon-tech/klingsign/internal/securestore"
	"github.com/Klingon-tech/klingsign/internal/storage"
	"github.com/Klingon-tech/klingsign/internal/wallet"
	"golang.org/x/term"
)

const version = "0.1.0"

func main() {
	cfg, flags, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			usage()
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		usage()
		os.Exit(1)
	}
	if flags.Help {
		usage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("klingsign-cli version " + version)
		os.Exit(0)
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logger: %v", err)
	}

	args := flags.Args
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "wordlist":
		cmdWordlist()
		return
	case "help", "--help", "-h":
		usage()
		return
	}

	s := openSigner(cfg)
	defer s.close()
	sig := s.svc

	switch cmd {
	case "status":
		cmdStatus(s, cfg)
	case "seed":
		cmdSeed(sig, cfg, cmdArgs)
	case "xpub":
		cmdXPub(sig, cmdArgs)
	case "sign":
		cmdSign(sig, cmdArgs)
	case "address":
		cmdAddress(sig, cmdArgs)
	case "backup":
		cmdBackup(sig)
	case "export-key":
		cmdExportKey(sig, cmdArgs)
	case "erase":
		cmdErase(s, cmdArgs)
	case "dispatch":
		cmdDispatch(sig, cfg, cmdArgs)
	default:
		s.close()
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: klingsign-cli [global flags] <command> [flags]

`)
	config.PrintUsage(os.Stderr)
	fmt.Fprint(os.Stderr, `
Commands:
  status                          Show which key pages are stored
  seed [--generate] [--strength <bits>] [--passphrase]
                                  Store a master key from a mnemonic (prompted)
                                  or from a freshly generated one
  xpub <path>                     Show the extended public key at path
  sign --digest <hex> --path <p> [--der]
                                  Sign a 32-byte digest
  address <path>                  Show the P2PKH address at path
  backup                          Show the stored mnemonic
  export-key <path>               Show the private key at path as WIF
  erase [--yes] [--purge]         Wipe the stored key material; --purge also
                                  removes the pages from the keystore
  dispatch [<json>]               Run a JSON command object (stdin if omitted)
  wordlist                        Print the BIP-39 English wordlist

Paths use the form m/44'/0'/0'/0/0 (h or H also mark hardened levels).
`)
}

// signer bundles the open key store and the service driving it.
type signer struct {
	svc   *device.Service
	store *securestore.Store
	ns    *storage.PrefixDB
	close func()
}

// openSigner opens the key store selected by cfg and wraps it in a
// signer service.
func openSigner(cfg *config.Config) *signer {
	var db storage.DB
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		fmt.Fprintln(os.Stderr, "Warning: memory storage is lost when this command exits")
		db = storage.NewMemory()
	default:
		bdb, err := storage.NewBadger(cfg.KeystoreDir())
		if err != nil {
			fatal("open keystore: %v", err)
		}
		db = bdb
	}
	ns := storage.NewPrefixDB(db, []byte(string(cfg.Network)+"/"))

	var opts []securestore.Option
	var password []byte
	if cfg.Storage.Encrypt {
		var err error
		password, err = readPassword("Storage password: ")
		if err != nil {
			db.Close()
			fatal("read password: %v", err)
		}
		opts = append(opts, securestore.WithPassword(password, wallet.EncryptionParams{
			Memory:      cfg.Storage.KDFMemory,
			Iterations:  cfg.Storage.KDFIterations,
			Parallelism: cfg.Storage.KDFParallelism,
		}))
	}
	store := securestore.New(ns, opts...)

	svc := device.New(store, deviceParams(cfg), device.WithProgress(progressBar(os.Stderr)))
	netLog := log.WithNetwork(string(cfg.Network))
	netLog.Debug().
		Str("backend", string(cfg.Storage.Backend)).
		Bool("encrypted", cfg.Storage.Encrypt).
		Msg("Signer opened")

	closed := false
	return &signer{svc: svc, store: store, ns: ns, close: func() {
		if closed {
			return
		}
		closed = true
		store.Close()
		wallet.Zero(password)
		if err := db.Close(); err != nil {
			log.Storage.Error().Err(err).Msg("Close keystore")
		}
	}}
}

func deviceParams(cfg *config.Config) device.Params {
	p := device.Params{
		AddressVersion: cfg.Wallet.AddressVersion,
		WIFVersion:     cfg.Wallet.WIFVersion,
	}
	binary.BigEndian.PutUint32(p.XPubVersion[:], cfg.Wallet.XPubVersion)
	return p
}

// progressBar reports key stretching progress as a percentage on w.
func progressBar(w io.Writer) wallet.ProgressFunc {
	return func(current, total uint32) {
		fmt.Fprintf(w, "\rDeriving seed... %3d%%", current*100/total)
		if current == total {
			fmt.Fprintln(w)
		}
	}
}

// ── status ──────────────────────────────────────────────────────────────

func cmdStatus(s *signer, cfg *config.Config) {
	pages, err := s.store.Inspect()
	if err != nil {
		fatal("%s", commander.Message(err))
	}

	fmt.Printf("Network:  %s\n", cfg.Network)
	fmt.Printf("Storage:  %s", cfg.Storage.Backend)
	if cfg.Storage.Backend == config.BackendBadger {
		fmt.Printf(" (%s)", cfg.KeystoreDir())
	}
	fmt.Println()
	for _, p := range pages {
		sealed := ""
		if p.Sealed {
			sealed = ", sealed"
		}
		fmt.Printf("  %-10s %s%s\n", p.Name, p.State, sealed)
	}
}

// ── seed ────────────────────────────────────────────────────────────────

func cmdSeed(sig *device.Service, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	generate := fs.Bool("generate", false, "Generate a new mnemonic instead of prompting for one")
	strength := fs.Int("strength", cfg.Wallet.Strength, "Entropy bits for a generated mnemonic")
	withPass := fs.Bool("passphrase", false, "Prompt for a BIP-39 passphrase")
	fs.Parse(args)

	req := device.SeedRequest{Strength: *strength}
	defer req.Wipe()

	if !*generate {
		m, err := readSecret("Mnemonic: ")
		if err != nil {
			fatal("read mnemonic: %v", err)
		}
		if len(m) == 0 {
			fatal("empty mnemonic (use --generate to create one)")
		}
		req.Mnemonic = m
	}

	if *withPass {
		pass, err := readPassword("Passphrase: ")
		if err != nil {
			fatal("read passphrase: %v", err)
		}
		confirm, err := readPassword("Confirm passphrase: ")
		if err != nil {
			wallet.Zero(pass)
			fatal("read passphrase: %v", err)
		}
		match := bytes.Equal(pass, confirm)
		wallet.Zero(confirm)
		if !match {
			wallet.Zero(pass)
			fatal("passphrases do not match")
		}
		req.Passphrase = pass
	}

	if err := sig.Seed(req); err != nil {
		fatal("%s", commander.Message(err))
	}

	if *generate {
		mnemonic, err := sig.Mnemonic()
		if err != nil {
			fatal("%s", commander.Message(err))
		}
		fmt.Println("Mnemonic (write this down!):")
		fmt.Printf("  %s\n\n", mnemonic)
		wallet.Zero(mnemonic)
	}
	fmt.Println("Master key stored.")
}

// ── queries ─────────────────────────────────────────────────────────────

func cmdXPub(sig *device.Service, args []string) {
	if len(args) != 1 {
		fatal("Usage: klingsign-cli xpub <path>")
	}
	xpub, err := sig.XPub(args[0])
	if err != nil {
		fatal("%s", commander.Message(err))
	}
	fmt.Println(xpub)
}

func cmdAddress(sig *device.Service, args []string) {
	if len(args) != 1 {
		fatal("Usage: klingsign-cli address <path>")
	}
	addr, err := sig.Address(args[0])
	if err != nil {
		fatal("%s", commander.Message(err))
	}
	fmt.Println(addr)
}

func cmdSign(sig *device.Service, args []string) {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	digest := fs.String("digest", "", "32-byte digest as hex")
	path := fs.String("path", "", "Key path, e.g. m/44'/0'/0'/0/0")
	der := fs.Bool("der", false, "Output a DER-encoded signature")
	fs.Parse(args)

	if *digest == "" || *path == "" {
		fatal("Usage: klingsign-cli sign --digest <hex> --path <path> [--der]")
	}

	var (
		sigHex string
		pub    [wallet.PublicKeySize]byte
	)
	if *der {
		s, p, err := sig.SignDER(*digest, *path)
		if err != nil {
			fatal("%s", commander.Message(err))
		}
		sigHex, pub = hex.EncodeToString(s), p
	} else {
		s, p, err := sig.Sign(*digest, *path)
		if err != nil {
			fatal("%s", commander.Message(err))
		}
		sigHex, pub = hex.EncodeToString(s[:]), p
	}

	fmt.Printf("Signature: %s\n", sigHex)
	fmt.Printf("PubKey:    %s\n", hex.EncodeToString(pub[:]))
}

// ── secrets ─────────────────────────────────────────────────────────────

func cmdBackup(sig *device.Service) {
	mnemonic, err := sig.Mnemonic()
	if err != nil {
		fatal("%s", commander.Message(err))
	}
	defer wallet.Zero(mnemonic)
	fmt.Printf("%s\n", mnemonic)
}

func cmdExportKey(sig *device.Service, args []string) {
	if len(args) != 1 {
		fatal("Usage: klingsign-cli export-key <path>")
	}
	wif, err := sig.ExportWIF(args[0])
	if err != nil {
		fatal("%s", commander.Message(err))
	}
	fmt.Fprintln(os.Stderr, "Warning: anyone holding this key can spend its funds")
	fmt.Println(wif)
}

func cmdErase(s *signer, args []string) {
	fs := flag.NewFlagSet("erase", flag.ExitOnError)
	yes := fs.Bool("yes", false, "Skip confirmation")
	purge := fs.Bool("purge", false, "Also delete the erased pages from the keystore")
	fs.Parse(args)

	if !*yes {
		fmt.Fprint(os.Stderr, "Erase the stored master key and mnemonic? Type 'erase' to confirm: ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(line) != "erase" {
			fatal("aborted")
		}
	}
	if err := s.svc.Erase(); err != nil {
		fatal("%s", commander.Message(err))
	}
	fmt.Println("Key material erased.")

	if *purge {
		n, err := s.ns.Purge()
		if err != nil {
			fatal("purge keystore: %v", err)
		}
		fmt.Printf("Removed %d pages.\n", n)
	}
}

// ── dispatch ────────────────────────────────────────────────────────────

func cmdDispatch(sig *device.Service, cfg *config.Config, args []string) {
	var input []byte
	switch len(args) {
	case 0:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fatal("read stdin: %v", err)
		}
		input = data
	case 1:
		input = []byte(args[0])
	default:
		fatal("Usage: klingsign-cli dispatch [<json>]")
	}
	defer wallet.Zero(input)

	reply, err := commander.New(sig, cfg.Wallet.ReplyBuffer).Dispatch(input)
	os.Stdout.Write(append(reply, '\n'))
	wallet.Zero(reply)
	if err != nil {
		os.Exit(1)
	}
}

func cmdWordlist() {
	w := bufio.NewWriter(os.Stdout)
	for _, word := range wallet.Wordlist() {
		w.WriteString(word)
		w.WriteByte('\n')
	}
	w.Flush()
}

// ── Input helpers ───────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// readSecret reads a hidden line from a terminal, or one line from
// piped stdin.
func readSecret(prompt string) ([]byte, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		return readPassword(prompt)
	}
	line, err := bufio.NewReader(os.Stdin).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		wallet.Zero(line)
		return nil, err
	}
	out := bytes.Clone(bytes.TrimSpace(line))
	wallet.Zero(line)
	return out, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
