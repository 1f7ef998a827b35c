// Command fob-device runs a fob against two serial ports: one toward the
// host computer and one toward the board-to-board channel. A newline on
// stdin acts as the unlock button.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fobsec/keyfob/pkg/crypto"
	"github.com/fobsec/keyfob/pkg/fob"
	"github.com/fobsec/keyfob/pkg/provision"
	"github.com/fobsec/keyfob/pkg/transport"
	"github.com/pion/logging"
)

func main() {
	var (
		hostPort  = flag.String("host", "/dev/ttyUSB0", "serial port toward the host")
		boardPort = flag.String("board", "/dev/ttyUSB1", "serial port toward the other board")
		baud      = flag.Int("baud", 115200, "serial baud rate")
		statePath = flag.String("state", "fob-state.bin", "credential record file")
		secrets   = flag.String("secrets", "", "deployment secrets file (paired build)")
		pin       = flag.String("pin", "", "pairing PIN (paired build)")
		logLevel  = flag.String("log", "info", "log level (trace, debug, info, warn, error)")
	)
	flag.Parse()

	if err := run(*hostPort, *boardPort, *baud, *statePath, *secrets, *pin, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "fob-device:", err)
		os.Exit(1)
	}
}

func run(hostPort, boardPort string, baud int, statePath, secretsPath, pin, logLevel string) error {
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = parseLogLevel(logLevel)

	host, err := transport.OpenSerial(hostPort, baud)
	if err != nil {
		return err
	}
	defer host.Close()
	board, err := transport.OpenSerial(boardPort, baud)
	if err != nil {
		return err
	}
	defer board.Close()

	config := fob.Config{
		Role:          fob.RoleUnpaired,
		HostLink:      host,
		BoardLink:     board,
		Storage:       fob.NewFileStorage(statePath),
		LoggerFactory: lf,
	}

	// A paired build carries its credentials from the deployment secrets.
	if secretsPath != "" {
		s, err := provision.LoadSecrets(secretsPath)
		if err != nil {
			return err
		}
		if pin == "" {
			return fmt.Errorf("paired build needs -pin")
		}
		config.Role = fob.RolePaired
		config.PINHash = crypto.HashPIN(pin)
		config.CarSecret = s.CarSecret
		config.FeatureKey = s.FeatureKey
	}

	d, err := fob.New(config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go watchButton(ctx, d, lf.NewLogger("button"))

	rec := d.Record()
	fmt.Printf("fob up: paired=%v features=%s\n", d.Paired(), hex.EncodeToString([]byte{rec.Features}))
	err = d.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

// watchButton treats each stdin line as one button press.
func watchButton(ctx context.Context, d *fob.Device, log logging.LeveledLogger) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		if err := d.PressButton(); err != nil {
			log.Warnf("button: %v", err)
		}
	}
}

func parseLogLevel(s string) logging.LogLevel {
	switch s {
	case "trace":
		return logging.LogLevelTrace
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
