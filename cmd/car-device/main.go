// Command car-device runs a car against two serial ports: the
// board-to-board channel toward a fob, and the host port where released
// payloads are written.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fobsec/keyfob/pkg/car"
	"github.com/fobsec/keyfob/pkg/provision"
	"github.com/fobsec/keyfob/pkg/transport"
	"github.com/pion/logging"
)

func main() {
	var (
		hostPort  = flag.String("host", "/dev/ttyUSB0", "serial port toward the host")
		boardPort = flag.String("board", "/dev/ttyUSB1", "serial port toward the fob")
		baud      = flag.Int("baud", 115200, "serial baud rate")
		secrets   = flag.String("secrets", "secrets.json", "deployment secrets file")
		unlockMsg = flag.String("unlock-msg", "unlocked", "payload released on unlock")
		logLevel  = flag.String("log", "info", "log level (trace, debug, info, warn, error)")
	)
	var features featureFlags
	flag.Var(&features, "feature-msg", "payload released for a feature, repeatable in feature order")
	flag.Parse()

	if err := run(*hostPort, *boardPort, *baud, *secrets, *unlockMsg, features, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "car-device:", err)
		os.Exit(1)
	}
}

func run(hostPort, boardPort string, baud int, secretsPath, unlockMsg string, features featureFlags, logLevel string) error {
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = parseLogLevel(logLevel)

	s, err := provision.LoadSecrets(secretsPath)
	if err != nil {
		return err
	}

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

	fp := make([][]byte, len(features))
	for i, f := range features {
		fp[i] = []byte(f)
	}

	d, err := car.New(car.Config{
		Secret:        s.CarSecret,
		Store:         car.NewMemoryPayloadStore([]byte(unlockMsg), fp...),
		BoardLink:     board,
		HostOut:       host,
		LoggerFactory: lf,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("car up")
	err = d.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

// featureFlags collects repeated -feature-msg values.
type featureFlags []string

func (f *featureFlags) String() string { return fmt.Sprint([]string(*f)) }

func (f *featureFlags) Set(v string) error {
	*f = append(*f, v)
	return nil
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
