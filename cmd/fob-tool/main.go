// Command fob-tool is the deployment owner's host tool. It generates
// deployment secrets and drives a fob over its host serial port: checking
// pairing status, starting a pairing, and enabling features.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fobsec/keyfob/pkg/provision"
	"github.com/fobsec/keyfob/pkg/securechannel"
	"github.com/fobsec/keyfob/pkg/transport"
	"github.com/fobsec/keyfob/pkg/wire"
)

const replyTimeout = 5 * time.Second

var errNacked = errors.New("fob refused the command")

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "gen-secrets":
		err = cmdGenSecrets(os.Args[2:])
	case "check":
		err = cmdCheck(os.Args[2:])
	case "pair":
		err = cmdPair(os.Args[2:])
	case "enable":
		err = cmdEnable(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "fob-tool:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: fob-tool <command> [flags]

commands:
  gen-secrets  generate a deployment secrets file
  check        query a fob's pairing status
  pair         start pairing on an unpaired fob
  enable       enable a feature on a paired fob`)
}

func cmdGenSecrets(args []string) error {
	fs := flag.NewFlagSet("gen-secrets", flag.ExitOnError)
	out := fs.String("out", "secrets.json", "output file")
	fs.Parse(args)

	s, err := provision.GenerateSecrets(nil)
	if err != nil {
		return err
	}
	if err := provision.SaveSecrets(*out, s); err != nil {
		return err
	}
	fmt.Println("secrets written to", *out)
	return nil
}

func cmdCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	port := fs.String("port", "/dev/ttyUSB0", "fob host serial port")
	baud := fs.Int("baud", 115200, "serial baud rate")
	paired := fs.Bool("paired", true, "expect a paired fob (false expects unpaired)")
	fs.Parse(args)

	payload := provision.PairedModePayload()
	if !*paired {
		payload = provision.UnpairedModePayload()
	}
	if err := exchange(*port, *baud, payload); err != nil {
		return err
	}
	fmt.Println("fob confirmed")
	return nil
}

func cmdPair(args []string) error {
	fs := flag.NewFlagSet("pair", flag.ExitOnError)
	port := fs.String("port", "/dev/ttyUSB0", "unpaired fob host serial port")
	baud := fs.Int("baud", 115200, "serial baud rate")
	pin := fs.String("pin", "", "pairing PIN")
	fs.Parse(args)

	if *pin == "" {
		return fmt.Errorf("pair: -pin is required")
	}
	if err := exchange(*port, *baud, provision.PinTransferPayload(*pin)); err != nil {
		return err
	}
	fmt.Println("pairing complete")
	return nil
}

func cmdEnable(args []string) error {
	fs := flag.NewFlagSet("enable", flag.ExitOnError)
	port := fs.String("port", "/dev/ttyUSB0", "paired fob host serial port")
	baud := fs.Int("baud", 115200, "serial baud rate")
	secrets := fs.String("secrets", "secrets.json", "deployment secrets file")
	pin := fs.String("pin", "", "pairing PIN")
	feature := fs.Uint("feature", 0, "feature number to enable")
	fs.Parse(args)

	if *pin == "" {
		return fmt.Errorf("enable: -pin is required")
	}
	if *feature >= securechannel.NumFeatures {
		return fmt.Errorf("enable: feature number out of range")
	}

	s, err := provision.LoadSecrets(*secrets)
	if err != nil {
		return err
	}
	payload, err := provision.EnableFeaturePayload(s, *pin, uint8(*feature))
	if err != nil {
		return err
	}
	if err := exchange(*port, *baud, payload); err != nil {
		return err
	}
	fmt.Printf("feature %d enabled\n", *feature)
	return nil
}

// exchange sends one framed command to a fob and waits for its ACK.
func exchange(port string, baud int, payload []byte) error {
	link, err := transport.OpenSerial(port, baud)
	if err != nil {
		return err
	}
	defer link.Close()

	data, err := wire.Encode(payload)
	if err != nil {
		return err
	}
	if err := link.Write(data); err != nil {
		return err
	}

	f, err := awaitReply(link, replyTimeout)
	if err != nil {
		return err
	}
	switch securechannel.Command(f.Command()) {
	case securechannel.CmdAck:
		return nil
	case securechannel.CmdNack:
		return errNacked
	default:
		return fmt.Errorf("unexpected reply command %#02x", f.Command())
	}
}

// awaitReply polls the link until a whole frame arrives or the deadline
// passes. Corrupt frames reset the framer and keep waiting.
func awaitReply(link transport.Link, timeout time.Duration) (*wire.Frame, error) {
	var framer wire.Framer
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		b, ok := link.ReadByte()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		f, err := framer.Feed(b)
		if err != nil {
			continue
		}
		if f != nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("no reply within %s", timeout)
}
