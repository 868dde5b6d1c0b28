package cmds

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/findy-network/findy-cxs/agent/async"
	"github.com/findy-network/findy-wrapper-go/dto"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
)

const seedLength = 32

var ErrInvalid = errors.New("invalid command, check arguments")

type Result interface {
	JSON() ([]byte, error)
}

type Command interface {
	Validate() error
	Exec(w io.Writer) (r Result, err error)
}

// WalletCmd is the wallet part of the commands which open a persistent wallet.
type WalletCmd struct {
	WalletName string `cmd_usage:"wallet name is required"`
	WalletKey  string `cmd_usage:"wallet key is required"`
	WalletPath string
}

func (c WalletCmd) Validate() error {
	if c.WalletName == "" {
		return errors.New("wallet name cannot be empty")
	}
	return ValidateKey(c.WalletKey)
}

// ValidateKey checks that the key is base58 encoded 32 bytes.
func ValidateKey(k string) error {
	if k == "" {
		return errors.New("wallet key cannot be empty")
	}
	b, err := base58.Decode(k)
	if err != nil || len(b) != 32 {
		return errors.New("wallet key is not valid")
	}
	return nil
}

func ValidateSeed(seed string) error {
	if seed != "" && len(seed) != seedLength {
		return fmt.Errorf("seed must be empty or length of %d", seedLength)
	}
	return nil
}

// ValidateTime checks the HH:MM or HH:MM:SS format.
func ValidateTime(s string) error {
	if _, err := time.Parse("15:04", s); err == nil {
		return nil
	}
	_, err := time.Parse("15:04:05", s)
	return err
}

// ParseLoggingArgs parses glog flags like "-logtostderr=true -v=2".
func ParseLoggingArgs(s string) {
	args := make([]string, 1, 12)
	args[0] = os.Args[0]
	args = append(args, strings.Split(s, " ")...)
	orgArgs := os.Args
	os.Args = args
	flag.Parse()
	os.Args = orgArgs
}

// Call runs the async command and waits its result.
func Call(cmd uint32, f func(cmd uint32, cb async.Done) error) *async.Future {
	fut, done := async.Pending()
	if err := f(cmd, done); err != nil {
		done(cmd, dto.Result{}, err)
	}
	return fut
}

// Fprintln is fmt.Fprintln but it allows writer to be nil. Note! it throws an
// error.
func Fprintln(w io.Writer, a ...interface{}) {
	if w != nil {
		try.To1(fmt.Fprintln(w, a...))
	}
}

// Fprintf is fmt.Fprintf but it allows writer to be nil. Note! it throws an
// error.
func Fprintf(w io.Writer, format string, a ...interface{}) {
	if w != nil {
		try.To1(fmt.Fprintf(w, format, a...))
	}
}

func Fprint(w io.Writer, a ...interface{}) {
	if w != nil {
		try.To1(fmt.Fprint(w, a...))
	}
}
