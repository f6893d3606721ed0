package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/layer-3/questproof/adapters/wallet"
)

func keygen(c *cli.Context) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return errors.Wrap(err, "failed to generate key")
	}

	fmt.Fprintf(c.App.Writer, "private key: 0x%s\n", hex.EncodeToString(crypto.FromECDSA(key)))
	fmt.Fprintf(c.App.Writer, "address:     %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
	return nil
}

func sign(c *cli.Context) error {
	message, err := readMessage(c.String("message"), c.String("file"), os.Stdin)
	if err != nil {
		return err
	}

	sig, err := wallet.SignMessage(c.String("key"), message)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, sig)
	return nil
}

// readMessage picks the message to sign. Content read from a file or stdin
// loses one trailing line break, since challenge messages never end in one.
func readMessage(message, path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	switch path {
	case "":
	case "-":
		if data, err = io.ReadAll(stdin); err != nil {
			return "", errors.Wrap(err, "failed to read message from stdin")
		}
	default:
		if data, err = os.ReadFile(path); err != nil {
			return "", errors.Wrapf(err, "failed to read message file %s", path)
		}
	}
	if path != "" {
		message = string(data)
		if strings.HasSuffix(message, "\n") {
			message = strings.TrimSuffix(strings.TrimSuffix(message, "\n"), "\r")
		}
	}

	if message == "" {
		return "", errors.New("either --message or --file is required")
	}
	return message, nil
}
