package verify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/squadracorsepolito/acmelib"
)

// LoadDBCFile imports the DBC file with acmelib and returns a [Checker]
// over the messages sent by every node of the bus.
func LoadDBCFile(path string) (*Checker, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	busName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	bus, err := acmelib.ImportDBCFile(busName, file)
	if err != nil {
		return nil, fmt.Errorf("verify: failed to import %s: %w", path, err)
	}

	messages := []*acmelib.Message{}
	for _, nodeInt := range bus.NodeInterfaces() {
		messages = append(messages, nodeInt.SentMessages()...)
	}

	return NewChecker(messages), nil
}
