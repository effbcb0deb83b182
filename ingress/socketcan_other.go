//go:build !linux

package ingress

import (
	"errors"
	"time"
)

func openRawSocket(_ string, _ []Filter, _ time.Duration) (rawSocket, error) {
	return nil, errors.New("socketcan is only available on linux")
}
