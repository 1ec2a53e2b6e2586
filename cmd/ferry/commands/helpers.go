package commands

import (
	"errors"
	"net"
	"strconv"

	"github.com/go-playground/validator/v10"
)

const (
	addressFlagDesc = `Address of the ferry server. Accepted formats:
  - 127.0.0.1
  - ::1
  - somedomain.com
	`
	legacyHeaderFlagDesc = "Declare every argument in the batch header, even files that cannot be read"
)

var validate = validator.New()
var ErrInvalidAddress = errors.New("invalid address provided")

// validateAddress validates a hostname or IP, optionally with a port.
func validateAddress(addr string) error {
	// IPv4 and IPv6 address validation.
	if err := validate.Var(addr, "ip"); err == nil {
		return nil
	}
	// IPv4 or IPv6 or domain or localhost.
	if err := validate.Var(addr, "hostname"); err == nil {
		return nil
	}
	// IPv4 or domain or localhost and a port.
	if err := validate.Var(addr, "hostname_port"); err == nil {
		return nil
	}

	// hostname_port does not accept bracketed IPv6 hosts.
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return ErrInvalidAddress
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		return ErrInvalidAddress
	}
	if err := validate.Var(host, "ip"); err != nil {
		return ErrInvalidAddress
	}
	return nil
}
