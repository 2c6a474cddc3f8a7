package transport

import (
	"encoding/base32"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// OnionSuffix is the suffix shared by all onion addresses.
const OnionSuffix = ".onion"

// onionV3Version is the version byte embedded in v3 addresses.
const onionV3Version = 0x03

// onionV3Pattern matches v3 onion addresses (56 base32 characters + .onion).
var onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)

// checksumPrefix is the prefix hashed into the v3 address checksum.
var checksumPrefix = []byte(".onion checksum")

// IsOnion reports whether host is in the .onion pseudo-TLD.
func IsOnion(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), OnionSuffix)
}

// IsValidV3Address checks the format and the embedded checksum of a v3
// onion address. The address must include the ".onion" suffix.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, OnionSuffix)))
	if err != nil || len(decoded) != 35 {
		return false
	}

	// pubkey (32) || checksum (2) || version (1)
	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != onionV3Version {
		return false
	}

	expected := computeV3Checksum(pubkey, version)
	return checksum[0] == expected[0] && checksum[1] == expected[1]
}

// computeV3Checksum returns the first 2 bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

// HostValidator returns a function that rejects hosts the selected transport
// cannot reach. Onion hosts must be valid v3 addresses and need an
// anonymizing transport; every other host is accepted as is.
func HostValidator(anonymous bool) func(host string) error {
	return func(host string) error {
		if !IsOnion(host) {
			return nil
		}
		if !IsValidV3Address(host) {
			return fmt.Errorf("%w: %s", ErrInvalidOnionAddress, host)
		}
		if !anonymous {
			return ErrOnionNeedsProxy
		}
		return nil
	}
}
