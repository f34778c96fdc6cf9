// Package device derives the stable installation fingerprint used to
// attribute change-log entries to their originating device. The value is
// an opaque key, not a security credential.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// fingerprintLength is the number of hex characters kept from the digest.
const fingerprintLength = 16

var (
	once        sync.Once
	fingerprint string
)

// Fingerprint returns this installation's attribution key. It is computed
// once per process from environment characteristics and is stable for the
// lifetime of the installation.
func Fingerprint() string {
	once.Do(func() {
		fingerprint = compute(signals())
	})
	return fingerprint
}

// signals gathers the environment characteristics folded into the
// fingerprint: platform identity, host name, locale, and the timezone
// offset. None of them are secrets.
func signals() []string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	locale := os.Getenv("LANG")
	if locale == "" {
		locale = os.Getenv("LC_ALL")
	}

	_, tzOffset := time.Now().Zone()

	return []string{
		runtime.GOOS,
		runtime.GOARCH,
		hostname,
		locale,
		fmt.Sprintf("tz:%d", tzOffset),
	}
}

func compute(parts []string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}
