// Package reference mints payment references of the form
// PAY-<unix millis>-<16 hex chars>.
package reference

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

const (
	Prefix      = "PAY"
	randomBytes = 8
)

var pattern = regexp.MustCompile(`^PAY-\d+-[0-9a-f]{16}$`)

// Generator produces payment references.
type Generator interface {
	New() (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() (string, error)

func (f GeneratorFunc) New() (string, error) { return f() }

type cryptoGenerator struct {
	now func() time.Time
}

// Default uses the wall clock and crypto/rand.
var Default Generator = cryptoGenerator{now: time.Now}

// New returns a reference from the default generator.
func New() (string, error) {
	return Default.New()
}

func (g cryptoGenerator) New() (string, error) {
	buf := make([]byte, randomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return fmt.Sprintf("%s-%d-%s", Prefix, g.now().UnixMilli(), hex.EncodeToString(buf)), nil
}

// Valid reports whether s has the reference format.
func Valid(s string) bool {
	return pattern.MatchString(s)
}
