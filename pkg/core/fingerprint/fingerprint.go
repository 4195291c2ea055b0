// Package fingerprint computes the content-addressed keys used for
// idempotent stage caching. Identity of "the same work" is a hash over the
// fully-resolved stage inputs, never a filesystem timestamp or a naming
// convention.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Config is the model/parameter configuration that participates in a stage
// fingerprint. The recognized option keys are enumerated; anything else is
// rejected at validation time rather than silently ignored.
type Config struct {
	Provider    string            `yaml:"provider" json:"provider"`
	Model       string            `yaml:"model" json:"model"`
	Temperature float64           `yaml:"temperature" json:"temperature"`
	MaxTokens   int               `yaml:"max_tokens" json:"max_tokens"`
	Options     map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
}

// recognizedOptions is the closed set of extra per-stage option keys.
var recognizedOptions = map[string]bool{
	"google_search":   true,
	"response_format": true,
	"top_p":           true,
	"api_key_env":     true,
}

// Validate rejects unknown option keys.
func (c Config) Validate() error {
	for k := range c.Options {
		if !recognizedOptions[k] {
			return fmt.Errorf("unrecognized stage option '%s'", k)
		}
	}
	return nil
}

// canonical serializes the configuration with stable key ordering so that
// equal configurations always hash identically.
func (c Config) canonical() []byte {
	keys := make([]string, 0, len(c.Options))
	for k := range c.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := struct {
		Provider    string      `json:"provider"`
		Model       string      `json:"model"`
		Temperature float64     `json:"temperature"`
		MaxTokens   int         `json:"max_tokens"`
		Options     [][2]string `json:"options"`
	}{
		Provider:    c.Provider,
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
	for _, k := range keys {
		ordered.Options = append(ordered.Options, [2]string{k, c.Options[k]})
	}

	b, _ := json.Marshal(ordered)
	return b
}

// Stage computes the idempotency key for one stage invocation. Fields are
// length-prefixed before hashing so no two distinct input tuples can
// concatenate to the same byte stream. SHA-256 because the key is the sole
// idempotency guard; an accidental collision would silently skip work.
func Stage(kind string, resolvedInstructions string, documentContent string, cfg Config) string {
	h := sha256.New()
	writeField(h, []byte(kind))
	writeField(h, []byte(resolvedInstructions))
	writeField(h, []byte(documentContent))
	writeField(h, cfg.canonical())
	return hex.EncodeToString(h.Sum(nil))
}

// StageMulti is Stage for stages whose document input is a set of upstream
// outputs (pairwise evaluation, combine). Order is significant: the caller
// decides whether to sort.
func StageMulti(kind string, resolvedInstructions string, parts []string, cfg Config) string {
	h := sha256.New()
	writeField(h, []byte(kind))
	writeField(h, []byte(resolvedInstructions))
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(parts)))
	h.Write(lenBuf[:])
	for _, p := range parts {
		writeField(h, []byte(p))
	}
	writeField(h, cfg.canonical())
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h interface{ Write([]byte) (int, error) }, b []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
	h.Write(lenBuf[:])
	h.Write(b)
}
