// SPDX-License-Identifier: Apache-2.0

package pinning

import (
	"crypto/x509"
	"encoding/pem"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joomcode/errorx"
)

// pinTable is the on-disk form of a pin set:
//
//	[[pin]]
//	pattern = "*.supabase.co"
//	hashes  = ["sha256/primary...", "sha256/backup..."]
type pinTable struct {
	Pin []pinEntry `toml:"pin"`
}

type pinEntry struct {
	Pattern string   `toml:"pattern"`
	Hashes  []string `toml:"hashes"`
}

// LoadFile reads a pin table from a TOML file and validates it.
func LoadFile(path string) (*PinSet, error) {
	var table pinTable
	md, err := toml.DecodeFile(path, &table)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errorx.IllegalArgument.Wrap(err, "pin file %q does not exist", path).
				WithProperty(errorx.PropertyPayload(), path)
		}
		return nil, errorx.IllegalFormat.Wrap(err, "failed to parse pin file %q", path)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errorx.IllegalFormat.New("pin file %q has unknown keys: %v", path, undecoded)
	}

	return FromTable(table.entries()...)
}

// FromTable builds a pin set from pattern to hashes rows, keeping row order.
func FromTable(rows ...PatternPins) (*PinSet, error) {
	var pins []Pin
	for _, row := range rows {
		for _, h := range row.Hashes {
			pins = append(pins, Pin{Pattern: row.Pattern, Hash: h})
		}
	}
	return NewPinSet(pins...)
}

// PatternPins is one row of the pin table.
type PatternPins struct {
	Pattern string   `yaml:"pattern" json:"pattern" mapstructure:"pattern"`
	Hashes  []string `yaml:"hashes" json:"hashes" mapstructure:"hashes"`
}

func (t pinTable) entries() []PatternPins {
	out := make([]PatternPins, 0, len(t.Pin))
	for _, e := range t.Pin {
		out = append(out, PatternPins{Pattern: e.Pattern, Hashes: e.Hashes})
	}
	return out
}

// WriteTable encodes the pin set in the pin file format.
func WriteTable(w io.Writer, set *PinSet) error {
	var table pinTable
	index := map[string]int{}
	for _, p := range set.Pins() {
		i, ok := index[p.Pattern]
		if !ok {
			i = len(table.Pin)
			index[p.Pattern] = i
			table.Pin = append(table.Pin, pinEntry{Pattern: p.Pattern})
		}
		table.Pin[i].Hashes = append(table.Pin[i].Hashes, p.Hash)
	}

	if err := toml.NewEncoder(w).Encode(table); err != nil {
		return errorx.IllegalFormat.Wrap(err, "failed to encode pin table")
	}
	return nil
}

// LoadCertificates reads every PEM encoded certificate in the file.
func LoadCertificates(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errorx.IllegalArgument.Wrap(err, "failed to read certificate file %q", path).
			WithProperty(errorx.PropertyPayload(), path)
	}

	return ParseCertificates(data)
}

// ParseCertificates decodes all CERTIFICATE blocks of a PEM bundle. Other block types are skipped.
func ParseCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errorx.IllegalFormat.Wrap(err, "failed to parse certificate")
		}
		certs = append(certs, cert)
	}

	if len(certs) == 0 {
		return nil, errorx.IllegalFormat.New("no PEM certificate found")
	}

	return certs, nil
}
