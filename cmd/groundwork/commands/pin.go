// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"github.com/electricsheep/groundwork/cmd/groundwork/commands/common"
	"github.com/electricsheep/groundwork/internal/pinning"
	"github.com/joomcode/errorx"
	"github.com/spf13/cobra"
)

var (
	flagPattern string

	pinCmd = &cobra.Command{
		Use:   "pin <certificate.pem>...",
		Short: "Compute the pins of PEM encoded certificates",
		Long:  "Compute the sha256 public-key pin of every certificate in the given PEM files. With --pattern the pins are printed as a pin table entry for that host pattern",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPin,
	}
)

// CertificatePin is the pin of one certificate.
type CertificatePin struct {
	File    string `yaml:"file" json:"file"`
	Subject string `yaml:"subject" json:"subject"`
	Pin     string `yaml:"pin" json:"pin"`
}

func init() {
	common.FlagPattern.MustSetVar(pinCmd, &flagPattern, false)
}

func runPin(cmd *cobra.Command, args []string) error {
	var out []CertificatePin
	for _, file := range args {
		certs, err := pinning.LoadCertificates(file)
		if err != nil {
			return err
		}
		for _, c := range certs {
			out = append(out, CertificatePin{File: file, Subject: c.Subject.String(), Pin: pinning.ExtractPin(c)})
		}
	}

	if len(out) == 0 {
		return errorx.IllegalArgument.New("no certificates found in %v", args)
	}

	if flagPattern == "" {
		return common.Print(cmd, out)
	}

	pins := make([]pinning.Pin, 0, len(out))
	for _, p := range out {
		pins = append(pins, pinning.Pin{Pattern: flagPattern, Hash: p.Pin})
	}

	set, err := pinning.NewPinSet(pins...)
	if err != nil {
		return err
	}

	return pinning.WriteTable(cmd.OutOrStdout(), set)
}
