// Package base holds the fields and flag-set plumbing every quillmeshd
// subcommand embeds, mirroring the teacher's own internal/cmd/base
// package (referenced throughout internal/cmd/commands but absent from
// the retrieval pack, so it is authored fresh here from its call sites:
// every subcommand embeds *base.Command for UI/Log, calls
// base.NewFlagSet wrapping a *flag.FlagSet, and reads FlagSet.FlagSet
// directly for flags base.FlagSet doesn't wrap itself).
package base

import (
	"bytes"
	"flag"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
)

// Command holds the collaborators every subcommand needs: a UI to talk
// to the terminal and a Logger for anything that shouldn't go to stdout.
type Command struct {
	UI  cli.Ui
	Log hclog.Logger
}

// FlagSet wraps a stdlib *flag.FlagSet, adding a Help method that
// renders every registered flag's usage the way cli.CommandHelp output
// expects it appended to a Help string.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet wraps fs for use by a Command's Flags method.
func NewFlagSet(fs *flag.FlagSet) *FlagSet {
	return &FlagSet{FlagSet: fs}
}

// Help renders this flag set's usage as a string suitable for appending
// to a subcommand's Help text.
func (f *FlagSet) Help() string {
	var buf bytes.Buffer
	fmt.Fprint(&buf, "\n\nOptions:\n\n")

	oldOutput := f.Output()
	f.SetOutput(&buf)
	f.PrintDefaults()
	f.SetOutput(oldOutput)

	return buf.String()
}
