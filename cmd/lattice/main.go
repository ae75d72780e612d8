package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// Context represents the global context for commands
type Context struct {
	Config      string
	Environment string
	Verbose     bool
	Quiet       bool
}

// CLI represents the command-line interface
var CLI struct {
	Config      string `help:"Configuration file path" default:"lattice.yaml"`
	Environment string `help:"Database environment to use from config" short:"e" default:"development"`
	Verbose     bool   `help:"Enable verbose output" short:"v"`
	Quiet       bool   `help:"Suppress output" short:"q"`

	Init    InitCmd    `cmd:"" help:"Initialize a new Lattice project"`
	Schema  SchemaCmd  `cmd:"" help:"Show the discovered schema of a collection"`
	List    ListCmd    `cmd:"" help:"List rows of a collection"`
	Get     GetCmd     `cmd:"" help:"Fetch a single row by primary key"`
	Create  CreateCmd  `cmd:"" help:"Create a row from a JSON object"`
	Update  UpdateCmd  `cmd:"" help:"Update a row from a JSON object"`
	Delete  DeleteCmd  `cmd:"" help:"Delete (or soft-delete) a row"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// VersionCmd represents the version command
type VersionCmd struct{}

// Run executes the version command
func (cmd *VersionCmd) Run() error {
	fmt.Println("Lattice v0.1.0")
	return nil
}

func main() {
	ctx := kong.Parse(&CLI)

	appCtx := &Context{
		Config:      CLI.Config,
		Environment: CLI.Environment,
		Verbose:     CLI.Verbose,
		Quiet:       CLI.Quiet,
	}

	err := ctx.Run(appCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
