package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var (
	// Functional colors using SprintFunc
	sectionColor func(a ...interface{}) string
	keyColor     func(a ...interface{}) string
	okColor      func(a ...interface{}) string
	warnColor    func(a ...interface{}) string
	errColor     func(a ...interface{}) string
	grayColor    func(a ...interface{}) string
)

func init() {
	rootCmd.AddCommand(colorCmd)
	setupColors()
}

func setupColors() {
	// Degrade gracefully on dumb terminals
	if termenv.ColorProfile() == termenv.Ascii {
		color.NoColor = true
	}

	sectionColor = color.New(color.FgHiCyan, color.Bold).SprintFunc()
	keyColor = color.New(color.FgHiYellow).SprintFunc()
	okColor = color.New(color.FgGreen).SprintFunc()
	warnColor = color.New(color.FgYellow).SprintFunc()
	errColor = color.New(color.FgHiRed).SprintFunc()
	grayColor = color.New(color.FgHiBlack).SprintFunc()
}

var colorCmd = &cobra.Command{
	Use:    "color",
	Short:  "Show the color scheme in use",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("profile: %v\n", termenv.ColorProfile())
		fmt.Println(sectionColor("section"), keyColor("key"), okColor("ok"),
			warnColor("warn"), errColor("error"), grayColor("gray"))
	},
}
