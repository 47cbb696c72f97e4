// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
)

// ptermLogger narrates Migrate/Rollback progress to the terminal with a
// spinner per migration.
type ptermLogger struct {
	spinner *pterm.SpinnerPrinter
}

func newPtermLogger() *ptermLogger {
	return &ptermLogger{}
}

func (l *ptermLogger) MigrationStart(version int, name string) {
	l.spinner, _ = pterm.DefaultSpinner.WithText(fmt.Sprintf("Applying %04d_%s...", version, name)).Start()
}

func (l *ptermLogger) MigrationComplete(version int, name string) {
	if l.spinner != nil {
		l.spinner.Success(fmt.Sprintf("Applied %04d_%s", version, name))
	}
}

func (l *ptermLogger) MigrationRollback(version int, name string) {
	pterm.Success.Println(fmt.Sprintf("Rolled back %04d_%s", version, name))
}

func (l *ptermLogger) Info(msg string) {
	pterm.Info.Println(msg)
}
