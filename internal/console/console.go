// Package console runs one intake interview over a line-oriented terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/BTreeMap/ChatReport/internal/flow"
	"github.com/BTreeMap/ChatReport/internal/models"
)

// QuitCommand ends the interview early.
const QuitCommand = "/quit"

// ErrQuit is returned when the respondent leaves before the interview ends.
var ErrQuit = errors.New("interview abandoned")

// Runner reads answers line by line and writes prompts and the final report.
type Runner struct {
	manager     *flow.SessionManager
	in          *bufio.Scanner
	out         io.Writer
	appointment models.Appointment
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithAppointment sets the appointment printed in the report header.
func WithAppointment(a models.Appointment) RunnerOption {
	return func(r *Runner) { r.appointment = a }
}

// NewRunner creates a console runner over the session manager.
func NewRunner(manager *flow.SessionManager, in io.Reader, out io.Writer, opts ...RunnerOption) *Runner {
	r := &Runner{manager: manager, in: bufio.NewScanner(in), out: out}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run conducts one interview. It returns the generated report once the
// interview completes, or ErrQuit if input ends or the respondent quits.
func (r *Runner) Run(ctx context.Context, respondentName string) (models.Report, error) {
	sess, turn, err := r.manager.Create(ctx, respondentName)
	if err != nil {
		return models.Report{}, err
	}
	slog.Debug("Runner.Run: interview started", "session_id", sess.ID())

	for !turn.Complete {
		r.printTurn(turn)
		line, ok := r.readLine()
		if !ok || strings.EqualFold(strings.TrimSpace(line), QuitCommand) {
			fmt.Fprintln(r.out, "\nYour answers so far have been saved. Goodbye.")
			slog.Info("Runner.Run: interview abandoned", "session_id", sess.ID())
			return models.Report{}, ErrQuit
		}
		if err := ctx.Err(); err != nil {
			return models.Report{}, err
		}
		if _, turn, err = r.manager.Submit(ctx, sess.ID(), line); err != nil {
			return models.Report{}, err
		}
	}
	r.printTurn(turn)

	rep, err := r.manager.Finalize(ctx, sess.ID(), r.appointment)
	if err != nil {
		return models.Report{}, err
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, rep.Text)
	return rep, nil
}

func (r *Runner) readLine() (string, bool) {
	fmt.Fprint(r.out, "> ")
	if !r.in.Scan() {
		return "", false
	}
	return r.in.Text(), true
}

func (r *Runner) printTurn(turn models.Turn) {
	for _, msg := range turn.Messages {
		fmt.Fprintln(r.out, msg)
	}
	if turn.Prompt == nil {
		return
	}
	if !turn.Reprompt {
		fmt.Fprintln(r.out)
	}
	fmt.Fprintln(r.out, turn.Prompt.Text)
	for i, c := range turn.Prompt.Choices {
		fmt.Fprintf(r.out, "  %d. %s\n", i+1, c)
	}
	switch turn.Prompt.InputKind {
	case models.InputSeverityScale:
		fmt.Fprintln(r.out, "  (0 = none, 10 = worst imaginable)")
	case models.InputMultiChoice, models.InputBodyRegionMultiChoice:
		fmt.Fprintln(r.out, "  (separate several answers with commas)")
	}
}
