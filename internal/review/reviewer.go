// Package review puts scanned receipts in front of a reviewer and runs the
// folder batch workflow.
package review

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/zombor/receipt-tracker/internal/receipt"
)

// Decision is the outcome of reviewing one analysis.
type Decision int

const (
	Approve Decision = iota
	Reject
)

func (d Decision) String() string {
	if d == Approve {
		return "approve"
	}
	return "reject"
}

// Reviewer decides whether a pending analysis is saved.
type Reviewer interface {
	Review(ctx context.Context, a *receipt.Analysis) (Decision, error)
}

// Auto approves every analysis.
type Auto struct{}

// Review implements Reviewer.
func (Auto) Review(context.Context, *receipt.Analysis) (Decision, error) {
	return Approve, nil
}

// Prompt shows each analysis on a terminal and asks for a yes/no answer.
// An empty answer approves; end of input rejects.
type Prompt struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompt creates a Prompt reading answers from in.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

// Review implements Reviewer.
func (p *Prompt) Review(ctx context.Context, a *receipt.Analysis) (Decision, error) {
	RenderAnalysis(p.out, a)

	for {
		if err := ctx.Err(); err != nil {
			return Reject, err
		}
		fmt.Fprint(p.out, "Approve this receipt? [Y/n] ")

		line, err := p.in.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		if err != nil && answer == "" {
			if err == io.EOF {
				fmt.Fprintln(p.out)
				return Reject, nil
			}
			return Reject, fmt.Errorf("reading answer: %w", err)
		}

		switch answer {
		case "", "y", "yes":
			return Approve, nil
		case "n", "no":
			return Reject, nil
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
}
