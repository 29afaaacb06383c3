// Package repl is the interactive approval queue: a readline shell for
// reviewing pending auto-fixes one by one before anything executes.
package repl

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/cadencehq/foresight/internal/types"
)

// Queue is the slice of the action engine the REPL drives.
type Queue interface {
	Pending(ctx context.Context, projectID string) ([]*types.AutoFixItem, error)
	Approve(ctx context.Context, id string) error
	Reject(ctx context.Context, id string) error
}

// REPL is the interactive review shell.
type REPL struct {
	queue     Queue
	projectID string
	rl        *readline.Instance
	ctx       context.Context

	// items is the numbered view from the last list, so approve/reject
	// can take short indexes instead of UUIDs.
	items    []*types.AutoFixItem
	commands map[string]func(args []string) error
}

// Config holds REPL configuration.
type Config struct {
	Queue     Queue
	ProjectID string
}

// New creates a review REPL.
func New(cfg *Config) (*REPL, error) {
	if cfg.Queue == nil {
		return nil, fmt.Errorf("approval queue is required")
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}

	r := &REPL{
		queue:     cfg.Queue,
		projectID: cfg.ProjectID,
		commands:  make(map[string]func(args []string) error),
	}
	r.registerCommands()
	return r, nil
}

// Run starts the review loop and blocks until the user exits.
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("foresight> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()
	if err := r.cmdList(nil); err != nil {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("%s %v\n", red("Error:"), err)
	}

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if err == io.EOF {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("Error:"), err)
		}
	}
}

func (r *REPL) processInput(line string) error {
	parts := strings.Fields(line)
	command := parts[0]
	args := parts[1:]

	handler, ok := r.commands[command]
	if !ok {
		return fmt.Errorf("unknown command %q, type 'help' for the command list", command)
	}
	return handler(args)
}

func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["list"] = r.cmdList
	r.commands["ls"] = r.cmdList
	r.commands["show"] = r.cmdShow
	r.commands["approve"] = r.cmdApprove
	r.commands["reject"] = r.cmdReject
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
}

func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("Foresight auto-fix review"))
	fmt.Println("Approve or reject pending auto-fixes before they execute.")
	fmt.Println("Type 'help' for available commands, 'exit' to quit.")
	fmt.Println()
}

// cmdList refreshes and prints the pending queue, ranked the same way
// the execution pipeline would pick them up.
func (r *REPL) cmdList(args []string) error {
	items, err := r.queue.Pending(r.ctx, r.projectID)
	if err != nil {
		return fmt.Errorf("loading pending auto-fixes: %w", err)
	}
	r.items = items

	if len(items) == 0 {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s\n", gray("No pending auto-fixes."))
		return nil
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("%s\n", yellow(fmt.Sprintf("Pending auto-fixes (%d):", len(items))))
	for i, item := range items {
		fmt.Printf("  [%d] %s\n", i+1, item.Title)
		fmt.Printf("      risk=%s urgency=%.2f confidence=%.2f files=%s\n",
			item.RiskLevel, item.UrgencyScore, item.ConfidenceScore,
			strings.Join(item.TargetFiles, ", "))
	}
	fmt.Println()
	return nil
}

func (r *REPL) cmdShow(args []string) error {
	item, err := r.resolveItem(args)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Printf("\n%s\n", cyan(item.Title))
	fmt.Printf("  ID:         %s\n", gray(item.ID))
	fmt.Printf("  Risk:       %s\n", item.RiskLevel)
	fmt.Printf("  Urgency:    %.2f\n", item.UrgencyScore)
	fmt.Printf("  Confidence: %.2f\n", item.ConfidenceScore)
	fmt.Printf("  Files:      %s\n", strings.Join(item.TargetFiles, ", "))
	fmt.Printf("  Expires:    %s\n", item.ExpiresAt.Format("2006-01-02 15:04"))
	if item.PatternID != "" {
		fmt.Printf("  Pattern:    %s\n", gray(item.PatternID))
	}
	fmt.Printf("\n%s\n%s\n\n", gray("Requirement:"), item.GeneratedRequirement)
	return nil
}

func (r *REPL) cmdApprove(args []string) error {
	item, err := r.resolveItem(args)
	if err != nil {
		return err
	}
	if err := r.queue.Approve(r.ctx, item.ID); err != nil {
		return fmt.Errorf("approving %s: %w", item.ID, err)
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s Approved: %s\n", green("✓"), item.Title)
	return r.cmdList(nil)
}

func (r *REPL) cmdReject(args []string) error {
	item, err := r.resolveItem(args)
	if err != nil {
		return err
	}
	if err := r.queue.Reject(r.ctx, item.ID); err != nil {
		return fmt.Errorf("rejecting %s: %w", item.ID, err)
	}

	red := color.New(color.FgRed).SprintFunc()
	fmt.Printf("%s Rejected: %s\n", red("✗"), item.Title)
	return r.cmdList(nil)
}

func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s\n", cyan("Available Commands:"))

	commands := []struct{ name, desc string }{
		{"list, ls", "Refresh and show the pending queue"},
		{"show <n|id>", "Show one auto-fix in full"},
		{"approve <n|id>", "Approve an auto-fix for execution"},
		{"reject <n|id>", "Reject an auto-fix"},
		{"help, ?", "Show this help message"},
		{"exit, quit", "Exit the review shell"},
	}
	for _, cmd := range commands {
		fmt.Printf("  %-16s %s\n", green(cmd.name), cmd.desc)
	}
	fmt.Println()
	return nil
}

func (r *REPL) cmdExit(args []string) error {
	fmt.Println("Goodbye!")
	return io.EOF
}

// resolveItem accepts either a 1-based index into the last listing or a
// full auto-fix ID.
func (r *REPL) resolveItem(args []string) (*types.AutoFixItem, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected one argument: an index from 'list' or an auto-fix ID")
	}

	if n, err := strconv.Atoi(args[0]); err == nil {
		if n < 1 || n > len(r.items) {
			return nil, fmt.Errorf("index %d out of range, run 'list' first", n)
		}
		return r.items[n-1], nil
	}

	for _, item := range r.items {
		if item.ID == args[0] {
			return item, nil
		}
	}
	return nil, fmt.Errorf("no pending auto-fix %q, run 'list' to refresh", args[0])
}
