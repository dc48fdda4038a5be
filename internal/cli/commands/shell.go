package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leapolap/internal/engine"
	"github.com/leapstack-labs/leapolap/internal/schema"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/spf13/cobra"
)

// NewShellCommand creates the shell command.
func NewShellCommand() *cobra.Command {
	var cube string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run member requests interactively against one engine",
		Long: `Start an interactive shell over a single engine. The member cache lives
as long as the shell, so repeated requests show what the cache saves.

Type .help for commands, .quit to exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return runShell(cmd, cc, cube)
		},
	}
	cmd.Flags().StringVarP(&cube, "cube", "c", "", "Initial cube (default: first cube of the schema)")
	return cmd
}

// shellState is the evaluation context the shell carries between lines.
type shellState struct {
	req engine.Request
}

func runShell(cmd *cobra.Command, cc *CommandContext, cube string) error {
	historyFile := filepath.Join(filepath.Dir(cc.Cfg.StatePath), "shell_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt(cube),
		HistoryFile:     historyFile,
		AutoComplete:    newShellCompleter(cc.Engine.Schema()),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	st := &shellState{req: cc.request(cube, nil, "")}
	rl.SetPrompt(prompt(st.req.Cube))

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "LeapOLAP shell (schema: %s, cube: %s)\n", cc.Engine.Schema().Name, st.req.Cube)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == ".quit" || line == ".exit" {
			break
		}
		if err := execShellLine(cmd, cc, st, line); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		rl.SetPrompt(prompt(st.req.Cube))
	}
	return nil
}

func prompt(cube string) string {
	if cube == "" {
		return "leapolap> "
	}
	return "leapolap:" + cube + "> "
}

// execShellLine runs one shell line against the engine of cc.
func execShellLine(cmd *cobra.Command, cc *CommandContext, st *shellState, line string) error {
	fields, err := shellFields(line)
	if err != nil || len(fields) == 0 {
		return err
	}
	ctx := cmd.Context()
	name, args := strings.ToLower(fields[0]), fields[1:]

	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d argument(s), type .help", name, n)
		}
		return nil
	}
	one := func(m core.Member) error {
		if m == nil {
			return renderMembers(cc, nil)
		}
		return renderMembers(cc, []core.Member{m})
	}

	switch name {
	case ".help":
		printShellHelp(cmd.OutOrStdout())
		return nil
	case ".clear":
		_, _ = fmt.Fprint(cmd.OutOrStdout(), "\033[H\033[2J")
		return nil
	case ".cube":
		if err := need(1); err != nil {
			return err
		}
		if cc.Engine.Schema().Cube(args[0]) == nil {
			return fmt.Errorf("unknown cube %q", args[0])
		}
		st.req.Cube = args[0]
		return nil
	case ".role":
		st.req.Role = ""
		if len(args) > 0 {
			st.req.Role = args[0]
		}
		return nil
	case ".context":
		st.req.Context = args
		return nil
	case ".measure":
		st.req.Measure = ""
		if len(args) > 0 {
			st.req.Measure = strings.Join(args, " ")
		}
		return nil

	case "members":
		if err := need(1); err != nil {
			return err
		}
		ms, err := cc.Engine.LevelMembers(ctx, st.req, args[0])
		if err != nil {
			return err
		}
		return renderMembers(cc, ms)
	case "count":
		if err := need(1); err != nil {
			return err
		}
		n, err := cc.Engine.LevelMemberCount(ctx, st.req, args[0])
		if err != nil {
			return err
		}
		cc.Renderer.Println(n)
		return nil
	case "children":
		if err := need(1); err != nil {
			return err
		}
		ms, err := cc.Engine.Children(ctx, st.req, args[0])
		if err != nil {
			return err
		}
		return renderMembers(cc, ms)
	case "lookup":
		if err := need(1); err != nil {
			return err
		}
		m, err := cc.Engine.Lookup(ctx, st.req, args[0], false)
		if err != nil {
			return err
		}
		return one(m)
	case "lead":
		if err := need(2); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid offset %q", args[1])
		}
		m, err := cc.Engine.Lead(ctx, st.req, args[0], n)
		if err != nil {
			return err
		}
		return one(m)
	case "range":
		if err := need(2); err != nil {
			return err
		}
		ms, err := cc.Engine.Range(ctx, st.req, args[0], args[1])
		if err != nil {
			return err
		}
		return renderMembers(cc, ms)
	case "tuples":
		if err := need(1); err != nil {
			return err
		}
		tuples, err := cc.Engine.Tuples(ctx, st.req, args, 0)
		if err != nil {
			return err
		}
		for _, tuple := range tuples {
			cc.Renderer.Println(tupleString(tuple))
		}
		cc.Renderer.Printf("(%d tuples)\n", len(tuples))
		return nil
	case "predicate":
		if err := need(1); err != nil {
			return err
		}
		tuples := make([][]string, 0, len(args))
		for _, arg := range args {
			tuple, err := splitTuple(arg)
			if err != nil {
				return err
			}
			tuples = append(tuples, tuple)
		}
		info, err := cc.Engine.CompoundPredicate(ctx, st.req, tuples)
		if err != nil {
			return err
		}
		if info.Predicate() == nil {
			cc.Renderer.Printf("no predicate (satisfiable: %t)\n", info.IsSatisfiable())
			return nil
		}
		cc.Renderer.Println(info.PredicateString())
		return nil
	case "flush":
		hierarchy := ""
		if len(args) > 0 {
			hierarchy = args[0]
		}
		return cc.Engine.Flush(ctx, hierarchy, "shell")
	case "invalidate":
		if err := need(1); err != nil {
			return err
		}
		return cc.Engine.Invalidate(ctx, args[0], "shell")
	}
	return fmt.Errorf("unknown command: %s (type .help for commands)", fields[0])
}

// shellFields splits a line on spaces outside brackets, so
// "[Store].[Store State]" stays one field.
func shellFields(line string) ([]string, error) {
	var (
		fields []string
		cur    strings.Builder
		depth  int
	)
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '[':
			depth++
		case r == ']':
			depth--
			if depth < 0 {
				return nil, errors.New("unbalanced ']'")
			}
		case unicode.IsSpace(r) && depth == 0:
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	if depth != 0 {
		return nil, errors.New("unbalanced '['")
	}
	flush()
	return fields, nil
}

func printShellHelp(w io.Writer) {
	help := `
Requests:
  members <level>             List the members of a level
  count <level>               Count the members of a level
  children <member>           List the children of a member
  lookup <member>             Resolve a member
  lead <member> <n>           Member n positions away on the same level
  range <start> <end>         Members between two members of a level
  tuples <level>...           Cross join the members of levels
  predicate <tuple>...        Compound predicate for comma separated tuples
  flush [hierarchy]           Flush the member caches
  invalidate <member>         Remove a member from the member caches

Context:
  .cube <name>                Switch cube
  .role [name]                Evaluate as a role, or clear it
  .context [member]...        Set the context members
  .measure [name]             Set the current measure
  .clear                      Clear the screen
  .quit / .exit               Exit the shell

Unique names may contain spaces inside brackets.
`
	_, _ = fmt.Fprintln(w, help)
}

// newShellCompleter completes commands with the level and hierarchy
// names of s.
func newShellCompleter(s *schema.Schema) *readline.PrefixCompleter {
	var levels, hierarchies, cubes []readline.PrefixCompleterInterface
	for _, h := range s.Hierarchies() {
		hierarchies = append(hierarchies, readline.PcItem(h.UniqueName()))
		for _, l := range h.Levels() {
			levels = append(levels, readline.PcItem(l.UniqueName()))
		}
	}
	for _, c := range s.Cubes {
		cubes = append(cubes, readline.PcItem(c.Name()))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("members", levels...),
		readline.PcItem("count", levels...),
		readline.PcItem("tuples", levels...),
		readline.PcItem("children"),
		readline.PcItem("lookup"),
		readline.PcItem("lead"),
		readline.PcItem("range"),
		readline.PcItem("predicate"),
		readline.PcItem("flush", hierarchies...),
		readline.PcItem("invalidate"),
		readline.PcItem(".cube", cubes...),
		readline.PcItem(".role"),
		readline.PcItem(".context"),
		readline.PcItem(".measure"),
		readline.PcItem(".help"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
