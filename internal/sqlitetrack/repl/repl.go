package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nsqlite/sqlitetrack/internal/sqlitetrack/config"
	"github.com/nsqlite/sqlitetrack/internal/sqlitetrack/stats"
	"github.com/nsqlite/sqlitetrack/internal/sqlitetrack/styled"
	"github.com/nsqlite/sqlitetrack/internal/trackdb"
	"github.com/nsqlite/sqlitetrack/internal/util/sysutil"
	"github.com/peterh/liner"
)

type Repl struct {
	conf        config.Config
	conn        *trackdb.Conn
	ctx         context.Context
	stop        context.CancelFunc
	out         io.Writer
	historyPath string
	stats       *stats.Stats
	inTx        bool
}

func NewRepl(
	ctx context.Context,
	stop context.CancelFunc,
	conf config.Config,
	conn *trackdb.Conn,
	out io.Writer,
) *Repl {
	return &Repl{
		conf:        conf,
		conn:        conn,
		ctx:         ctx,
		stop:        stop,
		out:         out,
		historyPath: filepath.Join(os.TempDir(), ".sqlitetrack_history"),
		stats:       stats.New(10 * time.Second),
	}
}

// Start prints the welcome message and reads commands until the user
// quits or the context is done.
func (r *Repl) Start() error {
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "Connected to %s (%s)\n", r.conn.Path(), r.conf.OpenFlags())
	fmt.Fprintln(r.out, `Enter ".help" for usage hints and ".quit" or "CTRL+C" to quit`)
	fmt.Fprintln(r.out)

	for {
		select {
		case <-r.ctx.Done():
			return nil
		default:
			input := r.prompt()
			if quit := r.execute(input); quit {
				r.Shutdown()
				return nil
			}
		}
	}
}

// execute runs one line of input and reports whether the REPL should
// stop.
func (r *Repl) execute(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}

	command, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(command) {
	case "exit", ".exit", ".quit":
		return true
	case "clear", ".clear":
		sysutil.ClearTerminal(r.out)
	case "help", ".help":
		cmdHelp(r)
	case ".tables":
		cmdQuery(r, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	case ".schema":
		cmdQuery(r, `SELECT sql FROM sqlite_master WHERE sql IS NOT NULL ORDER BY name`)
	case ".stats":
		cmdStats(r, arg)
	case ".backup":
		cmdBackup(r, arg)
	case ".restore":
		cmdRestore(r, arg)
	default:
		if strings.HasPrefix(input, ".") {
			fmt.Fprintln(r.out, "Unknown command, type .help for usage hints")
			return false
		}
		cmdQuery(r, input)
	}

	return false
}

// Shutdown stops the REPL.
func (r *Repl) Shutdown() {
	r.stats.Close()
	r.stop()
}

// printError prints err in the error color.
func (r *Repl) printError(err error) {
	styled.ErrorColor().Fprintf(r.out, "Error: %s\n", err)
}

// prompt shows the prompt and reads the input from the user.
func (r *Repl) prompt() string {
	label := "sqlitetrack> "
	if r.inTx {
		label = "sqlitetrack(tx)> "
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(cmdHelpCompleter)

	if file, err := os.Open(r.historyPath); err == nil {
		_, _ = line.ReadHistory(file)
		file.Close()
	}

	prompt, err := line.Prompt(label)
	if err != nil {
		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Fprintln(r.out, "CTRL+C pressed, exiting...")
			return ".quit"
		}
		return ""
	}

	line.AppendHistory(prompt)
	if file, err := os.Create(r.historyPath); err == nil {
		_, _ = line.WriteHistory(file)
		file.Close()
	}

	return strings.TrimSpace(prompt)
}
