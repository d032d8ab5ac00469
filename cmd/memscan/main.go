// memscan is a command-line process memory scanner and editor: it
// attaches to a running process, searches its address space for values
// matching a declared type, narrows the result set through repeated
// filters or a snapshot comparison, and lets you freeze or rewrite
// whatever addresses you end up caring about.
//
// Usage:
//
//	memscan [flags]
//
// Flags:
//
//	--pid <pid>           Select a process on startup
//	--scan-type <type>    Default scan type (int8, int16, int32, int64,
//	                      float32, float64, string, bytearray)
//	--aligned             Probe numeric scans at aligned offsets only
//	--config <file>       Use specified config file
//	--cwd <dir>           Run as if started in <dir> (for project config lookup)
//
// Commands (in the REPL):
//
//	processes                         List visible processes
//	select <pid>                      Target a process
//	scan <value> [type]               Run an initial value-directed scan
//	filter <value> [type]             Narrow the live candidate list
//	clear                             Discard the live candidate list
//	candidates                        Show the live candidate list
//	add <row>                         Copy a live candidate into the store
//	new [type]                        Add a blank store entry
//	del <row>                         Remove a store entry
//	shift <row> <delta>               Adjust a store entry's address
//	set <row> <value>                 Write a new value through a store entry
//	type <row> <type>                 Re-interpret a store entry's type
//	lock <row> on|off                 Freeze/unfreeze a store entry
//	store                             Show the store list
//	notes [text]                      Show or replace the session notes
//	save <path>                       Save the session
//	open <path>                       Load a session
//	snapshot take                     Capture the target's memory
//	snapshot compare <op>             Compare current memory to the snapshot
//	snapshot filter <op>              Narrow the current snapshot scan list
//	config                            Show the effective configuration
//	help                              Show this help
//	exit / quit / q                   Exit
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/kestrelwire/memscan/internal/codec"
	"github.com/kestrelwire/memscan/internal/config"
	"github.com/kestrelwire/memscan/internal/facade"
	"github.com/kestrelwire/memscan/internal/lockworker"
	"github.com/kestrelwire/memscan/internal/memio"
	"github.com/kestrelwire/memscan/internal/scanner"
	"github.com/kestrelwire/memscan/internal/snapshot"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := flag.NewFlagSet("memscan", flag.ContinueOnError)

	flagPID := flags.Int("pid", 0, "select a process on startup")
	flagScanType := flags.String("scan-type", "int32", "default scan type")
	flagAligned := flags.Bool("aligned", false, "probe numeric scans at aligned offsets only")
	flagConfig := flags.StringP("config", "c", "", "use specified config file")
	flagCwd := flags.StringP("cwd", "C", "", "run as if started in dir")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}

		return err
	}

	var overrides config.Overrides
	if flags.Changed("aligned") {
		overrides.DefaultAligned = flagAligned
	}

	workDir := *flagCwd
	if workDir == "" {
		workDir, _ = os.Getwd()
	}

	cfg, _, err := config.Load(workDir, *flagConfig, overrides, os.Environ())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	defaultType, err := codec.ParseScanType(*flagScanType)
	if err != nil {
		return fmt.Errorf("parsing --scan-type: %w", err)
	}

	mem := memio.NewReal()
	f := facade.New(mem, cfg)
	f.SnapshotType = defaultType

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := lockworker.New(mem, f, cfg.LockWriteInterval())
	worker.ErrLog = os.Stderr

	go func() { _ = worker.Run(ctx) }()

	if *flagPID != 0 {
		f.SelectProcess(*flagPID)
	}

	repl := &repl{facade: f, defaultType: defaultType, cfg: cfg}

	return repl.run()
}

// repl is the interactive command loop driving a [facade.Facade].
type repl struct {
	facade      *facade.Facade
	defaultType codec.ScanType
	cfg         config.Config
	liner       *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".memscan_history")
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		_ = f.Close()
	}

	fmt.Println("memscan - process memory scanner/editor")
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("memscan> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		if r.dispatch(line) {
			break
		}
	}

	r.saveHistory()

	return nil
}

func (r *repl) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}

	f, err := os.Create(path) //nolint:gosec // fixed filename under the user's home directory
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = r.liner.WriteHistory(f)
}

func (r *repl) completer(line string) []string {
	commands := []string{
		"processes", "select", "scan", "filter", "clear", "candidates",
		"add", "new", "del", "shift", "set", "type", "lock", "store",
		"notes", "save", "open", "snapshot", "config",
		"help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

// dispatch runs one command line, returning true if the REPL should exit.
func (r *repl) dispatch(line string) bool {
	parts := strings.Fields(line)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "exit", "quit", "q":
		fmt.Println("Bye!")

		return true

	case "help", "?":
		r.printHelp()

	case "processes", "ps":
		r.cmdProcesses()

	case "select":
		r.cmdSelect(args)

	case "scan":
		r.cmdScan(args)

	case "filter":
		r.cmdFilter(args)

	case "clear":
		r.facade.ClearScan()
		fmt.Println("OK: scan cleared")

	case "candidates":
		r.cmdCandidates()

	case "add":
		r.cmdAdd(args)

	case "new":
		r.cmdNew(args)

	case "del", "delete":
		r.cmdDel(args)

	case "shift":
		r.cmdShift(args)

	case "set":
		r.cmdSet(args)

	case "type":
		r.cmdType(args)

	case "lock":
		r.cmdLock(args)

	case "store":
		r.cmdStore()

	case "notes":
		r.cmdNotes(args)

	case "save":
		r.cmdSave(args)

	case "open":
		r.cmdOpen(args)

	case "snapshot", "snap":
		r.cmdSnapshot(args)

	case "config":
		r.cmdConfig()

	default:
		fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}

	return false
}

func (r *repl) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  processes                  List visible processes")
	fmt.Println("  select <pid>               Target a process")
	fmt.Println("  scan <value> [type]        Run an initial value-directed scan")
	fmt.Println("  filter <value> [type]      Narrow the live candidate list")
	fmt.Println("  clear                      Discard the live candidate list")
	fmt.Println("  candidates                 Show the live candidate list")
	fmt.Println("  add <row>                  Copy a live candidate into the store")
	fmt.Println("  new [type]                 Add a blank store entry")
	fmt.Println("  del <row>                  Remove a store entry")
	fmt.Println("  shift <row> <delta>        Adjust a store entry's address")
	fmt.Println("  set <row> <value>          Write a new value through a store entry")
	fmt.Println("  type <row> <type>          Re-interpret a store entry's type")
	fmt.Println("  lock <row> on|off          Freeze/unfreeze a store entry")
	fmt.Println("  store                      Show the store list")
	fmt.Println("  notes [text]               Show or replace the session notes")
	fmt.Println("  save <path>                Save the session")
	fmt.Println("  open <path>                Load a session")
	fmt.Println("  snapshot take              Capture the target's memory")
	fmt.Println("  snapshot compare <op>      Compare current memory to the snapshot")
	fmt.Println("  snapshot filter <op>       Narrow the current snapshot scan list")
	fmt.Println("  config                     Show the effective configuration")
	fmt.Println("  help                       Show this help")
	fmt.Println("  exit / quit / q            Exit")
	fmt.Println()
	fmt.Println("Operators for snapshot compare/filter: =, !=, >, <, >=, <=,")
	fmt.Println("changed, unchanged, increased, decreased")
}

func (r *repl) cmdProcesses() {
	procs, err := r.facade.ListProcesses()
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	if len(procs) == 0 {
		fmt.Println("(none)")

		return
	}

	for _, p := range procs {
		fmt.Printf("%6d  %s\n", p.PID, p.Cmdline)
	}
}

func (r *repl) cmdSelect(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: select <pid>")

		return
	}

	pid, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("Error parsing pid: %v\n", err)

		return
	}

	r.facade.SelectProcess(pid)
	fmt.Printf("OK: selected pid %d\n", pid)
}

// scanType parses the optional trailing type argument, falling back to
// the REPL's default scan type.
func (r *repl) scanType(args []string, usedArgs int) (codec.ScanType, error) {
	if len(args) <= usedArgs {
		return r.defaultType, nil
	}

	return codec.ParseScanType(args[usedArgs])
}

func (r *repl) cmdScan(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: scan <value> [type]")

		return
	}

	t, err := r.scanType(args, 1)
	if err != nil {
		fmt.Printf("Error parsing type: %v\n", err)

		return
	}

	result, err := r.facade.Scan(args[0], t)
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	r.printResult(result)
}

func (r *repl) cmdFilter(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: filter <value> [type]")

		return
	}

	t, err := r.scanType(args, 1)
	if err != nil {
		fmt.Printf("Error parsing type: %v\n", err)

		return
	}

	result, err := r.facade.Filter(args[0], t)
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	r.printResult(result)
}

func (r *repl) printResult(result scanner.Result) {
	fmt.Printf("Matches: %d\n", result.Count)
}

func (r *repl) cmdCandidates() {
	candidates := r.facade.Candidates()
	if len(candidates) == 0 {
		fmt.Println("(empty)")

		return
	}

	for i, c := range candidates {
		fmt.Printf("%3d. 0x%x  %s  %v\n", i, c.Address, c.ScanType, c.LastValue)
	}
}

func (r *repl) cmdAdd(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: add <row>")

		return
	}

	row, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("Error parsing row: %v\n", err)

		return
	}

	idx, err := r.facade.AddToStore(row)
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("OK: added to store at index %d\n", idx)
}

func (r *repl) cmdNew(args []string) {
	t := r.defaultType

	if len(args) >= 1 {
		parsed, err := codec.ParseScanType(args[0])
		if err != nil {
			fmt.Printf("Error parsing type: %v\n", err)

			return
		}

		t = parsed
	}

	idx := r.facade.NewStoreEntry(t)
	fmt.Printf("OK: new store entry at index %d\n", idx)
}

func (r *repl) cmdDel(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: del <row>")

		return
	}

	row, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("Error parsing row: %v\n", err)

		return
	}

	if err := r.facade.DeleteStoreEntry(row); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println("OK: deleted")
}

func (r *repl) cmdShift(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: shift <row> <delta>")

		return
	}

	row, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("Error parsing row: %v\n", err)

		return
	}

	delta, err := strconv.ParseInt(args[1], 0, 64)
	if err != nil {
		fmt.Printf("Error parsing delta: %v\n", err)

		return
	}

	if err := r.facade.ShiftStoreEntry(row, delta); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println("OK: shifted")
}

func (r *repl) cmdSet(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: set <row> <value>")

		return
	}

	row, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("Error parsing row: %v\n", err)

		return
	}

	value := strings.Join(args[1:], " ")

	if err := r.facade.SetStoreValue(row, value); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println("OK: written")
}

func (r *repl) cmdType(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: type <row> <type>")

		return
	}

	row, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("Error parsing row: %v\n", err)

		return
	}

	t, err := codec.ParseScanType(args[1])
	if err != nil {
		fmt.Printf("Error parsing type: %v\n", err)

		return
	}

	if err := r.facade.SetStoreType(row, t); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println("OK: type changed")
}

func (r *repl) cmdLock(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: lock <row> on|off")

		return
	}

	row, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("Error parsing row: %v\n", err)

		return
	}

	var locked bool

	switch strings.ToLower(args[1]) {
	case "on", "true", "yes", "1":
		locked = true
	case "off", "false", "no", "0":
		locked = false
	default:
		fmt.Println("Usage: lock <row> on|off")

		return
	}

	if err := r.facade.SetLock(row, locked); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println("OK: lock updated")
}

func (r *repl) cmdStore() {
	store := r.facade.Store()
	if len(store) == 0 {
		fmt.Println("(empty)")

		return
	}

	for i, c := range store {
		lock := ""
		if c.Locked {
			lock = " [locked]"
		}

		fmt.Printf("%3d. 0x%x  %s  %v%s\n", i, c.Address, c.ScanType, c.LastValue, lock)
	}
}

func (r *repl) cmdNotes(args []string) {
	if len(args) == 0 {
		fmt.Println(r.facade.NotesGet())

		return
	}

	r.facade.NotesSet(strings.Join(args, " "))
	fmt.Println("OK: notes updated")
}

func (r *repl) cmdSave(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: save <path>")

		return
	}

	if err := r.facade.SaveSession(args[0]); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("OK: saved to %s\n", args[0])
}

func (r *repl) cmdOpen(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: open <path>")

		return
	}

	if err := r.facade.OpenSession(args[0]); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("OK: loaded %s\n", args[0])
}

func (r *repl) cmdSnapshot(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: snapshot take | snapshot compare <op> | snapshot filter <op>")

		return
	}

	switch strings.ToLower(args[0]) {
	case "take":
		if err := r.facade.SnapshotTake(); err != nil {
			fmt.Printf("Error: %v\n", err)

			return
		}

		fmt.Println("OK: snapshot captured")

	case "compare":
		if len(args) < 2 {
			fmt.Println("Usage: snapshot compare <op>")

			return
		}

		r.runSnapshotOp(args[1], r.facade.SnapshotCompare)

	case "filter":
		if len(args) < 2 {
			fmt.Println("Usage: snapshot filter <op>")

			return
		}

		r.runSnapshotOp(args[1], r.facade.SnapshotFilter)

	default:
		fmt.Println("Usage: snapshot take | snapshot compare <op> | snapshot filter <op>")
	}
}

func (r *repl) runSnapshotOp(opName string, call func(codec.OpType) ([]snapshot.Scan, error)) {
	op, err := codec.ParseOp(opName)
	if err != nil {
		fmt.Printf("Error parsing operator: %v\n", err)

		return
	}

	scans, err := call(op)
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("Matches: %d\n", len(scans))

	for i, s := range scans {
		if i >= 50 {
			fmt.Printf("... (%d more)\n", len(scans)-i)

			break
		}

		fmt.Printf("%3d. 0x%x  %v\n", i, s.Address, s.ScannedValue)
	}
}

func (r *repl) cmdConfig() {
	text, err := config.Format(r.cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println(text)
}
