// Package session implements the persisted session format (spec.md §4.8):
// the current store candidate list plus free-form notes, round-tripped
// to a single file. The format follows the teacher's ticket file shape —
// a delimited frontmatter block of scalar fields followed by a markdown
// body — hand-parsed line by line the way the teacher's own
// ParseTicketFrontmatter reads a ticket file, rather than through the
// internal/frontmatter package: that package's Value model has no way to
// represent a repeated list of multi-field records, which the store list
// is.
package session

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kestrelwire/memscan/internal/codec"
	"github.com/kestrelwire/memscan/internal/memio"
)

const frontmatterDelimiter = "---"

// Entry is one persisted store candidate.
type Entry struct {
	Address     memio.Address
	ScanType    codec.ScanType
	Value       []byte
	Locked      bool
	LockValue   []byte
	Description string
}

// Session is the full persisted state of a store.
type Session struct {
	PID          int
	ProcessName  string
	TextEncoding codec.TextEncoding
	Aligned      bool
	Entries      []Entry
	Notes        string
}

var (
	ErrMissingFrontmatter = errors.New("session file missing frontmatter block")
	ErrMalformedEntry     = errors.New("malformed store entry")
)

// Format renders s as the persisted session file text.
func Format(s Session) string {
	var b strings.Builder

	b.WriteString(frontmatterDelimiter + "\n")
	fmt.Fprintf(&b, "pid: %d\n", s.PID)

	if s.ProcessName != "" {
		fmt.Fprintf(&b, "process_name: %s\n", s.ProcessName)
	}

	fmt.Fprintf(&b, "text_encoding: %s\n", encodingName(s.TextEncoding))
	fmt.Fprintf(&b, "aligned: %t\n", s.Aligned)
	b.WriteString(frontmatterDelimiter + "\n")

	b.WriteString("\n## Store\n")

	for _, e := range s.Entries {
		b.WriteString("\n")
		fmt.Fprintf(&b, "- address: 0x%x\n", uint64(e.Address))
		fmt.Fprintf(&b, "  scan_type: %s\n", e.ScanType)
		fmt.Fprintf(&b, "  value: %s\n", hex.EncodeToString(e.Value))
		fmt.Fprintf(&b, "  locked: %t\n", e.Locked)

		if e.Locked {
			fmt.Fprintf(&b, "  lock_value: %s\n", hex.EncodeToString(e.LockValue))
		}

		fmt.Fprintf(&b, "  description: %q\n", e.Description)
	}

	b.WriteString("\n## Notes\n\n")
	b.WriteString(s.Notes)

	if !strings.HasSuffix(s.Notes, "\n") {
		b.WriteString("\n")
	}

	return b.String()
}

// Parse reverses [Format].
func Parse(text string) (Session, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))

	var s Session

	if !scanner.Scan() || scanner.Text() != frontmatterDelimiter {
		return Session{}, fmt.Errorf("%w", ErrMissingFrontmatter)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == frontmatterDelimiter {
			break
		}

		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}

		switch key {
		case "pid":
			s.PID, _ = strconv.Atoi(value)
		case "process_name":
			s.ProcessName = value
		case "text_encoding":
			s.TextEncoding = parseEncodingName(value)
		case "aligned":
			s.Aligned = value == "true"
		}
	}

	body := remainingLines(scanner)

	entries, notes, err := parseBody(body)
	if err != nil {
		return Session{}, err
	}

	s.Entries = entries
	s.Notes = notes

	return s, nil
}

func remainingLines(scanner *bufio.Scanner) []string {
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	return lines
}

func parseBody(lines []string) ([]Entry, string, error) {
	var (
		entries   []Entry
		notes     []string
		inStore   bool
		inNotes   bool
		cur       *Entry
		haveEntry bool
	)

	flush := func() error {
		if !haveEntry {
			return nil
		}

		entries = append(entries, *cur)
		haveEntry = false

		return nil
	}

	for _, line := range lines {
		switch strings.TrimSpace(line) {
		case "## Store":
			if err := flush(); err != nil {
				return nil, "", err
			}

			inStore, inNotes = true, false

			continue
		case "## Notes":
			if err := flush(); err != nil {
				return nil, "", err
			}

			inStore, inNotes = false, true

			continue
		}

		if inNotes {
			notes = append(notes, line)

			continue
		}

		if !inStore {
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if after, ok := strings.CutPrefix(trimmed, "- "); ok {
			if err := flush(); err != nil {
				return nil, "", err
			}

			cur = &Entry{}
			haveEntry = true

			if err := applyEntryField(cur, after); err != nil {
				return nil, "", err
			}

			continue
		}

		if cur == nil {
			return nil, "", fmt.Errorf("%w: field outside entry: %q", ErrMalformedEntry, line)
		}

		if err := applyEntryField(cur, trimmed); err != nil {
			return nil, "", err
		}
	}

	if err := flush(); err != nil {
		return nil, "", err
	}

	// Drop the blank separator line Format writes after "## Notes".
	if len(notes) > 0 && notes[0] == "" {
		notes = notes[1:]
	}

	return entries, strings.TrimRight(strings.Join(notes, "\n"), "\n"), nil
}

func applyEntryField(e *Entry, field string) error {
	key, value, ok := strings.Cut(field, ": ")
	if !ok {
		// An empty value ("value: ") reaches here as "value:" once the
		// line's trailing space is trimmed.
		key, ok = strings.CutSuffix(field, ":")
		if !ok {
			return fmt.Errorf("%w: %q", ErrMalformedEntry, field)
		}
	}

	switch key {
	case "address":
		addr, err := strconv.ParseUint(strings.TrimPrefix(value, "0x"), 16, 64)
		if err != nil {
			return fmt.Errorf("%w: address %q: %w", ErrMalformedEntry, value, err)
		}

		e.Address = memio.Address(addr)
	case "scan_type":
		t, err := codec.ParseScanType(value)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedEntry, err)
		}

		e.ScanType = t
	case "value":
		data, err := hex.DecodeString(value)
		if err != nil {
			return fmt.Errorf("%w: value %q: %w", ErrMalformedEntry, value, err)
		}

		e.Value = data
	case "locked":
		e.Locked = value == "true"
	case "lock_value":
		data, err := hex.DecodeString(value)
		if err != nil {
			return fmt.Errorf("%w: lock_value %q: %w", ErrMalformedEntry, value, err)
		}

		e.LockValue = data
	case "description":
		unquoted, err := strconv.Unquote(value)
		if err != nil {
			unquoted = value
		}

		e.Description = unquoted
	}

	return nil
}

func encodingName(e codec.TextEncoding) string {
	switch e {
	case codec.ASCII:
		return "ascii"
	case codec.UTF16LE:
		return "utf16le"
	default:
		return "utf8"
	}
}

func parseEncodingName(name string) codec.TextEncoding {
	switch name {
	case "ascii":
		return codec.ASCII
	case "utf16le":
		return codec.UTF16LE
	default:
		return codec.UTF8
	}
}
