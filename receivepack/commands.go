package receivepack

import (
	"fmt"
	"strings"

	"github.com/GitDataAI/git-inner/capability"
	"github.com/GitDataAI/git-inner/hash"
	"github.com/GitDataAI/git-inner/pktline"
)

// Kind classifies a ReceiveCommand by its old/new hash shape (spec §4.8).
type Kind int

const (
	KindCreate Kind = iota
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ReceiveCommand is one parsed push command line.
type ReceiveCommand struct {
	Old     hash.Hash
	New     hash.Hash
	RefName string
}

// Kind classifies the command: all-zeros Old means create, all-zeros New
// means delete, otherwise update.
func (c ReceiveCommand) Kind() Kind {
	switch {
	case c.Old.IsZero():
		return KindCreate
	case c.New.IsZero():
		return KindDelete
	default:
		return KindUpdate
	}
}

// ParseCommands reads the pkt-line command list (spec §4.8) from r until a
// flush packet, returning the parsed commands and the capability set the
// client selected on the first command line's NUL-separated suffix.
func ParseCommands(r *pktline.Reader) ([]ReceiveCommand, capability.Set, error) {
	var commands []ReceiveCommand
	var caps capability.Set

	first := true
	for {
		data, special, err := r.ReadLine()
		if err != nil {
			return nil, capability.Set{}, fmt.Errorf("receivepack: reading command line: %w", err)
		}
		if special == pktline.FlushPacket {
			break
		}

		line := string(data)
		if first {
			if idx := strings.IndexByte(line, 0); idx >= 0 {
				caps = capability.ParseLine(line[idx+1:])
				line = line[:idx]
			}
			first = false
		}

		cmd, err := parseCommandLine(line)
		if err != nil {
			return nil, capability.Set{}, err
		}
		commands = append(commands, cmd)
	}

	return commands, caps, nil
}

func parseCommandLine(line string) (ReceiveCommand, error) {
	fields := strings.SplitN(strings.TrimRight(line, "\n"), " ", 3)
	if len(fields) != 3 {
		return ReceiveCommand{}, fmt.Errorf("%w: malformed command line %q", ErrMalformedCommand, line)
	}

	oldHash, err := hash.FromHex(fields[0])
	if err != nil {
		return ReceiveCommand{}, fmt.Errorf("receivepack: old hash: %w", err)
	}
	newHash, err := hash.FromHex(fields[1])
	if err != nil {
		return ReceiveCommand{}, fmt.Errorf("receivepack: new hash: %w", err)
	}

	return ReceiveCommand{Old: oldHash, New: newHash, RefName: fields[2]}, nil
}
