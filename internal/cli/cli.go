package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandChat    Command = "chat"
	CommandStop    Command = "stop"
	CommandCancel  Command = "cancel"
	CommandStatus  Command = "status"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandChat:    {},
	CommandStop:    {},
	CommandCancel:  {},
	CommandStatus:  {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// validModes are the auto-stop presets selectable on the command line.
var validModes = map[string]struct{}{
	"default":  {},
	"quick":    {},
	"learning": {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	Mode       string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case "--mode":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--mode requires one of: default, quick, learning")
			}
			mode := strings.ToLower(strings.TrimSpace(args[i]))
			if _, ok := validModes[mode]; !ok {
				return Parsed{}, fmt.Errorf("unknown mode %q (want default, quick, or learning)", args[i])
			}
			parsed.Mode = mode
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
		}
	}

	if parsed.Mode != "" && parsed.Command != CommandChat {
		return Parsed{}, errors.New("--mode only applies to the chat command")
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  chat      Start an interactive voice tutoring conversation
  stop      Stop the active recording and process what was captured
  cancel    Cancel the active recording and discard it
  status    Print the live session state
  devices   List available input devices
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/parlo/config.json)
  --mode MODE     Auto-stop preset for chat: default, quick, or learning
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
