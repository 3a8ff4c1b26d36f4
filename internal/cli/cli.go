// Package cli parses rehearse command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandInterview Command = "interview"
	CommandSkip      Command = "skip"
	CommandEnd       Command = "end"
	CommandStatus    Command = "status"
	CommandQuestions Command = "questions"
	CommandSessions  Command = "sessions"
	CommandFeedback  Command = "feedback"
	CommandDevices   Command = "devices"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

// argArity is how many positional arguments a command accepts: the minimum then the maximum.
var argArity = map[Command][2]int{
	CommandInterview: {0, 1},
	CommandSkip:      {0, 0},
	CommandEnd:       {0, 0},
	CommandStatus:    {0, 0},
	CommandQuestions: {0, 1},
	CommandSessions:  {0, 0},
	CommandFeedback:  {1, 1},
	CommandDevices:   {0, 0},
	CommandDoctor:    {0, 0},
	CommandVersion:   {0, 0},
	CommandHelp:      {0, 0},
}

type Parsed struct {
	Command    Command
	Arg        string
	ConfigPath string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	var positional []string
	seenCommand := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "-h" || arg == "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case arg == "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case arg == "--config":
			if seenCommand {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", parsed.Command)
			}
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case strings.HasPrefix(arg, "-"):
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		case seenCommand:
			positional = append(positional, arg)
		default:
			cmd := Command(arg)
			if _, ok := argArity[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			seenCommand = true
		}
	}

	arity := argArity[parsed.Command]
	if len(positional) < arity[0] {
		return Parsed{}, fmt.Errorf("command %q requires an argument", parsed.Command)
	}
	if len(positional) > arity[1] {
		return Parsed{}, fmt.Errorf("unexpected arguments after command %q", parsed.Command)
	}
	if len(positional) == 1 {
		parsed.Arg = positional[0]
	}
	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [arg]

Commands:
  interview [TYPE]  Run a mock interview (behavioral, technical, or mixed)
  skip              Skip the current question of the running interview
  end               End the running interview and save it
  status            Print the running interview's phase and progress
  questions [TYPE]  List the questions an interview would ask
  sessions          List saved interviews, newest first
  feedback ID       Print (generating if needed) the feedback report for a session
  devices           List available input devices
  doctor            Run configuration and environment checks
  version           Print version information
  help              Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/rehearse/config.yaml)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
