package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-go-golems/docchat/pkg/conversation"
	"github.com/pkg/errors"
)

type commandName string

const (
	commandNew    commandName = "new"
	commandList   commandName = "list"
	commandOpen   commandName = "open"
	commandUpload commandName = "upload"
	commandHelp   commandName = "help"
	commandQuit   commandName = "quit"
)

type command struct {
	Name commandName
	Arg  string
}

// parseCommand recognizes slash commands. ok is false for plain chat input.
func parseCommand(input string) (cmd command, ok bool, err error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return command{}, false, nil
	}

	fields := strings.SplitN(strings.TrimPrefix(input, "/"), " ", 2)
	name := strings.ToLower(fields[0])
	arg := ""
	if len(fields) > 1 {
		arg = strings.TrimSpace(fields[1])
	}

	switch commandName(name) {
	case commandNew, commandList, commandHelp:
		return command{Name: commandName(name)}, true, nil
	case "q", "exit", commandQuit:
		return command{Name: commandQuit}, true, nil
	case commandOpen:
		if arg == "" {
			return command{}, true, errors.New("usage: /open <number|conversation id>")
		}
		return command{Name: commandOpen, Arg: arg}, true, nil
	case commandUpload:
		if arg == "" {
			return command{}, true, errors.New("usage: /upload <path>")
		}
		return command{Name: commandUpload, Arg: expandHome(arg)}, true, nil
	default:
		return command{}, true, errors.Errorf("unknown command /%s, try /help", name)
	}
}

// resolveConversation maps an /open argument to a conversation id: a 1-based
// index into the listed conversations, or a literal id.
func resolveConversation(arg string, conversations []conversation.Summary) (string, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(conversations) {
			return "", errors.Errorf("no conversation number %d, use /list", n)
		}
		return conversations[n-1].ID, nil
	}
	return arg, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + strings.TrimPrefix(path, "~")
		}
	}
	return path
}

const commandsHelp = `Commands:
  /new              start a new conversation
  /list             show your conversations
  /open <n|id>      open a conversation from the list
  /upload <path>    upload a PDF, DOCX or TXT document
  /quit             leave`
