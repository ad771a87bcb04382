package protocol

import (
	"strings"
	"unicode/utf8"
)

// CommandKind enumerates the commands a client can issue.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandCreate
	CommandJoin
	CommandKick
	CommandChat
	CommandStartGame
	CommandVote
)

// RoomCodeLength is the fixed width of the room code in a join payload.
const RoomCodeLength = 5

var commandNames = map[CommandKind]string{
	CommandUnknown:   "unknown",
	CommandCreate:    "create",
	CommandJoin:      "join",
	CommandKick:      "kick",
	CommandChat:      "chat",
	CommandStartGame: "start_game",
	CommandVote:      "vote",
}

func (k CommandKind) String() string {
	return commandNames[k]
}

// Command is an inbound content string decoded once at the boundary.
// Only the fields relevant to Kind are set.
type Command struct {
	Kind        CommandKind
	Username    string // create, join, kick target
	RoomCode    string // join
	Text        string // chat
	Location    string // start game
	Vote        string // vote flag
	CandidateID string // vote
}

// prefixes is checked in order; "21" must be tried before any
// single-character prefix that could shadow it.
var prefixes = []struct {
	prefix string
	kind   CommandKind
}{
	{"21", CommandKick},
	{"0", CommandCreate},
	{"1", CommandJoin},
	{"3", CommandChat},
	{"4", CommandStartGame},
	{"5", CommandVote},
}

// ParseCommand selects a command by the longest known prefix of content and
// slices its payload.
func ParseCommand(content string) Command {
	for _, p := range prefixes {
		if !strings.HasPrefix(content, p.prefix) {
			continue
		}
		payload := content[len(p.prefix):]
		switch p.kind {
		case CommandCreate:
			return Command{Kind: CommandCreate, Username: payload}
		case CommandJoin:
			code, username := payload, ""
			if len(payload) > RoomCodeLength {
				code, username = payload[:RoomCodeLength], payload[RoomCodeLength:]
			}
			return Command{Kind: CommandJoin, RoomCode: code, Username: username}
		case CommandKick:
			return Command{Kind: CommandKick, Username: payload}
		case CommandChat:
			return Command{Kind: CommandChat, Text: payload}
		case CommandStartGame:
			return Command{Kind: CommandStartGame, Location: payload}
		case CommandVote:
			if payload == "" {
				return Command{Kind: CommandUnknown}
			}
			_, size := utf8.DecodeRuneInString(payload)
			return Command{Kind: CommandVote, Vote: payload[:size], CandidateID: payload[size:]}
		}
	}
	return Command{Kind: CommandUnknown}
}
