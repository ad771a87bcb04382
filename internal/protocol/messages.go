package protocol

import (
	"strconv"
	"strings"
)

// Reply status prefixes.
const (
	StatusOK      = "0000"
	StatusJoined  = "0001"
	StatusFailure = "1000"
)

const (
	ReplyGameStarted    = StatusOK + "GAME_STARTED"
	ReplyVoteRegistered = "VOTE_REGISTERED"
)

// Server event names.
const (
	EventUserJoined    = "USER_JOINED"
	EventUserLeft      = "USER_LEFT"
	EventUserRemoved   = "USER_REMOVED"
	EventRemoved       = "REMOVED"
	EventRoomClosed    = "ROOM_CLOSED"
	EventNewLeader     = "NEW_LEADER"
	EventNewMessage    = "NEW_MESSAGE"
	EventGameStart     = "GAME_START"
	EventNewRestaurant = "NEW_RESTAURANT"
	EventGameResults   = "GAME_RESULTS"
)

// LikeVote is the vote flag that counts as a like.
const LikeVote = "0"

// Event joins an event name and its payload with a dot.
func Event(name, payload string) string {
	return name + "." + payload
}

func CreatedReply(code, username string) string {
	return StatusOK + code + username
}

func JoinedReply(usernames []string) string {
	return StatusJoined + strconv.Itoa(len(usernames)) + strings.Join(usernames, ".")
}

func ChatMessage(sender, text string) string {
	return Event(EventNewMessage, sender+":"+text)
}
