package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDecodeInbound(t *testing.T) {
	in, err := DecodeInbound([]byte(`{"sender":"Ana","content":"0Ana"}`))
	if err != nil {
		t.Fatalf("DecodeInbound() error: %v", err)
	}
	if in.Sender != "Ana" || in.Content != "0Ana" {
		t.Errorf("got %+v", in)
	}
}

func TestDecodeInbound_DefaultSender(t *testing.T) {
	in, err := DecodeInbound([]byte(`{"content":"3hi"}`))
	if err != nil {
		t.Fatalf("DecodeInbound() error: %v", err)
	}
	if in.Sender != DefaultSender {
		t.Errorf("Sender = %q, want %q", in.Sender, DefaultSender)
	}
}

func TestDecodeInbound_Malformed(t *testing.T) {
	frames := []string{
		`not json`,
		`{"sender":"Ana"}`,
		`{"sender":"Ana","content":5}`,
		`[]`,
	}
	for _, f := range frames {
		if _, err := DecodeInbound([]byte(f)); !errors.Is(err, ErrMalformed) {
			t.Errorf("DecodeInbound(%s) error = %v, want ErrMalformed", f, err)
		}
	}
}

func TestEncode(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	var out Outbound
	if err := json.Unmarshal(Encode(3, "0000", at), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != 3 || out.Message != "0000" || out.Timestamp != 1700000000123 {
		t.Errorf("got %+v", out)
	}

	if err := json.Unmarshal(EncodeEvent("ROOM_CLOSED", at), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != BroadcastID {
		t.Errorf("event ID = %d, want %d", out.ID, BroadcastID)
	}
}

func TestReplies(t *testing.T) {
	if got := CreatedReply("04217", "Ana"); got != "000004217Ana" {
		t.Errorf("CreatedReply = %q", got)
	}
	if got := JoinedReply([]string{"Ana", "Bob"}); got != "00012Ana.Bob" {
		t.Errorf("JoinedReply = %q", got)
	}
	if got := ChatMessage("Ana", "hi"); got != "NEW_MESSAGE.Ana:hi" {
		t.Errorf("ChatMessage = %q", got)
	}
}

func TestFailureReply(t *testing.T) {
	err := Errorf(ErrRoomNotFound, "room %s does not exist", "99999")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatal("wrapped protocol error should match its sentinel")
	}
	if got := FailureReply(err); got != "1000RoomNotFound: room 99999 does not exist" {
		t.Errorf("FailureReply = %q", got)
	}
	if got := FailureReply(errors.New("boom")); got != "1000UnknownCommand: command not recognized" {
		t.Errorf("FailureReply(non-protocol) = %q", got)
	}
}
