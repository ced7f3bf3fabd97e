package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Relay/internal/adapters/store/memory"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// captureConn decodes every frame pushed to it.
type captureConn struct {
	mu     sync.Mutex
	frames []frame
}

func (c *captureConn) TrySend(f core.Frame) error {
	var fr frame
	if err := json.Unmarshal(f, &fr); err != nil {
		return err
	}
	c.mu.Lock()
	c.frames = append(c.frames, fr)
	c.mu.Unlock()
	return nil
}

func (c *captureConn) Close() {}

func (c *captureConn) named(name string) []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []frame
	for _, f := range c.frames {
		if f.Event == name {
			out = append(out, f)
		}
	}
	return out
}

func (c *captureConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

type fixture struct {
	o     *Orchestrator
	store *memory.Store
	conns map[core.SessionID]*captureConn
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := app.NewRegistry()
	rooms := app.NewRoomRegistry()
	fan := app.NewFanout(reg, rooms, app.SimplePolicy{})
	store := memory.New()
	o := &Orchestrator{
		Registry:    reg,
		Rooms:       rooms,
		Emit:        fan,
		Typing:      app.NewTypingTracker(fan, 150*time.Millisecond),
		Calls:       app.NewCallManager(fan, store),
		Peers:       app.NewPeerDirectory(fan),
		Users:       store,
		Messages:    store.Messages(),
		Memberships: store,
	}
	return &fixture{o: o, store: store, conns: make(map[core.SessionID]*captureConn)}
}

func (f *fixture) connect(sid core.SessionID, user domain.UserID) *captureConn {
	c := &captureConn{}
	f.conns[sid] = c
	f.o.Registry.Bind(sid, user, c, nil)
	return c
}

// send dispatches with an ack and returns the reply.
func (f *fixture) send(t *testing.T, sid core.SessionID, event, payload string) core.Reply {
	t.Helper()
	var got []core.Reply
	f.o.Dispatch(context.Background(), sid, event, json.RawMessage(payload), func(r core.Reply) {
		got = append(got, r)
	})
	if len(got) != 1 {
		t.Fatalf("%s: ack resolved %d times, want 1", event, len(got))
	}
	return got[0]
}

func mustSucceed(t *testing.T, r core.Reply) {
	t.Helper()
	if r.Status != core.StatusSuccess || r.Error != "" {
		t.Fatalf("reply = %+v, want success", r)
	}
}

func mustFail(t *testing.T, r core.Reply) {
	t.Helper()
	if r.Status != core.StatusError || r.Error == "" || r.Data != nil {
		t.Fatalf("reply = %+v, want error without data", r)
	}
}

func TestJoinRoomAcceptsStringOrObject(t *testing.T) {
	f := newFixture(t)
	f.connect("s1", "A")

	mustSucceed(t, f.send(t, "s1", core.EventJoinRoom, `"r1"`))
	mustSucceed(t, f.send(t, "s1", core.EventJoinRoom, `{"roomId":"r1"}`))
	if got := f.o.Rooms.Members("r1"); len(got) != 1 {
		t.Fatalf("Members() = %v, want one entry", got)
	}
	mustFail(t, f.send(t, "s1", core.EventJoinRoom, `{}`))
}

func TestUnknownEventIsValidationError(t *testing.T) {
	f := newFixture(t)
	c := f.connect("s1", "A")

	r := f.send(t, "s1", "no-such-event", `{}`)
	mustFail(t, r)

	f.o.Dispatch(context.Background(), "s1", "no-such-event", nil, nil)
	errs := c.named(core.EventRoomError)
	if len(errs) != 1 {
		t.Fatalf("room-error count = %d, want 1", len(errs))
	}
	var re RoomError
	if err := json.Unmarshal(errs[0].Data, &re); err != nil || re.Event != "no-such-event" {
		t.Fatalf("room-error = %s", errs[0].Data)
	}
}

func TestUnboundConnectionRejected(t *testing.T) {
	f := newFixture(t)
	r := f.send(t, "ghost", core.EventJoinRoom, `"r1"`)
	if r.Error != domain.ErrAuthentication.Error() {
		t.Fatalf("reply = %+v, want authentication error", r)
	}
}

type panickingUsers struct{}

func (panickingUsers) FindByID(context.Context, domain.UserID) (domain.User, error) {
	panic("boom")
}

func (panickingUsers) Upsert(context.Context, domain.User) error { return nil }

func TestHandlerPanicBecomesErrorReply(t *testing.T) {
	f := newFixture(t)
	f.o.Users = panickingUsers{}
	f.connect("s1", "A")

	mustFail(t, f.send(t, "s1", core.EventTypingStart, `"r1"`))
	// connection still usable
	mustSucceed(t, f.send(t, "s1", core.EventJoinRoom, `"r1"`))
}

func TestCallScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.connect("sa", "A")
	b := f.connect("sb", "B")
	_ = f.store.AddMember(ctx, "r1", "A")
	_ = f.store.AddMember(ctx, "r1", "B")
	mustSucceed(t, f.send(t, "sa", core.EventJoinRoom, `"r1"`))
	mustSucceed(t, f.send(t, "sb", core.EventJoinRoom, `"r1"`))

	mustSucceed(t, f.send(t, "sa", core.EventCallInitiate, `{"roomId":"r1","offer":{"sdp":"x"}}`))

	incoming := b.named(core.EventCallIncoming)
	if len(incoming) != 1 {
		t.Fatalf("B call-incoming count = %d, want 1", len(incoming))
	}
	var inc app.CallIncoming
	if err := json.Unmarshal(incoming[0].Data, &inc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if inc.RoomID != "r1" || inc.Initiator != "A" || string(inc.Offer) != `{"sdp":"x"}` || inc.CallType != domain.CallVideo {
		t.Fatalf("call-incoming = %+v", inc)
	}
	if len(a.named(core.EventCallIncoming)) != 0 {
		t.Fatal("initiator received its own call-incoming")
	}

	mustSucceed(t, f.send(t, "sb", core.EventCallAnswer, `{"roomId":"r1","answer":{"sdp":"y"}}`))
	if got := a.named(core.EventCallAnswerReceived); len(got) != 1 {
		t.Fatalf("A call-answer-received count = %d, want 1", len(got))
	}
	if got := b.named(core.EventCallAnswerReceived); len(got) != 0 {
		t.Fatal("answerer received call-answer-received")
	}
}

func TestCallErrorsReachSenderOnly(t *testing.T) {
	f := newFixture(t)
	a := f.connect("sa", "A")
	b := f.connect("sb", "B")
	mustSucceed(t, f.send(t, "sa", core.EventJoinRoom, `"r1"`))
	mustSucceed(t, f.send(t, "sb", core.EventJoinRoom, `"r1"`))

	// A holds no durable membership
	r := f.send(t, "sa", core.EventCallInitiate, `{"roomId":"r1","offer":{}}`)
	if r.Error != domain.ErrUnauthorizedCall.Error() {
		t.Fatalf("reply = %+v, want unauthorized", r)
	}
	f.o.Dispatch(context.Background(), "sb", core.EventCallAnswer, json.RawMessage(`{"roomId":"r1","answer":{}}`), nil)

	if got := a.named(core.EventCallError); len(got) != 1 {
		t.Fatalf("A call-error count = %d, want 1", len(got))
	}
	errs := b.named(core.EventCallError)
	if len(errs) != 1 {
		t.Fatalf("B call-error count = %d, want 1", len(errs))
	}
	var ce CallError
	_ = json.Unmarshal(errs[0].Data, &ce)
	if ce.Error != domain.ErrNoActiveCall.Error() {
		t.Fatalf("call-error = %+v", ce)
	}
	if len(b.named(core.EventRoomError)) != 0 {
		t.Fatal("call failure also produced room-error")
	}
	if f.o.Calls.Count() != 0 {
		t.Fatal("failed calls left a session behind")
	}
}

func TestRejectThenEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.connect("sa", "A")
	b := f.connect("sb", "B")
	_ = f.store.AddMember(ctx, "r1", "A")
	mustSucceed(t, f.send(t, "sa", core.EventJoinRoom, `"r1"`))
	mustSucceed(t, f.send(t, "sb", core.EventJoinRoom, `"r1"`))
	mustSucceed(t, f.send(t, "sa", core.EventCallInitiate, `{"roomId":"r1","offer":{},"callType":"audio"}`))

	mustSucceed(t, f.send(t, "sb", core.EventCallReject, `{"roomId":"r1"}`))
	if got := a.named(core.EventCallRejected); len(got) != 1 {
		t.Fatalf("call-rejected count = %d, want 1", len(got))
	}
	mustSucceed(t, f.send(t, "sa", core.EventCallEnd, `{"roomId":"r1"}`))
	if len(a.named(core.EventCallEnded)) != 1 || len(b.named(core.EventCallEnded)) != 1 {
		t.Fatal("call-ended did not reach every member")
	}
}

func TestDisconnectCleanup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect("sa1", "A")
	f.connect("sa2", "A")
	b := f.connect("sb", "B")
	_ = f.store.AddMember(ctx, "r1", "A")
	_ = f.store.Upsert(ctx, domain.User{ID: "A", FirstName: "Ann"})
	mustSucceed(t, f.send(t, "sa1", core.EventRegisterPeer, `"peer-a"`))
	mustSucceed(t, f.send(t, "sb", core.EventRegisterPeer, `{"peerId":"peer-b"}`))
	mustSucceed(t, f.send(t, "sb", core.EventJoinRoom, `"r1"`))
	mustSucceed(t, f.send(t, "sa1", core.EventJoinRoom, `"r1"`))
	mustSucceed(t, f.send(t, "sa1", core.EventCallInitiate, `{"roomId":"r1","offer":{}}`))
	mustSucceed(t, f.send(t, "sa1", core.EventTypingStart, `"r1"`))
	b.reset()

	f.o.OnDisconnect("sa1")
	if !f.o.Rooms.Has("r1", "A") || f.o.Calls.Count() != 1 {
		t.Fatal("cleanup ran while A still had a connection")
	}

	f.o.OnDisconnect("sa2")
	ended := b.named(core.EventCallEnded)
	if len(ended) != 1 {
		t.Fatalf("call-ended count = %d, want 1", len(ended))
	}
	var ce app.CallEnded
	_ = json.Unmarshal(ended[0].Data, &ce)
	if ce.EndedBy != "A" || ce.Reason != app.ReasonParticipantLeft {
		t.Fatalf("call-ended = %+v", ce)
	}
	if len(b.named(core.EventPeerDisconnected)) != 1 {
		t.Fatal("B not told about peer-a leaving")
	}
	if f.o.Rooms.Has("r1", "A") || f.o.Typing.IsTyping("r1", "A") {
		t.Fatal("A state survived disconnect")
	}
	time.Sleep(200 * time.Millisecond)
	if got := b.named(core.EventUserStoppedTyping); len(got) != 0 {
		t.Fatalf("disconnect cleanup broadcast %d stop events", len(got))
	}
	r := f.send(t, "sb", core.EventCallAnswer, `{"roomId":"r1","answer":{}}`)
	if r.Error != domain.ErrNoActiveCall.Error() {
		t.Fatalf("answer after disconnect = %+v", r)
	}
}

func TestJoinRoomAnnouncesPeers(t *testing.T) {
	f := newFixture(t)
	a := f.connect("sa", "A")
	b := f.connect("sb", "B")
	mustSucceed(t, f.send(t, "sa", core.EventRegisterPeer, `"pa"`))
	mustSucceed(t, f.send(t, "sb", core.EventRegisterPeer, `"pb"`))
	mustSucceed(t, f.send(t, "sa", core.EventJoinRoom, `"r1"`))

	r := f.send(t, "sb", core.EventJoinRoom, `"r1"`)
	mustSucceed(t, r)
	res := r.Data.(JoinResult)
	if len(res.Peers) != 1 || res.Peers[0] != "pa" || len(res.Members) != 2 {
		t.Fatalf("join result = %+v", res)
	}
	if got := b.named(core.EventExistingPeers); len(got) != 1 {
		t.Fatalf("existing-peers count = %d, want 1", len(got))
	}
	if got := a.named(core.EventPeerConnected); len(got) != 1 {
		t.Fatalf("peer-connected count = %d, want 1", len(got))
	}

	r = f.send(t, "sa", core.EventGetPeerID, `"B"`)
	mustSucceed(t, r)
	if got := r.Data.(PeerResult); got.PeerID != "pb" {
		t.Fatalf("get-peer-id = %+v", got)
	}
	mustFail(t, f.send(t, "sa", core.EventGetPeerID, `"nobody"`))
}

func TestMessageLifecycle(t *testing.T) {
	f := newFixture(t)
	a := f.connect("sa", "A")
	b := f.connect("sb", "B")
	mustSucceed(t, f.send(t, "sb", core.EventJoinRoom, `"r1"`))

	r := f.send(t, "sa", core.EventMessageCreated, `{"roomId":"r1","content":"hi"}`)
	mustSucceed(t, r)
	rec := r.Data.(*domain.Message)
	if !f.o.Rooms.Has("r1", "A") {
		t.Fatal("sender not re-joined before broadcast")
	}
	if len(b.named(core.EventServerMessageCreated)) != 1 || len(a.named(core.EventServerMessageCreated)) != 0 {
		t.Fatal("server-message-created fan-out wrong")
	}

	mustSucceed(t, f.send(t, "sa", core.EventMessageUpdated,
		`{"id":"`+string(rec.ID)+`","roomId":"r1","content":"edit"}`))
	if len(b.named(core.EventServerMessageUpdated)) != 1 {
		t.Fatal("server-message-updated not delivered")
	}

	mustSucceed(t, f.send(t, "sa", core.EventMessageDeleted, `"`+string(rec.ID)+`"`))
	del := b.named(core.EventServerMessageDeleted)
	if len(del) != 1 {
		t.Fatal("server-message-deleted not delivered")
	}
	var md MessageDeleted
	_ = json.Unmarshal(del[0].Data, &md)
	if md.ID != rec.ID || md.RoomID != "r1" {
		t.Fatalf("server-message-deleted = %+v", md)
	}

	r = f.send(t, "sa", core.EventMessageDeleted, `"`+string(rec.ID)+`"`)
	mustFail(t, r)
	mustFail(t, f.send(t, "sa", core.EventMessageCreated, `{"roomId":"r1","content":"  "}`))
	mustFail(t, f.send(t, "sa", core.EventMessageUpdated, `{"roomId":"r1","content":"x"}`))
}

func TestTypingLookupFailureSkipsBroadcast(t *testing.T) {
	f := newFixture(t)
	f.connect("sa", "A")
	b := f.connect("sb", "B")
	mustSucceed(t, f.send(t, "sb", core.EventJoinRoom, `"r1"`))

	// A has no identity record
	mustFail(t, f.send(t, "sa", core.EventTypingStart, `"r1"`))
	if len(b.named(core.EventUserTyping)) != 0 {
		t.Fatal("user-typing sent despite lookup failure")
	}
	if !f.o.Typing.IsTyping("r1", "A") {
		t.Fatal("timer not armed after lookup failure")
	}
}

func TestStringArg(t *testing.T) {
	tests := []struct {
		payload string
		want    string
		wantErr bool
	}{
		{`"r1"`, "r1", false},
		{`{"roomId":"r1"}`, "r1", false},
		{`{"roomId":5}`, "", true},
		{`null`, "", true},
		{``, "", true},
		{`[1]`, "", true},
	}
	for _, tt := range tests {
		got, err := stringArg(json.RawMessage(tt.payload), "roomId")
		if (err != nil) != tt.wantErr {
			t.Fatalf("stringArg(%s) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("stringArg(%s) error = %v, want validation error", tt.payload, err)
		}
		if got != tt.want {
			t.Fatalf("stringArg(%s) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}
