package session

import (
	"testing"
	"time"

	"github.com/rondohq/rondo/pkg/api"
	"github.com/rondohq/rondo/pkg/logger"
	"github.com/rondohq/rondo/pkg/rtc"
)

func testNegotiator() (*negotiator, *rtc.FakeFactory) {
	f := &rtc.FakeFactory{}
	return newNegotiator(f, 15*time.Second, logger.Default()), f
}

func TestInitiateOffersOnce(t *testing.T) {
	n, f := testNegotiator()
	t0 := time.Unix(1700000000, 0)

	if err := n.initiate(2, t0); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if err := n.initiate(2, t0); err != nil {
		t.Fatalf("repeated initiate failed: %v", err)
	}
	if n.size() != 1 || len(f.Made()) != 1 {
		t.Fatalf("records = %v transports = %v, want 1/1", n.size(), len(f.Made()))
	}

	res := n.poll()
	if len(res.outs) != 1 {
		t.Fatalf("outs = %v, want the offer", res.outs)
	}
	out := res.outs[0]
	if out.target != 2 || out.out.SDP == nil || out.out.SDP.Type != api.SDPOffer {
		t.Errorf("unexpected outbound: %+v", out)
	}
	if len(n.poll().outs) != 0 {
		t.Error("poll did not drain the outbound queue")
	}
}

func TestSignalFromStrangerCreatesAnswerer(t *testing.T) {
	n, f := testNegotiator()
	t0 := time.Unix(1700000000, 0)

	offer := api.NewSignalFrom(3, &api.SDP{Type: api.SDPOffer, SDP: "o=x"}, nil)
	if err := n.handleSignal(&offer, t0); err != nil {
		t.Fatalf("handleSignal failed: %v", err)
	}
	cand := api.NewSignalFrom(3, nil, &api.ICE{Candidate: "candidate:1"})
	if err := n.handleSignal(&cand, t0); err != nil {
		t.Fatalf("handleSignal failed: %v", err)
	}

	if n.size() != 1 {
		t.Fatalf("records = %v, want 1", n.size())
	}
	fake := f.Made()[0]
	if got := fake.Remote(); len(got) != 1 || got[0].SDP != "o=x" {
		t.Errorf("remote descriptions = %+v", got)
	}
	if got := fake.Candidates(); len(got) != 1 || got[0].Candidate != "candidate:1" {
		t.Errorf("remote candidates = %+v", got)
	}

	res := n.poll()
	if len(res.outs) != 1 || res.outs[0].out.SDP == nil || res.outs[0].out.SDP.Type != api.SDPAnswer {
		t.Errorf("outs = %+v, want the answer", res.outs)
	}
}

func TestPollReportsConnectedOnce(t *testing.T) {
	n, f := testNegotiator()
	t0 := time.Unix(1700000000, 0)

	n.initiate(2, t0)
	n.poll()
	f.Made()[0].Connect()

	res := n.poll()
	if len(res.connected) != 1 || res.connected[0] != 2 {
		t.Fatalf("connected = %v, want [2]", res.connected)
	}
	if len(n.poll().connected) != 0 {
		t.Error("connected reported twice for one link")
	}
	if n.connectedCount() != 1 {
		t.Errorf("connectedCount = %v, want 1", n.connectedCount())
	}
	// a connected link carries no deadline anymore
	if ids := n.expired(t0.Add(time.Hour)); len(ids) != 0 {
		t.Errorf("expired = %v, want none", ids)
	}
}

func TestDeadlinesExpire(t *testing.T) {
	n, _ := testNegotiator()
	t0 := time.Unix(1700000000, 0)

	n.initiate(2, t0)
	n.initiate(4, t0.Add(5*time.Second))

	if ids := n.expired(t0.Add(14 * time.Second)); len(ids) != 0 {
		t.Errorf("expired early: %v", ids)
	}
	if ids := n.expired(t0.Add(16 * time.Second)); len(ids) != 1 || ids[0] != 2 {
		t.Errorf("expired = %v, want [2]", ids)
	}
	if ids := n.expired(t0.Add(21 * time.Second)); len(ids) != 2 || ids[0] != 2 || ids[1] != 4 {
		t.Errorf("expired = %v, want [2 4] lowest first", ids)
	}
}

func TestBrokenLinkIsFlagged(t *testing.T) {
	n, f := testNegotiator()
	t0 := time.Unix(1700000000, 0)

	n.initiate(2, t0)
	f.Made()[0].Break()

	res := n.poll()
	if len(res.failed) != 1 || res.failed[0] != 2 {
		t.Errorf("failed = %v, want [2]", res.failed)
	}
}

func TestResetReleasesTransports(t *testing.T) {
	n, f := testNegotiator()
	t0 := time.Unix(1700000000, 0)

	n.initiate(2, t0)
	n.initiate(3, t0)
	n.reset()

	if n.size() != 0 {
		t.Errorf("records after reset = %v", n.size())
	}
	for _, fake := range f.Made() {
		if state, _ := fake.Poll(); state != rtc.StateClosed {
			t.Errorf("transport state = %v, want closed", state)
		}
	}
	if ids := n.expired(t0.Add(time.Hour)); len(ids) != 0 {
		t.Errorf("expired after reset = %v", ids)
	}
}

func TestDropForgetsPeer(t *testing.T) {
	n, f := testNegotiator()
	t0 := time.Unix(1700000000, 0)

	n.initiate(2, t0)
	n.drop(2)
	n.drop(2)

	if n.size() != 0 {
		t.Errorf("records after drop = %v", n.size())
	}
	if state, _ := f.Made()[0].Poll(); state != rtc.StateClosed {
		t.Errorf("transport state = %v, want closed", state)
	}
}
