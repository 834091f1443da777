package events

import "testing"

func TestPublishStampsTick(t *testing.T) {
	b := NewBus()
	b.SetTick(30)
	b.Publish(Event{Kind: NodeDepleted, NodeID: 4})
	b.Publish(Event{Tick: 12, Kind: NodeHarvested})

	got := b.Recent(10)
	if len(got) != 2 || got[0].Tick != 30 || got[1].Tick != 12 {
		t.Fatalf("recent = %+v", got)
	}
}

func TestRecentKeepsNewest(t *testing.T) {
	b := NewBus()
	for i := 1; i <= recentCap+5; i++ {
		b.Publish(Event{Tick: uint64(i), Kind: NodeHarvested})
	}
	all := b.Recent(0)
	if len(all) != recentCap || all[0].Tick != 6 {
		t.Fatalf("kept %d events starting at tick %d", len(all), all[0].Tick)
	}
	last := b.Recent(3)
	if len(last) != 3 || last[2].Tick != recentCap+5 {
		t.Fatalf("last three = %+v", last)
	}
}

func TestListenersAndSubscribers(t *testing.T) {
	b := NewBus()
	var heard []Kind
	b.Listen(func(e Event) { heard = append(heard, e.Kind) })
	id, ch := b.Subscribe()

	b.Publish(Event{Kind: JobAssigned, AgentID: 1})
	if len(heard) != 1 || heard[0] != JobAssigned {
		t.Fatalf("listener heard %v", heard)
	}
	if e := <-ch; e.AgentID != 1 {
		t.Fatalf("subscriber got %+v", e)
	}

	b.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after unsubscribe")
	}
	b.Publish(Event{Kind: JobUnassigned})
	if len(heard) != 2 {
		t.Fatal("listener missed an event after unsubscribe")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus()
	_, ch := b.Subscribe()
	for i := 0; i < subscribeCh+10; i++ {
		b.Publish(Event{Kind: NodeHarvested})
	}
	if len(ch) != subscribeCh {
		t.Fatalf("buffered %d events, want %d", len(ch), subscribeCh)
	}
}

func TestSinceUsesSequenceNotTick(t *testing.T) {
	b := NewBus()
	b.SetTick(7)
	b.Publish(Event{Kind: NodeHarvested})
	mark := b.Seq()
	b.Publish(Event{Kind: NodeDepleted})
	b.Publish(Event{Kind: NodeHarvested})

	got := b.Since(mark)
	if len(got) != 2 || got[0].Kind != NodeDepleted || got[0].Tick != 7 || got[1].Seq != mark+2 {
		t.Fatalf("since %d = %+v", mark, got)
	}
	if len(b.Since(b.Seq())) != 0 {
		t.Fatal("nothing should follow the last sequence number")
	}
}
