package conversation

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/matheus3301/telesync/internal/bridge"
	"github.com/matheus3301/telesync/internal/td"
	"github.com/matheus3301/telesync/internal/td/tdfake"
	"go.uber.org/zap/zaptest"
)

// history builds n messages for chatID with ids 1..n; newer ids have later
// dates.
func history(chatID int64, n int) []*td.Message {
	msgs := make([]*td.Message, n)
	for i := range n {
		id := int64(i + 1)
		msgs[i] = &td.Message{ID: id, ChatID: chatID, Date: 1000 + id*10, Content: &td.MessageText{Text: fmt.Sprint(id)}}
	}
	return msgs
}

// serveHistory answers getChatHistory from msgs like a backend would:
// messages older than the cursor, newest first, shuffled inside the page.
func serveHistory(fake *tdfake.Client, byChat map[int64][]*td.Message) {
	fake.Respond("getChatHistory", func(req td.Request) td.Object {
		r := req.(*td.GetChatHistory)
		msgs := byChat[r.ChatID]
		var page []*td.Message
		for i := len(msgs) - 1; i >= 0 && int32(len(page)) < r.Limit; i-- {
			if r.FromMessageID == 0 || msgs[i].ID < r.FromMessageID {
				page = append(page, msgs[i])
			}
		}
		if len(page) > 1 {
			page[0], page[1] = page[1], page[0]
		}
		return &td.Messages{TotalCount: int32(len(msgs)), Messages: page}
	})
}

func newPager(t *testing.T, fake *tdfake.Client) *Pager {
	t.Helper()
	b := bridge.New(fake, 3, zaptest.NewLogger(t))
	return New(b, nil, 0, zaptest.NewLogger(t))
}

func ids(msgs []*td.Message) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestWalkLoadsWholeHistory(t *testing.T) {
	for _, n := range []int{1, 9, 10, 11, 25, 30} {
		t.Run(fmt.Sprintf("%d messages", n), func(t *testing.T) {
			fake := tdfake.New()
			serveHistory(fake, map[int64][]*td.Message{5: history(5, n)})
			p := newPager(t, fake)

			p.Bind(context.Background(), 5)
			p.Wait()

			got := p.Messages().Load()
			if len(got) != n {
				t.Fatalf("loaded %d messages, want %d", len(got), n)
			}
			for i := 1; i < len(got); i++ {
				if got[i-1].Date <= got[i].Date {
					t.Fatalf("messages not strictly newest first at %d: %v", i, ids(got))
				}
			}
			wantFetches := (n + DefaultPageSize - 1) / DefaultPageSize
			if calls := fake.CallCount("getChatHistory"); calls != wantFetches {
				t.Errorf("fetched %d pages, want %d", calls, wantFetches)
			}
		})
	}
}

func TestWalkStopsOnEmptyPage(t *testing.T) {
	fake := tdfake.New()
	serveHistory(fake, map[int64][]*td.Message{5: nil})
	p := newPager(t, fake)

	p.Bind(context.Background(), 5)
	p.Wait()

	if got := len(p.Messages().Load()); got != 0 {
		t.Errorf("loaded %d messages, want 0", got)
	}
	if calls := fake.CallCount("getChatHistory"); calls != 1 {
		t.Errorf("fetched %d pages, want 1", calls)
	}
}

func TestWalkUsesOldestIDAsCursor(t *testing.T) {
	fake := tdfake.New()
	serveHistory(fake, map[int64][]*td.Message{5: history(5, 15)})
	p := newPager(t, fake)

	p.Bind(context.Background(), 5)
	p.Wait()

	calls := fake.Calls("getChatHistory")
	if len(calls) != 2 {
		t.Fatalf("fetched %d pages, want 2", len(calls))
	}
	if from := calls[0].(*td.GetChatHistory).FromMessageID; from != 0 {
		t.Errorf("first cursor = %d, want 0", from)
	}
	if from := calls[1].(*td.GetChatHistory).FromMessageID; from != 6 {
		t.Errorf("second cursor = %d, want 6", from)
	}
	if limit := calls[0].(*td.GetChatHistory).Limit; limit != DefaultPageSize {
		t.Errorf("limit = %d, want %d", limit, DefaultPageSize)
	}
}

func TestUnbindStopsWalk(t *testing.T) {
	fake := tdfake.New()
	msgs := history(5, 30)
	release := make(chan struct{})
	fake.Handle("getChatHistory", func(req td.Request, reply func(td.Object)) {
		r := req.(*td.GetChatHistory)
		if r.FromMessageID != 0 {
			<-release
		}
		var page []*td.Message
		for i := len(msgs) - 1; i >= 0 && len(page) < 10; i-- {
			if r.FromMessageID == 0 || msgs[i].ID < r.FromMessageID {
				page = append(page, msgs[i])
			}
		}
		reply(&td.Messages{TotalCount: 30, Messages: page})
	})
	p := newPager(t, fake)

	p.Bind(context.Background(), 5)
	waitFor(t, func() bool { return fake.CallCount("getChatHistory") == 2 })

	p.Unbind()
	p.Unbind()
	close(release)
	p.Wait()

	if got := len(p.Messages().Load()); got != 10 {
		t.Errorf("loaded %d messages, want only the first page of 10", got)
	}
	if calls := fake.CallCount("getChatHistory"); calls != 2 {
		t.Errorf("fetched %d pages after unbind, want 2", calls)
	}
	if p.ChatID() != 0 {
		t.Errorf("ChatID() = %d after unbind, want 0", p.ChatID())
	}
}

func TestRebindReplacesConversation(t *testing.T) {
	fake := tdfake.New()
	serveHistory(fake, map[int64][]*td.Message{1: history(1, 25), 2: history(2, 3)})
	p := newPager(t, fake)

	p.Bind(context.Background(), 1)
	p.Bind(context.Background(), 2)
	p.Wait()

	for _, m := range p.Messages().Load() {
		if m.ChatID != 2 {
			t.Fatalf("conversation holds message of chat %d after rebind", m.ChatID)
		}
	}
	if got := ids(p.Messages().Load()); !slices.Equal(got, []int64{3, 2, 1}) {
		t.Errorf("ids = %v, want [3 2 1]", got)
	}
}

func boundPager(t *testing.T, n int) (*Pager, *tdfake.Client) {
	t.Helper()
	fake := tdfake.New()
	serveHistory(fake, map[int64][]*td.Message{5: history(5, n)})
	p := newPager(t, fake)
	p.Bind(context.Background(), 5)
	p.Wait()
	return p, fake
}

func TestPrependAndReplace(t *testing.T) {
	p, _ := boundPager(t, 3)

	if !p.Prepend(&td.Message{ID: 4, ChatID: 5, Date: 2000}) {
		t.Fatal("Prepend for the bound chat should commit")
	}
	if p.Prepend(&td.Message{ID: 9, ChatID: 6}) {
		t.Error("Prepend for another chat should not commit")
	}
	if got := ids(p.Messages().Load()); !slices.Equal(got, []int64{4, 3, 2, 1}) {
		t.Errorf("ids = %v, want [4 3 2 1]", got)
	}

	edited := &td.Message{ID: 2, ChatID: 5, Content: &td.MessageText{Text: "edited"}}
	if !p.Replace(edited) {
		t.Fatal("Replace of a loaded message should commit")
	}
	if p.Replace(&td.Message{ID: 42, ChatID: 5}) {
		t.Error("Replace of an unknown message should not insert")
	}
	got := p.Messages().Load()
	if got[2] != edited {
		t.Errorf("message at index 2 = %+v, want the edited one", got[2])
	}
}

func TestPatchContent(t *testing.T) {
	p, _ := boundPager(t, 2)
	before := p.Messages().Load()[0]

	if !p.PatchContent(5, 2, &td.MessagePhoto{}) {
		t.Fatal("PatchContent should commit")
	}
	after := p.Messages().Load()[0]
	if _, ok := after.Content.(*td.MessagePhoto); !ok {
		t.Errorf("content = %T, want photo", after.Content)
	}
	if _, ok := before.Content.(*td.MessageText); !ok {
		t.Error("earlier snapshot was mutated")
	}
}

func TestRemoveHonoursLimit(t *testing.T) {
	tests := []struct {
		name          string
		ids           []int64
		wantRemoved   int
		wantCommitted bool
		wantLeft      int
	}{
		{"single", []int64{2}, 1, true, 4},
		{"batch", []int64{1, 2, 3}, 3, false, 5},
		{"unknown", []int64{99}, 0, false, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := boundPager(t, 5)
			removed, committed := p.Remove(5, tt.ids, 1)
			if removed != tt.wantRemoved || committed != tt.wantCommitted {
				t.Errorf("Remove() = (%d, %v), want (%d, %v)", removed, committed, tt.wantRemoved, tt.wantCommitted)
			}
			if got := len(p.Messages().Load()); got != tt.wantLeft {
				t.Errorf("%d messages left, want %d", got, tt.wantLeft)
			}
		})
	}
}

func TestReload(t *testing.T) {
	p, fake := boundPager(t, 3)
	fake.Respond("getMessage", func(req td.Request) td.Object {
		r := req.(*td.GetMessage)
		if r.MessageID == 404 {
			return &td.Error{Code: 404, Message: "Not Found"}
		}
		return &td.Message{ID: r.MessageID, ChatID: r.ChatID, Content: &td.MessageText{Text: "fresh"}}
	})

	if err := p.Reload(context.Background(), 2); err != nil {
		t.Fatalf("Reload(2) error = %v", err)
	}
	if err := p.Reload(context.Background(), 7); err != nil {
		t.Fatalf("Reload(7) error = %v", err)
	}
	if err := p.Reload(context.Background(), 404); !bridge.IsFatal(err) {
		t.Errorf("Reload(404) error = %v, want fatal", err)
	}

	got := p.Messages().Load()
	if !slices.Equal(ids(got), []int64{7, 3, 2, 1}) {
		t.Fatalf("ids = %v, want [7 3 2 1]", ids(got))
	}
	if text := got[2].Content.(*td.MessageText).Text; text != "fresh" {
		t.Errorf("reloaded text = %q, want fresh", text)
	}
}

func TestLoadMoreAfterUnbindIsNoop(t *testing.T) {
	p, fake := boundPager(t, 3)
	p.Unbind()
	before := fake.CallCount("getChatHistory")
	n, err := p.LoadMore(context.Background())
	if err != nil || n != 0 {
		t.Errorf("LoadMore() = (%d, %v), want (0, nil)", n, err)
	}
	if fake.CallCount("getChatHistory") != before {
		t.Error("LoadMore should not fetch while unbound")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not met in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
