package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// chatFor allocates a peer for jid and stores a chat for it.
func chatFor(t *testing.T, db *DB, jid string, c Chat) int64 {
	t.Helper()
	id, err := db.PeerID(jid)
	if err != nil {
		t.Fatal(err)
	}
	c.ID = id
	if err := db.UpsertChat(&c); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestMigrateRejectsDirtySchema(t *testing.T) {
	db := testDB(t)
	if _, err := db.Exec("UPDATE schema_migrations SET dirty = 1"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err == nil {
		t.Error("Migrate() on a dirty schema succeeded, want error")
	}
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so run it again to check idempotency.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestPeerIDStable(t *testing.T) {
	db := testDB(t)

	a, err := db.PeerID("a@s.whatsapp.net")
	if err != nil {
		t.Fatal(err)
	}
	b, err := db.PeerID("b@s.whatsapp.net")
	if err != nil {
		t.Fatal(err)
	}
	again, err := db.PeerID("a@s.whatsapp.net")
	if err != nil {
		t.Fatal(err)
	}
	if a == b || a != again || a <= 0 {
		t.Errorf("ids a=%d b=%d again=%d", a, b, again)
	}
	jid, err := db.PeerJID(b)
	if err != nil || jid != "b@s.whatsapp.net" {
		t.Errorf("PeerJID(%d) = %q, %v", b, jid, err)
	}
	if jid, _ := db.PeerJID(999); jid != "" {
		t.Errorf("PeerJID(unknown) = %q", jid)
	}
}

func TestAliasPeerMergesHistory(t *testing.T) {
	db := testDB(t)

	lid := chatFor(t, db, "77@lid", Chat{Title: "Alice", Position: 500})
	if _, err := db.InsertMessage(&Message{ChatID: lid, RemoteID: "m1", SenderID: lid, Text: "hi", Date: 500}); err != nil {
		t.Fatal(err)
	}
	pn := chatFor(t, db, "123@s.whatsapp.net", Chat{Position: 100})

	got, err := db.AliasPeer("77@lid", "123@s.whatsapp.net")
	if err != nil {
		t.Fatal(err)
	}
	if got != pn {
		t.Fatalf("AliasPeer() = %d, want %d", got, pn)
	}
	if id, _ := db.PeerID("77@lid"); id != pn {
		t.Errorf("alias resolves to %d, want %d", id, pn)
	}

	c, err := db.GetChat(pn)
	if err != nil || c == nil {
		t.Fatalf("GetChat() = %v, %v", c, err)
	}
	if c.Title != "Alice" || c.Position != 500 {
		t.Errorf("merged chat = %+v", c)
	}
	msgs, err := db.ListMessages(pn, 0, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].SenderID != pn {
		t.Errorf("merged messages = %+v", msgs)
	}
	if old, _ := db.GetChat(lid); old != nil {
		t.Error("alias chat should be gone")
	}
}

func TestChatUpsertAndList(t *testing.T) {
	db := testDB(t)

	alice := chatFor(t, db, "alice@s", Chat{Title: "Alice", Position: 1000})
	bob := chatFor(t, db, "bob@s", Chat{Title: "Bob", Position: 2000})
	chatFor(t, db, "hidden@s", Chat{Title: "Hidden"})
	pinned := chatFor(t, db, "pinned@s", Chat{Title: "Pinned", Position: 10, IsPinned: true})

	// Update name; empty title keeps it, positions never move back.
	if err := db.UpsertChat(&Chat{ID: alice, Title: "Alice Updated", Position: 5}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertChat(&Chat{ID: bob}); err != nil {
		t.Fatal(err)
	}

	chats, err := db.ListChats(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 3 {
		t.Fatalf("got %d chats, want 3 positioned", len(chats))
	}
	want := []int64{pinned, bob, alice}
	for i, id := range want {
		if chats[i].ID != id {
			t.Errorf("chats[%d] = %d, want %d", i, chats[i].ID, id)
		}
	}
	if chats[1].Title != "Bob" || chats[2].Title != "Alice Updated" || chats[2].Position != 1000 {
		t.Errorf("chats = %+v", chats)
	}
}

func TestGetChat(t *testing.T) {
	db := testDB(t)

	id := chatFor(t, db, "a@s", Chat{Title: "A", Kind: KindBasicGroup})
	c, err := db.GetChat(id)
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.Title != "A" || c.Kind != KindBasicGroup {
		t.Errorf("got %v, want A", c)
	}

	c, err = db.GetChat(id + 100)
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("expected nil for missing chat")
	}
}

func TestMessageInsertIdempotent(t *testing.T) {
	db := testDB(t)
	chat := chatFor(t, db, "chat@s", Chat{})

	msg := &Message{ChatID: chat, RemoteID: "msg1", Text: "hello", ContentType: "text", Date: 1000}
	created, err := db.InsertMessage(msg)
	if err != nil || !created {
		t.Fatalf("InsertMessage() = %v, %v", created, err)
	}
	first := msg.ID

	dup := &Message{ChatID: chat, RemoteID: "msg1", Text: "other", ContentType: "text", Date: 1000}
	created, err = db.InsertMessage(dup)
	if err != nil || created {
		t.Fatalf("duplicate InsertMessage() = %v, %v", created, err)
	}
	if dup.ID != first {
		t.Errorf("duplicate id = %d, want %d", dup.ID, first)
	}

	if err := db.EditMessage(chat, first, "hello edited", 1100); err != nil {
		t.Fatal(err)
	}
	got, err := db.MessageByRemoteID(chat, "msg1")
	if err != nil || got == nil {
		t.Fatalf("MessageByRemoteID() = %v, %v", got, err)
	}
	if got.Text != "hello edited" || got.EditDate != 1100 {
		t.Errorf("message = %+v", got)
	}
}

func TestListMessagesKeyset(t *testing.T) {
	db := testDB(t)
	chat := chatFor(t, db, "chat@s", Chat{})

	var ids []int64
	for i := range 5 {
		m := &Message{ChatID: chat, RemoteID: string(rune('a' + i)), Date: int64(1000 + i)}
		if _, err := db.InsertMessage(m); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, m.ID)
	}

	page, err := db.ListMessages(chat, 0, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != ids[4] || page[1].ID != ids[3] {
		t.Fatalf("first page = %+v", page)
	}
	page, err = db.ListMessages(chat, page[1].ID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 3 || page[0].ID != ids[2] {
		t.Fatalf("second page = %+v", page)
	}

	if n, _ := db.CountMessages(chat); n != 5 {
		t.Errorf("CountMessages() = %d, want 5", n)
	}
	if latest, _ := db.LatestMessageID(chat); latest != ids[4] {
		t.Errorf("LatestMessageID() = %d, want %d", latest, ids[4])
	}

	removed, err := db.DeleteMessages(chat, []int64{ids[0], ids[1], 9999})
	if err != nil || removed != 2 {
		t.Errorf("DeleteMessages() = %d, %v, want 2", removed, err)
	}
}

func TestMarkChatRead(t *testing.T) {
	db := testDB(t)
	chat := chatFor(t, db, "chat@s", Chat{Position: 1})

	var last int64
	for i, out := range []bool{false, true, false, false} {
		m := &Message{ChatID: chat, RemoteID: string(rune('a' + i)), IsOutgoing: out}
		if _, err := db.InsertMessage(m); err != nil {
			t.Fatal(err)
		}
		if !out {
			if err := db.IncrementUnread(chat); err != nil {
				t.Fatal(err)
			}
		}
		if i == 2 {
			last = m.ID
		}
	}
	if err := db.SetMarkedUnread(chat, true); err != nil {
		t.Fatal(err)
	}

	unread, err := db.MarkChatRead(chat, last)
	if err != nil {
		t.Fatal(err)
	}
	if unread != 1 {
		t.Errorf("unread = %d, want 1", unread)
	}
	c, _ := db.GetChat(chat)
	if c.UnreadCount != 1 || c.LastReadInboxID != last || c.IsMarkedUnread {
		t.Errorf("chat = %+v", c)
	}
}

func TestAnnouncement(t *testing.T) {
	db := testDB(t)
	older := chatFor(t, db, "older@s", Chat{Position: 100})
	newer := chatFor(t, db, "newer@s", Chat{Position: 200})
	chatFor(t, db, "unpositioned@s", Chat{})

	batch, err := db.NextUnannounced(1)
	if err != nil || len(batch) != 1 || batch[0].ID != older {
		t.Fatalf("first batch = %+v, %v", batch, err)
	}
	if err := db.MarkAnnounced(older); err != nil {
		t.Fatal(err)
	}
	batch, _ = db.NextUnannounced(10)
	if len(batch) != 1 || batch[0].ID != newer {
		t.Fatalf("second batch = %+v", batch)
	}
	if err := db.MarkAnnounced(newer); err != nil {
		t.Fatal(err)
	}
	if batch, _ = db.NextUnannounced(10); len(batch) != 0 {
		t.Fatalf("exhausted batch = %+v", batch)
	}
	if err := db.ResetAnnounced(); err != nil {
		t.Fatal(err)
	}
	if batch, _ = db.NextUnannounced(10); len(batch) != 2 {
		t.Errorf("after reset = %d chats, want 2", len(batch))
	}
}

func TestOutbox(t *testing.T) {
	db := testDB(t)
	chat := chatFor(t, db, "chat@s", Chat{})

	if err := db.QueueOutbox("client1", chat, 42, "test msg"); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending, want 1", len(pending))
	}
	if pending[0].ClientMsgID != "client1" || pending[0].ChatID != chat || pending[0].MessageID != 42 {
		t.Errorf("entry = %+v", pending[0])
	}

	if err := db.MarkOutboxSending("client1"); err != nil {
		t.Fatal(err)
	}
	if pending, _ = db.PendingOutbox(); len(pending) != 0 {
		t.Errorf("got %d pending while sending, want 0", len(pending))
	}
	if err := db.RequeueSending(); err != nil {
		t.Fatal(err)
	}
	if pending, _ = db.PendingOutbox(); len(pending) != 1 {
		t.Errorf("got %d pending after requeue, want 1", len(pending))
	}
	if err := db.MarkOutboxSent("client1", "server1"); err != nil {
		t.Fatal(err)
	}

	pending, err = db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after sent, want 0", len(pending))
	}
}

func TestUser(t *testing.T) {
	db := testDB(t)
	id, _ := db.PeerID("j@s")

	if err := db.UpsertUser(&User{ID: id, FirstName: "John", PushName: "Johnny", IsContact: true}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertUser(&User{ID: id, Username: "jj"}); err != nil {
		t.Fatal(err)
	}
	u, err := db.GetUser(id)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.PushName != "Johnny" || u.FirstName != "John" || u.Username != "jj" || !u.IsContact {
		t.Errorf("got %+v", u)
	}

	ids, err := db.ContactIDs()
	if err != nil || len(ids) != 1 || ids[0] != id {
		t.Errorf("ContactIDs() = %v, %v", ids, err)
	}
}

func TestSearchChats(t *testing.T) {
	db := testDB(t)
	news := chatFor(t, db, "news@g.us", Chat{Title: "Daily News", Kind: KindBasicGroup, Position: 10})
	peer := chatFor(t, db, "p@s", Chat{Title: "Paul", Position: 20})
	if err := db.UpsertUser(&User{ID: peer, Username: "paul_100%"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertChat(&Chat{ID: peer, UserID: peer}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		query string
		want  []int64
	}{
		{"news", []int64{news}},
		{"PAUL", []int64{peer}},
		{"100%", []int64{peer}},
		{"a", []int64{peer, news}},
		{"_", []int64{peer}},
		{"nobody", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := db.SearchChats(tt.query, 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("SearchChats(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SearchChats(%q)[%d] = %d, want %d", tt.query, i, got[i], tt.want[i])
				}
			}
		})
	}

	id, err := db.FindByUsername("@Paul_100%")
	if err != nil || id != peer {
		t.Errorf("FindByUsername() = %d, %v, want %d", id, err, peer)
	}
	if id, _ := db.FindByUsername("ghost"); id != 0 {
		t.Errorf("FindByUsername(ghost) = %d", id)
	}
}

func TestFiles(t *testing.T) {
	db := testDB(t)
	f := &File{MediaType: "image", MimeType: "image/jpeg", Size: 10, DirectPath: "/v/t62", MediaKey: []byte{1, 2}}
	if err := db.InsertFile(f); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkFileDownloaded(f.ID, "/files/a.jpg", 10); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetFile(f.ID)
	if err != nil || got == nil {
		t.Fatalf("GetFile() = %v, %v", got, err)
	}
	if !got.Completed || got.LocalPath != "/files/a.jpg" || len(got.MediaKey) != 2 {
		t.Errorf("file = %+v", got)
	}
}

func TestState(t *testing.T) {
	db := testDB(t)
	if v, err := db.GetState("k"); err != nil || v != "" {
		t.Fatalf("GetState(unset) = %q, %v", v, err)
	}
	for _, v := range []string{"v1", "v2"} {
		if err := db.SetState("k", v); err != nil {
			t.Fatal(err)
		}
	}
	if v, _ := db.GetState("k"); v != "v2" {
		t.Errorf("GetState() = %q, want v2", v)
	}
}

func TestRefreshLastMessage(t *testing.T) {
	db := testDB(t)
	chat := chatFor(t, db, "chat@s", Chat{Position: 1})

	var ids []int64
	for i := range 3 {
		m := &Message{ChatID: chat, RemoteID: string(rune('a' + i)), Date: int64(1000 + i)}
		if _, err := db.InsertMessage(m); err != nil {
			t.Fatal(err)
		}
		if err := db.TouchChat(chat, m.ID, m.Date); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, m.ID)
	}

	if _, err := db.DeleteMessages(chat, []int64{ids[2]}); err != nil {
		t.Fatal(err)
	}
	last, err := db.RefreshLastMessage(chat)
	if err != nil || last != ids[1] {
		t.Fatalf("RefreshLastMessage() = %d, %v, want %d", last, err, ids[1])
	}

	if _, err := db.DeleteMessages(chat, ids[:2]); err != nil {
		t.Fatal(err)
	}
	if last, _ := db.RefreshLastMessage(chat); last != 0 {
		t.Errorf("RefreshLastMessage() on empty chat = %d, want 0", last)
	}
	if last, err := db.RefreshLastMessage(9999); err != nil || last != 0 {
		t.Errorf("RefreshLastMessage() on unknown chat = %d, %v", last, err)
	}
}

func TestChatFlags(t *testing.T) {
	db := testDB(t)
	chat := chatFor(t, db, "chat@s", Chat{Position: 1})

	if err := db.SetPinned(chat, true); err != nil {
		t.Fatal(err)
	}
	if err := db.SetArchived(chat, true); err != nil {
		t.Fatal(err)
	}
	if err := db.SetUnreadCount(chat, 4); err != nil {
		t.Fatal(err)
	}
	c, err := db.GetChat(chat)
	if err != nil {
		t.Fatal(err)
	}
	if !c.IsPinned || !c.IsArchived || c.UnreadCount != 4 {
		t.Errorf("chat = %+v", c)
	}
}

func TestMessageIDsFollowDate(t *testing.T) {
	db := testDB(t)
	chat := chatFor(t, db, "chat@s", Chat{})

	late := &Message{ChatID: chat, RemoteID: "late", Date: 2000}
	early := &Message{ChatID: chat, RemoteID: "early", Date: 1000}
	sameSecond := &Message{ChatID: chat, RemoteID: "same", Date: 2000}
	for _, m := range []*Message{late, early, sameSecond} {
		if _, err := db.InsertMessage(m); err != nil {
			t.Fatal(err)
		}
	}
	if !(early.ID < late.ID && late.ID < sameSecond.ID) {
		t.Errorf("ids early=%d late=%d same=%d are not chronological", early.ID, late.ID, sameSecond.ID)
	}
	if got := sameSecond.ID - late.ID; got != 1 {
		t.Errorf("same-second ids differ by %d, want 1", got)
	}
}
