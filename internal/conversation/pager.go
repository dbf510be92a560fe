// Package conversation owns the message list of the chat the user has open
// and walks its history backwards page by page.
package conversation

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/matheus3301/telesync/internal/bridge"
	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/projection"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

// DefaultPageSize is the number of messages requested per history page.
const DefaultPageSize = 10

// Pager binds to at most one chat at a time. Every bind starts a new
// generation; work started for an older generation never touches the
// projection again.
type Pager struct {
	caller   bridge.Caller
	messages *projection.Value[[]*td.Message]
	pageSize int32
	logger   *zap.Logger

	mu        sync.Mutex
	chatID    int64
	gen       uint64
	cancelled bool

	wg sync.WaitGroup
}

// New creates an unbound pager. A pageSize below 1 means DefaultPageSize.
func New(caller bridge.Caller, b *bus.Bus, pageSize int, logger *zap.Logger) *Pager {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pager{
		caller:   caller,
		messages: projection.New[[]*td.Message](nil, b, bus.KindConversation),
		pageSize: int32(pageSize),
		logger:   logger,
	}
}

// Messages returns the conversation projection, newest first.
func (p *Pager) Messages() *projection.Value[[]*td.Message] {
	return p.messages
}

// ChatID returns the bound chat, or 0 when unbound.
func (p *Pager) ChatID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled {
		return 0
	}
	return p.chatID
}

// Bind clears the projection and starts walking the history of chatID in
// the background. Any walk of a previous binding stops at its next step.
func (p *Pager) Bind(ctx context.Context, chatID int64) {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.chatID = chatID
	p.cancelled = false
	p.mu.Unlock()

	p.messages.Store(nil)
	p.logger.Debug("conversation bound", zap.Int64("chat_id", chatID))

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.walk(ctx, chatID, gen)
	}()
}

// Unbind stops the running walk. It is safe to call repeatedly.
func (p *Pager) Unbind() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled {
		return
	}
	p.cancelled = true
	p.gen++
	p.logger.Debug("conversation unbound", zap.Int64("chat_id", p.chatID))
}

// Wait blocks until every background walk has returned.
func (p *Pager) Wait() {
	p.wg.Wait()
}

func (p *Pager) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.cancelled && p.gen == gen
}

func (p *Pager) snapshot() (chatID int64, gen uint64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chatID, p.gen, !p.cancelled && p.chatID != 0
}

func (p *Pager) walk(ctx context.Context, chatID int64, gen uint64) {
	var (
		cursor    int64
		collected int
		pages     int
	)
	for {
		if !p.current(gen) || ctx.Err() != nil {
			p.logger.Debug("history walk cancelled", zap.Int64("chat_id", chatID), zap.Int("pages", pages))
			return
		}
		page, err := p.fetch(ctx, chatID, cursor)
		if err != nil {
			p.logger.Warn("history page failed", zap.Int64("chat_id", chatID), zap.Int64("from_message_id", cursor), zap.Error(err))
			return
		}
		pages++
		if len(page.Messages) == 0 {
			break
		}
		sorted := newestFirst(page.Messages)
		if !p.appendPage(gen, sorted) {
			return
		}
		collected += len(sorted)
		cursor = sorted[len(sorted)-1].ID
		if page.TotalCount > 0 && collected >= int(page.TotalCount) {
			break
		}
	}
	p.logger.Debug("history walk finished", zap.Int64("chat_id", chatID), zap.Int("pages", pages), zap.Int("messages", collected))
}

func (p *Pager) fetch(ctx context.Context, chatID, fromMessageID int64) (*td.Messages, error) {
	return bridge.Do[*td.Messages](ctx, p.caller, &td.GetChatHistory{
		ChatID:        chatID,
		FromMessageID: fromMessageID,
		Limit:         p.pageSize,
	})
}

// appendPage adds page after the messages already loaded, skipping ids that
// are present. It reports false when gen is no longer current.
func (p *Pager) appendPage(gen uint64, page []*td.Message) bool {
	stale := false
	p.messages.Update(func(cur []*td.Message) ([]*td.Message, bool) {
		// A page requested before Unbind or a rebind is dropped on arrival,
		// not appended to the new state.
		if !p.current(gen) {
			stale = true
			return nil, false
		}
		next := slices.Clone(cur)
		for _, m := range page {
			if indexOf(next, m.ID) < 0 {
				next = append(next, m)
			}
		}
		return next, true
	})
	return !stale
}

// LoadMore fetches one page older than the oldest loaded message and
// returns how many new messages it added.
func (p *Pager) LoadMore(ctx context.Context) (int, error) {
	chatID, gen, ok := p.snapshot()
	if !ok {
		return 0, nil
	}
	var cursor int64
	if cur := p.messages.Load(); len(cur) > 0 {
		cursor = cur[len(cur)-1].ID
	}
	page, err := p.fetch(ctx, chatID, cursor)
	if err != nil {
		return 0, err
	}
	if len(page.Messages) == 0 {
		return 0, nil
	}
	before := len(p.messages.Load())
	if !p.appendPage(gen, newestFirst(page.Messages)) {
		return 0, nil
	}
	return len(p.messages.Load()) - before, nil
}

// Prepend inserts msg at the front when it belongs to the bound chat. A
// message already present is replaced in place instead.
func (p *Pager) Prepend(msg *td.Message) bool {
	return p.upsert(msg, true)
}

// Replace swaps msg in place when it is loaded. It never inserts.
func (p *Pager) Replace(msg *td.Message) bool {
	return p.upsert(msg, false)
}

func (p *Pager) upsert(msg *td.Message, insert bool) bool {
	if msg == nil {
		return false
	}
	return p.messages.Update(func(cur []*td.Message) ([]*td.Message, bool) {
		if p.ChatID() != msg.ChatID {
			return nil, false
		}
		if i := indexOf(cur, msg.ID); i >= 0 {
			next := slices.Clone(cur)
			next[i] = msg
			return next, true
		}
		if !insert {
			return nil, false
		}
		next := make([]*td.Message, 0, len(cur)+1)
		next = append(next, msg)
		return append(next, cur...), true
	})
}

// PatchContent replaces the content of a loaded message.
func (p *Pager) PatchContent(chatID, messageID int64, content td.MessageContent) bool {
	return p.messages.Update(func(cur []*td.Message) ([]*td.Message, bool) {
		if p.ChatID() != chatID {
			return nil, false
		}
		i := indexOf(cur, messageID)
		if i < 0 {
			return nil, false
		}
		patched := *cur[i]
		patched.Content = content
		next := slices.Clone(cur)
		next[i] = &patched
		return next, true
	})
}

// Remove drops the loaded messages whose ids are in ids. The removal is
// committed only when it affects at most maxRemoved messages; removed is
// the number of matches either way.
func (p *Pager) Remove(chatID int64, ids []int64, maxRemoved int) (removed int, committed bool) {
	committed = p.messages.Update(func(cur []*td.Message) ([]*td.Message, bool) {
		if p.ChatID() != chatID {
			return nil, false
		}
		next := slices.DeleteFunc(slices.Clone(cur), func(m *td.Message) bool {
			return slices.Contains(ids, m.ID)
		})
		removed = len(cur) - len(next)
		if removed == 0 || removed > maxRemoved {
			return nil, false
		}
		return next, true
	})
	return removed, committed
}

// Reload re-fetches messageID from the bound chat and replaces it in place,
// or inserts it at the front when it is not loaded.
func (p *Pager) Reload(ctx context.Context, messageID int64) error {
	chatID, _, ok := p.snapshot()
	if !ok {
		return nil
	}
	msg, err := bridge.Do[*td.Message](ctx, p.caller, &td.GetMessage{ChatID: chatID, MessageID: messageID})
	if err != nil {
		return err
	}
	p.Prepend(msg)
	return nil
}

func indexOf(msgs []*td.Message, id int64) int {
	return slices.IndexFunc(msgs, func(m *td.Message) bool { return m.ID == id })
}

func newestFirst(msgs []*td.Message) []*td.Message {
	out := slices.Clone(msgs)
	slices.SortStableFunc(out, func(a, b *td.Message) int {
		if c := cmp.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}
