package dispatch

import (
	"context"
	"sync"

	"github.com/matheus3301/telesync/internal/bridge"
	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/projection"
	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxFolderFetches bounds the concurrent folder lookups of one update.
const maxFolderFetches = 8

// folderSet holds the folder projection. Each folders update gets a
// sequence number; a refresh commits only if no later update committed
// first.
type folderSet struct {
	value *projection.Value[[]td.ChatFolder]

	mu        sync.Mutex
	issued    uint64
	committed uint64
}

func newFolderSet(b *bus.Bus) *folderSet {
	return &folderSet{value: projection.New[[]td.ChatFolder](nil, b, bus.KindFolders)}
}

func (f *folderSet) next() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued++
	return f.issued
}

// refresh fetches every folder in infos concurrently. Folders whose fetch
// fails are left out; the survivors replace the projection in the order the
// update listed them.
func (f *folderSet) refresh(ctx context.Context, caller bridge.Caller, seq uint64, infos []td.ChatFolderInfo, logger *zap.Logger) {
	results := make([]*td.ChatFolder, len(infos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFolderFetches)
	for i, info := range infos {
		g.Go(func() error {
			folder, err := bridge.Do[*td.ChatFolder](gctx, caller, &td.GetChatFolder{ChatFolderID: info.ID})
			if err != nil {
				logger.Debug("chat folder fetch failed", zap.Int32("folder_id", info.ID), zap.Error(err))
				return nil
			}
			if folder.ID == 0 {
				folder.ID = info.ID
			}
			if folder.Title == "" {
				folder.Title = info.Title
			}
			results[i] = folder
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return
	}

	folders := make([]td.ChatFolder, 0, len(results))
	for _, r := range results {
		if r != nil {
			folders = append(folders, *r)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if seq < f.committed {
		logger.Debug("stale chat folders dropped", zap.Uint64("seq", seq))
		return
	}
	f.committed = seq
	f.value.Store(folders)
}
