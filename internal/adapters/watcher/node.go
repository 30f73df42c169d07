package watcher

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/weave/internal/adapters/fs"
	"go.trai.ch/weave/internal/adapters/logger"
	"go.trai.ch/weave/internal/core/ports"
)

// NodeID is the unique identifier for the file observer Graft node.
const NodeID graft.ID = "adapter.watcher"

func init() {
	graft.Register(graft.Node[ports.FileObserver]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{fs.SnapshotterNodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.FileObserver, error) {
			snapshotter, err := graft.Dep[ports.Snapshotter](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewObserver(snapshotter, log), nil
		},
	})
}
