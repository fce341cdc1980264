package sketch

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/gekko3d/sketch/sketchrt/rt/core"
)

type AssetId string

// AssetServer caches loaded asset packs. A path is loaded once; later loads
// return the same id.
type AssetServer struct {
	mu    sync.Mutex
	root  string
	packs map[AssetId]*AssetPack
	paths map[string]AssetId
}

type AssetServerModule struct{}

func NewAssetServer(root string) *AssetServer {
	return &AssetServer{
		root:  root,
		packs: make(map[AssetId]*AssetPack),
		paths: make(map[string]AssetId),
	}
}

func (server *AssetServer) resolve(path string) string {
	if filepath.IsAbs(path) || server.root == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(server.root, path)
}

// LoadPack loads a YAML asset pack relative to the asset root.
func (server *AssetServer) LoadPack(path string) (AssetId, error) {
	full := server.resolve(path)

	server.mu.Lock()
	defer server.mu.Unlock()
	if id, ok := server.paths[full]; ok {
		return id, nil
	}
	pack, err := LoadAssetPack(full)
	if err != nil {
		return "", err
	}
	id := makeAssetId()
	server.packs[id] = pack
	server.paths[full] = id
	return id, nil
}

// AddPack registers an already decoded pack.
func (server *AssetServer) AddPack(pack *AssetPack) AssetId {
	server.mu.Lock()
	defer server.mu.Unlock()
	id := makeAssetId()
	server.packs[id] = pack
	return id
}

func (server *AssetServer) Pack(id AssetId) (AssetSource, error) {
	server.mu.Lock()
	defer server.mu.Unlock()
	pack, ok := server.packs[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, core.ErrNotFound)
	}
	return pack, nil
}

// Unload drops a pack. Handles already imported into a scene stay valid.
func (server *AssetServer) Unload(id AssetId) {
	server.mu.Lock()
	defer server.mu.Unlock()
	delete(server.packs, id)
	for path, pid := range server.paths {
		if pid == id {
			delete(server.paths, path)
		}
	}
}

func (server *AssetServer) Len() int {
	server.mu.Lock()
	defer server.mu.Unlock()
	return len(server.packs)
}

func (AssetServerModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(NewAssetServer(app.config.AssetRoot))
}

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}
