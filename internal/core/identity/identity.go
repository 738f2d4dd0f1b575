package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/dep2p/go-bolt8/config"
	"github.com/dep2p/go-bolt8/pkg/lib/crypto"
	"github.com/dep2p/go-bolt8/pkg/lib/log"
	"github.com/dep2p/go-bolt8/pkg/types"
)

var logger = log.Logger("core/identity")

// ============================================================================
//                              Identity
// ============================================================================

// Identity 本节点身份
type Identity struct {
	mu     sync.RWMutex
	key    *crypto.PrivateKey
	nodeID types.NodeID
	source string
}

// New 以给定私钥创建身份，Identity 接管私钥的生命周期
func New(key *crypto.PrivateKey) (*Identity, error) {
	if key == nil {
		return nil, crypto.ErrNilPrivateKey
	}
	return &Identity{
		key:    key,
		nodeID: key.PublicKey().NodeID(),
		source: "memory",
	}, nil
}

// Load 按配置加载或创建身份
//
// 返回：
//   - *Identity: 节点身份
//   - error: 文件损坏、口令错误或禁止自动生成时返回
func Load(cfg config.IdentityConfig) (*Identity, error) {
	password := []byte(cfg.Password)
	defer crypto.Zero(password)

	if cfg.KeyFile == "" {
		if !cfg.AutoGenerate {
			return nil, ErrNoIdentity
		}
		key, err := crypto.GeneratePrivateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		id, _ := New(key)
		id.source = "ephemeral"
		logger.Warn("未配置密钥文件，使用临时身份", "nodeID", id.nodeID.ShortString())
		return id, nil
	}

	var (
		key     *crypto.PrivateKey
		created bool
		err     error
	)
	if cfg.AutoGenerate {
		key, created, err = crypto.LoadOrCreateKeyFile(cfg.KeyFile, password)
	} else {
		key, err = crypto.LoadKeyFile(cfg.KeyFile, password)
		if errors.Is(err, crypto.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoIdentity, cfg.KeyFile)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load identity %s: %w", cfg.KeyFile, err)
	}

	id, _ := New(key)
	id.source = cfg.KeyFile
	if created {
		logger.Info("已生成新的节点密钥", "file", cfg.KeyFile, "nodeID", id.nodeID.ShortString())
	} else {
		logger.Debug("已加载节点密钥", "file", cfg.KeyFile, "nodeID", id.nodeID.ShortString())
	}
	return id, nil
}

// NodeID 返回节点 ID
func (i *Identity) NodeID() types.NodeID {
	return i.nodeID
}

// PublicKey 返回节点公钥
func (i *Identity) PublicKey() *crypto.PublicKey {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.key == nil {
		return nil
	}
	return i.key.PublicKey()
}

// PrivateKey 返回节点私钥
//
// 返回的私钥在 Close 之后会被清零，调用方不能长期持有。
func (i *Identity) PrivateKey() (*crypto.PrivateKey, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.key == nil {
		return nil, ErrIdentityClosed
	}
	return i.key, nil
}

// Source 返回密钥来源（文件路径、"ephemeral" 或 "memory"）
func (i *Identity) Source() string {
	return i.source
}

// Close 清零私钥
func (i *Identity) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.key != nil {
		i.key.Zero()
		i.key = nil
	}
	return nil
}
