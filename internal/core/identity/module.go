package identity

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-bolt8/config"
	"github.com/dep2p/go-bolt8/pkg/lib/crypto"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config 配置（可选，使用默认配置）
	Config *config.Config `optional:"true"`

	// PrivateKey 直接注入的私钥（可选，优先于密钥文件）
	PrivateKey *crypto.PrivateKey `optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Identity *Identity
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	if input.PrivateKey != nil {
		id, err := New(input.PrivateKey)
		if err != nil {
			return ModuleOutput{}, err
		}
		return ModuleOutput{Identity: id}, nil
	}

	cfg := config.DefaultIdentityConfig()
	if input.Config != nil {
		cfg = input.Config.Identity
	}

	id, err := Load(cfg)
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{Identity: id}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("identity",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC       fx.Lifecycle
	Identity *Identity
}

// registerLifecycle 停止时清零私钥
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return input.Identity.Close()
		},
	})
}
