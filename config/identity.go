package config

// IdentityConfig 节点身份配置
type IdentityConfig struct {
	// KeyFile 密钥文件路径
	// 为空时每次启动生成临时密钥
	KeyFile string `json:"key_file"`

	// Password 密钥文件口令，只从环境变量读取，不写入配置文件
	Password string `json:"-"`

	// AutoGenerate 密钥文件不存在时是否自动生成
	AutoGenerate bool `json:"auto_generate"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{
		KeyFile:      "",
		AutoGenerate: true,
	}
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	if !c.AutoGenerate && c.KeyFile == "" {
		return ErrMissingKeyFile
	}
	return nil
}

// WithKeyFile 设置密钥文件路径
func (c IdentityConfig) WithKeyFile(path string) IdentityConfig {
	c.KeyFile = path
	return c
}
