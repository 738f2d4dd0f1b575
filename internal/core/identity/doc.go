// Package identity 管理本节点的 secp256k1 静态密钥
//
// 密钥来源优先级：直接注入的私钥 > 密钥文件 > 自动生成的临时密钥。
// 节点 ID 即 33 字节压缩公钥，握手中作为 XK 的静态密钥使用。
// 模块停止时清零私钥。
package identity
