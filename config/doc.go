// Package config 提供 mcpgate 的配置加载。
//
// 配置来源按优先级依次为默认值、YAML 文件、MCPGATE_ 前缀的环境变量，
// 最后是托管平台注入的 PORT。加载完成后统一执行 Validate。
package config
