// Package tlsutil 提供集中式 TLS 与超时配置，
// 为 OpenAI HTTP 客户端（含 SSE 流式客户端）提供安全加固的设置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
