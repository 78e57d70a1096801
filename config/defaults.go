// =============================================================================
// 📦 GenAIScope 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Client:    DefaultClientConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// DefaultClientConfig 返回默认客户端配置
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "gpt-4o-mini",
		Timeout:    60 * time.Second,
		Burst:      1,
		MaxRetries: 2,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{"stderr"},
	}
}

// DefaultTelemetryConfig 返回默认遥测配置，默认关闭，不记录事件正文
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:        false,
		Exporter:       ExporterStdout,
		Endpoint:       "localhost:4317",
		Insecure:       true,
		ServiceName:    "genaiscope",
		SampleRate:     1.0,
		ExportInterval: 15 * time.Second,
		RecordEvents:   false,
		RecordContent:  false,
	}
}

// DefaultMetricsConfig 返回默认 Prometheus 配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:    false,
		ListenAddr: ":9464",
		Namespace:  "genaiscope",
	}
}
