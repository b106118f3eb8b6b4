package config

const (
	defaultSink        = "file"
	defaultLogDir      = "logs"
	defaultUpstream    = "https://openrouter.ai/api/v1"
	defaultProxyListen = ":8000"
	defaultAPIListen   = ":8001"

	defaultModelsCacheTTL = "5m"

	defaultImportURL = "http://localhost:3000/api/v1/chats/import"

	defaultEventTopic  = "taperelay.records"
	defaultNATSSubject = "taperelay.records"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Sink:   defaultSink,
			LogDir: defaultLogDir,
		},
		Proxy: ProxyConfig{
			Upstream: defaultUpstream,
			Listen:   defaultProxyListen,

			ModelsCacheTTL: defaultModelsCacheTTL,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Import: ImportConfig{
			URL: defaultImportURL,
		},
		EventStream: EventStreamConfig{
			Topic:       defaultEventTopic,
			NATSSubject: defaultNATSSubject,
		},
	}
}
