package config

import "time"

// LauncherConfig controls how build workers are provisioned.
type LauncherConfig struct {
	Backend       string
	DockerHost    string
	WorkerImage   string
	Network       string
	BuilderBinary string
	Workdir       string
	BuildCommand  string
}

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment     string
	Addr            string
	LogLevel        string
	DatabaseURL     string
	MigrationsDir   string
	AutoMigrate     bool
	PublicURLScheme string
	ProxyDomain     string
	WSSendBuffer    int
	ShutdownTimeout time.Duration
	Launcher        LauncherConfig
	Storage         StorageConfig
	Transport       TransportConfig
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:     GetString("APP_ENV", "development"),
		Addr:            GetString("API_ADDR", ":9000"),
		LogLevel:        GetString("LOG_LEVEL", "info"),
		DatabaseURL:     GetString("DATABASE_URL", "postgres://launchpad:launchpad@db:5432/launchpad?sslmode=disable"),
		MigrationsDir:   GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		AutoMigrate:     GetBool("DB_AUTO_MIGRATE", true),
		PublicURLScheme: GetString("PUBLIC_URL_SCHEME", "http"),
		ProxyDomain:     GetString("PROXY_DOMAIN", "localhost:8000"),
		WSSendBuffer:    GetInt("WS_SEND_BUFFER", 64),
		ShutdownTimeout: GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Launcher: LauncherConfig{
			Backend:       GetString("LAUNCHER_BACKEND", "docker"),
			DockerHost:    GetString("DOCKER_HOST", ""),
			WorkerImage:   GetString("WORKER_IMAGE", "launchpad-builder:latest"),
			Network:       GetString("WORKER_NETWORK", ""),
			BuilderBinary: GetString("BUILDER_BINARY", "launchpad-builder"),
			Workdir:       GetString("BUILDER_WORKDIR", "/tmp/launchpad"),
			BuildCommand:  GetString("BUILD_COMMAND", ""),
		},
		Storage:   LoadStorageConfig(),
		Transport: LoadTransportConfig(),
	}
}
