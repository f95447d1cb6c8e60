package config

import "time"

// BuilderConfig holds the build correlation context and collaborators a worker
// receives at launch. Workers have no other input channel.
type BuilderConfig struct {
	LogLevel         string
	RepositoryURL    string
	ProjectID        string
	ProjectSubdomain string
	DeploymentID     string
	BuildCommand     string
	Workdir          string
	GitTimeout       time.Duration
	BuildTimeout     time.Duration
	PublishTimeout   time.Duration
	Storage          StorageConfig
	Transport        TransportConfig
}

// DefaultBuildCommand installs dependencies and runs the project's build script.
const DefaultBuildCommand = "npm install && npm run build"

// LoadBuilderConfig constructs a BuilderConfig from environment variables.
func LoadBuilderConfig() BuilderConfig {
	command := GetString("BUILD_COMMAND", "")
	if command == "" {
		command = DefaultBuildCommand
	}
	return BuilderConfig{
		LogLevel:         GetString("LOG_LEVEL", "info"),
		RepositoryURL:    GetString("GIT_REPOSITORY_URL", ""),
		ProjectID:        GetString("PROJECT_ID", ""),
		ProjectSubdomain: GetString("PROJECT_SUBDOMAIN", ""),
		DeploymentID:     GetString("DEPLOYMENT_ID", ""),
		BuildCommand:     command,
		Workdir:          GetString("BUILDER_WORKDIR", "/tmp/launchpad"),
		GitTimeout:       GetDuration("GIT_TIMEOUT", 2*time.Minute),
		BuildTimeout:     GetDuration("BUILD_TIMEOUT", 20*time.Minute),
		PublishTimeout:   GetDuration("LOG_PUBLISH_TIMEOUT", 5*time.Second),
		Storage:          LoadStorageConfig(),
		Transport:        LoadTransportConfig(),
	}
}
