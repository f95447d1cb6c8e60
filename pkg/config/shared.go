package config

import "strconv"

// StorageConfig describes the content storage target build artifacts are uploaded to.
type StorageConfig struct {
	Driver          string
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	UseSSL          bool
	KeyPrefix       string
}

// TransportConfig describes the durable log stream and the notification channel.
type TransportConfig struct {
	NATSURL       string
	NATSToken     string
	Stream        string
	SubjectPrefix string
	Partitions    int
	RedisURL      string
	ChannelPrefix string
}

// LoadStorageConfig reads the storage settings shared by the API (which forwards
// them to workers) and the builder.
func LoadStorageConfig() StorageConfig {
	return StorageConfig{
		Driver:          GetString("STORAGE_DRIVER", "s3"),
		Bucket:          GetString("AWS_BUCKET_NAME", ""),
		Region:          GetString("AWS_REGION", "us-east-1"),
		Endpoint:        GetString("STORAGE_ENDPOINT", ""),
		AccessKeyID:     GetString("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: GetString("AWS_ACCESS_KEY_SECRET", ""),
		UsePathStyle:    GetBool("STORAGE_PATH_STYLE", false),
		UseSSL:          GetBool("STORAGE_USE_SSL", true),
		KeyPrefix:       GetString("STORAGE_KEY_PREFIX", "__outputs"),
	}
}

// LoadTransportConfig reads the log transport settings.
func LoadTransportConfig() TransportConfig {
	return TransportConfig{
		NATSURL:       GetString("NATS_URL", "nats://nats:4222"),
		NATSToken:     GetString("NATS_TOKEN", ""),
		Stream:        GetString("LOG_STREAM", "BUILD_LOGS"),
		SubjectPrefix: GetString("LOG_SUBJECT_PREFIX", "build.logs"),
		Partitions:    GetInt("LOG_PARTITIONS", 4),
		RedisURL:      GetString("REDIS_URL", "redis://redis:6379/0"),
		ChannelPrefix: GetString("LOG_CHANNEL_PREFIX", "logs:"),
	}
}

// Env renders the storage settings as worker environment entries.
func (c StorageConfig) Env() []string {
	return []string{
		"STORAGE_DRIVER=" + c.Driver,
		"AWS_BUCKET_NAME=" + c.Bucket,
		"AWS_REGION=" + c.Region,
		"STORAGE_ENDPOINT=" + c.Endpoint,
		"AWS_ACCESS_KEY_ID=" + c.AccessKeyID,
		"AWS_ACCESS_KEY_SECRET=" + c.SecretAccessKey,
		"STORAGE_PATH_STYLE=" + strconv.FormatBool(c.UsePathStyle),
		"STORAGE_USE_SSL=" + strconv.FormatBool(c.UseSSL),
		"STORAGE_KEY_PREFIX=" + c.KeyPrefix,
	}
}

// Env renders the transport settings as worker environment entries.
func (c TransportConfig) Env() []string {
	return []string{
		"NATS_URL=" + c.NATSURL,
		"NATS_TOKEN=" + c.NATSToken,
		"LOG_STREAM=" + c.Stream,
		"LOG_SUBJECT_PREFIX=" + c.SubjectPrefix,
		"LOG_PARTITIONS=" + strconv.Itoa(c.Partitions),
		"REDIS_URL=" + c.RedisURL,
		"LOG_CHANNEL_PREFIX=" + c.ChannelPrefix,
	}
}
