package core

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to the server.
// It is read once at startup and never modified afterwards.
type Config struct {
	// Hostname or IP address on which the server will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Port on which the server will listen for connections.
	Port int `mapstructure:"port"`
	// Player limit advertised in the status response and enforced at login.
	MaxPlayers int `mapstructure:"max_players"`
	// Maximum number of concurrent connections the server will allow.
	MaxConnections int `mapstructure:"max_connections"`
	// Description shown in the client's server list.
	MOTD string `mapstructure:"motd"`

	Logging   LoggingConfig   `mapstructure:"logging"`
	Protocol  ProtocolConfig  `mapstructure:"protocol"`
	Play      PlayConfig      `mapstructure:"play"`
	World     WorldConfig     `mapstructure:"world"`
	Debugging DebuggingConfig `mapstructure:"debugging"`
}

type LoggingConfig struct {
	// Minimum level of a log required to be written. Options: debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`
	// Full path to file to which logs will be written. Blank will write to stdout.
	LogFilePath string `mapstructure:"log_file_path"`
}

type ProtocolConfig struct {
	// Version name and protocol number reported in the status response.
	VersionName string `mapstructure:"version_name"`
	Version     int    `mapstructure:"version"`
	// Largest frame body accepted from a client, in bytes.
	MaxFrameSize int `mapstructure:"max_frame_size"`
	// Number of frames buffered per connection before senders block.
	SendQueueSize int `mapstructure:"send_queue_size"`
	// Longest a single write to a client may take before it's disconnected.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// Longest a connection may go without sending anything before it reaches
	// the play state. Zero disables the limit.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type PlayConfig struct {
	ViewDistance int `mapstructure:"view_distance"`
	// Chunks are sent for every column within this many of the origin.
	ChunkRadius int    `mapstructure:"chunk_radius"`
	GameMode    int    `mapstructure:"game_mode"`
	Hardcore    bool   `mapstructure:"hardcore"`
	WorldName   string `mapstructure:"world_name"`

	SpawnX float64 `mapstructure:"spawn_x"`
	SpawnY float64 `mapstructure:"spawn_y"`
	SpawnZ float64 `mapstructure:"spawn_z"`

	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
	// Players that don't answer a keep-alive for this long are disconnected.
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout"`
}

type WorldConfig struct {
	// Where world data is read from: files, sqlite or postgres.
	Engine             string `mapstructure:"engine"`
	DimensionCodecFile string `mapstructure:"dimension_codec_file"`
	DimensionFile      string `mapstructure:"dimension_file"`
	ChunkDir           string `mapstructure:"chunk_dir"`
	DefaultChunkFile   string `mapstructure:"default_chunk_file"`
	// How long world data stays cached in memory. Zero caches forever.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	Database DatabaseConfig `mapstructure:"database"`
}

type DatabaseConfig struct {
	// SQLite database file, used when the engine is sqlite.
	Filename string `mapstructure:"filename"`
	// Hostname of the Postgres database instance.
	Host string `mapstructure:"host"`
	// Port on host on which the Postgres instance is accepting connections.
	Port int `mapstructure:"port"`
	// Name of the database in Postgres.
	Name string `mapstructure:"name"`
	// Username and password of a user with full RW privileges to the database.
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// Set to verify-full if the Postgres instance supports SSL.
	SSLMode string `mapstructure:"sslmode"`
}

type DebuggingConfig struct {
	// Enable extra info-providing mechanisms for the server.
	Enabled bool `mapstructure:"enabled"`
	// Port on which the pprof and metrics server will be started.
	HTTPPort int `mapstructure:"http_port"`
	// Log every frame sent and received.
	PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
	// Enable database-level query logging.
	DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
}

const envVarPrefix = "PANDORA"

func setDefaults(v *viper.Viper) {
	v.SetDefault("hostname", "0.0.0.0")
	v.SetDefault("port", 25565)
	v.SetDefault("max_players", 20)
	v.SetDefault("max_connections", 100)
	v.SetDefault("motd", "A Minecraft Server")
	v.SetDefault("logging.log_level", "info")
	v.SetDefault("logging.log_file_path", "")
	v.SetDefault("protocol.version_name", "1.16.5")
	v.SetDefault("protocol.version", 754)
	v.SetDefault("protocol.max_frame_size", 2097151)
	v.SetDefault("protocol.send_queue_size", 100)
	v.SetDefault("protocol.write_timeout", "30s")
	v.SetDefault("protocol.idle_timeout", "30s")
	v.SetDefault("play.view_distance", 10)
	v.SetDefault("play.chunk_radius", 2)
	v.SetDefault("play.game_mode", 1)
	v.SetDefault("play.hardcore", false)
	v.SetDefault("play.world_name", "minecraft:overworld")
	v.SetDefault("play.spawn_x", 0.0)
	v.SetDefault("play.spawn_y", 64.0)
	v.SetDefault("play.spawn_z", 0.0)
	v.SetDefault("play.keep_alive_interval", "10s")
	v.SetDefault("play.keep_alive_timeout", "30s")
	v.SetDefault("world.engine", "files")
	v.SetDefault("world.dimension_codec_file", "world/dimension_codec.nbt")
	v.SetDefault("world.dimension_file", "")
	v.SetDefault("world.chunk_dir", "world/chunks")
	v.SetDefault("world.default_chunk_file", "world/chunk.bin")
	v.SetDefault("world.cache_ttl", "5m")
	v.SetDefault("world.database.filename", "pandora.db")
	v.SetDefault("world.database.host", "localhost")
	v.SetDefault("world.database.port", 5432)
	v.SetDefault("world.database.name", "pandora")
	v.SetDefault("world.database.username", "")
	v.SetDefault("world.database.password", "")
	v.SetDefault("world.database.sslmode", "disable")
	v.SetDefault("debugging.enabled", false)
	v.SetDefault("debugging.http_port", 6060)
	v.SetDefault("debugging.packet_logging_enabled", false)
	v.SetDefault("debugging.database_logging_enabled", false)
}

// LoadConfig reads config.yaml from configPath on top of the defaults. Every
// option can be overridden with an environment variable; nested options use
// underscores, e.g. play.chunk_radius is PANDORA_PLAY_CHUNK_RADIUS.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: no config file in path %s", configPath)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, world.engine can be set using: <envVarPrefix>_WORLD_ENGINE
	for _, k := range v.AllKeys() {
		envVar := envVarPrefix + "_" + strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVar); err != nil {
			return nil, fmt.Errorf("error binding %s to %s: %w", k, envVar, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config object: %w", err)
	}
	return config, nil
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a database URL generated from the provided config values.
func (c *Config) DatabaseURL() string {
	db := c.World.Database
	return fmt.Sprintf(databaseURITemplate, db.Host, db.Port, db.Name, db.Username, db.Password, db.SSLMode)
}
