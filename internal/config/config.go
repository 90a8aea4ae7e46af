package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/callbridge/internal/adapters/engine/sim"
	"github.com/dkeye/callbridge/internal/app/orch"
	"github.com/dkeye/callbridge/internal/app/placement"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	StaticPath   string        `mapstructure:"static_path"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	Secret       string        `mapstructure:"secret"`
	LogLevel     string        `mapstructure:"log_level"`
	EventsBuffer int           `mapstructure:"events_buffer"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	ICEServers   []string      `mapstructure:"ice_servers"`
	Admission    string        `mapstructure:"admission"`

	Timeouts    orch.Timeouts      `mapstructure:"timeouts"`
	Permissions Permissions        `mapstructure:"permissions"`
	Phone       core.PhoneSettings `mapstructure:"phone"`
	Placement   placement.Config   `mapstructure:"placement"`
	MQTT        MQTT               `mapstructure:"mqtt"`
	AuthRate    AuthRate           `mapstructure:"auth_rate"`
	Engine      Engine             `mapstructure:"engine"`
}

// Permissions are the static capture grants of this host.
type Permissions struct {
	Audio bool `mapstructure:"audio"`
	Video bool `mapstructure:"video"`
}

type MQTT struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         byte   `mapstructure:"qos"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

type AuthRate struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type Engine struct {
	Kind string     `mapstructure:"kind"`
	Sim  sim.Config `mapstructure:"sim"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")
	v.SetDefault("events_buffer", 64)
	v.SetDefault("send_buffer", 32)
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("admission", "reject")

	v.SetDefault("timeouts.initialize", "10s")
	v.SetDefault("timeouts.authenticate", "15s")
	v.SetDefault("timeouts.answer", "30s")

	v.SetDefault("permissions.audio", true)
	v.SetDefault("permissions.video", true)

	v.SetDefault("phone.video_stream_mode", "auxiliary")
	v.SetDefault("phone.audio_bnr", true)
	v.SetDefault("phone.audio_bnr_mode", "LP")
	v.SetDefault("phone.default_facing_mode", "user")
	v.SetDefault("phone.video_max_rx_bandwidth", 4000000)
	v.SetDefault("phone.video_max_tx_bandwidth", 4000000)
	v.SetDefault("phone.sharing_max_rx_bandwidth", 8000000)
	v.SetDefault("phone.audio_max_rx_bandwidth", 64000)
	v.SetDefault("phone.background_connection", true)
	v.SetDefault("phone.default_loud_speaker", true)
	v.SetDefault("phone.decoder_mosaic", true)
	v.SetDefault("phone.video_max_tx_fps", 30)

	pl := placement.DefaultConfig()
	v.SetDefault("placement.edge_inset", pl.EdgeInset)
	v.SetDefault("placement.top_margin", pl.TopMargin)
	v.SetDefault("placement.default_trailing", pl.DefaultTrailing)
	v.SetDefault("placement.default_top", pl.DefaultTop)
	v.SetDefault("placement.thumb.width", pl.Thumb.Width)
	v.SetDefault("placement.thumb.height", pl.Thumb.Height)
	v.SetDefault("placement.spring.damping", pl.Spring.Damping)
	v.SetDefault("placement.spring.initial_velocity", pl.Spring.InitialVelocity)
	v.SetDefault("placement.spring.duration", pl.Spring.Duration.String())
	v.SetDefault("placement.spring.curve", string(pl.Spring.Curve))

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "callbridge")
	v.SetDefault("mqtt.topic_prefix", "callbridge")
	v.SetDefault("mqtt.qos", 0)

	v.SetDefault("auth_rate.limit", 5)
	v.SetDefault("auth_rate.interval", "1m")

	v.SetDefault("engine.kind", "sim")
	v.SetDefault("engine.sim.stored_login", false)
}

func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName over the defaults. A missing file is not an error.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("CALLBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Engine: %s | Admission: %s\n", cfg.Mode, cfg.Port, cfg.Engine.Kind, cfg.Admission)
	return &cfg, nil
}
