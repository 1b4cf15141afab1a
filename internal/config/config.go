package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pbinitiative/feel"
	"github.com/pbinitiative/zenlistener/pkg/event"
)

const (
	StorageTypeInMemory = "inmemory"
	StorageTypeSqlite   = "sqlite"
)

type Config struct {
	Name       string     `yaml:"name" json:"name" env:"APP_NAME" env-default:"zenlistener"` // used for OTEL as an application identifier
	HttpServer HttpServer `yaml:"httpServer" json:"httpServer"`                               // configuration of the public REST server
	Storage    Storage    `yaml:"storage" json:"storage"`
	Tracing    Tracing    `yaml:"tracing" json:"tracing"`
	Transport  Transport  `yaml:"transport" json:"transport"`
	Listeners  []Listener `yaml:"listeners" json:"listeners"`
}

type HttpServer struct {
	Addr           string   `yaml:"addr" json:"addr" env:"REST_API_ADDR" env-default:":8080"`
	AllowedOrigins []string `yaml:"allowedOrigins" json:"allowedOrigins" env:"REST_API_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
}

type Storage struct {
	// Type is one of inmemory, sqlite
	Type string `yaml:"type" json:"type" env:"STORAGE_TYPE" env-default:"inmemory"`
	// DSN of the sqlite database, ignored for inmemory storage
	DSN string `yaml:"dsn" json:"dsn" env:"STORAGE_DSN" env-default:"zenlistener.db"`
}

type Tracing struct {
	Enabled  bool   `yaml:"enabled" json:"enabled" env:"OTEL_ENABLED" env-default:"false"`
	Endpoint string `yaml:"endpoint" json:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4318"`
	Name     string `yaml:"name" json:"name" env:"OTEL_SERVICE_NAME" env-default:"zenlistener"`

	// TransferHeaders are request headers copied to span attributes and request context
	TransferHeaders []string `yaml:"transferHeaders" json:"transferHeaders" env:"OTEL_TRANSFER_HEADERS" env-separator:","`
}

type Transport struct {
	// Enabled starts the in-process message transport subscriber
	Enabled bool   `yaml:"enabled" json:"enabled" env:"TRANSPORT_ENABLED" env-default:"true"`
	Topic   string `yaml:"topic" json:"topic" env:"TRANSPORT_TOPIC" env-default:"engine-events"`
	// PoisonTopic receives events that still fail after MaxRetries, empty drops them
	PoisonTopic string `yaml:"poisonTopic" json:"poisonTopic" env:"TRANSPORT_POISON_TOPIC" env-default:"engine-events-poison"`
	MaxRetries  int    `yaml:"maxRetries" json:"maxRetries" env:"TRANSPORT_MAX_RETRIES" env-default:"5"`
}

// Listener configures one message throwing listener
type Listener struct {
	MessageName string `yaml:"messageName" json:"messageName"`
	// Events is a comma separated list of event types, empty means all events
	Events     string `yaml:"events" json:"events"`
	EntityType string `yaml:"entityType" json:"entityType"`
	// Condition is a FEEL expression evaluated against the event
	Condition string `yaml:"condition" json:"condition"`
}

// EventTypes returns parsed Events
func (l Listener) EventTypes() ([]event.Type, error) {
	return event.ParseTypes(l.Events)
}

func (c Config) Validate() error {
	var errJoin error
	switch c.Storage.Type {
	case StorageTypeInMemory, StorageTypeSqlite:
	default:
		errJoin = errors.Join(errJoin, fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}
	if c.Transport.MaxRetries < 0 {
		errJoin = errors.Join(errJoin, errors.New("transport maxRetries must not be negative"))
	}
	// one unit of work can trigger a subscription only once
	seen := map[string]int{}
	for i, l := range c.Listeners {
		if l.MessageName == "" {
			errJoin = errors.Join(errJoin, fmt.Errorf("listener %d: messageName must be set", i))
		} else if first, ok := seen[l.MessageName]; ok {
			errJoin = errors.Join(errJoin, fmt.Errorf("listener %d: messageName %s is already thrown by listener %d", i, l.MessageName, first))
		} else {
			seen[l.MessageName] = i
		}
		if _, err := l.EventTypes(); err != nil {
			errJoin = errors.Join(errJoin, fmt.Errorf("listener %d: %w", i, err))
		}
		if l.Condition != "" {
			if _, err := feel.ParseString(l.Condition); err != nil {
				errJoin = errors.Join(errJoin, fmt.Errorf("listener %d: invalid condition %q: %w", i, l.Condition, err))
			}
		}
	}
	return errJoin
}

// Load reads the configuration from fileName, or from ENV if the file does not exist
func Load(fileName string) (Config, error) {
	c := Config{}
	var err error
	if _, perr := os.Stat(fileName); errors.Is(perr, os.ErrNotExist) {
		err = cleanenv.ReadEnv(&c)
	} else {
		err = cleanenv.ReadConfig(fileName, &c)
	}
	if err != nil {
		return c, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

func InitConfig() Config {
	var fileName string
	confFile := os.Getenv("CONFIG_FILE")
	if confFile == "" {
		wd, err := os.Getwd()
		if err != nil {
			panic(err)
		}
		fileName = fmt.Sprintf("%s/conf.yaml", wd)
	} else {
		fileName = confFile
	}
	if _, perr := os.Stat(fileName); errors.Is(perr, os.ErrNotExist) {
		fmt.Printf("Configuration file %s not found. Reading config from ENV.\n", fileName)
	}
	c, err := Load(fileName)
	if err != nil {
		fmt.Printf("Error occurred while reading the configuration: %s\n", err)
		panic(err)
	}
	return c
}
