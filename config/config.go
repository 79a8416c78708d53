package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 调试器的完整配置
type Config struct {
	Python   PythonConfig   `mapstructure:"python" yaml:"python"`
	Protocol ProtocolConfig `mapstructure:"protocol" yaml:"protocol"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// PythonConfig 子进程解释器
type PythonConfig struct {
	// Interpreter is the python executable used to launch the debuggee.
	Interpreter string `mapstructure:"interpreter" yaml:"interpreter"`
	// Module is the debugger module run with `-m`.
	Module string `mapstructure:"module" yaml:"module"`
}

// ProtocolConfig describes the text protocol spoken by the debugger module.
type ProtocolConfig struct {
	// Prompt terminates every response unit.
	Prompt string `mapstructure:"prompt" yaml:"prompt"`
	// EnvMarker prefixes the JSON variable dump line.
	EnvMarker string `mapstructure:"env_marker" yaml:"env_marker"`
	// Encoding of the child's output, a WHATWG encoding label. Empty selects the platform default.
	Encoding string `mapstructure:"encoding" yaml:"encoding"`
	// CommentMarker starts a comment line in the debugged language.
	CommentMarker string `mapstructure:"comment_marker" yaml:"comment_marker"`
	// InternalFiles are base names of the debugger's own implementation files,
	// hidden from stack dumps.
	InternalFiles []string `mapstructure:"internal_files" yaml:"internal_files"`
}

// SessionConfig 调试会话
type SessionConfig struct {
	// KillTimeout bounds the wait for the child to exit after a kill.
	KillTimeout time.Duration `mapstructure:"kill_timeout" yaml:"kill_timeout"`
}

// ServerConfig DAP服务
type ServerConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
	// IdleTimeout closes a client connection that sent no request for this long. Zero disables it.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// LogConfig 日志
type LogConfig struct {
	// Path of the log file; empty logs to stderr.
	Path string `mapstructure:"path" yaml:"path"`
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is text or json.
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	interpreter := "python3"
	if runtime.GOOS == "windows" {
		interpreter = "python"
	}
	return &Config{
		Python: PythonConfig{
			Interpreter: interpreter,
			Module:      "jsonpdb",
		},
		Protocol: ProtocolConfig{
			Prompt:        "(Pdb) ",
			EnvMarker:     "__ENV__:",
			Encoding:      PlatformEncoding(),
			CommentMarker: "#",
			InternalFiles: []string{"pdb.py", "bdb.py", "jsonpdb.py"},
		},
		Session: SessionConfig{
			KillTimeout: 3 * time.Second,
		},
		Server: ServerConfig{
			Port:        "8889",
			IdleTimeout: 30 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// PlatformEncoding 子进程输出使用的编码，按平台选择
func PlatformEncoding() string {
	if runtime.GOOS == "windows" {
		return "windows-1252"
	}
	return "utf-8"
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("python.interpreter", defaults.Python.Interpreter)
	viper.SetDefault("python.module", defaults.Python.Module)

	viper.SetDefault("protocol.prompt", defaults.Protocol.Prompt)
	viper.SetDefault("protocol.env_marker", defaults.Protocol.EnvMarker)
	viper.SetDefault("protocol.encoding", defaults.Protocol.Encoding)
	viper.SetDefault("protocol.comment_marker", defaults.Protocol.CommentMarker)
	viper.SetDefault("protocol.internal_files", defaults.Protocol.InternalFiles)

	viper.SetDefault("session.kill_timeout", defaults.Session.KillTimeout)

	viper.SetDefault("server.port", defaults.Server.Port)
	viper.SetDefault("server.idle_timeout", defaults.Server.IdleTimeout)

	viper.SetDefault("log.path", defaults.Log.Path)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.format", defaults.Log.Format)
}

// Init wires viper to the config file and the environment.
// An explicit file takes precedence over the search path.
func Init(file string) error {
	SetDefaults()
	viper.SetEnvPrefix("PDBDBG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if file != "" {
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName("pdb-debugger")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(ConfigDir())
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && file == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load unmarshals the viper state into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// ConfigDir returns the configuration directory
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "pdb-debugger")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "pdb-debugger")
}

// Validate 校验配置，返回所有错误
func (c *Config) Validate() []error {
	var errs []error
	if c.Python.Interpreter == "" {
		errs = append(errs, errors.New("python.interpreter cannot be empty"))
	}
	if c.Python.Module == "" {
		errs = append(errs, errors.New("python.module cannot be empty"))
	}
	if c.Protocol.Prompt == "" {
		errs = append(errs, errors.New("protocol.prompt cannot be empty"))
	}
	if c.Protocol.EnvMarker == "" {
		errs = append(errs, errors.New("protocol.env_marker cannot be empty"))
	}
	if c.Protocol.Encoding != "" {
		if _, err := lookupEncoding(c.Protocol.Encoding); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Session.KillTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session.kill_timeout must be positive, got %s", c.Session.KillTimeout))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errs
}

// ValidationErrors 多个校验错误
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, err := range v {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}
