package modules

import (
	"errors"
	"strings"

	"github.com/coolray-dev/rayfleet/utils"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is a viper instance
// We use single viper instance in rayfleet
var Config *viper.Viper

func init() {
	Config = viper.New()
	Config.SetEnvPrefix("RAYFLEET")
	Config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Config.AutomaticEnv()
	setDefault()
}

// LoadConfig binds flags, reads the config file and verifies required keys.
// Called once from main; kept out of init so importing this package stays
// side-effect free for tests.
func LoadConfig() error {
	pflag.String("config", "", "config file name")
	pflag.Parse()
	Config.BindPFlags(pflag.CommandLine)
	if Config.GetString("config") != "" {
		Config.SetConfigFile(Config.GetString("config"))
	} else {
		Config.SetConfigName("config")
		Config.SetConfigType("yaml")
		Config.AddConfigPath(utils.AbsPath(""))
		Config.AddConfigPath("/etc/rayfleet")
	}

	if err := Config.ReadInConfig(); err != nil {
		return err
	}
	Config.WatchConfig()

	return checkConfig()
}

func checkConfig() error {
	if !Config.IsSet("core.binary") {
		utils.Log.Error("core binary not set")
		return errors.New("core binary not set")
	}
	if !Config.IsSet("core.grpcaddr") {
		utils.Log.Error("core gRPC address not set")
		return errors.New("core gRPC address not set")
	}
	if !Config.IsSet("inbounds") {
		utils.Log.Error("no inbounds configured")
		return errors.New("no inbounds configured")
	}
	return nil
}

func setDefault() {
	Config.SetDefault("log.level", "info")
	Config.SetDefault("core.config", "/etc/rayfleet/core.json")
	Config.SetDefault("nodes.interval", 10)
	Config.SetDefault("nodes.timeout", 30)
	Config.SetDefault("api.listen", "127.0.0.1:8080")
}
