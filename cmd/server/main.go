package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tvmate/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 9,
	}
	stunURL = configVar[string]{
		envKey:       "STUN_URL",
		flagKey:      "stun-url",
		defaultValue: "stun:stun.l.google.com:19302",
	}
	turnURL = configVar[string]{
		envKey:       "TURN_URL",
		flagKey:      "turn-url",
		defaultValue: "turn:localhost:3478",
	}
	turnSecret = configVar[string]{
		envKey:       "TURN_SECRET_KEY",
		flagKey:      "turn-secret",
		defaultValue: "",
	}
	callRequestCooldown = configVar[time.Duration]{
		envKey:       "SERVER_CALL_REQUEST_COOLDOWN",
		flagKey:      "call-request-cooldown",
		defaultValue: 60 * time.Second,
	}
	pingPeriod = configVar[time.Duration]{
		envKey:       "SERVER_PING_PERIOD",
		flagKey:      "ping-period",
		defaultValue: 30 * time.Second,
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(membersLimit.flagKey, membersLimit.defaultValue, "Maximum number of members in the room")
	pflag.String(stunURL.flagKey, stunURL.defaultValue, "STUN server handed to clients")
	pflag.String(turnURL.flagKey, turnURL.defaultValue, "TURN server handed to clients")
	pflag.String(turnSecret.flagKey, turnSecret.defaultValue, "Shared secret for TURN REST credentials")
	pflag.Duration(callRequestCooldown.flagKey, callRequestCooldown.defaultValue, "Minimum interval between call requests of one user")
	pflag.Duration(pingPeriod.flagKey, pingPeriod.defaultValue, "Websocket keepalive ping period")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host, in-memory cooldowns when empty")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(membersLimit.flagKey, membersLimit.envKey)
	viper.BindEnv(stunURL.flagKey, stunURL.envKey)
	viper.BindEnv(turnURL.flagKey, turnURL.envKey)
	viper.BindEnv(turnSecret.flagKey, turnSecret.envKey)
	viper.BindEnv(callRequestCooldown.flagKey, callRequestCooldown.envKey)
	viper.BindEnv(pingPeriod.flagKey, pingPeriod.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(membersLimit.flagKey, membersLimit.defaultValue)
	viper.SetDefault(stunURL.flagKey, stunURL.defaultValue)
	viper.SetDefault(turnURL.flagKey, turnURL.defaultValue)
	viper.SetDefault(turnSecret.flagKey, turnSecret.defaultValue)
	viper.SetDefault(callRequestCooldown.flagKey, callRequestCooldown.defaultValue)
	viper.SetDefault(pingPeriod.flagKey, pingPeriod.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	config := &app.AppConfig{
		Host:         viper.GetString(host.flagKey),
		Port:         viper.GetInt(port.flagKey),
		LogLevel:     viper.GetString(logLevel.flagKey),
		MembersLimit: viper.GetInt(membersLimit.flagKey),
		StunURL:      viper.GetString(stunURL.flagKey),
		TurnURL:      viper.GetString(turnURL.flagKey),
		// read on every issuance
		TurnSecret: func() string {
			return viper.GetString(turnSecret.flagKey)
		},
		CallRequestCooldown: viper.GetDuration(callRequestCooldown.flagKey),
		PingPeriod:          viper.GetDuration(pingPeriod.flagKey),
		RedisPort:           viper.GetInt(redisPort.flagKey),
		RedisHost:           viper.GetString(redisHost.flagKey),
		RedisPassword:       viper.GetString(redisPassword.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	// .env is optional
	_ = godotenv.Load(".env")

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
