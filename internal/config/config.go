package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// GetConfig builds the app config from defaults, an optional yaml file and GORRC_ env vars, in that order.
func GetConfig() (Config, error) {
	cfg := NewDefaultConfig()

	configFile := GetStringEnv("CONFIGFILE", DefaultConfigFile)
	if configFile != "" {
		err := LoadFile(configFile, &cfg)
		if err != nil {
			return cfg, err
		}
	}

	cfg = Config{
		LogCfg:     GetLogConfig(cfg.LogCfg),
		RemoteCfg:  GetRemoteConfig(cfg.RemoteCfg),
		PinCfg:     GetPinConfig(cfg.PinCfg),
		GamepadCfg: GetGamepadConfig(cfg.GamepadCfg),
		MQTTCfg:    GetMQTTConfig(cfg.MQTTCfg),
		LinkCfg:    GetLinkConfig(cfg.LinkCfg),
		VehicleCfg: GetVehicleConfig(cfg.VehicleCfg),
		CommandCfg: GetCommandConfig(cfg.CommandCfg),
	}

	err := cfg.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid config - %w", err)
	}

	log.Debugf("app Config: \n%+v\n", cfg)
	return cfg, nil
}

func NewDefaultConfig() Config {
	return Config{
		LogCfg: LogConfig{
			Level: DefaultLogLevel,
			File:  DefaultLogFile,
		},
		RemoteCfg: RemoteConfig{
			Transport:         DefaultTransport,
			Server:            DefaultServer,
			Key:               DefaultRemoteKey,
			HalfExtent:        DefaultHalfExtent,
			TickInterval:      DefaultTickInterval,
			ResendAfter:       DefaultResendAfter,
			SendTimeout:       DefaultSendTimeout,
			ReconnectInterval: DefaultReconnectInterval,
		},
		PinCfg: PinConfig{
			Forward: DefaultPinForward,
			Reverse: DefaultPinReverse,
			Left:    DefaultPinLeft,
			Right:   DefaultPinRight,
		},
		GamepadCfg: GamepadConfig{
			Enabled:      DefaultGamepadEnabled,
			Device:       DefaultGamepadDevice,
			SteerAxis:    DefaultGamepadSteerAxis,
			ThrottleAxis: DefaultGamepadThrotAxis,
			StopButton:   DefaultGamepadStopButton,
			PollRate:     DefaultGamepadPollRate,
		},
		MQTTCfg: MQTTConfig{
			Broker: DefaultMQTTBroker,
			Topic:  DefaultMQTTTopic,
		},
		LinkCfg: LinkConfig{
			Enabled:   DefaultLinkEnabled,
			Interface: DefaultLinkInterface,
			ProcMount: DefaultLinkProcMount,
			Interval:  DefaultLinkInterval,
		},
		VehicleCfg: VehicleConfig{
			Listen:         DefaultVehicleListen,
			CommandTimeout: DefaultCommandTimeout,
			DeadZone:       DefaultVehicleDeadZone,
			StopDistance:   DefaultStopDistance,
			ResumeDistance: DefaultResumeDistance,
			LoopInterval:   DefaultLoopInterval,
			SubscribeMQTT:  DefaultVehicleMQTT,
			Ranger:         DefaultRanger,
		},
		CommandCfg: CommandConfig{
			CommandDriver: DefaultCommandDriver,
			Address:       DefaultAddress,
			I2CDevice:     DefaultI2CDevice,
			ForwardGPIO:   DefaultForwardGPIO,
			ReverseGPIO:   DefaultReverseGPIO,
			SpeedGPIO:     DefaultSpeedGPIO,
			ServoGPIO:     DefaultServoGPIO,
			TriggerGPIO:   DefaultTriggerGPIO,
			EchoGPIO:      DefaultEchoGPIO,
		},
	}
}

// LoadFile overlays the yaml file at path onto cfg. Keys missing from the file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file '%s' - %w", path, err)
	}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return fmt.Errorf("error parsing config file '%s' - %w", path, err)
	}
	log.Printf("loaded config file: %s", path)
	return nil
}

func (c Config) Validate() error {
	supported := false
	for _, transport := range SupportedTransports {
		if c.RemoteCfg.Transport == transport {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported transport: %s", c.RemoteCfg.Transport)
	}

	if math.IsNaN(c.RemoteCfg.HalfExtent) || math.IsInf(c.RemoteCfg.HalfExtent, 0) || c.RemoteCfg.HalfExtent <= 0 {
		return fmt.Errorf("half extent must be positive: %.2f", c.RemoteCfg.HalfExtent)
	}

	// each of these drives a ticker or a timeout
	intervals := []struct {
		name  string
		value time.Duration
	}{
		{"tick interval", c.RemoteCfg.TickInterval},
		{"send timeout", c.RemoteCfg.SendTimeout},
		{"reconnect interval", c.RemoteCfg.ReconnectInterval},
		{"gamepad poll rate", c.GamepadCfg.PollRate},
		{"link interval", c.LinkCfg.Interval},
		{"vehicle loop interval", c.VehicleCfg.LoopInterval},
		{"vehicle failsafe interval", c.VehicleCfg.CommandTimeout / 4},
	}
	for _, interval := range intervals {
		if interval.value <= 0 {
			return fmt.Errorf("%s must be positive: %s", interval.name, interval.value)
		}
	}

	if c.RemoteCfg.ResendAfter < 0 {
		return fmt.Errorf("resend after must not be negative: %s", c.RemoteCfg.ResendAfter)
	}

	_, err := uuid.Parse(c.RemoteCfg.Key)
	if err != nil {
		return fmt.Errorf("remote key is not a uuid - %w", err)
	}

	pins := []int{c.PinCfg.Forward, c.PinCfg.Reverse, c.PinCfg.Left, c.PinCfg.Right}
	seen := make(map[int]bool, len(pins))
	for _, pin := range pins {
		if seen[pin] {
			return fmt.Errorf("pin %d is assigned more than once", pin)
		}
		seen[pin] = true
	}

	supported = false
	for _, driver := range SupportedDrivers {
		if c.CommandCfg.CommandDriver == driver {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported command driver: %s", c.CommandCfg.CommandDriver)
	}

	supported = false
	for _, ranger := range SupportedRangers {
		if c.VehicleCfg.Ranger == ranger {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported ranger: %s", c.VehicleCfg.Ranger)
	}

	if c.VehicleCfg.ResumeDistance < c.VehicleCfg.StopDistance {
		return fmt.Errorf("resume distance %.1f is below stop distance %.1f", c.VehicleCfg.ResumeDistance, c.VehicleCfg.StopDistance)
	}

	if len(c.CommandCfg.ServoCfgs) > MaxSupportedServos {
		return fmt.Errorf("too many servos configured: %d", len(c.CommandCfg.ServoCfgs))
	}
	return nil
}

func GetLogConfig(cfg LogConfig) LogConfig {
	return LogConfig{
		Level: GetStringEnv("LOGLEVEL", cfg.Level),
		File:  GetStringEnv("LOGFILE", cfg.File),
	}
}

func GetRemoteConfig(cfg RemoteConfig) RemoteConfig {
	return RemoteConfig{
		Transport:         strings.ToLower(GetStringEnv("TRANSPORT", cfg.Transport)),
		Server:            GetStringEnv("SERVER", cfg.Server),
		Key:               GetStringEnv("REMOTEKEY", cfg.Key),
		HalfExtent:        GetFloatEnv("HALFEXTENT", cfg.HalfExtent),
		TickInterval:      GetDurationEnv("TICKINTERVAL", cfg.TickInterval),
		ResendAfter:       GetDurationEnv("RESENDAFTER", cfg.ResendAfter),
		SendTimeout:       GetDurationEnv("SENDTIMEOUT", cfg.SendTimeout),
		ReconnectInterval: GetDurationEnv("RECONNECTINTERVAL", cfg.ReconnectInterval),
	}
}

func GetPinConfig(cfg PinConfig) PinConfig {
	envPrefix := "PIN_"
	return PinConfig{
		Forward: GetIntEnv(envPrefix+"FORWARD", cfg.Forward),
		Reverse: GetIntEnv(envPrefix+"REVERSE", cfg.Reverse),
		Left:    GetIntEnv(envPrefix+"LEFT", cfg.Left),
		Right:   GetIntEnv(envPrefix+"RIGHT", cfg.Right),
	}
}

func GetGamepadConfig(cfg GamepadConfig) GamepadConfig {
	envPrefix := "GAMEPAD_"
	return GamepadConfig{
		Enabled:        GetBoolEnv(envPrefix+"ENABLED", cfg.Enabled),
		Device:         GetIntEnv(envPrefix+"DEVICE", cfg.Device),
		SteerAxis:      GetIntEnv(envPrefix+"STEERAXIS", cfg.SteerAxis),
		ThrottleAxis:   GetIntEnv(envPrefix+"THROTTLEAXIS", cfg.ThrottleAxis),
		InvertSteer:    GetBoolEnv(envPrefix+"INVERTSTEER", cfg.InvertSteer),
		InvertThrottle: GetBoolEnv(envPrefix+"INVERTTHROTTLE", cfg.InvertThrottle),
		StopButton:     GetIntEnv(envPrefix+"STOPBUTTON", cfg.StopButton),
		PollRate:       GetDurationEnv(envPrefix+"POLLRATE", cfg.PollRate),
	}
}

func GetMQTTConfig(cfg MQTTConfig) MQTTConfig {
	envPrefix := "MQTT_"
	return MQTTConfig{
		Broker:   GetStringEnv(envPrefix+"BROKER", cfg.Broker),
		Topic:    GetStringEnv(envPrefix+"TOPIC", cfg.Topic),
		Username: GetStringEnv(envPrefix+"USERNAME", cfg.Username),
		Password: GetStringEnv(envPrefix+"PASSWORD", cfg.Password),
	}
}

func GetLinkConfig(cfg LinkConfig) LinkConfig {
	envPrefix := "LINK_"
	return LinkConfig{
		Enabled:   GetBoolEnv(envPrefix+"ENABLED", cfg.Enabled),
		Interface: GetStringEnv(envPrefix+"INTERFACE", cfg.Interface),
		ProcMount: GetStringEnv(envPrefix+"PROCMOUNT", cfg.ProcMount),
		Interval:  GetDurationEnv(envPrefix+"INTERVAL", cfg.Interval),
	}
}

func GetVehicleConfig(cfg VehicleConfig) VehicleConfig {
	envPrefix := "VEHICLE_"
	return VehicleConfig{
		Listen:         GetStringEnv(envPrefix+"LISTEN", cfg.Listen),
		CommandTimeout: GetDurationEnv(envPrefix+"COMMANDTIMEOUT", cfg.CommandTimeout),
		DeadZone:       GetIntEnv(envPrefix+"DEADZONE", cfg.DeadZone),
		StopDistance:   GetFloatEnv(envPrefix+"STOPDISTANCE", cfg.StopDistance),
		ResumeDistance: GetFloatEnv(envPrefix+"RESUMEDISTANCE", cfg.ResumeDistance),
		LoopInterval:   GetDurationEnv(envPrefix+"LOOPINTERVAL", cfg.LoopInterval),
		SubscribeMQTT:  GetBoolEnv(envPrefix+"SUBSCRIBEMQTT", cfg.SubscribeMQTT),
		Ranger:         strings.ToLower(GetStringEnv(envPrefix+"RANGER", cfg.Ranger)),
	}
}

func GetCommandConfig(cfg CommandConfig) CommandConfig {
	commandCfg := CommandConfig{
		CommandDriver: strings.ToLower(GetStringEnv("COMMANDDRIVER", cfg.CommandDriver)),
		Address:       cfg.Address,
		I2CDevice:     GetStringEnv("I2CDEVICE", cfg.I2CDevice),
		ForwardGPIO:   GetIntEnv("GPIO_FORWARD", cfg.ForwardGPIO),
		ReverseGPIO:   GetIntEnv("GPIO_REVERSE", cfg.ReverseGPIO),
		SpeedGPIO:     GetIntEnv("GPIO_SPEED", cfg.SpeedGPIO),
		ServoGPIO:     GetIntEnv("GPIO_SERVO", cfg.ServoGPIO),
		TriggerGPIO:   GetIntEnv("GPIO_TRIGGER", cfg.TriggerGPIO),
		EchoGPIO:      GetIntEnv("GPIO_ECHO", cfg.EchoGPIO),
		ServoCfgs:     make([]ServoConfig, 0, MaxSupportedServos),
	}

	// servos from the file are kept, env vars may add or replace by name
	servos := make(map[string]int, MaxSupportedServos)
	for _, servoCfg := range cfg.ServoCfgs {
		servos[servoCfg.Name] = len(commandCfg.ServoCfgs)
		commandCfg.ServoCfgs = append(commandCfg.ServoCfgs, servoCfg)
	}

	for i := 0; i < MaxSupportedServos; i++ {
		envPrefix := fmt.Sprintf("SERVO%d_", i)
		servoCfg := ServoConfig{
			Name:     GetStringEnv(envPrefix+"NAME", ""),
			Channel:  GetIntEnv(envPrefix+"CHANNEL", i),
			MaxPulse: float64(GetIntEnv(envPrefix+"MAXPULSE", DefaultMaxPulse)),
			MinPulse: float64(GetIntEnv(envPrefix+"MINPULSE", DefaultMinPulse)),
			Inverted: GetBoolEnv(envPrefix+"INVERTED", DefaultInverted),
			Offset:   GetIntEnv(envPrefix+"MIDOFFSET", DefaultOffset),
		}

		if servoCfg.Name == "" {
			continue
		}
		log.Printf("found config for servo: %s", servoCfg.Name)
		if idx, ok := servos[servoCfg.Name]; ok {
			commandCfg.ServoCfgs[idx] = servoCfg
		} else {
			servos[servoCfg.Name] = len(commandCfg.ServoCfgs)
			commandCfg.ServoCfgs = append(commandCfg.ServoCfgs, servoCfg)
		}
	}
	return commandCfg
}

func GetIntEnv(env string, defaultValue int) int {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseInt(strings.Trim(envValue, "\r"), 10, 32)
		if err != nil {
			log.Warnf("%s not parsed - error: %s", env, err)
			return defaultValue
		} else {
			return int(value)
		}
	}
}

func GetBoolEnv(env string, defaultValue bool) bool {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseBool(strings.Trim(envValue, "\r"))
		if err != nil {
			log.Warnf("%s not parsed - error: %s", env, err)
			return defaultValue
		} else {
			return value
		}
	}
}

func GetStringEnv(env string, defaultValue string) string {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		return strings.Trim(envValue, "\r")
	}
}

func GetFloatEnv(env string, defaultValue float64) float64 {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseFloat(strings.Trim(envValue, "\r"), 64)
		if err != nil {
			log.Warnf("%s not parsed - error: %s", env, err)
			return defaultValue
		}
		return value
	}
}

func GetDurationEnv(env string, defaultValue time.Duration) time.Duration {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := time.ParseDuration(strings.Trim(envValue, "\r"))
		if err != nil {
			log.Warnf("%s not parsed - error: %s", env, err)
			return defaultValue
		}
		return value
	}
}
