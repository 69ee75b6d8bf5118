package config

import "time"

const (
	MaxSupportedServos = 16
	AppEnvBase         = "GORRC_"

	DefaultConfigFile = ""

	// Default Log Options
	DefaultLogLevel = "info"
	DefaultLogFile  = ""

	// Default Remote Options
	DefaultTransport         = TransportHTTP
	DefaultServer            = "192.168.1.18:8080"
	DefaultRemoteKey         = "c0b839e9-0962-4494-9840-4b8751e15d90"
	DefaultHalfExtent        = 80.0
	DefaultTickInterval      = 100 * time.Millisecond
	DefaultResendAfter       = 500 * time.Millisecond
	DefaultSendTimeout       = 2 * time.Second
	DefaultReconnectInterval = 5 * time.Second

	// Default Pin Options
	DefaultPinForward = 3
	DefaultPinReverse = 6
	DefaultPinLeft    = 5
	DefaultPinRight   = 9

	// Default Gamepad Options
	DefaultGamepadEnabled    = true
	DefaultGamepadDevice     = 0
	DefaultGamepadSteerAxis  = 0
	DefaultGamepadThrotAxis  = 1
	DefaultGamepadStopButton = 1
	DefaultGamepadPollRate   = 33 * time.Millisecond

	// Default MQTT Options
	DefaultMQTTBroker = "127.0.0.1:1883"
	DefaultMQTTTopic  = "gorrc/drive"

	// Default Link Options
	DefaultLinkEnabled   = true
	DefaultLinkInterface = "wlan0"
	DefaultLinkProcMount = "/proc"
	DefaultLinkInterval  = 30 * time.Second

	// Default Vehicle Options
	DefaultVehicleListen   = ":8080"
	DefaultCommandTimeout  = 1500 * time.Millisecond
	DefaultVehicleDeadZone = 10
	DefaultStopDistance    = 20.0
	DefaultResumeDistance  = 25.0
	DefaultLoopInterval    = 10 * time.Millisecond
	DefaultVehicleMQTT     = false
	DefaultRanger          = RangerNone

	// Default Command Options
	DefaultCommandDriver = DriverLog
	DefaultAddress       = 0x40
	DefaultI2CDevice     = "/dev/i2c-1"
	DefaultMaxPulse      = 2250
	DefaultMinPulse      = 750
	DefaultInverted      = false
	DefaultOffset        = 0

	// Default rpio pins, matching the H-bridge wiring of the car
	DefaultForwardGPIO = 23
	DefaultReverseGPIO = 24
	DefaultSpeedGPIO   = 12
	DefaultServoGPIO   = 13
	DefaultTriggerGPIO = 5
	DefaultEchoGPIO    = 6
)

const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
	TransportSocketIO  = "socketio"
	TransportMQTT      = "mqtt"
	TransportWebRTC    = "webrtc"
)

const (
	DriverLog     = "log"
	DriverPCA9685 = "pca9685"
	DriverPiPWM   = "pi_pwm"
)

var SupportedDrivers = []string{DriverLog, DriverPCA9685, DriverPiPWM}

const (
	RangerNone   = "none"
	RangerHCSR04 = "hcsr04"
)

var SupportedRangers = []string{RangerNone, RangerHCSR04}

var SupportedTransports = []string{TransportHTTP, TransportWebSocket, TransportSocketIO, TransportMQTT, TransportWebRTC}

type Config struct {
	LogCfg     LogConfig     `yaml:"log"`
	RemoteCfg  RemoteConfig  `yaml:"remote"`
	PinCfg     PinConfig     `yaml:"pins"`
	GamepadCfg GamepadConfig `yaml:"gamepad"`
	MQTTCfg    MQTTConfig    `yaml:"mqtt"`
	LinkCfg    LinkConfig    `yaml:"link"`
	VehicleCfg VehicleConfig `yaml:"vehicle"`
	CommandCfg CommandConfig `yaml:"command"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type RemoteConfig struct {
	Transport         string        `yaml:"transport"`
	Server            string        `yaml:"server"`
	Key               string        `yaml:"key"`
	HalfExtent        float64       `yaml:"half_extent"`
	TickInterval      time.Duration `yaml:"tick_interval"`
	ResendAfter       time.Duration `yaml:"resend_after"`
	SendTimeout       time.Duration `yaml:"send_timeout"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// PinConfig holds the pin identifiers the vehicle controller expects in CMD_UD/CMD_LR lines.
type PinConfig struct {
	Forward int `yaml:"forward"`
	Reverse int `yaml:"reverse"`
	Left    int `yaml:"left"`
	Right   int `yaml:"right"`
}

type GamepadConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Device         int           `yaml:"device"`
	SteerAxis      int           `yaml:"steer_axis"`
	ThrottleAxis   int           `yaml:"throttle_axis"`
	InvertSteer    bool          `yaml:"invert_steer"`
	InvertThrottle bool          `yaml:"invert_throttle"`
	StopButton     int           `yaml:"stop_button"`
	PollRate       time.Duration `yaml:"poll_rate"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type LinkConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interface string        `yaml:"interface"`
	ProcMount string        `yaml:"proc_mount"`
	Interval  time.Duration `yaml:"interval"`
}

type VehicleConfig struct {
	Listen         string        `yaml:"listen"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	DeadZone       int           `yaml:"dead_zone"`
	StopDistance   float64       `yaml:"stop_distance"`
	ResumeDistance float64       `yaml:"resume_distance"`
	LoopInterval   time.Duration `yaml:"loop_interval"`
	SubscribeMQTT  bool          `yaml:"subscribe_mqtt"`
	Ranger         string        `yaml:"ranger"`
}

type CommandConfig struct {
	CommandDriver string        `yaml:"driver"`
	Address       byte          `yaml:"address"`
	I2CDevice     string        `yaml:"i2c_device"`
	ForwardGPIO   int           `yaml:"forward_gpio"`
	ReverseGPIO   int           `yaml:"reverse_gpio"`
	SpeedGPIO     int           `yaml:"speed_gpio"`
	ServoGPIO     int           `yaml:"servo_gpio"`
	TriggerGPIO   int           `yaml:"trigger_gpio"`
	EchoGPIO      int           `yaml:"echo_gpio"`
	ServoCfgs     []ServoConfig `yaml:"servos"`
}

type ServoConfig struct {
	Name     string  `yaml:"name"`
	Inverted bool    `yaml:"inverted"`
	Channel  int     `yaml:"channel"`
	MaxPulse float64 `yaml:"max_pulse"`
	MinPulse float64 `yaml:"min_pulse"`
	Offset   int     `yaml:"offset"`
}
