// internal/config/config.go
package config

type Config struct {
	Firmware FirmwareConfig `yaml:"firmware"`
	Server   ServerConfig   `yaml:"server"`
	Serial   SerialConfig   `yaml:"serial"`
	Flash    FlashConfig    `yaml:"flash"`
	Console  ConsoleConfig  `yaml:"console"`
	Log      LogConfig      `yaml:"log"`
}

// ---- FIRMWARE ----

type FirmwareConfig struct {
	// Dir is the override directory. Supports "~/..." and "%VAR%..." forms.
	// FIRMWARE_DIR in the environment takes precedence at request time.
	Dir string `yaml:"dir"`
}

// ---- HTTP ----

type ServerConfig struct {
	Listen         string `yaml:"listen"`
	JournalEntries int    `yaml:"journal_entries"`
}

// ---- SERIAL ----

type SerialConfig struct {
	Port          string `yaml:"port"`
	BaudRate      int    `yaml:"baud_rate"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`

	// SettleMs is the pause between closing and reopening a port that was
	// still open. Immediate reopen races the device's USB/UART reset.
	SettleMs int `yaml:"settle_ms"`
}

// ---- FLASH ----

type FlashConfig struct {
	Address     uint32 `yaml:"address"`
	Compress    bool   `yaml:"compress"`
	EraseAll    bool   `yaml:"erase_all"`
	FlashSize   string `yaml:"flash_size"` // "keep" = leave device setting
	FlashMode   string `yaml:"flash_mode"`
	FlashFreq   string `yaml:"flash_freq"`
	SyncRetries int    `yaml:"sync_retries"`
	Engine      string `yaml:"engine"`
	ImageDir    string `yaml:"image_dir"` // sim engine output
}

// ---- CONSOLE ----

type ConsoleConfig struct {
	// Encoding is a WHATWG label ("utf-8", "latin1", "ibm866", ...).
	Encoding string `yaml:"encoding"`
}

// ---- LOG ----

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
