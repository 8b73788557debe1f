package config

const (
	defaultTerminalID          = "T01"
	defaultPairingTimeout      = 10
	defaultSerialPort          = "/dev/ttyACM0"
	defaultBaudRate            = 9600
	defaultByteSize            = 8
	defaultParity              = "N"
	defaultStopBits            = "1"
	defaultReadTimeoutMS       = 1000
	defaultWriteTimeoutMS      = 1000
	defaultSerialEncoding      = "shift_jis"
	defaultIndicatorDriver     = "auto"
	defaultGPIOChip            = "gpiochip0"
	defaultGreenLine           = 17
	defaultRedLine             = 27
	defaultBuzzerLine          = 22
	defaultBlinkIntervalMS     = 250
	defaultSuccessDurationMS   = 1000
	defaultErrorBeepDurationMS = 200
	defaultErrorBeepIntervalMS = 100
	defaultManualLength        = 11
	defaultManualDataLength    = 10
	defaultProcessLength       = 300
	defaultProcessCandidate    = "47:57"
	defaultSiteCodeRange       = "0:4"
	defaultOrderNoRange        = "4:14"
	defaultDispatchNoRange     = "14:24"
	defaultJournalDir          = "~/.local/share/qrassure/journal"
	defaultJournalKeepFiles    = 12
	defaultMatchLabel          = "一致"
	defaultMismatchLabel       = "不一致"
	defaultStateDir            = "~/.local/share/qrassure"
	defaultLogDir              = "~/.local/share/qrassure/logs"
	defaultAPIBind             = "127.0.0.1:7489"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
)

// Default returns a Config populated with deployment defaults.
func Default() Config {
	return Config{
		Terminal: Terminal{ID: defaultTerminalID},
		Pairing:  Pairing{TimeoutSeconds: defaultPairingTimeout},
		Serial: Serial{
			Port:           defaultSerialPort,
			BaudRate:       defaultBaudRate,
			ByteSize:       defaultByteSize,
			Parity:         defaultParity,
			StopBits:       defaultStopBits,
			ReadTimeoutMS:  defaultReadTimeoutMS,
			WriteTimeoutMS: defaultWriteTimeoutMS,
			Encoding:       defaultSerialEncoding,
		},
		Indicator: Indicator{
			Driver:              defaultIndicatorDriver,
			Chip:                defaultGPIOChip,
			GreenLine:           defaultGreenLine,
			RedLine:             defaultRedLine,
			BuzzerLine:          defaultBuzzerLine,
			BlinkIntervalMS:     defaultBlinkIntervalMS,
			SuccessDurationMS:   defaultSuccessDurationMS,
			ErrorBeepDurationMS: defaultErrorBeepDurationMS,
			ErrorBeepIntervalMS: defaultErrorBeepIntervalMS,
		},
		Codes: Codes{
			ManualLength:      defaultManualLength,
			ManualDataLength:  defaultManualDataLength,
			ProcessLength:     defaultProcessLength,
			ProcessCandidates: []string{defaultProcessCandidate},
			SiteCode:          defaultSiteCodeRange,
			OrderNo:           defaultOrderNoRange,
			DispatchNo:        defaultDispatchNoRange,
		},
		Journal: Journal{
			Dir:           defaultJournalDir,
			KeepFiles:     defaultJournalKeepFiles,
			MatchLabel:    defaultMatchLabel,
			MismatchLabel: defaultMismatchLabel,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		API: API{Bind: defaultAPIBind},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
