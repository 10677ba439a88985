package constants

const (
	PrefixLength         = 8
	MaxPrefixAttempts    = 100
	ScanDirName          = "scans"
	ScanimageCommand     = "scanimage"
	EpsonScan2Command    = "epsonscan2"
	DriverScanimage      = "scanimage"
	DriverEpsonScan2     = "epsonscan2"
	ShutdownTimeoutSecs  = 10
	ReadHeaderTimeoutSec = 5
)
