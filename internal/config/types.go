package config

// Config is the top-level Helmsman configuration.
type Config struct {
	App      AppConfig      `toml:"app"`
	Market   MarketConfig   `toml:"market"`
	Trading  TradingConfig  `toml:"trading"`
	Strategy StrategyConfig `toml:"strategy"`
	Journal  JournalConfig  `toml:"journal"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// InstrumentConfig binds a tradable symbol to an allocation category.
type InstrumentConfig struct {
	Symbol   string `toml:"symbol" yaml:"symbol"`
	Category string `toml:"category" yaml:"category"`
}

type MarketConfig struct {
	Source         string             `toml:"source"`
	RESTBaseURL    string             `toml:"rest_base_url"`
	Interval       string             `toml:"interval"`
	HistoryLimit   int                `toml:"history_limit"`
	TimeoutSeconds int                `toml:"timeout_seconds"`
	Instruments    []InstrumentConfig `toml:"instruments"`
}

// Trading modes. Static only journals decisions; paper additionally
// applies them to in-memory positions.
const (
	ModePaper  = "paper"
	ModeStatic = "static"
)

// TradingConfig controls the capital source and global stake bounds.
type TradingConfig struct {
	Mode        string  `toml:"mode"`
	CapitalUSD  float64 `toml:"capital_usd"`
	MinStakeUSD float64 `toml:"min_stake_usd"`
	MaxStakeUSD float64 `toml:"max_stake_usd"`
}

type StrategyConfig struct {
	Profile       string `toml:"profile"`
	ProfilesPath  string `toml:"profiles_path"`
	RebalanceCron string `toml:"rebalance_cron"`
}

type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}
